package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gitpulse/gitpulse/internal/directory"
	"github.com/gitpulse/gitpulse/internal/models"
	"github.com/gitpulse/gitpulse/internal/notify"
	"github.com/gitpulse/gitpulse/internal/platform"
	"github.com/gitpulse/gitpulse/internal/poller"
	"github.com/gitpulse/gitpulse/internal/settings"
	"github.com/gitpulse/gitpulse/internal/storage"
	"github.com/gitpulse/gitpulse/internal/testutil"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*mux.Router, *settings.Manager, *int) {
	t.Helper()
	store := storage.NewMemoryStore()
	mgr, err := settings.NewManager(store)
	require.NoError(t, err)

	fake := testutil.NewFakePlatform(models.PlatformGitHub)
	dispatcher := notify.NewDispatcher(store, nil)
	dir := directory.New([]platform.Platform{fake}, store)
	svc := poller.NewService([]platform.Platform{fake}, dir, mgr, store, dispatcher)

	rearmed := 0
	handler := NewHandler(svc, mgr, dispatcher, func(minutes int) { rearmed = minutes })
	router := mux.NewRouter()
	handler.Register(router)
	return router, mgr, &rearmed
}

func TestHandler_Health(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestHandler_Status(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var status models.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Contains(t, status.Platforms, models.PlatformGitHub)
}

func TestHandler_UpdateSettings(t *testing.T) {
	router, mgr, rearmed := newTestRouter(t)

	body := strings.NewReader(`{"check_interval_minutes": 45, "ignore_forks": true}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("PATCH", "/api/settings", body))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 45, mgr.Get().CheckIntervalMinutes)
	assert.True(t, mgr.Get().IgnoreForks)
	assert.Equal(t, 45, *rearmed)
}

func TestHandler_UpdateSettingsRejectsInvalid(t *testing.T) {
	router, mgr, _ := newTestRouter(t)

	body := strings.NewReader(`{"check_interval_minutes": 0}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("PATCH", "/api/settings", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 15, mgr.Get().CheckIntervalMinutes)
}

func TestHandler_TriggerSweepAccepted(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/sweep?kind=releases", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestHandler_NotificationsEmpty(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/notifications", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Notifications []models.NotificationRecord `json:"notifications"`
		Unread        int                         `json:"unread"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.Notifications)
	assert.Equal(t, 0, body.Unread)
}

func TestHandler_ClearUnread(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/notifications/read", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}
