// Package api exposes the watcher's state to the external UI and
// configuration layer over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gitpulse/gitpulse/internal/models"
	"github.com/gitpulse/gitpulse/internal/notify"
	"github.com/gitpulse/gitpulse/internal/poller"
	"github.com/gitpulse/gitpulse/internal/settings"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Handler wires the HTTP surface onto the poller, settings and
// dispatcher services.
type Handler struct {
	poller     *poller.Service
	settings   *settings.Manager
	dispatcher *notify.Dispatcher
	onInterval func(minutes int)
}

// NewHandler creates the HTTP surface. onInterval is invoked after a
// settings update changes the check interval, letting the caller
// re-arm the scheduler.
func NewHandler(p *poller.Service, mgr *settings.Manager, d *notify.Dispatcher, onInterval func(minutes int)) *Handler {
	return &Handler{poller: p, settings: mgr, dispatcher: d, onInterval: onInterval}
}

// Register mounts all routes on the router.
func (h *Handler) Register(router *mux.Router) {
	router.HandleFunc("/health", h.health).Methods("GET")
	router.HandleFunc("/api/status", h.status).Methods("GET")
	router.HandleFunc("/api/repositories", h.repositories).Methods("GET")
	router.HandleFunc("/api/settings", h.getSettings).Methods("GET")
	router.HandleFunc("/api/settings", h.updateSettings).Methods("PATCH")
	router.HandleFunc("/api/sweep", h.triggerSweep).Methods("POST")
	router.HandleFunc("/api/notifications", h.notifications).Methods("GET")
	router.HandleFunc("/api/notifications/read", h.clearUnread).Methods("POST")
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.poller.Status())
}

func (h *Handler) repositories(w http.ResponseWriter, r *http.Request) {
	repos, err := h.poller.Repositories(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if repos == nil {
		repos = []models.RepositoryRef{}
	}
	writeJSON(w, http.StatusOK, repos)
}

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.settings.Get())
}

func (h *Handler) updateSettings(w http.ResponseWriter, r *http.Request) {
	var patch settings.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	updated, err := h.settings.Update(patch)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if patch.CheckIntervalMinutes != nil && h.onInterval != nil {
		h.onInterval(updated.CheckIntervalMinutes)
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) triggerSweep(w http.ResponseWriter, r *http.Request) {
	kind := models.SweepCommits
	if r.URL.Query().Get("kind") == string(models.SweepReleases) {
		kind = models.SweepReleases
	}

	go func() {
		if err := h.poller.RunSweep(context.Background(), kind); err != nil {
			logrus.Errorf("Manual %s sweep failed: %v", kind, err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"message": "sweep triggered"})
}

func (h *Handler) notifications(w http.ResponseWriter, r *http.Request) {
	history, err := h.dispatcher.History()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if history == nil {
		history = []models.NotificationRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": history,
		"unread":        h.dispatcher.UnreadCount(),
	})
}

func (h *Handler) clearUnread(w http.ResponseWriter, r *http.Request) {
	if err := h.dispatcher.ClearUnread(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "unread cleared"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
