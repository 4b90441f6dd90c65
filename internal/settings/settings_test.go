package settings

import (
	"encoding/json"
	"testing"

	"github.com/gitpulse/gitpulse/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Defaults(t *testing.T) {
	m, err := NewManager(storage.NewMemoryStore())
	require.NoError(t, err)

	s := m.Get()
	assert.Equal(t, 15, s.CheckIntervalMinutes)
	assert.True(t, s.NotificationsEnabled)
	assert.True(t, s.ReleaseNotificationsEnabled)
	assert.False(t, s.IgnoreForks)
}

func TestSettings_RepoEnabledDefaultsToEnabled(t *testing.T) {
	s := Defaults()
	s.EnabledRepos["github:owner/disabled"] = false

	assert.False(t, s.RepoEnabled("github:owner/disabled"))
	assert.True(t, s.RepoEnabled("github:owner/never-seen"))
}

func TestManager_Update(t *testing.T) {
	store := storage.NewMemoryStore()
	m, err := NewManager(store)
	require.NoError(t, err)

	interval := 30
	forks := true
	updated, err := m.Update(Patch{
		CheckIntervalMinutes: &interval,
		IgnoreForks:          &forks,
	})
	require.NoError(t, err)
	assert.Equal(t, 30, updated.CheckIntervalMinutes)
	assert.True(t, updated.IgnoreForks)
	// Untouched fields keep their values
	assert.True(t, updated.NotificationsEnabled)

	// Persisted, so a fresh manager sees the update
	m2, err := NewManager(store)
	require.NoError(t, err)
	assert.Equal(t, 30, m2.Get().CheckIntervalMinutes)
}

func TestManager_UpdateRejectsBadInterval(t *testing.T) {
	m, err := NewManager(storage.NewMemoryStore())
	require.NoError(t, err)

	zero := 0
	_, err = m.Update(Patch{CheckIntervalMinutes: &zero})
	assert.Error(t, err)
	assert.Equal(t, 15, m.Get().CheckIntervalMinutes)
}

func TestManager_AbsentKeysKeepDefaults(t *testing.T) {
	store := storage.NewMemoryStore()
	// Persisted by an older build that knew neither notification toggle
	require.NoError(t, store.Set("settings", []byte(`{"check_interval_minutes":20,"ignore_forks":true}`)))

	m, err := NewManager(store)
	require.NoError(t, err)

	s := m.Get()
	assert.Equal(t, 20, s.CheckIntervalMinutes)
	assert.True(t, s.IgnoreForks)
	// Absence is not disabled
	assert.True(t, s.NotificationsEnabled)
	assert.True(t, s.ReleaseNotificationsEnabled)
}

func TestManager_ExplicitFalseSurvivesLoad(t *testing.T) {
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set("settings", []byte(`{"notifications_enabled":false,"release_notifications_enabled":false}`)))

	m, err := NewManager(store)
	require.NoError(t, err)

	s := m.Get()
	assert.False(t, s.NotificationsEnabled)
	assert.False(t, s.ReleaseNotificationsEnabled)
}

func TestManager_MigratesLegacyRepoKeys(t *testing.T) {
	store := storage.NewMemoryStore()
	legacy := Settings{
		CheckIntervalMinutes: 10,
		EnabledRepos: map[string]bool{
			"owner/plain":      false,
			"gitlab:group/app": true,
		},
		NotificationsEnabled:        true,
		ReleaseNotificationsEnabled: true,
	}
	data, err := json.Marshal(legacy)
	require.NoError(t, err)
	require.NoError(t, store.Set("settings", data))

	m, err := NewManager(store)
	require.NoError(t, err)

	s := m.Get()
	assert.NotContains(t, s.EnabledRepos, "owner/plain")
	assert.False(t, s.RepoEnabled("github:owner/plain"))
	assert.True(t, s.RepoEnabled("gitlab:group/app"))

	// Migration is persisted, not re-run forever
	raw, err := store.Get("settings")
	require.NoError(t, err)
	var persisted Settings
	require.NoError(t, json.Unmarshal(raw, &persisted))
	assert.NotContains(t, persisted.EnabledRepos, "owner/plain")
}
