package settings

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/gitpulse/gitpulse/internal/models"
	"github.com/gitpulse/gitpulse/internal/storage"
	"github.com/sirupsen/logrus"
)

const storeKey = "settings"

// Settings holds the runtime-mutable watcher behavior, persisted in the
// local store and updated through the external configuration surface.
type Settings struct {
	CheckIntervalMinutes int `json:"check_interval_minutes"`

	IgnoreForks      bool `json:"ignore_forks"`
	IgnoreOwnCommits bool `json:"ignore_own_commits"`

	// EnabledRepos maps composite repository keys ("platform:owner/name")
	// to an enabled flag. A missing key means enabled.
	EnabledRepos map[string]bool `json:"enabled_repos"`

	NotificationsEnabled        bool `json:"notifications_enabled"`
	ReleaseNotificationsEnabled bool `json:"release_notifications_enabled"`
}

// Patch carries a partial settings update; nil fields are left unchanged.
type Patch struct {
	CheckIntervalMinutes        *int             `json:"check_interval_minutes,omitempty"`
	IgnoreForks                 *bool            `json:"ignore_forks,omitempty"`
	IgnoreOwnCommits            *bool            `json:"ignore_own_commits,omitempty"`
	EnabledRepos                *map[string]bool `json:"enabled_repos,omitempty"`
	NotificationsEnabled        *bool            `json:"notifications_enabled,omitempty"`
	ReleaseNotificationsEnabled *bool            `json:"release_notifications_enabled,omitempty"`
}

// Defaults returns the settings used before the user changes anything.
func Defaults() Settings {
	return Settings{
		CheckIntervalMinutes:        15,
		IgnoreForks:                 false,
		IgnoreOwnCommits:            false,
		EnabledRepos:                map[string]bool{},
		NotificationsEnabled:        true,
		ReleaseNotificationsEnabled: true,
	}
}

// RepoEnabled reports whether the repository key is enabled. Absence
// means enabled.
func (s Settings) RepoEnabled(key string) bool {
	enabled, ok := s.EnabledRepos[key]
	if !ok {
		return true
	}
	return enabled
}

// Manager loads, caches and persists settings.
type Manager struct {
	store storage.Store
	mu    sync.RWMutex
	cur   Settings
}

// NewManager reads persisted settings, migrating legacy enabled-repo
// keys to the composite form once at load.
func NewManager(store storage.Store) (*Manager, error) {
	m := &Manager{store: store, cur: Defaults()}

	data, err := store.Get(storeKey)
	if err == storage.ErrNotFound {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	// Decode over the defaults so keys absent from the persisted JSON
	// keep their default values, absence never means disabled.
	loaded := Defaults()
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}
	applyDefaults(&loaded)

	if migrateRepoKeys(loaded.EnabledRepos) {
		logrus.Info("Migrated legacy enabled-repo keys to composite form")
		m.cur = loaded
		if err := m.persist(); err != nil {
			return nil, err
		}
		return m, nil
	}

	m.cur = loaded
	return m, nil
}

// Get returns a copy of the current settings.
func (m *Manager) Get() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cur := m.cur
	cur.EnabledRepos = make(map[string]bool, len(m.cur.EnabledRepos))
	for key, enabled := range m.cur.EnabledRepos {
		cur.EnabledRepos[key] = enabled
	}
	return cur
}

// Update merges the patch into the current settings and persists them.
func (m *Manager) Update(patch Patch) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if patch.CheckIntervalMinutes != nil {
		if *patch.CheckIntervalMinutes < 1 {
			return m.cur, fmt.Errorf("check interval must be at least 1 minute")
		}
		m.cur.CheckIntervalMinutes = *patch.CheckIntervalMinutes
	}
	if patch.IgnoreForks != nil {
		m.cur.IgnoreForks = *patch.IgnoreForks
	}
	if patch.IgnoreOwnCommits != nil {
		m.cur.IgnoreOwnCommits = *patch.IgnoreOwnCommits
	}
	if patch.EnabledRepos != nil {
		repos := make(map[string]bool, len(*patch.EnabledRepos))
		for key, enabled := range *patch.EnabledRepos {
			repos[key] = enabled
		}
		migrateRepoKeys(repos)
		m.cur.EnabledRepos = repos
	}
	if patch.NotificationsEnabled != nil {
		m.cur.NotificationsEnabled = *patch.NotificationsEnabled
	}
	if patch.ReleaseNotificationsEnabled != nil {
		m.cur.ReleaseNotificationsEnabled = *patch.ReleaseNotificationsEnabled
	}

	if err := m.persist(); err != nil {
		return m.cur, err
	}
	return m.cur, nil
}

func (m *Manager) persist() error {
	data, err := json.Marshal(m.cur)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	if err := m.store.Set(storeKey, data); err != nil {
		return fmt.Errorf("persisting settings: %w", err)
	}
	return nil
}

func applyDefaults(s *Settings) {
	if s.CheckIntervalMinutes < 1 {
		s.CheckIntervalMinutes = Defaults().CheckIntervalMinutes
	}
	if s.EnabledRepos == nil {
		s.EnabledRepos = map[string]bool{}
	}
}

// migrateRepoKeys normalizes legacy plain "owner/name" keys to the
// composite "platform:owner/name" form in place. Bare keys predate
// GitLab support and were always GitHub repositories. Reports whether
// anything changed.
func migrateRepoKeys(repos map[string]bool) bool {
	changed := false
	for key, enabled := range repos {
		if strings.HasPrefix(key, string(models.PlatformGitHub)+":") ||
			strings.HasPrefix(key, string(models.PlatformGitLab)+":") {
			continue
		}
		composite := fmt.Sprintf("%s:%s", models.PlatformGitHub, key)
		if _, exists := repos[composite]; !exists {
			repos[composite] = enabled
		}
		delete(repos, key)
		changed = true
	}
	return changed
}
