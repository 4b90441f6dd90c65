package notify

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gitpulse/gitpulse/internal/models"
	"github.com/gitpulse/gitpulse/internal/storage"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	historyKey = "notification_history"
	unreadKey  = "unread_count"
	// The activity history is a capped ring: only the most recent
	// entries survive, newest first.
	historyLimit = 100
)

// Dispatcher formats detected changes, fans them out to the configured
// sinks and maintains the bounded history plus the unread counter.
type Dispatcher struct {
	store storage.Store
	sinks []Sink
	mu    sync.Mutex
	now   func() time.Time
}

func NewDispatcher(store storage.Store, sinks []Sink) *Dispatcher {
	return &Dispatcher{store: store, sinks: sinks, now: time.Now}
}

// NotifyCommit emits a notification for a newly detected commit.
func (d *Dispatcher) NotifyCommit(repo models.RepositoryRef, commit models.CommitRecord, priority models.Priority) {
	sha := commit.SHA
	if len(sha) > 8 {
		sha = sha[:8]
	}
	notification := Notification{
		ID:      fmt.Sprintf("%s-commit-%s-%s", repo.Platform, repo.Key(), sha),
		Title:   fmt.Sprintf("New commit in %s", repo.FullName),
		Body:    fmt.Sprintf("%s: %s", commit.Author.Name, firstLine(commit.Message)),
		Urgency: urgencyFor(priority),
		URL:     commit.URL,
	}
	d.dispatch(notification, models.NotificationRecord{
		Type:     models.SweepCommits,
		Platform: repo.Platform,
		Repo:     repo.FullName,
		Priority: priority,
		Message:  firstLine(commit.Message),
		URL:      commit.URL,
	})
}

// NotifyRelease emits a notification for a newly detected release.
func (d *Dispatcher) NotifyRelease(repo models.RepositoryRef, release models.ReleaseRecord) {
	kind := "release"
	if release.TagFallback {
		kind = "tag"
	}
	notification := Notification{
		ID:      fmt.Sprintf("%s-release-%s-%s", repo.Platform, repo.Key(), release.ID),
		Title:   fmt.Sprintf("New %s in %s", kind, repo.FullName),
		Body:    fmt.Sprintf("%s published", release.TagName),
		Urgency: UrgencyNormal,
		URL:     release.URL,
	}
	d.dispatch(notification, models.NotificationRecord{
		Type:     models.SweepReleases,
		Platform: repo.Platform,
		Repo:     repo.FullName,
		Message:  fmt.Sprintf("%s %s published", kind, release.TagName),
		URL:      release.URL,
	})
}

func (d *Dispatcher) dispatch(notification Notification, record models.NotificationRecord) {
	for _, sink := range d.sinks {
		if err := sink.Emit(notification); err != nil {
			logrus.Errorf("Failed to emit notification via %s: %v", sink.Name(), err)
		}
	}

	record.ID = uuid.NewString()
	record.Timestamp = d.now()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.appendHistory(record)
	d.incrementUnread()
}

// History returns the stored activity feed, newest first.
func (d *Dispatcher) History() ([]models.NotificationRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loadHistory()
}

// UnreadCount returns the number of notifications since the last
// ClearUnread.
func (d *Dispatcher) UnreadCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	data, err := d.store.Get(unreadKey)
	if err != nil {
		return 0
	}
	var count int
	if err := json.Unmarshal(data, &count); err != nil {
		return 0
	}
	return count
}

// ClearUnread resets the unread counter for the external badge surface.
func (d *Dispatcher) ClearUnread() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.store.Set(unreadKey, []byte("0"))
}

func (d *Dispatcher) loadHistory() ([]models.NotificationRecord, error) {
	data, err := d.store.Get(historyKey)
	if err == storage.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading notification history: %w", err)
	}
	var history []models.NotificationRecord
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("decoding notification history: %w", err)
	}
	return history, nil
}

func (d *Dispatcher) appendHistory(record models.NotificationRecord) {
	history, err := d.loadHistory()
	if err != nil {
		logrus.Errorf("Failed to load notification history: %v", err)
		history = nil
	}

	history = append([]models.NotificationRecord{record}, history...)
	if len(history) > historyLimit {
		history = history[:historyLimit]
	}

	data, err := json.Marshal(history)
	if err != nil {
		logrus.Errorf("Failed to encode notification history: %v", err)
		return
	}
	if err := d.store.Set(historyKey, data); err != nil {
		logrus.Errorf("Failed to persist notification history: %v", err)
	}
}

func (d *Dispatcher) incrementUnread() {
	count := 0
	if data, err := d.store.Get(unreadKey); err == nil {
		json.Unmarshal(data, &count)
	}
	count++
	data, _ := json.Marshal(count)
	if err := d.store.Set(unreadKey, data); err != nil {
		logrus.Errorf("Failed to persist unread counter: %v", err)
	}
}

func urgencyFor(priority models.Priority) Urgency {
	switch priority {
	case models.PriorityHigh:
		return UrgencyCritical
	case models.PriorityLow:
		return UrgencyLow
	default:
		return UrgencyNormal
	}
}

func firstLine(message string) string {
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		return strings.TrimSpace(message[:i])
	}
	return strings.TrimSpace(message)
}
