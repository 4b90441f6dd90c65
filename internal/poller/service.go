// Package poller runs full detection sweeps across every watched
// repository, batching concurrent fetches against the rate limiter and
// feeding detected changes to the notification dispatcher.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gitpulse/gitpulse/internal/classify"
	"github.com/gitpulse/gitpulse/internal/detect"
	"github.com/gitpulse/gitpulse/internal/directory"
	"github.com/gitpulse/gitpulse/internal/models"
	"github.com/gitpulse/gitpulse/internal/notify"
	"github.com/gitpulse/gitpulse/internal/platform"
	"github.com/gitpulse/gitpulse/internal/settings"
	"github.com/gitpulse/gitpulse/internal/storage"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	// At most one batch of repositories has in-flight requests at any
	// time; the pause between batches smooths request bursts against
	// the platform rate limiters.
	batchSize  = 10
	batchDelay = 100 * time.Millisecond

	lastSweepKey = "last_sweep_time"
	lastErrorKey = "last_error"
)

// Service orchestrates detection sweeps.
type Service struct {
	platforms  []platform.Platform
	directory  *directory.Directory
	settings   *settings.Manager
	store      storage.Store
	dispatcher *notify.Dispatcher
	sleep      func(time.Duration)

	mu         sync.RWMutex
	identities map[models.Platform]models.Identity
	lastSweep  time.Time
	lastError  string
}

func NewService(platforms []platform.Platform, dir *directory.Directory, mgr *settings.Manager, store storage.Store, dispatcher *notify.Dispatcher) *Service {
	s := &Service{
		platforms:  platforms,
		directory:  dir,
		settings:   mgr,
		store:      store,
		dispatcher: dispatcher,
		sleep:      time.Sleep,
		identities: make(map[models.Platform]models.Identity),
	}
	s.loadSweepState()
	return s
}

func (s *Service) loadSweepState() {
	if data, err := s.store.Get(lastSweepKey); err == nil {
		var ts time.Time
		if json.Unmarshal(data, &ts) == nil {
			s.lastSweep = ts
		}
	}
	if data, err := s.store.Get(lastErrorKey); err == nil {
		s.lastError = string(data)
	}
}

// Authenticate verifies the credential of every enabled platform and
// caches the resulting identities. An invalid credential logs the
// platform out; it does not affect the others.
func (s *Service) Authenticate(ctx context.Context) {
	for _, p := range s.platforms {
		if !p.Enabled() {
			continue
		}
		identity, err := p.Verify(ctx)
		if err != nil {
			if err == platform.ErrUnauthorized {
				logrus.Errorf("Credential for %s rejected, platform logged out", p.Name())
			} else {
				logrus.Errorf("Failed to verify %s identity: %v", p.Name(), err)
			}
			s.logout(p.Name())
			continue
		}
		logrus.Infof("Authenticated on %s as %s", p.Name(), identity.Login)
		s.mu.Lock()
		s.identities[p.Name()] = identity
		s.mu.Unlock()
	}
}

// RunSweep performs one full detection pass of the given kind.
func (s *Service) RunSweep(ctx context.Context, kind models.SweepKind) error {
	start := time.Now()
	cfg := s.settings.Get()

	if !cfg.NotificationsEnabled {
		logrus.Debug("Notifications disabled, skipping sweep")
		return nil
	}
	if kind == models.SweepReleases && !cfg.ReleaseNotificationsEnabled {
		logrus.Debug("Release notifications disabled, skipping sweep")
		return nil
	}
	if len(s.authenticatedPlatforms()) == 0 {
		logrus.Debug("No authenticated platform, skipping sweep")
		return nil
	}

	logrus.Infof("Starting %s sweep", kind)

	repos, err := s.directory.List(ctx, cfg.IgnoreForks)
	if err != nil {
		return s.recordFailure(fmt.Errorf("loading repository list: %w", err))
	}

	state, err := s.loadWatchState(kind)
	if err != nil {
		return s.recordFailure(err)
	}

	watched := make([]models.RepositoryRef, 0, len(repos))
	for _, repo := range repos {
		if cfg.RepoEnabled(repo.Key()) && s.platformFor(repo.Platform) != nil {
			watched = append(watched, repo)
		}
	}

	results, err := s.detectAll(ctx, kind, watched, state, cfg)
	if err != nil {
		return s.recordFailure(err)
	}

	var queued []*detect.Result
	for _, result := range results {
		// Every result advances the state, including isNew=false ones,
		// so first observations establish their baseline.
		state[result.Repo.Key()] = result.NewID
		if result.IsNew {
			queued = append(queued, result)
		}
	}

	if err := s.persistWatchState(kind, state); err != nil {
		return s.recordFailure(err)
	}

	for _, result := range queued {
		s.notifyChange(kind, result)
	}

	s.recordSuccess()
	logrus.Infof("%s sweep completed in %v: %d repositories, %d new changes", kind, time.Since(start), len(watched), len(queued))
	return nil
}

// detectAll fans detection out in fixed-size batches. Transient
// failures inside a detector are isolated per repository; a rejected
// credential aborts the remaining batches.
func (s *Service) detectAll(ctx context.Context, kind models.SweepKind, repos []models.RepositoryRef, state map[string]string, cfg settings.Settings) ([]*detect.Result, error) {
	var (
		mu      sync.Mutex
		results []*detect.Result
	)

	for offset := 0; offset < len(repos); offset += batchSize {
		end := offset + batchSize
		if end > len(repos) {
			end = len(repos)
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, repo := range repos[offset:end] {
			repo := repo
			g.Go(func() error {
				result, err := s.detectOne(gctx, kind, repo, state[repo.Key()], cfg)
				if err != nil {
					return err
				}
				if result != nil {
					mu.Lock()
					results = append(results, result)
					mu.Unlock()
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		if end < len(repos) {
			s.sleep(batchDelay)
		}
	}

	return results, nil
}

func (s *Service) detectOne(ctx context.Context, kind models.SweepKind, repo models.RepositoryRef, lastSeen string, cfg settings.Settings) (*detect.Result, error) {
	p := s.platformFor(repo.Platform)
	if p == nil {
		return nil, nil
	}
	identity := s.identityFor(repo.Platform)

	switch kind {
	case models.SweepReleases:
		return detect.Release(ctx, p, repo, lastSeen)
	default:
		return detect.Commit(ctx, p, repo, lastSeen, identity, cfg.IgnoreOwnCommits)
	}
}

func (s *Service) notifyChange(kind models.SweepKind, result *detect.Result) {
	switch {
	case kind == models.SweepCommits && result.Commit != nil:
		priority := classify.Classify(*result.Commit)
		s.dispatcher.NotifyCommit(result.Repo, *result.Commit, priority)
	case kind == models.SweepReleases && result.Release != nil:
		s.dispatcher.NotifyRelease(result.Repo, *result.Release)
	}
}

func watchStateKey(kind models.SweepKind) string {
	return fmt.Sprintf("watch:%s", kind)
}

func (s *Service) loadWatchState(kind models.SweepKind) (map[string]string, error) {
	data, err := s.store.Get(watchStateKey(kind))
	if err == storage.ErrNotFound {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading watch state: %w", err)
	}
	state := map[string]string{}
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decoding watch state: %w", err)
	}
	return state, nil
}

// persistWatchState writes the whole updated map as one atomic write.
func (s *Service) persistWatchState(kind models.SweepKind, state map[string]string) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding watch state: %w", err)
	}
	if err := s.store.SetMulti(map[string][]byte{watchStateKey(kind): data}); err != nil {
		return fmt.Errorf("persisting watch state: %w", err)
	}
	return nil
}

// recordFailure surfaces a cross-cutting sweep failure through the
// last-error field. A rejected credential additionally logs the
// affected platform out so later sweeps stop touching it.
func (s *Service) recordFailure(err error) error {
	var cred *platform.CredentialError
	if errors.As(err, &cred) {
		logrus.Errorf("Credential for %s rejected mid-sweep, platform logged out", cred.Platform)
		s.logout(cred.Platform)
	}
	logrus.Errorf("Sweep aborted: %v", err)
	s.mu.Lock()
	s.lastError = err.Error()
	s.mu.Unlock()
	if serr := s.store.Set(lastErrorKey, []byte(err.Error())); serr != nil {
		logrus.Errorf("Failed to persist last error: %v", serr)
	}
	return err
}

func (s *Service) recordSuccess() {
	now := time.Now()
	s.mu.Lock()
	s.lastSweep = now
	s.lastError = ""
	s.mu.Unlock()

	data, _ := json.Marshal(now)
	if err := s.store.SetMulti(map[string][]byte{
		lastSweepKey: data,
		lastErrorKey: []byte(""),
	}); err != nil {
		logrus.Errorf("Failed to persist sweep timestamp: %v", err)
	}
}

func (s *Service) platformFor(name models.Platform) platform.Platform {
	s.mu.RLock()
	_, authed := s.identities[name]
	s.mu.RUnlock()
	if !authed {
		return nil
	}
	for _, p := range s.platforms {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

func (s *Service) logout(name models.Platform) {
	s.mu.Lock()
	delete(s.identities, name)
	s.mu.Unlock()
}

func (s *Service) identityFor(name models.Platform) models.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identities[name]
}

func (s *Service) authenticatedPlatforms() []models.Platform {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]models.Platform, 0, len(s.identities))
	for name := range s.identities {
		names = append(names, name)
	}
	return names
}

// Status snapshots the auth, budget and sweep state for the UI layer.
func (s *Service) Status() models.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := models.Status{
		Platforms:     make(map[models.Platform]models.PlatformStatus),
		LastSweepTime: s.lastSweep,
		LastError:     s.lastError,
	}
	for _, p := range s.platforms {
		ps := models.PlatformStatus{}
		if identity, ok := s.identities[p.Name()]; ok {
			ps.Authenticated = true
			identity := identity
			ps.Identity = &identity
		}
		if p.Enabled() {
			limit := p.RateLimit()
			ps.RateLimit = &limit
		}
		status.Platforms[p.Name()] = ps
	}
	return status
}

// Repositories exposes the directory listing to the UI layer.
func (s *Service) Repositories(ctx context.Context) ([]models.RepositoryRef, error) {
	return s.directory.List(ctx, s.settings.Get().IgnoreForks)
}
