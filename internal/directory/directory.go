// Package directory maintains the merged list of repositories the
// authenticated identities can see, cached with a staleness window so
// sweeps do not re-list on every run.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gitpulse/gitpulse/internal/models"
	"github.com/gitpulse/gitpulse/internal/platform"
	"github.com/gitpulse/gitpulse/internal/storage"
	"github.com/sirupsen/logrus"
)

const (
	cacheKey = "repo_cache"
	// A cached listing older than this triggers a synchronous refetch.
	staleness = time.Hour
)

// Directory aggregates repository listings across platforms.
type Directory struct {
	platforms []platform.Platform
	store     storage.Store
	now       func() time.Time

	mu        sync.Mutex
	cached    []models.RepositoryRef
	fetchedAt time.Time
}

type cachedListing struct {
	Repositories []models.RepositoryRef `json:"repositories"`
	FetchedAt    time.Time              `json:"fetched_at"`
}

// New creates a Directory over the given platform adapters, seeding
// the cache from the store when a previous run left one behind.
func New(platforms []platform.Platform, store storage.Store) *Directory {
	d := &Directory{platforms: platforms, store: store, now: time.Now}

	data, err := store.Get(cacheKey)
	if err == nil {
		var listing cachedListing
		if err := json.Unmarshal(data, &listing); err == nil {
			d.cached = listing.Repositories
			d.fetchedAt = listing.FetchedAt
		}
	}
	return d
}

// List returns the merged repository list. A read within the staleness
// window returns the cache unchanged; an older read refetches before
// returning. A platform without a credential contributes zero entries
// and never fails the call.
func (d *Directory) List(ctx context.Context, ignoreForks bool) ([]models.RepositoryRef, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.fetchedAt.IsZero() && d.now().Sub(d.fetchedAt) < staleness {
		return d.cached, nil
	}
	return d.refetchLocked(ctx, ignoreForks)
}

// Refresh forces a refetch regardless of cache age.
func (d *Directory) Refresh(ctx context.Context, ignoreForks bool) ([]models.RepositoryRef, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.refetchLocked(ctx, ignoreForks)
}

func (d *Directory) refetchLocked(ctx context.Context, ignoreForks bool) ([]models.RepositoryRef, error) {
	var merged []models.RepositoryRef

	for _, p := range d.platforms {
		if !p.Enabled() {
			continue
		}
		refs, err := p.ListRepositories(ctx, ignoreForks)
		if errors.Is(err, platform.ErrUnauthorized) {
			// A rejected credential is not a transient listing failure;
			// surface it so the caller logs the platform out.
			return nil, &platform.CredentialError{Platform: p.Name()}
		}
		if err != nil {
			// One platform failing must not empty the merged view;
			// keep whatever the other platforms report.
			logrus.Errorf("Failed to list %s repositories: %v", p.Name(), err)
			continue
		}
		logrus.Debugf("Listed %d repositories from %s", len(refs), p.Name())
		merged = append(merged, refs...)
	}

	d.cached = merged
	d.fetchedAt = d.now()
	d.persistLocked()
	return merged, nil
}

func (d *Directory) persistLocked() {
	data, err := json.Marshal(cachedListing{Repositories: d.cached, FetchedAt: d.fetchedAt})
	if err != nil {
		return
	}
	if err := d.store.Set(cacheKey, data); err != nil {
		logrus.Errorf("Failed to persist repository cache: %v", err)
	}
}
