// Package testutil provides shared test doubles.
package testutil

import (
	"context"
	"errors"

	"github.com/gitpulse/gitpulse/internal/models"
	"github.com/gitpulse/gitpulse/internal/platform"
)

// FakePlatform is a scriptable platform adapter for tests.
type FakePlatform struct {
	PlatformName models.Platform
	Token        string
	Identity     models.Identity
	Repos        []models.RepositoryRef

	// Per-repository scripted results, keyed by repository key.
	LatestSHA     map[string]string
	Commits       map[string]models.CommitRecord
	Releases      map[string]models.ReleaseRecord
	RepoErr       map[string]error
	ListErr       error
	VerifyErr     error
	Limit         models.RateLimitState
	ListCalls     int
	DetailFetches int
}

var _ platform.Platform = (*FakePlatform)(nil)

func NewFakePlatform(name models.Platform) *FakePlatform {
	return &FakePlatform{
		PlatformName: name,
		Token:        "test-token",
		Identity:     models.Identity{Login: "tester", Name: "Test User"},
		LatestSHA:    map[string]string{},
		Commits:      map[string]models.CommitRecord{},
		Releases:     map[string]models.ReleaseRecord{},
		RepoErr:      map[string]error{},
	}
}

func (f *FakePlatform) Name() models.Platform { return f.PlatformName }

func (f *FakePlatform) Enabled() bool { return f.Token != "" }

func (f *FakePlatform) Verify(ctx context.Context) (models.Identity, error) {
	if f.VerifyErr != nil {
		return models.Identity{}, f.VerifyErr
	}
	return f.Identity, nil
}

func (f *FakePlatform) ListRepositories(ctx context.Context, ignoreForks bool) ([]models.RepositoryRef, error) {
	f.ListCalls++
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	var refs []models.RepositoryRef
	for _, repo := range f.Repos {
		if ignoreForks && repo.IsFork {
			continue
		}
		refs = append(refs, repo)
	}
	return refs, nil
}

func (f *FakePlatform) LatestCommitSHA(ctx context.Context, repo models.RepositoryRef) (string, error) {
	if err := f.RepoErr[repo.Key()]; err != nil {
		return "", err
	}
	sha, ok := f.LatestSHA[repo.Key()]
	if !ok {
		return "", platform.ErrNotFound
	}
	return sha, nil
}

func (f *FakePlatform) CommitDetail(ctx context.Context, repo models.RepositoryRef, sha string) (models.CommitRecord, error) {
	f.DetailFetches++
	if err := f.RepoErr[repo.Key()]; err != nil {
		return models.CommitRecord{}, err
	}
	commit, ok := f.Commits[repo.Key()]
	if !ok {
		return models.CommitRecord{}, platform.ErrNotFound
	}
	return commit, nil
}

func (f *FakePlatform) LatestRelease(ctx context.Context, repo models.RepositoryRef) (models.ReleaseRecord, error) {
	if err := f.RepoErr[repo.Key()]; err != nil {
		return models.ReleaseRecord{}, err
	}
	release, ok := f.Releases[repo.Key()]
	if !ok {
		return models.ReleaseRecord{}, platform.ErrNotFound
	}
	return release, nil
}

func (f *FakePlatform) RateLimit() models.RateLimitState { return f.Limit }

// ErrNetwork simulates a transient transport failure.
var ErrNetwork = errors.New("simulated network failure")
