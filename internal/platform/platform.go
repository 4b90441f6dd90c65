package platform

import (
	"context"

	"github.com/gitpulse/gitpulse/internal/models"
)

const (
	perPage = 100
	// Hard safety cap on repository listing: 50 pages of 100 bounds a
	// runaway pagination loop at 5,000 repositories.
	maxPages = 50
)

// Platform defines the contract every hosting platform adapter
// implements. Adapters normalize platform-specific shapes into the
// canonical records in internal/models.
type Platform interface {
	Name() models.Platform
	// Enabled reports whether a credential is configured.
	Enabled() bool
	// Verify checks the credential against the identity endpoint.
	Verify(ctx context.Context) (models.Identity, error)
	// ListRepositories pages through every repository the identity can
	// see, dropping forks at fetch time when ignoreForks is set.
	ListRepositories(ctx context.Context, ignoreForks bool) ([]models.RepositoryRef, error)
	// LatestCommitSHA fetches the identifier of the newest commit on
	// the repository's default branch.
	LatestCommitSHA(ctx context.Context, repo models.RepositoryRef) (string, error)
	// CommitDetail fetches the full commit including files and stats.
	CommitDetail(ctx context.Context, repo models.RepositoryRef, sha string) (models.CommitRecord, error)
	// LatestRelease fetches the newest formal release, falling back to
	// the newest tag promoted into the release shape.
	LatestRelease(ctx context.Context, repo models.RepositoryRef) (models.ReleaseRecord, error)
	// RateLimit returns the last observed request budget.
	RateLimit() models.RateLimitState
}
