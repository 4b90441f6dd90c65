// Package detect compares the latest remote commit or release against
// the persisted last-seen identifier for a repository. Failures here
// degrade to "no change detected" for that repository only, with one
// exception: a rejected credential propagates, because it invalidates
// every remaining check on that platform.
package detect

import (
	"context"
	"errors"

	"github.com/gitpulse/gitpulse/internal/models"
	"github.com/gitpulse/gitpulse/internal/platform"
	"github.com/sirupsen/logrus"
)

// Result is one detector outcome. NewID always carries the identifier
// the watch state should advance to; IsNew marks results that warrant
// a notification.
type Result struct {
	Repo    models.RepositoryRef
	NewID   string
	IsNew   bool
	Commit  *models.CommitRecord
	Release *models.ReleaseRecord
}

// Commit checks the repository's default branch for a new head commit.
// A first observation (empty lastSeen) establishes the baseline without
// notifying. When ignoreOwn is set and the commit author matches the
// authenticated identity, IsNew stays false while the state still
// advances. Returns nil,nil when there is nothing to report and a
// CredentialError when the platform rejects the credential.
func Commit(ctx context.Context, p platform.Platform, repo models.RepositoryRef, lastSeen string, identity models.Identity, ignoreOwn bool) (*Result, error) {
	sha, err := p.LatestCommitSHA(ctx, repo)
	if err != nil {
		return nil, detectorError(repo, "commit", err)
	}

	if sha == lastSeen {
		// Unchanged; skip the detail fetch, one request saved.
		return &Result{Repo: repo, NewID: sha}, nil
	}

	commit, err := p.CommitDetail(ctx, repo, sha)
	if err != nil {
		return nil, detectorError(repo, "commit detail", err)
	}

	result := &Result{Repo: repo, NewID: sha, Commit: &commit}
	if lastSeen == "" {
		// First observation: baseline only, no notification storm on
		// initial setup.
		return result, nil
	}
	if ignoreOwn && isOwnCommit(commit.Author, identity) {
		return result, nil
	}

	result.IsNew = true
	return result, nil
}

// Release checks for a new formal release, with the platform adapter
// falling back to the newest tag when none exists.
func Release(ctx context.Context, p platform.Platform, repo models.RepositoryRef, lastSeen string) (*Result, error) {
	release, err := p.LatestRelease(ctx, repo)
	if err != nil {
		return nil, detectorError(repo, "release", err)
	}

	result := &Result{Repo: repo, NewID: release.ID, Release: &release}
	if lastSeen == "" || release.ID == lastSeen {
		return result, nil
	}

	result.IsNew = true
	return result, nil
}

// isOwnCommit matches the commit author against the authenticated
// identity. GitLab commits carry no platform login, so the display
// name is matched as a fallback.
func isOwnCommit(author models.CommitAuthor, identity models.Identity) bool {
	if identity.Login == "" {
		return false
	}
	if author.Login != "" {
		return author.Login == identity.Login
	}
	return author.Name != "" && author.Name == identity.Name
}

// detectorError degrades per-repository failures to nil and propagates
// a rejected credential as a CredentialError for the caller to act on.
func detectorError(repo models.RepositoryRef, kind string, err error) error {
	if errors.Is(err, platform.ErrUnauthorized) {
		return &platform.CredentialError{Platform: repo.Platform}
	}
	if errors.Is(err, platform.ErrNotFound) {
		// Empty repository or no releases: a valid nothing-to-report
		// outcome, not an error.
		logrus.Debugf("Nothing to report for %s (%s)", repo.Key(), kind)
		return nil
	}
	logrus.Errorf("Failed to check %s for %s: %v", kind, repo.Key(), err)
	return nil
}
