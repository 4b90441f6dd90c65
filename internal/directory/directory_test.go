package directory

import (
	"context"
	"testing"
	"time"

	"github.com/gitpulse/gitpulse/internal/models"
	"github.com/gitpulse/gitpulse/internal/platform"
	"github.com/gitpulse/gitpulse/internal/storage"
	"github.com/gitpulse/gitpulse/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func repoRef(p models.Platform, name string) models.RepositoryRef {
	return models.RepositoryRef{Platform: p, FullName: name, DefaultBranch: "main"}
}

func TestDirectory_MergesPlatforms(t *testing.T) {
	gh := testutil.NewFakePlatform(models.PlatformGitHub)
	gh.Repos = []models.RepositoryRef{repoRef(models.PlatformGitHub, "octocat/app")}
	gl := testutil.NewFakePlatform(models.PlatformGitLab)
	gl.Repos = []models.RepositoryRef{repoRef(models.PlatformGitLab, "group/app")}

	d := New([]platform.Platform{gh, gl}, storage.NewMemoryStore())
	refs, err := d.List(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, refs, 2)
}

func TestDirectory_DisabledPlatformContributesNothing(t *testing.T) {
	gh := testutil.NewFakePlatform(models.PlatformGitHub)
	gh.Repos = []models.RepositoryRef{repoRef(models.PlatformGitHub, "octocat/app")}
	gl := testutil.NewFakePlatform(models.PlatformGitLab)
	gl.Token = "" // no credential
	gl.Repos = []models.RepositoryRef{repoRef(models.PlatformGitLab, "group/app")}

	d := New([]platform.Platform{gh, gl}, storage.NewMemoryStore())
	refs, err := d.List(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "octocat/app", refs[0].FullName)
	assert.Equal(t, 0, gl.ListCalls)
}

func TestDirectory_FailingPlatformDoesNotFailCall(t *testing.T) {
	gh := testutil.NewFakePlatform(models.PlatformGitHub)
	gh.ListErr = testutil.ErrNetwork
	gl := testutil.NewFakePlatform(models.PlatformGitLab)
	gl.Repos = []models.RepositoryRef{repoRef(models.PlatformGitLab, "group/app")}

	d := New([]platform.Platform{gh, gl}, storage.NewMemoryStore())
	refs, err := d.List(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, refs, 1)
}

func TestDirectory_CacheWithinWindow(t *testing.T) {
	gh := testutil.NewFakePlatform(models.PlatformGitHub)
	gh.Repos = []models.RepositoryRef{repoRef(models.PlatformGitHub, "octocat/app")}

	d := New([]platform.Platform{gh}, storage.NewMemoryStore())
	now := time.Now()
	d.now = func() time.Time { return now }

	_, err := d.List(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 1, gh.ListCalls)

	// Within the window the cache is returned unchanged
	now = now.Add(30 * time.Minute)
	_, err = d.List(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, gh.ListCalls)

	// Past the window the read refetches synchronously
	now = now.Add(31 * time.Minute)
	_, err = d.List(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, gh.ListCalls)
}

func TestDirectory_EmptyListingStillCachedWithinWindow(t *testing.T) {
	gh := testutil.NewFakePlatform(models.PlatformGitHub)

	d := New([]platform.Platform{gh}, storage.NewMemoryStore())
	now := time.Now()
	d.now = func() time.Time { return now }

	refs, err := d.List(context.Background(), false)
	require.NoError(t, err)
	require.Empty(t, refs)
	require.Equal(t, 1, gh.ListCalls)

	// Zero visible repositories is a valid cached answer, not a miss
	now = now.Add(30 * time.Minute)
	_, err = d.List(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, gh.ListCalls)
}

func TestDirectory_UnauthorizedListingFailsCall(t *testing.T) {
	gh := testutil.NewFakePlatform(models.PlatformGitHub)
	gh.ListErr = platform.ErrUnauthorized
	gl := testutil.NewFakePlatform(models.PlatformGitLab)
	gl.Repos = []models.RepositoryRef{repoRef(models.PlatformGitLab, "group/app")}

	d := New([]platform.Platform{gh, gl}, storage.NewMemoryStore())
	_, err := d.List(context.Background(), false)
	require.Error(t, err)
	var cred *platform.CredentialError
	require.ErrorAs(t, err, &cred)
	assert.Equal(t, models.PlatformGitHub, cred.Platform)
}

func TestDirectory_SeedsFromPersistedCache(t *testing.T) {
	store := storage.NewMemoryStore()
	gh := testutil.NewFakePlatform(models.PlatformGitHub)
	gh.Repos = []models.RepositoryRef{repoRef(models.PlatformGitHub, "octocat/app")}

	first := New([]platform.Platform{gh}, store)
	_, err := first.List(context.Background(), false)
	require.NoError(t, err)

	// A fresh Directory over the same store starts warm
	second := New([]platform.Platform{gh}, store)
	refs, err := second.List(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, refs, 1)
	assert.Equal(t, 1, gh.ListCalls)
}
