package detect

import (
	"context"
	"testing"

	"github.com/gitpulse/gitpulse/internal/models"
	"github.com/gitpulse/gitpulse/internal/platform"
	"github.com/gitpulse/gitpulse/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRepo = models.RepositoryRef{
	Platform:      models.PlatformGitHub,
	FullName:      "octocat/app",
	DefaultBranch: "main",
}

func fakeWithCommit(sha, authorLogin string) *testutil.FakePlatform {
	fake := testutil.NewFakePlatform(models.PlatformGitHub)
	fake.LatestSHA[testRepo.Key()] = sha
	fake.Commits[testRepo.Key()] = models.CommitRecord{
		SHA:        sha,
		Message:    "change something",
		Author:     models.CommitAuthor{Name: "Someone", Login: authorLogin},
		ParentSHAs: []string{"p1"},
	}
	return fake
}

func TestCommit_FirstObservationNeverNotifies(t *testing.T) {
	fake := fakeWithCommit("abc123", "someone")

	result, err := Commit(context.Background(), fake, testRepo, "", fake.Identity, false)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsNew)
	assert.Equal(t, "abc123", result.NewID)
	require.NotNil(t, result.Commit)
}

func TestCommit_UnchangedSkipsDetailFetch(t *testing.T) {
	fake := fakeWithCommit("abc123", "someone")

	result, err := Commit(context.Background(), fake, testRepo, "abc123", fake.Identity, false)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsNew)
	assert.Equal(t, "abc123", result.NewID)
	assert.Nil(t, result.Commit)
	assert.Equal(t, 0, fake.DetailFetches)
}

func TestCommit_NewCommitIsNew(t *testing.T) {
	fake := fakeWithCommit("def456", "someone")

	result, err := Commit(context.Background(), fake, testRepo, "abc123", fake.Identity, false)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsNew)
	assert.Equal(t, "def456", result.NewID)
	assert.Equal(t, 1, fake.DetailFetches)
}

func TestCommit_OwnCommitSuppressed(t *testing.T) {
	fake := fakeWithCommit("def456", "tester")

	result, err := Commit(context.Background(), fake, testRepo, "abc123", fake.Identity, true)
	require.NoError(t, err)
	require.NotNil(t, result)
	// Suppressed, but the state still advances to the new identifier
	assert.False(t, result.IsNew)
	assert.Equal(t, "def456", result.NewID)
}

func TestCommit_OwnCommitNotSuppressedWhenDisabled(t *testing.T) {
	fake := fakeWithCommit("def456", "tester")

	result, err := Commit(context.Background(), fake, testRepo, "abc123", fake.Identity, false)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsNew)
}

func TestCommit_OwnCommitMatchesByNameWithoutLogin(t *testing.T) {
	fake := fakeWithCommit("def456", "")
	commit := fake.Commits[testRepo.Key()]
	commit.Author = models.CommitAuthor{Name: "Test User"}
	fake.Commits[testRepo.Key()] = commit

	result, err := Commit(context.Background(), fake, testRepo, "abc123", fake.Identity, true)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsNew)
}

func TestCommit_NetworkErrorDegradesToNone(t *testing.T) {
	fake := testutil.NewFakePlatform(models.PlatformGitHub)
	fake.RepoErr[testRepo.Key()] = testutil.ErrNetwork

	result, err := Commit(context.Background(), fake, testRepo, "abc123", fake.Identity, false)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestCommit_UnauthorizedPropagates(t *testing.T) {
	fake := testutil.NewFakePlatform(models.PlatformGitHub)
	fake.RepoErr[testRepo.Key()] = platform.ErrUnauthorized

	result, err := Commit(context.Background(), fake, testRepo, "abc123", fake.Identity, false)
	assert.Nil(t, result)
	require.Error(t, err)
	var cred *platform.CredentialError
	require.ErrorAs(t, err, &cred)
	assert.Equal(t, models.PlatformGitHub, cred.Platform)
	assert.ErrorIs(t, err, platform.ErrUnauthorized)
}

func TestCommit_EmptyRepositoryDegradesToNone(t *testing.T) {
	fake := testutil.NewFakePlatform(models.PlatformGitHub)

	result, err := Commit(context.Background(), fake, testRepo, "", fake.Identity, false)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestRelease_FirstObservationNeverNotifies(t *testing.T) {
	fake := testutil.NewFakePlatform(models.PlatformGitHub)
	fake.Releases[testRepo.Key()] = models.ReleaseRecord{ID: "77", TagName: "v1.0.0"}

	result, err := Release(context.Background(), fake, testRepo, "")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsNew)
	assert.Equal(t, "77", result.NewID)
}

func TestRelease_NewReleaseIsNew(t *testing.T) {
	fake := testutil.NewFakePlatform(models.PlatformGitHub)
	fake.Releases[testRepo.Key()] = models.ReleaseRecord{ID: "78", TagName: "v1.1.0"}

	result, err := Release(context.Background(), fake, testRepo, "77")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsNew)
	require.NotNil(t, result.Release)
	assert.Equal(t, "v1.1.0", result.Release.TagName)
}

func TestRelease_NoReleasesDegradesToNone(t *testing.T) {
	fake := testutil.NewFakePlatform(models.PlatformGitHub)

	result, err := Release(context.Background(), fake, testRepo, "")
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestRelease_UnauthorizedPropagates(t *testing.T) {
	fake := testutil.NewFakePlatform(models.PlatformGitHub)
	fake.RepoErr[testRepo.Key()] = platform.ErrUnauthorized

	result, err := Release(context.Background(), fake, testRepo, "77")
	assert.Nil(t, result)
	require.Error(t, err)
	var cred *platform.CredentialError
	assert.ErrorAs(t, err, &cred)
}
