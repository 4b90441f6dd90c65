package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/gitpulse/gitpulse/internal/models"
	"github.com/gitpulse/gitpulse/internal/storage"
)

// GitHub budget when no rate-limit header has been observed yet.
const githubDefaultBudget = 5000

// GitHub implements the Platform contract against the GitHub REST API.
type GitHub struct {
	token  string
	client *client
}

var _ Platform = (*GitHub)(nil)

type githubUser struct {
	Login string `json:"login"`
	Name  string `json:"name"`
}

type githubRepo struct {
	FullName      string `json:"full_name"`
	DefaultBranch string `json:"default_branch"`
	Private       bool   `json:"private"`
	Fork          bool   `json:"fork"`
	Owner         struct {
		Login string `json:"login"`
	} `json:"owner"`
}

type githubCommit struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
		Author  struct {
			Name string `json:"name"`
		} `json:"author"`
	} `json:"commit"`
	Author *struct {
		Login string `json:"login"`
	} `json:"author"`
	Parents []struct {
		SHA string `json:"sha"`
	} `json:"parents"`
	Files []struct {
		Filename  string `json:"filename"`
		Additions int    `json:"additions"`
		Deletions int    `json:"deletions"`
	} `json:"files"`
	Stats struct {
		Additions int `json:"additions"`
		Deletions int `json:"deletions"`
	} `json:"stats"`
	HTMLURL string `json:"html_url"`
}

type githubRelease struct {
	ID         int64  `json:"id"`
	TagName    string `json:"tag_name"`
	Name       string `json:"name"`
	Prerelease bool   `json:"prerelease"`
	Author     struct {
		Login string `json:"login"`
	} `json:"author"`
	HTMLURL string `json:"html_url"`
}

type githubTag struct {
	Name   string `json:"name"`
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

// NewGitHub creates a GitHub adapter. An empty token leaves the
// adapter disabled.
func NewGitHub(token, baseURL string, store storage.Store) *GitHub {
	c := newClient(models.PlatformGitHub, baseURL, store, rateLimitHeaders{
		remaining: "X-RateLimit-Remaining",
		reset:     "X-RateLimit-Reset",
		limit:     "X-RateLimit-Limit",
	}, githubDefaultBudget)
	if token != "" {
		c.http.SetHeader("Authorization", "Bearer "+token)
	}
	c.http.SetHeader("Accept", "application/vnd.github+json")
	return &GitHub{token: token, client: c}
}

func (g *GitHub) Name() models.Platform {
	return models.PlatformGitHub
}

func (g *GitHub) Enabled() bool {
	return g.token != ""
}

func (g *GitHub) RateLimit() models.RateLimitState {
	return g.client.rateLimit()
}

func (g *GitHub) Verify(ctx context.Context) (models.Identity, error) {
	resp, err := g.client.get(ctx, "/user", nil)
	if err != nil {
		return models.Identity{}, err
	}
	if resp.StatusCode() == 401 || resp.StatusCode() == 403 {
		return models.Identity{}, ErrUnauthorized
	}
	if resp.StatusCode() != 200 {
		return models.Identity{}, fmt.Errorf("github user endpoint returned status %d", resp.StatusCode())
	}

	var user githubUser
	if err := json.Unmarshal(resp.Body(), &user); err != nil {
		return models.Identity{}, fmt.Errorf("decoding github user: %w", err)
	}
	return models.Identity{Login: user.Login, Name: user.Name}, nil
}

func (g *GitHub) ListRepositories(ctx context.Context, ignoreForks bool) ([]models.RepositoryRef, error) {
	var refs []models.RepositoryRef

	for page := 1; page <= maxPages; page++ {
		resp, err := g.client.get(ctx, "/user/repos", map[string]string{
			"per_page":  strconv.Itoa(perPage),
			"page":      strconv.Itoa(page),
			"sort":      "pushed",
			"direction": "desc",
		})
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() == 401 || resp.StatusCode() == 403 {
			return nil, ErrUnauthorized
		}
		if resp.StatusCode() != 200 {
			return nil, fmt.Errorf("github repos endpoint returned status %d", resp.StatusCode())
		}

		var repos []githubRepo
		if err := json.Unmarshal(resp.Body(), &repos); err != nil {
			return nil, fmt.Errorf("decoding github repos: %w", err)
		}

		for _, repo := range repos {
			if ignoreForks && repo.Fork {
				continue
			}
			refs = append(refs, githubToRef(repo))
		}

		if len(repos) < perPage {
			break
		}
	}

	return refs, nil
}

func (g *GitHub) LatestCommitSHA(ctx context.Context, repo models.RepositoryRef) (string, error) {
	resp, err := g.client.get(ctx, fmt.Sprintf("/repos/%s/commits", repo.FullName), map[string]string{
		"sha":      repo.DefaultBranch,
		"per_page": "1",
	})
	if err != nil {
		return "", err
	}
	// 409 is GitHub's answer for an empty repository
	if resp.StatusCode() == 404 || resp.StatusCode() == 409 {
		return "", ErrNotFound
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("github commits endpoint returned status %d", resp.StatusCode())
	}

	var commits []githubCommit
	if err := json.Unmarshal(resp.Body(), &commits); err != nil {
		return "", fmt.Errorf("decoding github commits: %w", err)
	}
	if len(commits) == 0 {
		return "", ErrNotFound
	}
	return commits[0].SHA, nil
}

func (g *GitHub) CommitDetail(ctx context.Context, repo models.RepositoryRef, sha string) (models.CommitRecord, error) {
	resp, err := g.client.get(ctx, fmt.Sprintf("/repos/%s/commits/%s", repo.FullName, sha), nil)
	if err != nil {
		return models.CommitRecord{}, err
	}
	if resp.StatusCode() == 404 {
		return models.CommitRecord{}, ErrNotFound
	}
	if resp.StatusCode() != 200 {
		return models.CommitRecord{}, fmt.Errorf("github commit endpoint returned status %d", resp.StatusCode())
	}

	var commit githubCommit
	if err := json.Unmarshal(resp.Body(), &commit); err != nil {
		return models.CommitRecord{}, fmt.Errorf("decoding github commit: %w", err)
	}
	return githubToCommit(commit), nil
}

func (g *GitHub) LatestRelease(ctx context.Context, repo models.RepositoryRef) (models.ReleaseRecord, error) {
	resp, err := g.client.get(ctx, fmt.Sprintf("/repos/%s/releases/latest", repo.FullName), nil)
	if err != nil {
		return models.ReleaseRecord{}, err
	}

	switch resp.StatusCode() {
	case 200:
		var release githubRelease
		if err := json.Unmarshal(resp.Body(), &release); err != nil {
			return models.ReleaseRecord{}, fmt.Errorf("decoding github release: %w", err)
		}
		return githubToRelease(release), nil
	case 404:
		// No formal release; promote the newest tag instead
		return g.latestTag(ctx, repo)
	default:
		return models.ReleaseRecord{}, fmt.Errorf("github release endpoint returned status %d", resp.StatusCode())
	}
}

func (g *GitHub) latestTag(ctx context.Context, repo models.RepositoryRef) (models.ReleaseRecord, error) {
	resp, err := g.client.get(ctx, fmt.Sprintf("/repos/%s/tags", repo.FullName), map[string]string{"per_page": "1"})
	if err != nil {
		return models.ReleaseRecord{}, err
	}
	if resp.StatusCode() == 404 {
		return models.ReleaseRecord{}, ErrNotFound
	}
	if resp.StatusCode() != 200 {
		return models.ReleaseRecord{}, fmt.Errorf("github tags endpoint returned status %d", resp.StatusCode())
	}

	var tags []githubTag
	if err := json.Unmarshal(resp.Body(), &tags); err != nil {
		return models.ReleaseRecord{}, fmt.Errorf("decoding github tags: %w", err)
	}
	if len(tags) == 0 {
		return models.ReleaseRecord{}, ErrNotFound
	}
	return githubTagToRelease(repo, tags[0]), nil
}

func githubToRef(repo githubRepo) models.RepositoryRef {
	return models.RepositoryRef{
		Platform:      models.PlatformGitHub,
		FullName:      repo.FullName,
		DefaultBranch: repo.DefaultBranch,
		Private:       repo.Private,
		IsFork:        repo.Fork,
		Owner:         repo.Owner.Login,
	}
}

func githubToCommit(commit githubCommit) models.CommitRecord {
	record := models.CommitRecord{
		SHA:     commit.SHA,
		Message: commit.Commit.Message,
		Author:  models.CommitAuthor{Name: commit.Commit.Author.Name},
		Stats: models.CommitStats{
			Additions: commit.Stats.Additions,
			Deletions: commit.Stats.Deletions,
		},
		URL: commit.HTMLURL,
	}
	if commit.Author != nil {
		record.Author.Login = commit.Author.Login
	}
	for _, parent := range commit.Parents {
		record.ParentSHAs = append(record.ParentSHAs, parent.SHA)
	}
	for _, file := range commit.Files {
		record.Files = append(record.Files, models.CommitFile{
			Filename:  file.Filename,
			Additions: file.Additions,
			Deletions: file.Deletions,
		})
	}
	return record
}

func githubToRelease(release githubRelease) models.ReleaseRecord {
	return models.ReleaseRecord{
		ID:         strconv.FormatInt(release.ID, 10),
		TagName:    release.TagName,
		Name:       release.Name,
		Prerelease: release.Prerelease,
		Author:     release.Author.Login,
		URL:        release.HTMLURL,
	}
}

func githubTagToRelease(repo models.RepositoryRef, tag githubTag) models.ReleaseRecord {
	return models.ReleaseRecord{
		ID:          tag.Commit.SHA,
		TagName:     tag.Name,
		Name:        tag.Name,
		TagFallback: true,
		URL:         fmt.Sprintf("https://github.com/%s/releases/tag/%s", repo.FullName, tag.Name),
	}
}
