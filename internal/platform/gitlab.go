package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/gitpulse/gitpulse/internal/models"
	"github.com/gitpulse/gitpulse/internal/storage"
)

// GitLab budget when no rate-limit header has been observed yet.
const gitlabDefaultBudget = 2000

// GitLab implements the Platform contract against the GitLab REST API.
type GitLab struct {
	token  string
	client *client
}

var _ Platform = (*GitLab)(nil)

type gitlabUser struct {
	Username string `json:"username"`
	Name     string `json:"name"`
}

type gitlabProject struct {
	PathWithNamespace string `json:"path_with_namespace"`
	DefaultBranch     string `json:"default_branch"`
	Visibility        string `json:"visibility"`
	ForkedFromProject *struct {
		ID int64 `json:"id"`
	} `json:"forked_from_project"`
	Namespace struct {
		Path string `json:"path"`
	} `json:"namespace"`
}

type gitlabCommit struct {
	ID         string   `json:"id"`
	Message    string   `json:"message"`
	AuthorName string   `json:"author_name"`
	ParentIDs  []string `json:"parent_ids"`
	Stats      struct {
		Additions int `json:"additions"`
		Deletions int `json:"deletions"`
	} `json:"stats"`
	WebURL string `json:"web_url"`
}

type gitlabDiff struct {
	NewPath string `json:"new_path"`
	Diff    string `json:"diff"`
}

type gitlabRelease struct {
	TagName string `json:"tag_name"`
	Name    string `json:"name"`
	Commit  struct {
		ID string `json:"id"`
	} `json:"commit"`
	UpcomingRelease bool `json:"upcoming_release"`
	Author          struct {
		Username string `json:"username"`
	} `json:"author"`
	Links struct {
		Self string `json:"self"`
	} `json:"_links"`
}

type gitlabTag struct {
	Name   string `json:"name"`
	Commit struct {
		ID string `json:"id"`
	} `json:"commit"`
}

// NewGitLab creates a GitLab adapter. An empty token leaves the
// adapter disabled.
func NewGitLab(token, baseURL string, store storage.Store) *GitLab {
	c := newClient(models.PlatformGitLab, baseURL, store, rateLimitHeaders{
		remaining: "RateLimit-Remaining",
		reset:     "RateLimit-Reset",
		limit:     "RateLimit-Limit",
	}, gitlabDefaultBudget)
	if token != "" {
		c.http.SetHeader("PRIVATE-TOKEN", token)
	}
	return &GitLab{token: token, client: c}
}

func (g *GitLab) Name() models.Platform {
	return models.PlatformGitLab
}

func (g *GitLab) Enabled() bool {
	return g.token != ""
}

func (g *GitLab) RateLimit() models.RateLimitState {
	return g.client.rateLimit()
}

func (g *GitLab) Verify(ctx context.Context) (models.Identity, error) {
	resp, err := g.client.get(ctx, "/user", nil)
	if err != nil {
		return models.Identity{}, err
	}
	if resp.StatusCode() == 401 || resp.StatusCode() == 403 {
		return models.Identity{}, ErrUnauthorized
	}
	if resp.StatusCode() != 200 {
		return models.Identity{}, fmt.Errorf("gitlab user endpoint returned status %d", resp.StatusCode())
	}

	var user gitlabUser
	if err := json.Unmarshal(resp.Body(), &user); err != nil {
		return models.Identity{}, fmt.Errorf("decoding gitlab user: %w", err)
	}
	return models.Identity{Login: user.Username, Name: user.Name}, nil
}

func (g *GitLab) ListRepositories(ctx context.Context, ignoreForks bool) ([]models.RepositoryRef, error) {
	var refs []models.RepositoryRef

	for page := 1; page <= maxPages; page++ {
		resp, err := g.client.get(ctx, "/projects", map[string]string{
			"membership": "true",
			"per_page":   strconv.Itoa(perPage),
			"page":       strconv.Itoa(page),
			"order_by":   "last_activity_at",
		})
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() == 401 || resp.StatusCode() == 403 {
			return nil, ErrUnauthorized
		}
		if resp.StatusCode() != 200 {
			return nil, fmt.Errorf("gitlab projects endpoint returned status %d", resp.StatusCode())
		}

		var projects []gitlabProject
		if err := json.Unmarshal(resp.Body(), &projects); err != nil {
			return nil, fmt.Errorf("decoding gitlab projects: %w", err)
		}

		for _, project := range projects {
			if ignoreForks && project.ForkedFromProject != nil {
				continue
			}
			refs = append(refs, gitlabToRef(project))
		}

		if len(projects) < perPage {
			break
		}
	}

	return refs, nil
}

func (g *GitLab) LatestCommitSHA(ctx context.Context, repo models.RepositoryRef) (string, error) {
	resp, err := g.client.get(ctx, fmt.Sprintf("/projects/%s/repository/commits", projectID(repo)), map[string]string{
		"ref_name": repo.DefaultBranch,
		"per_page": "1",
	})
	if err != nil {
		return "", err
	}
	if resp.StatusCode() == 404 {
		return "", ErrNotFound
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("gitlab commits endpoint returned status %d", resp.StatusCode())
	}

	var commits []gitlabCommit
	if err := json.Unmarshal(resp.Body(), &commits); err != nil {
		return "", fmt.Errorf("decoding gitlab commits: %w", err)
	}
	if len(commits) == 0 {
		return "", ErrNotFound
	}
	return commits[0].ID, nil
}

func (g *GitLab) CommitDetail(ctx context.Context, repo models.RepositoryRef, sha string) (models.CommitRecord, error) {
	resp, err := g.client.get(ctx, fmt.Sprintf("/projects/%s/repository/commits/%s", projectID(repo), sha), nil)
	if err != nil {
		return models.CommitRecord{}, err
	}
	if resp.StatusCode() == 404 {
		return models.CommitRecord{}, ErrNotFound
	}
	if resp.StatusCode() != 200 {
		return models.CommitRecord{}, fmt.Errorf("gitlab commit endpoint returned status %d", resp.StatusCode())
	}

	var commit gitlabCommit
	if err := json.Unmarshal(resp.Body(), &commit); err != nil {
		return models.CommitRecord{}, fmt.Errorf("decoding gitlab commit: %w", err)
	}

	record := gitlabToCommit(commit)

	// The commit endpoint carries aggregate stats only; per-file
	// changes come from the diff endpoint.
	files, err := g.commitDiff(ctx, repo, sha)
	if err == nil {
		record.Files = files
	}
	return record, nil
}

func (g *GitLab) commitDiff(ctx context.Context, repo models.RepositoryRef, sha string) ([]models.CommitFile, error) {
	resp, err := g.client.get(ctx, fmt.Sprintf("/projects/%s/repository/commits/%s/diff", projectID(repo), sha), nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("gitlab diff endpoint returned status %d", resp.StatusCode())
	}

	var diffs []gitlabDiff
	if err := json.Unmarshal(resp.Body(), &diffs); err != nil {
		return nil, fmt.Errorf("decoding gitlab diff: %w", err)
	}

	files := make([]models.CommitFile, 0, len(diffs))
	for _, diff := range diffs {
		additions, deletions := countDiffLines(diff.Diff)
		files = append(files, models.CommitFile{
			Filename:  diff.NewPath,
			Additions: additions,
			Deletions: deletions,
		})
	}
	return files, nil
}

func (g *GitLab) LatestRelease(ctx context.Context, repo models.RepositoryRef) (models.ReleaseRecord, error) {
	resp, err := g.client.get(ctx, fmt.Sprintf("/projects/%s/releases", projectID(repo)), map[string]string{"per_page": "1"})
	if err != nil {
		return models.ReleaseRecord{}, err
	}

	switch resp.StatusCode() {
	case 200:
		var releases []gitlabRelease
		if err := json.Unmarshal(resp.Body(), &releases); err != nil {
			return models.ReleaseRecord{}, fmt.Errorf("decoding gitlab releases: %w", err)
		}
		if len(releases) > 0 {
			return gitlabToRelease(releases[0]), nil
		}
		return g.latestTag(ctx, repo)
	case 404:
		return g.latestTag(ctx, repo)
	default:
		return models.ReleaseRecord{}, fmt.Errorf("gitlab releases endpoint returned status %d", resp.StatusCode())
	}
}

func (g *GitLab) latestTag(ctx context.Context, repo models.RepositoryRef) (models.ReleaseRecord, error) {
	resp, err := g.client.get(ctx, fmt.Sprintf("/projects/%s/repository/tags", projectID(repo)), map[string]string{"per_page": "1"})
	if err != nil {
		return models.ReleaseRecord{}, err
	}
	if resp.StatusCode() == 404 {
		return models.ReleaseRecord{}, ErrNotFound
	}
	if resp.StatusCode() != 200 {
		return models.ReleaseRecord{}, fmt.Errorf("gitlab tags endpoint returned status %d", resp.StatusCode())
	}

	var tags []gitlabTag
	if err := json.Unmarshal(resp.Body(), &tags); err != nil {
		return models.ReleaseRecord{}, fmt.Errorf("decoding gitlab tags: %w", err)
	}
	if len(tags) == 0 {
		return models.ReleaseRecord{}, ErrNotFound
	}
	return gitlabTagToRelease(repo, tags[0]), nil
}

// projectID URL-encodes the project path for use as a path segment.
func projectID(repo models.RepositoryRef) string {
	return url.PathEscape(repo.FullName)
}

// countDiffLines counts added and removed lines in a unified diff
// fragment, skipping the +++/--- file headers.
func countDiffLines(diff string) (additions, deletions int) {
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			additions++
		case strings.HasPrefix(line, "-"):
			deletions++
		}
	}
	return additions, deletions
}

func gitlabToRef(project gitlabProject) models.RepositoryRef {
	return models.RepositoryRef{
		Platform:      models.PlatformGitLab,
		FullName:      project.PathWithNamespace,
		DefaultBranch: project.DefaultBranch,
		Private:       project.Visibility == "private",
		IsFork:        project.ForkedFromProject != nil,
		Owner:         project.Namespace.Path,
	}
}

func gitlabToCommit(commit gitlabCommit) models.CommitRecord {
	return models.CommitRecord{
		SHA:     commit.ID,
		Message: commit.Message,
		// GitLab commits carry no platform login; the author name is
		// the only handle available for own-commit matching.
		Author:     models.CommitAuthor{Name: commit.AuthorName},
		ParentSHAs: commit.ParentIDs,
		Stats: models.CommitStats{
			Additions: commit.Stats.Additions,
			Deletions: commit.Stats.Deletions,
		},
		URL: commit.WebURL,
	}
}

func gitlabToRelease(release gitlabRelease) models.ReleaseRecord {
	return models.ReleaseRecord{
		ID:         release.Commit.ID,
		TagName:    release.TagName,
		Name:       release.Name,
		Prerelease: release.UpcomingRelease,
		Author:     release.Author.Username,
		URL:        release.Links.Self,
	}
}

func gitlabTagToRelease(repo models.RepositoryRef, tag gitlabTag) models.ReleaseRecord {
	return models.ReleaseRecord{
		ID:          tag.Commit.ID,
		TagName:     tag.Name,
		Name:        tag.Name,
		TagFallback: true,
		URL:         fmt.Sprintf("https://gitlab.com/%s/-/tags/%s", repo.FullName, tag.Name),
	}
}
