package models

import (
	"fmt"
	"time"
)

// Platform identifies a source-control hosting platform.
type Platform string

const (
	PlatformGitHub Platform = "github"
	PlatformGitLab Platform = "gitlab"
)

// AllPlatforms returns every platform the watcher knows about.
func AllPlatforms() []Platform {
	return []Platform{PlatformGitHub, PlatformGitLab}
}

// SweepKind distinguishes commit sweeps from release sweeps.
type SweepKind string

const (
	SweepCommits  SweepKind = "commits"
	SweepReleases SweepKind = "releases"
)

// Priority is the urgency tier assigned to a detected change.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// RepositoryRef describes a watched repository as reported by its platform.
type RepositoryRef struct {
	Platform      Platform `json:"platform"`
	FullName      string   `json:"full_name"`
	DefaultBranch string   `json:"default_branch"`
	Private       bool     `json:"private"`
	IsFork        bool     `json:"is_fork"`
	Owner         string   `json:"owner"`
}

// Key returns the composite identity key for the repository.
func (r RepositoryRef) Key() string {
	return fmt.Sprintf("%s:%s", r.Platform, r.FullName)
}

// CommitAuthor holds the display name and platform login of a commit author.
type CommitAuthor struct {
	Name  string `json:"name"`
	Login string `json:"login"`
}

// CommitFile is one changed file within a commit.
type CommitFile struct {
	Filename  string `json:"filename"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}

// CommitStats aggregates line changes across a commit.
type CommitStats struct {
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
}

// CommitRecord is the canonical commit shape shared by all platforms.
type CommitRecord struct {
	SHA        string       `json:"sha"`
	Message    string       `json:"message"`
	Author     CommitAuthor `json:"author"`
	ParentSHAs []string     `json:"parent_shas"`
	Files      []CommitFile `json:"files"`
	Stats      CommitStats  `json:"stats"`
	URL        string       `json:"url"`
}

// IsMerge reports whether the commit has more than one parent.
func (c CommitRecord) IsMerge() bool {
	return len(c.ParentSHAs) >= 2
}

// ReleaseRecord is the canonical release shape shared by all platforms.
// When a platform has no formal release the latest tag is promoted into
// this shape with TagFallback set and ID carrying the tag's commit id.
type ReleaseRecord struct {
	ID          string `json:"id"`
	TagName     string `json:"tag_name"`
	Name        string `json:"name"`
	Prerelease  bool   `json:"prerelease"`
	TagFallback bool   `json:"tag_fallback"`
	Author      string `json:"author"`
	URL         string `json:"url"`
}

// Identity is the authenticated user on a platform.
type Identity struct {
	Login string `json:"login"`
	Name  string `json:"name"`
}

// RateLimitState is the per-platform request budget, refreshed from
// response headers and persisted for display.
type RateLimitState struct {
	Remaining  int   `json:"remaining"`
	ResetEpoch int64 `json:"reset_epoch"`
	Limit      int   `json:"limit"`
}

// NotificationRecord is one entry in the bounded activity history.
type NotificationRecord struct {
	ID        string    `json:"id"`
	Type      SweepKind `json:"type"`
	Platform  Platform  `json:"platform"`
	Repo      string    `json:"repo"`
	Priority  Priority  `json:"priority,omitempty"`
	Message   string    `json:"message"`
	URL       string    `json:"url"`
	Timestamp time.Time `json:"timestamp"`
}

// PlatformStatus describes one platform's auth and budget state.
type PlatformStatus struct {
	Authenticated bool            `json:"authenticated"`
	Identity      *Identity       `json:"identity,omitempty"`
	RateLimit     *RateLimitState `json:"rate_limit,omitempty"`
}

// Status is the snapshot exposed to the external UI layer.
type Status struct {
	Platforms     map[Platform]PlatformStatus `json:"platforms"`
	LastSweepTime time.Time                   `json:"last_sweep_time"`
	LastError     string                      `json:"last_error,omitempty"`
}
