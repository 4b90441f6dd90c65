// Package classify assigns a structural type and a priority tier to
// canonical commit records. Both stages are pure functions: structural
// signals (file identity, deletion shape) are evaluated before message
// keywords, because commit messages are author-controlled and
// unreliable.
package classify

import (
	"path"
	"regexp"
	"strings"

	"github.com/gitpulse/gitpulse/internal/models"
)

// Type is the structural category of a commit.
type Type string

const (
	TypeMerge        Type = "merge"
	TypeDocs         Type = "docs"
	TypeConfig       Type = "config"
	TypeCI           Type = "ci"
	TypeTests        Type = "tests"
	TypeLocalization Type = "localization"
	TypeCode         Type = "code"
)

// Analysis is the stage-A result: the structural type plus the detail
// counts stage B and the notification text draw on.
type Analysis struct {
	Type         Type
	FamilyCounts map[Type]int
	Additions    int
	Deletions    int
}

var urgentWords = []string{"fix", "hotfix", "breaking", "critical", "urgent", "security"}

var lowWords = []string{"format", "style", "chore", "refactor", "rename"}

// criticalPattern scores a changed file path. Weight 3 patterns alone
// push a commit to high priority.
type criticalPattern struct {
	category string
	re       *regexp.Regexp
	weight   int
}

var criticalPatterns = []criticalPattern{
	{"security", regexp.MustCompile(`(?i)(auth|security|crypto|password|token|secret|session|permission)`), 3},
	{"core", regexp.MustCompile(`(?i)(^|/)(main|index|app|server|core|kernel)\.[a-z0-9]+$`), 3},
	{"core", regexp.MustCompile(`(?i)(^|/)(bootstrap|init|startup)`), 2},
	{"database", regexp.MustCompile(`(?i)(migration|schema|\.sql$)`), 2},
	{"api", regexp.MustCompile(`(?i)(^|/)(api|routes?|controllers?|handlers?)/`), 1},
	{"build", regexp.MustCompile(`(?i)((webpack|babel|rollup|vite)\.config|dockerfile|docker-compose)`), 2},
	{"build", regexp.MustCompile(`(?i)(^|/)(setup\.py|build\.gradle|pom\.xml)$`), 1},
}

// Analyze categorizes a commit structurally. A merge is recognized by
// parent count alone; otherwise every changed file is matched against
// five disjoint pattern families, and only a commit whose files all
// fall into a single non-code family gets that family as its type.
// A commit with no file data is code with empty details, erring
// toward visibility over silence.
func Analyze(commit models.CommitRecord) Analysis {
	analysis := Analysis{
		Type:         TypeCode,
		FamilyCounts: map[Type]int{},
		Additions:    commit.Stats.Additions,
		Deletions:    commit.Stats.Deletions,
	}

	if commit.IsMerge() {
		analysis.Type = TypeMerge
		return analysis
	}
	if len(commit.Files) == 0 {
		return analysis
	}

	for _, file := range commit.Files {
		analysis.FamilyCounts[fileFamily(file.Filename)]++
	}

	if len(analysis.FamilyCounts) == 1 {
		for family := range analysis.FamilyCounts {
			if family != TypeCode {
				analysis.Type = family
			}
		}
	}
	return analysis
}

// Classify assigns the priority tier for a commit, first match wins.
func Classify(commit models.CommitRecord) models.Priority {
	analysis := Analyze(commit)

	// 1. Structurally low-signal commits
	switch analysis.Type {
	case TypeMerge, TypeDocs, TypeConfig, TypeCI, TypeLocalization:
		return models.PriorityLow
	case TypeTests:
		return models.PriorityMedium
	}

	maxWeight := 0
	criticalFiles := 0
	for _, file := range commit.Files {
		if weight := criticalWeight(file.Filename); weight > 0 {
			criticalFiles++
			if weight > maxWeight {
				maxWeight = weight
			}
		}
	}

	// 3. Critical-file weighting
	if maxWeight >= 3 || criticalFiles >= 3 {
		return models.PriorityHigh
	}

	// 4. Large removals with little replacement signal breakage
	for _, file := range commit.Files {
		if file.Deletions > 100 && float64(file.Additions) < 0.3*float64(file.Deletions) {
			return models.PriorityHigh
		}
	}

	// 5. Several critical files, even low-weight ones
	if criticalFiles >= 2 {
		return models.PriorityHigh
	}

	// 6. Message keyword fallback
	if containsAny(commit.Message, urgentWords) {
		return models.PriorityHigh
	}

	// 7. A single critical file
	if criticalFiles >= 1 {
		return models.PriorityMedium
	}

	// 8. Large overall churn
	if totalChanges(commit, analysis) > 500 {
		return models.PriorityMedium
	}

	// 9. Housekeeping vocabulary
	if containsAny(commit.Message, lowWords) {
		return models.PriorityLow
	}

	return models.PriorityMedium
}

func criticalWeight(filename string) int {
	for _, pattern := range criticalPatterns {
		if pattern.re.MatchString(filename) {
			return pattern.weight
		}
	}
	return 0
}

func totalChanges(commit models.CommitRecord, analysis Analysis) int {
	total := analysis.Additions + analysis.Deletions
	if total > 0 {
		return total
	}
	for _, file := range commit.Files {
		total += file.Additions + file.Deletions
	}
	return total
}

func containsAny(message string, words []string) bool {
	message = strings.ToLower(message)
	for _, word := range words {
		if strings.Contains(message, word) {
			return true
		}
	}
	return false
}

// fileFamily assigns a changed file to exactly one pattern family.
// Checks run in a fixed order so overlapping extensions (a YAML CI
// pipeline, a Markdown file under docs/) resolve deterministically.
func fileFamily(filename string) Type {
	lower := strings.ToLower(filename)
	base := path.Base(lower)
	ext := path.Ext(base)

	switch {
	case isCIFile(lower, base):
		return TypeCI
	case isTestFile(lower, base):
		return TypeTests
	case isLocalizationFile(lower, ext):
		return TypeLocalization
	case isDocFile(lower, base, ext):
		return TypeDocs
	case isConfigFile(base, ext):
		return TypeConfig
	default:
		return TypeCode
	}
}

func isCIFile(lower, base string) bool {
	if strings.HasPrefix(lower, ".github/workflows/") || strings.HasPrefix(lower, ".circleci/") {
		return true
	}
	switch base {
	case ".gitlab-ci.yml", ".travis.yml", "jenkinsfile", "azure-pipelines.yml":
		return true
	}
	return false
}

func isTestFile(lower, base string) bool {
	if strings.HasSuffix(base, "_test.go") || strings.HasPrefix(base, "test_") {
		return true
	}
	if strings.Contains(base, ".test.") || strings.Contains(base, ".spec.") {
		return true
	}
	for _, dir := range []string{"test/", "tests/", "__tests__/", "spec/"} {
		if strings.HasPrefix(lower, dir) || strings.Contains(lower, "/"+dir) {
			return true
		}
	}
	return false
}

func isLocalizationFile(lower, ext string) bool {
	switch ext {
	case ".po", ".pot", ".mo":
		return true
	}
	for _, dir := range []string{"locales/", "locale/", "i18n/", "translations/", "lang/"} {
		if strings.HasPrefix(lower, dir) || strings.Contains(lower, "/"+dir) {
			return true
		}
	}
	return false
}

func isDocFile(lower, base, ext string) bool {
	switch ext {
	case ".md", ".rst", ".adoc", ".txt":
		return true
	}
	switch base {
	case "readme", "license", "changelog", "contributing", "authors", "notice":
		return true
	}
	return strings.HasPrefix(lower, "docs/") || strings.Contains(lower, "/docs/")
}

func isConfigFile(base, ext string) bool {
	switch base {
	case "go.mod", "go.sum", "package.json", "package-lock.json", "yarn.lock",
		"pnpm-lock.yaml", "gemfile", "gemfile.lock", "requirements.txt", "pipfile",
		"pipfile.lock", "cargo.toml", "cargo.lock", "composer.json", "composer.lock",
		"makefile", "tsconfig.json", ".editorconfig", ".gitignore", ".gitattributes":
		return true
	}
	if strings.HasPrefix(base, ".eslintrc") || strings.HasPrefix(base, ".prettierrc") {
		return true
	}
	switch ext {
	case ".ini", ".cfg", ".conf":
		return true
	}
	return false
}
