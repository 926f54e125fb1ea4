package analysis

import (
	"fmt"
	"sort"
	"strings"

	"squire/internal/github"
)

// Levels shared by PR complexity/risk and meeting completeness.
const (
	LevelLow    = "low"
	LevelMedium = "medium"
	LevelHigh   = "high"
)

// PRMetrics summarises the size of a pull request.
type PRMetrics struct {
	FilesChanged int            `json:"files_changed"`
	Additions    int            `json:"additions"`
	Deletions    int            `json:"deletions"`
	NetChange    int            `json:"net_change"`
	FileTypes    map[string]int `json:"file_types"`
}

// PRReview is the heuristic assessment attached to a PR analysis.
type PRReview struct {
	Complexity      string   `json:"complexity"`
	RiskLevel       string   `json:"risk_level"`
	Recommendations []string `json:"recommendations"`
}

// KeyFile is one of the most-changed files in a PR.
type KeyFile struct {
	Filename  string `json:"filename"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}

// PRAnalysis is the PR agent's output for one pull request.
type PRAnalysis struct {
	PRNumber  int       `json:"pr_number"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	URL       string    `json:"url"`
	State     string    `json:"state"`
	CreatedAt string    `json:"created_at"`
	UpdatedAt string    `json:"updated_at"`
	MergedAt  string    `json:"merged_at,omitempty"`
	Metrics   PRMetrics `json:"metrics"`
	KeyFiles  []KeyFile `json:"key_files"`
	Summary   string    `json:"summary"`
	Review    PRReview  `json:"review"`
}

const (
	maxKeyFiles        = 5
	descriptionExcerpt = 300
)

// AnalyzePR computes metrics, a text summary and a review for pr and its files.
func AnalyzePR(pr github.PullRequest, files []github.File) PRAnalysis {
	additions, deletions := pr.Additions, pr.Deletions
	churn := additions + deletions
	filesChanged := len(files)

	fileTypes := map[string]int{}
	var typeOrder []string
	for _, f := range files {
		ext := "other"
		if i := strings.LastIndex(f.Filename, "."); i >= 0 {
			ext = f.Filename[i+1:]
		}
		if _, ok := fileTypes[ext]; !ok {
			typeOrder = append(typeOrder, ext)
		}
		fileTypes[ext]++
	}

	sorted := append([]github.File(nil), files...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Additions+sorted[i].Deletions > sorted[j].Additions+sorted[j].Deletions
	})
	keyFiles := make([]KeyFile, 0, maxKeyFiles)
	for _, f := range first(sorted, maxKeyFiles) {
		keyFiles = append(keyFiles, KeyFile{Filename: f.Filename, Additions: f.Additions, Deletions: f.Deletions})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "PR #%d: %s\n", pr.Number, pr.Title)
	fmt.Fprintf(&b, "Author: %s\n", pr.User.Login)
	fmt.Fprintf(&b, "Status: %s\n", pr.State)
	fmt.Fprintf(&b, "Created: %s\n", pr.CreatedAt)
	b.WriteString("\nChanges:\n")
	fmt.Fprintf(&b, "  - Files changed: %d\n", filesChanged)
	fmt.Fprintf(&b, "  - Additions: +%d\n", additions)
	fmt.Fprintf(&b, "  - Deletions: -%d\n", deletions)
	fmt.Fprintf(&b, "  - Net change: %d lines\n", additions-deletions)
	if len(typeOrder) > 0 {
		parts := make([]string, 0, len(typeOrder))
		for _, ext := range typeOrder {
			parts = append(parts, fmt.Sprintf("%s(%d)", ext, fileTypes[ext]))
		}
		fmt.Fprintf(&b, "\nFile types: %s\n", strings.Join(parts, ", "))
	}
	if len(keyFiles) > 0 {
		b.WriteString("\nKey files modified:\n")
		for _, f := range keyFiles {
			fmt.Fprintf(&b, "  - %s (+%d/-%d)\n", f.Filename, f.Additions, f.Deletions)
		}
	}
	if pr.Body != "" {
		fmt.Fprintf(&b, "\nDescription: %s...\n", truncate(pr.Body, descriptionExcerpt))
	}

	out := PRAnalysis{
		PRNumber:  pr.Number,
		Title:     pr.Title,
		Author:    pr.User.Login,
		URL:       pr.HTMLURL,
		State:     pr.State,
		CreatedAt: pr.CreatedAt,
		UpdatedAt: pr.UpdatedAt,
		Metrics: PRMetrics{
			FilesChanged: filesChanged,
			Additions:    additions,
			Deletions:    deletions,
			NetChange:    additions - deletions,
			FileTypes:    fileTypes,
		},
		KeyFiles: keyFiles,
		Summary:  b.String(),
		Review:   reviewPR(churn, filesChanged),
	}
	if pr.Merged() {
		out.MergedAt = *pr.MergedAt
	}
	return out
}

func reviewPR(churn, filesChanged int) PRReview {
	r := PRReview{Complexity: LevelLow, RiskLevel: LevelLow, Recommendations: []string{}}
	switch {
	case churn > 500:
		r.Complexity = LevelHigh
	case churn > 100:
		r.Complexity = LevelMedium
	}
	switch {
	case filesChanged > 20:
		r.RiskLevel = LevelHigh
	case filesChanged > 5:
		r.RiskLevel = LevelMedium
	}
	if churn > 1000 {
		r.Recommendations = append(r.Recommendations, "Large PR - consider breaking into smaller changes")
	}
	if filesChanged > 15 {
		r.Recommendations = append(r.Recommendations, "Many files changed - ensure thorough testing")
	}
	if len(r.Recommendations) == 0 {
		r.Recommendations = append(r.Recommendations, "PR looks manageable")
	}
	return r
}
