package analysis

import (
	"fmt"
	"strings"
)

const summaryExcerpt = 300

// PRInsights aggregates every analyzed pull request.
type PRInsights struct {
	TotalPRs            int `json:"total_prs"`
	TotalFilesChanged   int `json:"total_files_changed"`
	TotalAdditions      int `json:"total_additions"`
	TotalDeletions      int `json:"total_deletions"`
	HighComplexityCount int `json:"high_complexity_count"`
	HighRiskCount       int `json:"high_risk_count"`
}

// MeetingInsights aggregates the meeting documents. DocumentsAnalyzed counts
// failed documents too; the totals only count completed ones.
type MeetingInsights struct {
	DocumentsAnalyzed int `json:"documents_analyzed"`
	TotalActionItems  int `json:"total_action_items"`
	TotalDecisions    int `json:"total_decisions"`
	TotalAttendees    int `json:"total_attendees"`
}

type PRSummary struct {
	PRNumber   int       `json:"pr_number"`
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	Summary    string    `json:"summary"`
	Complexity string    `json:"complexity"`
	RiskLevel  string    `json:"risk_level"`
	Metrics    PRMetrics `json:"metrics"`
}

type MeetingSummary struct {
	DocURL      string   `json:"doc_url"`
	ActionItems []string `json:"action_items"`
	Decisions   []string `json:"decisions"`
	Attendees   []string `json:"attendees"`
	Summary     string   `json:"summary"`
}

// Report is the manager's synthesis served by GET /api/analysis/report.
type Report struct {
	ExecutiveSummary         string           `json:"executive_summary"`
	PRInsights               PRInsights       `json:"pr_insights"`
	MeetingInsights          MeetingInsights  `json:"meeting_insights"`
	Recommendations          []string         `json:"recommendations"`
	ActionItems              []string         `json:"action_items"`
	DetailedPRSummaries      []PRSummary      `json:"detailed_pr_summaries"`
	DetailedMeetingSummaries []MeetingSummary `json:"detailed_meeting_summaries"`
}

// Synthesize merges PR and meeting analyses into a Report.
func Synthesize(prs []PRAnalysis, meetings []MeetingAnalysis) Report {
	r := Report{
		Recommendations:          []string{},
		ActionItems:              []string{},
		DetailedPRSummaries:      make([]PRSummary, 0, len(prs)),
		DetailedMeetingSummaries: []MeetingSummary{},
	}

	for _, a := range prs {
		r.PRInsights.TotalPRs++
		r.PRInsights.TotalFilesChanged += a.Metrics.FilesChanged
		r.PRInsights.TotalAdditions += a.Metrics.Additions
		r.PRInsights.TotalDeletions += a.Metrics.Deletions
		if a.Review.Complexity == LevelHigh {
			r.PRInsights.HighComplexityCount++
		}
		if a.Review.RiskLevel == LevelHigh {
			r.PRInsights.HighRiskCount++
		}
		r.DetailedPRSummaries = append(r.DetailedPRSummaries, PRSummary{
			PRNumber:   a.PRNumber,
			Title:      a.Title,
			URL:        a.URL,
			Summary:    truncate(a.Summary, summaryExcerpt),
			Complexity: a.Review.Complexity,
			RiskLevel:  a.Review.RiskLevel,
			Metrics:    a.Metrics,
		})
	}

	r.MeetingInsights.DocumentsAnalyzed = len(meetings)
	for _, m := range meetings {
		if !m.Completed() {
			continue
		}
		r.MeetingInsights.TotalActionItems += len(m.ActionItems)
		r.MeetingInsights.TotalDecisions += len(m.Decisions)
		r.MeetingInsights.TotalAttendees += len(m.Attendees)
		r.ActionItems = append(r.ActionItems, m.ActionItems...)
		r.DetailedMeetingSummaries = append(r.DetailedMeetingSummaries, MeetingSummary{
			DocURL:      m.DocURL,
			ActionItems: nonNil(m.ActionItems),
			Decisions:   nonNil(m.Decisions),
			Attendees:   nonNil(m.Attendees),
			Summary:     truncate(m.Summary, summaryExcerpt),
		})
	}

	pi, mi := r.PRInsights, r.MeetingInsights
	if pi.HighComplexityCount > 0 {
		r.Recommendations = append(r.Recommendations, fmt.Sprintf("High complexity PRs detected (%d) - ensure adequate code review time", pi.HighComplexityCount))
	}
	if pi.HighRiskCount > 0 {
		r.Recommendations = append(r.Recommendations, fmt.Sprintf("High risk PRs detected (%d) - prioritize thorough testing", pi.HighRiskCount))
	}
	if mi.TotalActionItems > 0 {
		r.Recommendations = append(r.Recommendations, fmt.Sprintf("Meeting identified %d action items - ensure follow-up and assignment", mi.TotalActionItems))
	}
	if pi.TotalPRs > 0 && mi.TotalActionItems > 0 {
		r.Recommendations = append(r.Recommendations, "PR activity and meeting action items are aligned - continue coordinated development efforts")
	}
	if len(r.Recommendations) == 0 {
		r.Recommendations = append(r.Recommendations, "All systems operational - no immediate concerns identified")
	}

	r.ExecutiveSummary = executiveSummary(pi, mi, r.Recommendations)
	return r
}

func executiveSummary(pi PRInsights, mi MeetingInsights, recs []string) string {
	var b strings.Builder
	b.WriteString("\nEXECUTIVE SUMMARY\n=================\n\n")
	b.WriteString("Code Review Status:\n")
	fmt.Fprintf(&b, "- PRs Analyzed: %d\n", pi.TotalPRs)
	fmt.Fprintf(&b, "- Files Changed: %d\n", pi.TotalFilesChanged)
	fmt.Fprintf(&b, "- Net Code Changes: +%d / -%d lines\n", pi.TotalAdditions, pi.TotalDeletions)
	fmt.Fprintf(&b, "- High Complexity PRs: %d\n", pi.HighComplexityCount)
	fmt.Fprintf(&b, "- High Risk PRs: %d\n\n", pi.HighRiskCount)
	b.WriteString("Meeting Activity Status:\n")
	fmt.Fprintf(&b, "- Documents Analyzed: %d\n", mi.DocumentsAnalyzed)
	fmt.Fprintf(&b, "- Action Items Identified: %d\n", mi.TotalActionItems)
	fmt.Fprintf(&b, "- Decisions Documented: %d\n", mi.TotalDecisions)
	fmt.Fprintf(&b, "- Attendees Tracked: %d\n\n", mi.TotalAttendees)
	b.WriteString("Key Recommendations:\n")
	for i, rec := range recs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- " + rec)
	}
	b.WriteString("\n\nNext Steps:\n")
	b.WriteString("- Review PR summaries for critical changes requiring attention\n")
	b.WriteString("- Follow up on meeting action items to ensure completion\n")
	b.WriteString("- Monitor high-risk PRs through deployment process\n")
	return b.String()
}
