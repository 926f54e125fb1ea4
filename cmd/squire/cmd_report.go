package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"squire/internal/analysis"
	"squire/internal/reports"
	"squire/internal/workflow"
)

var reportJSON bool

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the latest stored report",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, ok := reports.New(cfg.DataDir, nil, logger).Latest()
		if !ok {
			return fmt.Errorf("no report available yet, start one with POST /api/analysis/start")
		}
		if reportJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(env)
		}
		var stored workflow.StoredReport
		if err := json.Unmarshal(env.Report, &stored); err != nil {
			return fmt.Errorf("decode report: %w", err)
		}
		if stored.Report == nil {
			return fmt.Errorf("report from %s has status %q and no content", env.Timestamp, stored.Status)
		}
		renderReport(cmd.OutOrStdout(), env.Timestamp, *stored.Report)
		return nil
	},
}

func init() {
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "Print the raw report envelope")
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))
	headStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFB86C")).
			MarginTop(1)
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

func renderReport(w io.Writer, timestamp string, r analysis.Report) {
	pi, mi := r.PRInsights, r.MeetingInsights

	stats := lipgloss.JoinHorizontal(lipgloss.Top,
		boxStyle.Render(strings.Join([]string{
			headStyle.UnsetMarginTop().Render("Code Review"),
			fmt.Sprintf("PRs analyzed     %d", pi.TotalPRs),
			fmt.Sprintf("Files changed    %d", pi.TotalFilesChanged),
			fmt.Sprintf("Lines            +%d / -%d", pi.TotalAdditions, pi.TotalDeletions),
			fmt.Sprintf("High complexity  %d", pi.HighComplexityCount),
			fmt.Sprintf("High risk        %d", pi.HighRiskCount),
		}, "\n")),
		" ",
		boxStyle.Render(strings.Join([]string{
			headStyle.UnsetMarginTop().Render("Meetings"),
			fmt.Sprintf("Documents     %d", mi.DocumentsAnalyzed),
			fmt.Sprintf("Action items  %d", mi.TotalActionItems),
			fmt.Sprintf("Decisions     %d", mi.TotalDecisions),
			fmt.Sprintf("Attendees     %d", mi.TotalAttendees),
		}, "\n")),
	)

	blocks := []string{
		titleStyle.Render("SQUIRE REPORT") + " " + dimStyle.Render(timestamp),
		stats,
		headStyle.Render("Recommendations"),
		bullets(r.Recommendations),
	}
	if len(r.ActionItems) > 0 {
		blocks = append(blocks, headStyle.Render("Action Items"), bullets(r.ActionItems))
	}
	if len(r.DetailedPRSummaries) > 0 {
		lines := make([]string, 0, len(r.DetailedPRSummaries))
		for _, pr := range r.DetailedPRSummaries {
			lines = append(lines, fmt.Sprintf("#%d %s %s", pr.PRNumber, pr.Title,
				dimStyle.Render(fmt.Sprintf("(complexity %s, risk %s)", pr.Complexity, pr.RiskLevel))))
		}
		blocks = append(blocks, headStyle.Render("Pull Requests"), bullets(lines))
	}
	if len(r.DetailedMeetingSummaries) > 0 {
		lines := make([]string, 0, len(r.DetailedMeetingSummaries))
		for _, m := range r.DetailedMeetingSummaries {
			lines = append(lines, fmt.Sprintf("%s %s", m.DocURL,
				dimStyle.Render(fmt.Sprintf("(%d actions, %d decisions)", len(m.ActionItems), len(m.Decisions)))))
		}
		blocks = append(blocks, headStyle.Render("Meetings"), bullets(lines))
	}
	fmt.Fprintln(w, lipgloss.JoinVertical(lipgloss.Left, blocks...))
}

func bullets(items []string) string {
	if len(items) == 0 {
		return dimStyle.Render("  none")
	}
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = "  • " + it
	}
	return strings.Join(out, "\n")
}
