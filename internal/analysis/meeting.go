package analysis

import (
	"fmt"
	"regexp"
	"strings"
)

// Per-document status values carried in meeting analyses.
const (
	StatusCompleted = "completed"
	StatusError     = "error"
)

// MeetingReview grades how actionable a set of minutes is.
type MeetingReview struct {
	Completeness     string   `json:"completeness"`
	ActionItemsCount int      `json:"action_items_count"`
	DecisionsCount   int      `json:"decisions_count"`
	AttendeesCount   int      `json:"attendees_count"`
	Recommendations  []string `json:"recommendations"`
}

// MeetingAnalysis is the meeting agent's output for one document. Failed
// documents carry only DocURL, Status and Error.
type MeetingAnalysis struct {
	DocURL           string         `json:"doc_url,omitempty"`
	Status           string         `json:"status,omitempty"`
	Error            string         `json:"error,omitempty"`
	ContentLength    int            `json:"content_length,omitempty"`
	LineCount        int            `json:"line_count,omitempty"`
	ActionItems      []string       `json:"action_items,omitempty"`
	Decisions        []string       `json:"decisions,omitempty"`
	Attendees        []string       `json:"attendees,omitempty"`
	Topics           []string       `json:"topics,omitempty"`
	Projects         []string       `json:"projects,omitempty"`
	Problems         []string       `json:"problems,omitempty"`
	Solutions        []string       `json:"solutions,omitempty"`
	Deadlines        []string       `json:"deadlines,omitempty"`
	Metrics          []string       `json:"metrics,omitempty"`
	Summary          string         `json:"summary,omitempty"`
	SummaryParagraph string         `json:"summary_paragraph,omitempty"`
	Review           *MeetingReview `json:"review,omitempty"`
}

// Completed reports whether the document was read and analyzed.
func (m MeetingAnalysis) Completed() bool { return m.Status == StatusCompleted }

var (
	actionPatterns = compileAll(
		`(?im)action\s*item[s]?[:\-]?\s*(.+?)(?:\n|$)`,
		`(?im)action[s]?[:\-]?\s*(.+?)(?:\n|$)`,
		`(?im)todo[s]?[:\-]?\s*(.+?)(?:\n|$)`,
		`(?im)next\s+step[s]?[:\-]?\s*(.+?)(?:\n|$)`,
	)
	decisionPatterns = compileAll(
		`(?im)decision[s]?[:\-]?\s*(.+?)(?:\n|$)`,
		`(?im)decided[:\-]?\s*(.+?)(?:\n|$)`,
		`(?im)agreed[:\-]?\s*(.+?)(?:\n|$)`,
	)
	attendeePatterns = compileAll(
		`(?im)attendee[s]?[:\-]?\s*(.+?)(?:\n|$)`,
		`(?im)participant[s]?[:\-]?\s*(.+?)(?:\n|$)`,
		`(?im)present[:\-]?\s*(.+?)(?:\n|$)`,
	)
	accomplishmentPatterns = compileAll(
		`(?im)completed[:\-]?\s*(.+?)(?:\n|$)`,
		`(?im)finished[:\-]?\s*(.+?)(?:\n|$)`,
		`(?im)accomplished[:\-]?\s*(.+?)(?:\n|$)`,
		`(?im)delivered[:\-]?\s*(.+?)(?:\n|$)`,
		`(?im)solved[:\-]?\s*(.+?)(?:\n|$)`,
	)
	activityPatterns = compileAll(
		`(?im)discussed[:\-]?\s*(.+?)(?:\n|$)`,
		`(?im)reviewed[:\-]?\s*(.+?)(?:\n|$)`,
		`(?im)presented[:\-]?\s*(.+?)(?:\n|$)`,
		`(?im)demonstrated[:\-]?\s*(.+?)(?:\n|$)`,
		`(?im)worked on[:\-]?\s*(.+?)(?:\n|$)`,
	)
	problemPatterns = compileAll(
		`(?i)(?:problem|issue|blocker|challenge|difficulty)\s+(?:is|with|that)\s+([^.]+?)(?:\.|$)`,
		`(?i)(?:facing|encountering|experiencing)\s+([^.]+?)(?:\.|$)`,
	)
	solutionPatterns = compileAll(
		`(?i)(?:solution|approach|fix|resolve|address)\s+(?:is|was|will be|to)\s+([^.]+?)(?:\.|$)`,
		`(?i)(?:decided\s+to|agreed\s+to|plan\s+to)\s+([^.]+?)(?:\.|$)`,
	)
	projectPattern  = regexp.MustCompile(`(?i)(?:project|module|feature|component)\s+(?:called\s+)?["']?([A-Z][a-zA-Z0-9\s]+)["']?`)
	deadlinePattern = regexp.MustCompile(`(?i)(?:deadline|due\s+date|by|target|ETA|timeline)[:\-]?\s*([^.]+?)(?:\.|$)`)
	metricPattern   = regexp.MustCompile(`(?i)(\d+\s*(?:percent|%|hours|days|weeks|people|members|items|tasks|PRs|issues))`)
	listSeparator   = regexp.MustCompile(`[,;]`)

	meetingKeyPhrases = []string{
		"project", "deadline", "budget", "team", "review", "next steps",
		"discussion", "proposal", "feedback", "update", "status", "milestone",
	}
)

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

func findGroup(re *regexp.Regexp, text string) []string {
	var out []string
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		out = append(out, m[1])
	}
	return out
}

// AnalyzeMeeting extracts action items, decisions, attendees and the like
// from plain-text minutes and writes a narrative summary of them.
func AnalyzeMeeting(content string) MeetingAnalysis {
	lines := nonEmptyLines(content)
	lower := strings.ToLower(content)

	actionItems := captureAll(lower, actionPatterns, 0, 3)
	decisions := captureAll(lower, decisionPatterns, 0, 3)

	var attendees []string
	for _, re := range attendeePatterns {
		for _, m := range re.FindAllStringSubmatch(lower, -1) {
			for _, a := range listSeparator.Split(strings.TrimSpace(m[1]), -1) {
				if a = strings.TrimSpace(a); a != "" {
					attendees = append(attendees, a)
				}
			}
		}
	}

	var topics []string
	for _, phrase := range meetingKeyPhrases {
		if strings.Contains(lower, phrase) {
			topics = append(topics, phrase)
		}
	}

	accomplishments := captureAll(lower, accomplishmentPatterns, 0, 3)
	activities := captureAll(lower, activityPatterns, 0, 3)
	projects := findGroup(projectPattern, content)
	deadlines := findGroup(deadlinePattern, content)
	problems := captureAll(content, problemPatterns, 150, 10)
	solutions := captureAll(content, solutionPatterns, 150, 10)
	metrics := findGroup(metricPattern, content)

	var parts []string
	parts = append(parts, fmt.Sprintf("This meeting document contains %d lines of detailed notes covering comprehensive team discussion and decision-making.", len(lines)))
	if len(attendees) > 0 {
		others := ""
		if len(attendees) > 4 {
			others = " and others"
		}
		parts = append(parts, fmt.Sprintf("The meeting involved %s%s, representing key stakeholders and team members.", strings.Join(first(attendees, 4), ", "), others))
	}
	if len(topics) > 0 {
		parts = append(parts, fmt.Sprintf("Discussion centered on %s, indicating a focused agenda addressing multiple aspects of project development.", strings.Join(first(topics, 5), ", ")))
	}
	if len(projects) > 0 {
		parts = append(parts, fmt.Sprintf("Specific focus was given to %s, demonstrating targeted attention to key deliverables.", strings.Join(first(projects, 3), ", ")))
	}
	switch {
	case len(accomplishments) == 1:
		parts = append(parts, fmt.Sprintf("A significant accomplishment was achieved during the meeting: %s.", truncate(accomplishments[0], 250)))
	case len(accomplishments) > 1:
		parts = append(parts, fmt.Sprintf("The team documented several accomplishments including: %s.", strings.Join(truncateEach(first(accomplishments, 2), 120), "; ")))
	}
	if len(activities) > 0 {
		parts = append(parts, fmt.Sprintf("Detailed review and discussion occurred on: %s, ensuring thorough examination of key work items.", strings.Join(truncateEach(first(activities, 2), 120), "; ")))
	}
	switch {
	case len(problems) == 1:
		parts = append(parts, fmt.Sprintf("A specific problem was identified: %s.", truncate(problems[0], 200)))
	case len(problems) > 1 && len(solutions) > 0:
		parts = append(parts, fmt.Sprintf("Several challenges were discussed, including %s, with corresponding solutions being evaluated.", truncate(problems[0], 150)))
	}
	if len(solutions) > 0 {
		parts = append(parts, fmt.Sprintf("The team agreed on solutions and approaches: %s.", strings.Join(truncateEach(first(solutions, 2), 120), "; ")))
	}
	switch {
	case len(decisions) == 1:
		parts = append(parts, fmt.Sprintf("A critical decision was made: %s, which will guide future development efforts.", truncate(decisions[0], 250)))
	case len(decisions) > 1:
		parts = append(parts, fmt.Sprintf("The meeting resulted in %d key decisions, with the primary decision being: %s, establishing direction for the team.", len(decisions), truncate(decisions[0], 200)))
	}
	switch {
	case len(actionItems) == 1:
		parts = append(parts, fmt.Sprintf("One concrete action item was established: %s, ensuring clear next steps.", truncate(actionItems[0], 250)))
	case len(actionItems) > 1:
		parts = append(parts, fmt.Sprintf("Moving forward, %d specific action items were defined, with priority given to: %s, demonstrating a structured approach to follow-up.", len(actionItems), truncate(actionItems[0], 200)))
	}
	if len(metrics) > 0 {
		parts = append(parts, fmt.Sprintf("Quantifiable metrics and timelines were established: %s, providing measurable targets.", strings.Join(first(metrics, 3), ", ")))
	}
	if len(deadlines) > 0 {
		parts = append(parts, fmt.Sprintf("Specific timelines were discussed: %s, ensuring alignment on delivery expectations.", strings.Join(truncateEach(first(deadlines, 2), 100), "; ")))
	}
	if len(actionItems) == 0 && len(decisions) == 0 && len(accomplishments) == 0 {
		parts = append(parts, "The meeting primarily focused on detailed discussion, status updates, and collaborative problem-solving.")
	}
	paragraph := strings.Join(parts, " ")

	var d strings.Builder
	d.WriteString("\n\nDetailed Breakdown:\n")
	fmt.Fprintf(&d, "Document Length: %d characters, %d lines\n", runeLen(content), len(lines))
	if len(topics) > 0 {
		fmt.Fprintf(&d, "Key Topics: %s\n", strings.Join(first(topics, 5), ", "))
	}
	writeNumbered(&d, "Action Items", actionItems)
	writeNumbered(&d, "Decisions", decisions)
	if len(attendees) > 0 {
		fmt.Fprintf(&d, "\nAttendees: %s\n", strings.Join(first(attendees, 10), ", "))
	}

	return MeetingAnalysis{
		Status:           StatusCompleted,
		ContentLength:    runeLen(content),
		LineCount:        len(lines),
		ActionItems:      first(actionItems, 10),
		Decisions:        first(decisions, 10),
		Attendees:        first(attendees, 10),
		Topics:           first(topics, 10),
		Projects:         first(projects, 5),
		Problems:         first(problems, 5),
		Solutions:        first(solutions, 5),
		Deadlines:        first(deadlines, 5),
		Metrics:          first(metrics, 5),
		Summary:          paragraph + d.String(),
		SummaryParagraph: paragraph,
		Review:           reviewMeeting(len(actionItems), len(decisions), len(attendees), len(lines)),
	}
}

func writeNumbered(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s (%d):\n", title, len(items))
	for i, item := range first(items, 10) {
		ellipsis := ""
		if runeLen(item) > 100 {
			ellipsis = "..."
		}
		fmt.Fprintf(b, "  %d. %s%s\n", i+1, truncate(item, 100), ellipsis)
	}
}

func reviewMeeting(actions, decisions, attendees, lines int) *MeetingReview {
	r := &MeetingReview{
		Completeness:     LevelLow,
		ActionItemsCount: actions,
		DecisionsCount:   decisions,
		AttendeesCount:   attendees,
		Recommendations:  []string{},
	}
	switch {
	case actions > 0 && decisions > 0:
		r.Completeness = LevelHigh
	case actions > 0 || decisions > 0:
		r.Completeness = LevelMedium
	}
	if actions == 0 {
		r.Recommendations = append(r.Recommendations, "No action items identified - consider documenting next steps")
	}
	if decisions == 0 {
		r.Recommendations = append(r.Recommendations, "No decisions identified - consider documenting key decisions")
	}
	if lines < 50 {
		r.Recommendations = append(r.Recommendations, "Meeting notes seem brief - ensure all important points are captured")
	}
	if len(r.Recommendations) == 0 {
		r.Recommendations = append(r.Recommendations, "Meeting notes are well-structured")
	}
	return r
}
