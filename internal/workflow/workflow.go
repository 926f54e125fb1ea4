// Package workflow names the broker topics of the analysis workflow and the
// payloads exchanged on them.
package workflow

import (
	"squire/internal/analysis"
)

// Topics.
const (
	TopicStart       = "squire/analysis/start"
	TopicPRDone      = "squire/analysis/pr/done"
	TopicMeetingDone = "squire/analysis/meeting/done"
	TopicTeamDone    = "squire/analysis/team/done"
	TopicJoin        = "squire/analysis/join"
	TopicReport      = "squire/manager/report"
)

// Agent names as they appear in payloads.
const (
	AgentPR      = "pr"
	AgentMeeting = "meeting"
	AgentTeam    = "team"
	AgentJoin    = "join"
	AgentManager = "manager"
)

// Status values.
const (
	StatusCompleted       = analysis.StatusCompleted
	StatusError           = analysis.StatusError
	StatusReadyForManager = "ready_for_manager"
	StatusAvailable       = "available"
)

// AllTopics lists every workflow topic, in pipeline order.
var AllTopics = []string{TopicStart, TopicPRDone, TopicMeetingDone, TopicTeamDone, TopicJoin, TopicReport}

// Start kicks off one workflow run.
type Start struct {
	Event       string   `json:"event"`
	PRCount     int      `json:"pr_count,omitempty"`
	MeetingDocs []string `json:"meeting_docs,omitempty"`
}

// NewStart builds a start event. prCount is carried for observers only.
func NewStart(prCount int, docs []string) Start {
	return Start{Event: "start", PRCount: prCount, MeetingDocs: docs}
}

// PRDone is published by the PR agent.
type PRDone struct {
	Agent    string                `json:"agent"`
	Status   string                `json:"status"`
	Repo     string                `json:"repo,omitempty"`
	Analyses []analysis.PRAnalysis `json:"analyses"`
	Count    int                   `json:"count"`
	Summary  string                `json:"summary,omitempty"`
	Message  string                `json:"message,omitempty"`
	Error    string                `json:"error,omitempty"`
}

// MeetingDone is published by the meeting agent.
type MeetingDone struct {
	Agent             string                     `json:"agent"`
	Status            string                     `json:"status"`
	DocumentsAnalyzed int                        `json:"documents_analyzed"`
	Analyses          []analysis.MeetingAnalysis `json:"analyses"`
	Summary           string                     `json:"summary,omitempty"`
	Error             string                     `json:"error,omitempty"`
}

// TeamDone is published by the team agent.
type TeamDone struct {
	Agent    string                  `json:"agent"`
	Status   string                  `json:"status"`
	Analyses []analysis.TeamAnalysis `json:"analyses"`
	Count    int                     `json:"count"`
	Summary  string                  `json:"summary,omitempty"`
	Message  string                  `json:"message,omitempty"`
	Error    string                  `json:"error,omitempty"`
}

// Join pairs one PR result with one meeting result.
type Join struct {
	Event           string      `json:"event"`
	PRAnalysis      PRDone      `json:"pr_analysis"`
	MeetingAnalysis MeetingDone `json:"meeting_analysis"`
	Status          string      `json:"status"`
}

// StoredReport is what the manager persists for the report endpoint.
type StoredReport struct {
	Agent           string           `json:"agent"`
	Status          string           `json:"status"`
	Report          *analysis.Report `json:"report,omitempty"`
	PRAnalysis      PRDone           `json:"pr_analysis"`
	MeetingAnalysis MeetingDone      `json:"meeting_analysis"`
}

// ManagerReport is published on TopicReport.
type ManagerReport struct {
	Agent     string           `json:"agent"`
	Status    string           `json:"status"`
	Report    *analysis.Report `json:"report,omitempty"`
	Timestamp string           `json:"timestamp,omitempty"`
	Error     string           `json:"error,omitempty"`
}
