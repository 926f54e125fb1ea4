package agents

import (
	"context"
	"time"

	"go.uber.org/zap"

	"squire/internal/analysis"
	"squire/internal/broker"
	"squire/internal/metrics"
	"squire/internal/reports"
	"squire/internal/workflow"
)

// ReportSink stores the final report.
type ReportSink interface {
	Save(ctx context.Context, report any) (reports.Envelope, error)
}

// ManagerAgent turns a join into the final report.
type ManagerAgent struct {
	sink    ReportSink
	pub     Publisher
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewManagerAgent stores reports in sink. m may be nil.
func NewManagerAgent(sink ReportSink, pub Publisher, m *metrics.Metrics, logger *zap.Logger) *ManagerAgent {
	return &ManagerAgent{sink: sink, pub: pub, metrics: m, logger: logger.Named("manager_agent")}
}

func (a *ManagerAgent) Name() string { return workflow.AgentManager }

func (a *ManagerAgent) Register(b broker.Client) error {
	return b.Subscribe(workflow.TopicJoin, a.HandleJoin)
}

func (a *ManagerAgent) HandleJoin(ctx context.Context, msg broker.Message) error {
	var join workflow.Join
	if err := msg.Decode(&join); err != nil {
		a.logger.Error("decode join", zap.Error(err))
		return a.pub.Publish(ctx, workflow.TopicReport, workflow.ManagerReport{
			Agent:  workflow.AgentManager,
			Status: workflow.StatusError,
			Error:  err.Error(),
		})
	}
	if join.PRAnalysis.Status != workflow.StatusCompleted {
		a.logger.Warn("PR analysis missing or incomplete", zap.String("status", join.PRAnalysis.Status), zap.String("error", join.PRAnalysis.Error))
	}
	if join.MeetingAnalysis.Status != workflow.StatusCompleted {
		a.logger.Warn("meeting analysis missing or incomplete", zap.String("status", join.MeetingAnalysis.Status), zap.String("error", join.MeetingAnalysis.Error))
	}

	report := analysis.Synthesize(join.PRAnalysis.Analyses, join.MeetingAnalysis.Analyses)
	stored := workflow.StoredReport{
		Agent:           workflow.AgentManager,
		Status:          workflow.StatusCompleted,
		Report:          &report,
		PRAnalysis:      join.PRAnalysis,
		MeetingAnalysis: join.MeetingAnalysis,
	}
	env, err := a.sink.Save(ctx, stored)
	if err != nil {
		a.logger.Error("store report", zap.Error(err))
		return a.pub.Publish(ctx, workflow.TopicReport, workflow.ManagerReport{
			Agent:  workflow.AgentManager,
			Status: workflow.StatusError,
			Error:  err.Error(),
		})
	}
	if a.metrics != nil {
		a.metrics.RecordReport()
	}
	a.logger.Info("final report generated",
		zap.Int("prs", report.PRInsights.TotalPRs),
		zap.Int("documents", report.MeetingInsights.DocumentsAnalyzed),
		zap.Int("recommendations", len(report.Recommendations)))
	a.logger.Debug(report.ExecutiveSummary)

	ts := env.Timestamp
	if ts == "" {
		ts = time.Now().UTC().Format(time.RFC3339)
	}
	return a.pub.Publish(ctx, workflow.TopicReport, workflow.ManagerReport{
		Agent:     workflow.AgentManager,
		Status:    workflow.StatusCompleted,
		Report:    &report,
		Timestamp: ts,
	})
}
