package agents

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"squire/internal/analysis"
	"squire/internal/broker"
	"squire/internal/workflow"
)

const maxConcurrentDocs = 4

// DocReader fetches a document's plain text.
type DocReader interface {
	Read(ctx context.Context, docURL string) (string, error)
}

// MeetingAgent analyzes meeting minutes kept in Google Docs.
type MeetingAgent struct {
	reader      DocReader
	defaultDocs []string
	pub         Publisher
	logger      *zap.Logger
}

// NewMeetingAgent reads defaultDocs unless a start event names its own.
func NewMeetingAgent(reader DocReader, defaultDocs []string, pub Publisher, logger *zap.Logger) *MeetingAgent {
	return &MeetingAgent{reader: reader, defaultDocs: defaultDocs, pub: pub, logger: logger.Named("meeting_agent")}
}

func (a *MeetingAgent) Name() string { return workflow.AgentMeeting }

func (a *MeetingAgent) Register(b broker.Client) error {
	return b.Subscribe(workflow.TopicStart, a.HandleStart)
}

func (a *MeetingAgent) HandleStart(ctx context.Context, msg broker.Message) error {
	var start workflow.Start
	if err := msg.Decode(&start); err != nil {
		a.logger.Warn("bad start payload, using configured docs", zap.Error(err))
	}
	docs := start.MeetingDocs
	if len(docs) == 0 {
		docs = a.defaultDocs
	}
	return a.pub.Publish(ctx, workflow.TopicMeetingDone, a.Run(ctx, docs))
}

// Run reads and analyzes docs concurrently. Results keep the order of docs,
// and a failed document becomes an error entry instead of failing the run.
func (a *MeetingAgent) Run(ctx context.Context, docs []string) workflow.MeetingDone {
	var urls []string
	for _, d := range docs {
		if d = strings.TrimSpace(d); d != "" {
			urls = append(urls, d)
		}
	}
	if len(urls) == 0 {
		a.logger.Warn("no Google Docs URLs provided or configured")
		return workflow.MeetingDone{
			Agent:    workflow.AgentMeeting,
			Status:   workflow.StatusError,
			Error:    "No Google Docs URLs provided",
			Analyses: []analysis.MeetingAnalysis{},
		}
	}

	a.logger.Info("analyzing meeting documents", zap.Int("count", len(urls)))
	results := make([]analysis.MeetingAnalysis, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentDocs)
	for i, url := range urls {
		g.Go(func() error {
			results[i] = a.analyzeDoc(gctx, url)
			return nil
		})
	}
	_ = g.Wait()

	return workflow.MeetingDone{
		Agent:             workflow.AgentMeeting,
		Status:            workflow.StatusCompleted,
		DocumentsAnalyzed: len(results),
		Analyses:          results,
		Summary:           fmt.Sprintf("Analyzed %d meeting document(s)", len(results)),
	}
}

func (a *MeetingAgent) analyzeDoc(ctx context.Context, url string) analysis.MeetingAnalysis {
	content, err := a.reader.Read(ctx, url)
	if err != nil {
		a.logger.Error("read doc", zap.String("doc", url), zap.Error(err))
		return analysis.MeetingAnalysis{DocURL: url, Status: analysis.StatusError, Error: err.Error()}
	}
	result := analysis.AnalyzeMeeting(content)
	result.DocURL = url
	a.logger.Info("analyzed doc",
		zap.String("doc", url),
		zap.Int("action_items", result.Review.ActionItemsCount),
		zap.Int("decisions", result.Review.DecisionsCount))
	return result
}
