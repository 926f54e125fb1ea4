package agents

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"squire/internal/broker"
	"squire/internal/workflow"
)

// JoinAgent waits until both the PR and the meeting analyses of a run have
// arrived, then hands the pair to the manager.
type JoinAgent struct {
	pub    Publisher
	logger *zap.Logger

	mu      sync.Mutex
	pr      *workflow.PRDone
	meeting *workflow.MeetingDone
}

func NewJoinAgent(pub Publisher, logger *zap.Logger) *JoinAgent {
	return &JoinAgent{pub: pub, logger: logger.Named("join_agent")}
}

func (a *JoinAgent) Name() string { return workflow.AgentJoin }

func (a *JoinAgent) Register(b broker.Client) error {
	if err := b.Subscribe(workflow.TopicPRDone, a.HandlePRDone); err != nil {
		return err
	}
	return b.Subscribe(workflow.TopicMeetingDone, a.HandleMeetingDone)
}

func (a *JoinAgent) HandlePRDone(ctx context.Context, msg broker.Message) error {
	var done workflow.PRDone
	if err := msg.Decode(&done); err != nil {
		return err
	}
	a.logger.Info("received PR analysis", zap.String("status", done.Status), zap.Int("count", done.Count))
	return a.offer(ctx, &done, nil)
}

func (a *JoinAgent) HandleMeetingDone(ctx context.Context, msg broker.Message) error {
	var done workflow.MeetingDone
	if err := msg.Decode(&done); err != nil {
		return err
	}
	a.logger.Info("received meeting analysis", zap.String("status", done.Status), zap.Int("documents", done.DocumentsAnalyzed))
	return a.offer(ctx, nil, &done)
}

// offer records one side and, when both are present, publishes the join and
// resets. The whole step holds the lock so a pair is published exactly once.
// A newer result for a side replaces one still waiting for its partner.
func (a *JoinAgent) offer(ctx context.Context, pr *workflow.PRDone, meeting *workflow.MeetingDone) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if pr != nil {
		a.pr = pr
	}
	if meeting != nil {
		a.meeting = meeting
	}
	if a.pr == nil || a.meeting == nil {
		return nil
	}

	join := workflow.Join{
		Event:           "join",
		PRAnalysis:      *a.pr,
		MeetingAnalysis: *a.meeting,
		Status:          workflow.StatusReadyForManager,
	}
	a.pr, a.meeting = nil, nil
	a.logger.Info("both analyses complete, publishing join",
		zap.Int("prs", join.PRAnalysis.Count),
		zap.Int("documents", join.MeetingAnalysis.DocumentsAnalyzed))
	return a.pub.Publish(ctx, workflow.TopicJoin, join)
}

// Pending reports which sides are waiting for a partner.
func (a *JoinAgent) Pending() (pr, meeting bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pr != nil, a.meeting != nil
}
