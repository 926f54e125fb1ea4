package agents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"squire/internal/analysis"
	"squire/internal/broker"
	"squire/internal/store"
	"squire/internal/workflow"
)

// TeamReviews yields the newest stored review.
type TeamReviews interface {
	LatestTeamReview(ctx context.Context) (*store.TeamReview, error)
}

// TeamAgent analyzes the most recent team review on every workflow start.
type TeamAgent struct {
	reviews TeamReviews
	pub     Publisher
	logger  *zap.Logger
}

func NewTeamAgent(reviews TeamReviews, pub Publisher, logger *zap.Logger) *TeamAgent {
	return &TeamAgent{reviews: reviews, pub: pub, logger: logger.Named("team_agent")}
}

func (a *TeamAgent) Name() string { return workflow.AgentTeam }

func (a *TeamAgent) Register(b broker.Client) error {
	return b.Subscribe(workflow.TopicStart, a.HandleStart)
}

func (a *TeamAgent) HandleStart(ctx context.Context, _ broker.Message) error {
	return a.pub.Publish(ctx, workflow.TopicTeamDone, a.Run(ctx))
}

// Run produces the team done payload.
func (a *TeamAgent) Run(ctx context.Context) workflow.TeamDone {
	done := workflow.TeamDone{
		Agent:    workflow.AgentTeam,
		Status:   workflow.StatusCompleted,
		Analyses: []analysis.TeamAnalysis{},
	}
	review, err := a.reviews.LatestTeamReview(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		done.Message = "No team reviews found in database"
		a.logger.Warn("no team reviews stored")
		return done
	case err != nil:
		done.Status = workflow.StatusError
		done.Error = err.Error()
		a.logger.Error("load team review", zap.Error(err))
		return done
	}

	member := review.TeamMember
	if member == "" {
		member = "Unknown"
	}
	result := analysis.AnalyzeTeamReview(review.Text)
	result.ReviewID = review.ID
	result.TeamMember = member
	result.CreatedAt = review.CreatedAt.UTC().Format(time.RFC3339)
	result.Status = analysis.StatusCompleted

	done.Analyses = append(done.Analyses, result)
	done.Count = 1
	done.Summary = fmt.Sprintf("Analyzed team review #%d from %s", review.ID, member)
	a.logger.Info("analyzed team review",
		zap.Int64("review_id", review.ID),
		zap.String("member", member),
		zap.String("sentiment", result.Sentiment))
	return done
}
