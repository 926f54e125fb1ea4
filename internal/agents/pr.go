package agents

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"squire/internal/analysis"
	"squire/internal/broker"
	"squire/internal/github"
	"squire/internal/workflow"
)

// PRSource finds the most recently merged pull request.
type PRSource interface {
	LatestMerged(ctx context.Context, owner, repo string) (github.PullRequest, []github.File, bool, error)
}

// PRAgent analyzes the latest merged PR whenever a workflow starts.
type PRAgent struct {
	source PRSource
	owner  string
	repo   string
	pub    Publisher
	logger *zap.Logger
}

func NewPRAgent(source PRSource, owner, repo string, pub Publisher, logger *zap.Logger) *PRAgent {
	return &PRAgent{source: source, owner: owner, repo: repo, pub: pub, logger: logger.Named("pr_agent")}
}

func (a *PRAgent) Name() string { return workflow.AgentPR }

func (a *PRAgent) Register(b broker.Client) error {
	return b.Subscribe(workflow.TopicStart, a.HandleStart)
}

// HandleStart ignores the requested PR count: only the newest merge is analyzed.
func (a *PRAgent) HandleStart(ctx context.Context, _ broker.Message) error {
	return a.pub.Publish(ctx, workflow.TopicPRDone, a.Run(ctx))
}

// Run produces the PR done payload.
func (a *PRAgent) Run(ctx context.Context) workflow.PRDone {
	repo := a.owner + "/" + a.repo
	done := workflow.PRDone{
		Agent:    workflow.AgentPR,
		Status:   workflow.StatusCompleted,
		Repo:     repo,
		Analyses: []analysis.PRAnalysis{},
	}
	if a.owner == "" || a.repo == "" {
		done.Status = workflow.StatusError
		done.Error = "GitHub repository not configured (set GITHUB_REPO_OWNER and GITHUB_REPO_NAME)"
		a.logger.Warn("no repository configured")
		return done
	}

	a.logger.Info("fetching most recent merged PR", zap.String("repo", repo))
	pr, files, ok, err := a.source.LatestMerged(ctx, a.owner, a.repo)
	if err != nil {
		done.Status = workflow.StatusError
		var se *github.StatusError
		if errors.As(err, &se) {
			done.Error = fmt.Sprintf("HTTP %d: Failed to fetch PRs", se.StatusCode)
		} else {
			done.Error = err.Error()
		}
		a.logger.Error("fetch PRs", zap.String("repo", repo), zap.Error(err))
		return done
	}
	if !ok {
		done.Message = "No merged PRs found for " + repo
		a.logger.Warn("no merged PRs", zap.String("repo", repo))
		return done
	}

	result := analysis.AnalyzePR(pr, files)
	done.Analyses = append(done.Analyses, result)
	done.Count = 1
	done.Summary = fmt.Sprintf("Analyzed most recent merged PR #%d from %s", pr.Number, repo)
	a.logger.Info("analyzed PR",
		zap.Int("pr", pr.Number),
		zap.String("merged_at", result.MergedAt),
		zap.String("complexity", result.Review.Complexity),
		zap.String("risk", result.Review.RiskLevel))
	return done
}
