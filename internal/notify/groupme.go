// Package notify posts a short summary of each finished report to a GroupMe
// bot.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"squire/internal/analysis"
	"squire/internal/broker"
	"squire/internal/config"
	"squire/internal/workflow"
)

// AgentName is the name the notifier registers under.
const AgentName = "notify"

// maxText keeps posts under GroupMe's message limit.
const maxText = 1000

// Message is the outbound bot post.
type Message struct {
	Text  string `json:"text"`
	BotID string `json:"bot_id"`
}

// GroupMe posts manager reports. Without a bot ID it only logs.
type GroupMe struct {
	cfg    config.GroupMeConfig
	http   *http.Client
	logger *zap.Logger
}

func NewGroupMe(cfg config.GroupMeConfig, httpClient *http.Client, logger *zap.Logger) *GroupMe {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &GroupMe{cfg: cfg, http: httpClient, logger: logger.Named("notify")}
}

func (g *GroupMe) Name() string { return AgentName }

func (g *GroupMe) Register(b broker.Client) error {
	return b.Subscribe(workflow.TopicReport, g.HandleReport)
}

// HandleReport posts completed reports and skips failed ones.
func (g *GroupMe) HandleReport(ctx context.Context, msg broker.Message) error {
	var rep workflow.ManagerReport
	if err := msg.Decode(&rep); err != nil {
		return err
	}
	if rep.Status != workflow.StatusCompleted || rep.Report == nil {
		g.logger.Debug("skipping report", zap.String("status", rep.Status), zap.String("error", rep.Error))
		return nil
	}
	if g.cfg.BotID == "" {
		g.logger.Debug("groupme not configured, report not posted")
		return nil
	}
	if err := g.Send(ctx, Summary(*rep.Report)); err != nil {
		g.logger.Warn("post report", zap.Error(err))
		return err
	}
	g.logger.Info("report posted", zap.String("timestamp", rep.Timestamp))
	return nil
}

// Send posts text to the bot.
func (g *GroupMe) Send(ctx context.Context, text string) error {
	buf, err := json.Marshal(Message{Text: text, BotID: g.cfg.BotID})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.URL, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := g.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("groupme status %d", resp.StatusCode)
	}
	return nil
}

// Summary condenses r into a chat message.
func Summary(r analysis.Report) string {
	pi, mi := r.PRInsights, r.MeetingInsights
	var b strings.Builder
	b.WriteString("Squire report ready\n")
	fmt.Fprintf(&b, "PRs: %d (+%d/-%d, %d high risk)\n", pi.TotalPRs, pi.TotalAdditions, pi.TotalDeletions, pi.HighRiskCount)
	fmt.Fprintf(&b, "Meetings: %d docs, %d action items, %d decisions\n", mi.DocumentsAnalyzed, mi.TotalActionItems, mi.TotalDecisions)
	for _, rec := range r.Recommendations {
		b.WriteString("- " + rec + "\n")
	}
	text := strings.TrimRight(b.String(), "\n")
	if r := []rune(text); len(r) > maxText {
		text = string(r[:maxText-3]) + "..."
	}
	return text
}
