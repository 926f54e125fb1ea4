// Package sam drives the agent mesh REST gateway (v2 task API): submit an
// orchestration task, then poll until the gateway reports it finished.
package sam

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"squire/internal/config"
)

const (
	OrchestratorAgent = "OrchestratorAgent"

	WorkflowPrompt = "Please coordinate the following workflow: 1) Ask PRAgent to 'perform PR analysis'. " +
		"2) Ask MeetingAgent to 'perform meeting analysis'. Run these two requests in parallel. " +
		"3) Once both agents have completed, take their results and ask ManagerAgent to synthesize the results " +
		"from both PRAgent and MeetingAgent. Return the final result from ManagerAgent."

	pollLogEvery = 10
)

var (
	// ErrGatewayUnavailable means the gateway refused the connection.
	ErrGatewayUnavailable = errors.New("sam gateway unavailable")
	// ErrRequestTimeout means a single gateway request exceeded the client timeout.
	ErrRequestTimeout = errors.New("sam gateway request timed out")
	// ErrPollTimeout matches every *PollTimeoutError.
	ErrPollTimeout = errors.New("task did not complete in time")
	// ErrNoTaskID means the gateway accepted the task without naming it.
	ErrNoTaskID = errors.New("no taskId returned from SAM Gateway")
)

// UpstreamError is an unexpected gateway status code, passed through to the caller.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("sam gateway status %d: %s", e.StatusCode, e.Body)
}

// PollTimeoutError reports a task still running after the last poll.
type PollTimeoutError struct {
	TaskID string
	Waited time.Duration
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("task %s did not complete within %g seconds", e.TaskID, e.Waited.Seconds())
}

func (e *PollTimeoutError) Is(target error) bool { return target == ErrPollTimeout }

// Result is the body returned by POST /api/agents/trigger.
type Result struct {
	Success     bool            `json:"success"`
	Result      string          `json:"result"`
	TaskID      string          `json:"task_id"`
	State       string          `json:"state"`
	RawResponse json.RawMessage `json:"raw_response,omitempty"`
}

// Client talks to one gateway.
type Client struct {
	baseURL  string
	interval time.Duration
	maxPolls int
	http     *http.Client
	logger   *zap.Logger
}

// New builds a client from cfg. A nil httpClient gets cfg's request timeout.
func New(cfg config.SAMConfig, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Duration(cfg.RequestTimeout) * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.GatewayURL, "/"),
		interval: time.Duration(cfg.PollIntervalSec) * time.Second,
		maxPolls: cfg.MaxPolls,
		http:     httpClient,
		logger:   logger.Named("sam"),
	}
}

// WithPollInterval returns a copy of c polling every d.
func (c *Client) WithPollInterval(d time.Duration) *Client {
	cp := *c
	cp.interval = d
	return &cp
}

// Trigger submits the orchestration task and waits for its result.
func (c *Client) Trigger(ctx context.Context) (Result, error) {
	taskID, err := c.submit(ctx, OrchestratorAgent, WorkflowPrompt)
	if err != nil {
		return Result{}, err
	}
	c.logger.Info("task submitted", zap.String("task_id", taskID), zap.Int("max_polls", c.maxPolls), zap.Duration("interval", c.interval))
	return c.wait(ctx, taskID)
}

func (c *Client) submit(ctx context.Context, agent, prompt string) (string, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("agent_name", agent); err != nil {
		return "", err
	}
	if err := form.WriteField("prompt", prompt); err != nil {
		return "", err
	}
	if err := form.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v2/tasks", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	resp, err := c.http.Do(req)
	if err != nil {
		return "", classify(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classify(err)
	}
	if resp.StatusCode != http.StatusAccepted {
		return "", &UpstreamError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	var accepted struct {
		TaskID string `json:"taskId"`
	}
	if err := json.Unmarshal(data, &accepted); err != nil {
		return "", fmt.Errorf("decode submit response: %w", err)
	}
	if accepted.TaskID == "" {
		return "", ErrNoTaskID
	}
	return accepted.TaskID, nil
}

func (c *Client) wait(ctx context.Context, taskID string) (Result, error) {
	for poll := 0; poll < c.maxPolls; poll++ {
		if poll > 0 {
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			case <-time.After(c.interval):
			}
		}
		if poll > 0 && poll%pollLogEvery == 0 {
			c.logger.Info("waiting for task", zap.String("task_id", taskID), zap.Int("poll", poll+1), zap.Int("max_polls", c.maxPolls))
		}

		status, data, err := c.poll(ctx, taskID)
		if err != nil {
			return Result{}, err
		}
		switch status {
		case http.StatusAccepted:
			continue
		case http.StatusOK:
			return parseTask(taskID, data)
		default:
			return Result{}, &UpstreamError{StatusCode: status, Body: string(data)}
		}
	}
	return Result{}, &PollTimeoutError{TaskID: taskID, Waited: time.Duration(c.maxPolls) * c.interval}
}

func (c *Client) poll(ctx context.Context, taskID string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v2/tasks/"+taskID, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, classify(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, classify(err)
	}
	return resp.StatusCode, data, nil
}

type part struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

type task struct {
	Status struct {
		State   string `json:"state"`
		Message *struct {
			Parts []part `json:"parts"`
		} `json:"message"`
	} `json:"status"`
	History []struct {
		Parts []part `json:"parts"`
	} `json:"history"`
}

// parseTask pulls the final text out of a finished task: the status message
// first, then the last history entry.
func parseTask(taskID string, data []byte) (Result, error) {
	var t task
	if err := json.Unmarshal(data, &t); err != nil {
		return Result{}, fmt.Errorf("decode task %s: %w", taskID, err)
	}
	state := t.Status.State
	if state == "" {
		state = "unknown"
	}
	var text string
	if t.Status.Message != nil {
		text = joinText(t.Status.Message.Parts)
	}
	if text == "" && len(t.History) > 0 {
		text = joinText(t.History[len(t.History)-1].Parts)
	}
	if text == "" {
		text = fmt.Sprintf("Task %s. See raw_response for details.", state)
	}
	return Result{
		Success:     state == "completed",
		Result:      text,
		TaskID:      taskID,
		State:       state,
		RawResponse: json.RawMessage(data),
	}, nil
}

func joinText(parts []part) string {
	var texts []string
	for _, p := range parts {
		if p.Kind == "text" {
			texts = append(texts, p.Text)
		}
	}
	return strings.TrimSpace(strings.Join(texts, " "))
}

// classify maps transport failures onto the package sentinels.
func classify(err error) error {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("%w (%v)", ErrGatewayUnavailable, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w (%v)", ErrRequestTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w (%v)", ErrRequestTimeout, err)
	}
	return err
}
