// Package httpapi serves the squire REST API: workflow control, the latest
// report, team reviews, the SAM trigger and an SSE feed of workflow events.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"squire/internal/config"
	"squire/internal/events"
	"squire/internal/metrics"
	"squire/internal/queue"
	"squire/internal/reports"
	"squire/internal/sam"
	"squire/internal/store"
	"squire/internal/workflow"
)

const (
	serviceName    = "squire-backend"
	serviceVersion = "0.1.0"

	defaultListLimit = 20
	maxListLimit     = 200
	maxBodyBytes     = 1 << 20

	noReportDetail = "No report available yet. Please trigger an analysis first via POST /api/analysis/start"
	startedMessage = "Analysis workflow started. PR Agent and Meeting Agent are analyzing in parallel."
)

// Publisher sends workflow events to the broker.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Orchestrator runs the agent mesh workflow through the SAM gateway.
type Orchestrator interface {
	Trigger(ctx context.Context) (sam.Result, error)
}

// Reports exposes the latest stored report.
type Reports interface {
	Latest() (reports.Envelope, bool)
}

// Deps are the collaborators a Router serves from. Queue, Metrics and Events
// may be nil.
type Deps struct {
	Config  config.Config
	Store   *store.Store
	Reports Reports
	Broker  Publisher
	SAM     Orchestrator
	Events  *events.Bus
	Queue   *queue.Queue
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Router builds HTTP handlers for /api and /ops.
type Router struct {
	cfg     config.Config
	store   *store.Store
	reports Reports
	broker  Publisher
	sam     Orchestrator
	events  *events.Bus
	queue   *queue.Queue
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewRouter(d Deps) *Router {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		cfg:     d.Config,
		store:   d.Store,
		reports: d.Reports,
		broker:  d.Broker,
		sam:     d.SAM,
		events:  d.Events,
		queue:   d.Queue,
		metrics: d.Metrics,
		logger:  logger.Named("http"),
	}
}

func (r *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", r.root)
	mux.HandleFunc("GET /health", r.health)
	mux.HandleFunc("POST /api/agents/trigger", r.trigger)
	mux.HandleFunc("POST /api/analysis/start", r.startAnalysis)
	mux.HandleFunc("GET /api/analysis/report", r.latestReport)
	mux.HandleFunc("GET /api/analysis/reports", r.reportHistory)
	mux.HandleFunc("GET /api/reviews", r.listReviews)
	mux.HandleFunc("POST /api/reviews", r.addReview)
	mux.HandleFunc("GET /api/events", r.streamEvents)
	mux.HandleFunc("GET /ops/status", r.status)
}

// Handler returns the routes wrapped in the standard middleware chain.
func (r *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	r.Register(mux)
	return Chain(mux, Recover(r.logger), CORS(r.cfg.CORSOrigins), RequestLogger(r.logger))
}

func (r *Router) root(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, r.logger, map[string]string{"message": "Squire API", "docs": "/docs", "health": "/health"})
}

func (r *Router) health(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, r.logger, map[string]string{"status": "healthy", "service": serviceName, "version": serviceVersion})
}

func (r *Router) trigger(w http.ResponseWriter, req *http.Request) {
	if r.sam == nil {
		errorJSON(w, r.logger, http.StatusServiceUnavailable, "SAM gateway is not configured")
		return
	}
	res, err := r.sam.Trigger(req.Context())
	if err != nil {
		status, detail := samError(err)
		r.logger.Warn("sam trigger failed", zap.Int("status", status), zap.Error(err))
		errorJSON(w, r.logger, status, detail)
		return
	}
	respondJSON(w, r.logger, res)
}

// samError maps a gateway failure to the status and detail returned to the caller.
func samError(err error) (int, string) {
	var upstream *sam.UpstreamError
	var pollTimeout *sam.PollTimeoutError
	switch {
	case errors.Is(err, sam.ErrGatewayUnavailable):
		return http.StatusServiceUnavailable, "Cannot connect to SAM REST Gateway. Make sure SAM is running on port 8080."
	case errors.As(err, &pollTimeout):
		return http.StatusGatewayTimeout, fmt.Sprintf("Task %s did not complete within %g seconds. Task may still be processing.", pollTimeout.TaskID, pollTimeout.Waited.Seconds())
	case errors.Is(err, sam.ErrRequestTimeout):
		return http.StatusGatewayTimeout, "Request to SAM Gateway timed out. The agents may still be processing."
	case errors.As(err, &upstream):
		// A non-error code from the gateway is still a failed trigger.
		status := upstream.StatusCode
		if status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		return status, "SAM Gateway error: " + upstream.Body
	case errors.Is(err, sam.ErrNoTaskID):
		return http.StatusInternalServerError, "No taskId returned from SAM Gateway"
	default:
		return http.StatusInternalServerError, "Error triggering agents: " + err.Error()
	}
}

type startRequest struct {
	PRCount     int      `json:"pr_count"`
	MeetingDocs []string `json:"meeting_docs"`
}

func (r *Router) startAnalysis(w http.ResponseWriter, req *http.Request) {
	var body startRequest
	if err := decodeOptional(req, &body); err != nil {
		errorJSON(w, r.logger, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	start := workflow.NewStart(body.PRCount, body.MeetingDocs)
	if err := r.broker.Publish(req.Context(), workflow.TopicStart, start); err != nil {
		r.logger.Error("publish start event", zap.Error(err))
		errorJSON(w, r.logger, http.StatusInternalServerError, "Error starting analysis workflow: "+err.Error())
		return
	}
	r.logger.Info("analysis workflow started", zap.Int("meeting_docs", len(body.MeetingDocs)))
	respondJSON(w, r.logger, map[string]string{"status": "success", "message": startedMessage})
}

func (r *Router) latestReport(w http.ResponseWriter, req *http.Request) {
	env, ok := r.reports.Latest()
	if !ok {
		errorJSON(w, r.logger, http.StatusNotFound, noReportDetail)
		return
	}
	respondJSON(w, r.logger, env)
}

type historyEntry struct {
	ID        int64           `json:"id"`
	Report    json.RawMessage `json:"report"`
	Status    string          `json:"status"`
	CreatedAt string          `json:"created_at"`
}

func (r *Router) reportHistory(w http.ResponseWriter, req *http.Request) {
	limit, err := parseLimit(req)
	if err != nil {
		errorJSON(w, r.logger, http.StatusBadRequest, err.Error())
		return
	}
	records, err := r.store.ListReports(req.Context(), limit)
	if err != nil {
		errorJSON(w, r.logger, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]historyEntry, 0, len(records))
	for _, rec := range records {
		out = append(out, historyEntry{
			ID:        rec.ID,
			Report:    json.RawMessage(rec.ReportJSON),
			Status:    rec.Status,
			CreatedAt: rec.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	respondJSON(w, r.logger, map[string]any{"reports": out, "count": len(out)})
}

func (r *Router) listReviews(w http.ResponseWriter, req *http.Request) {
	limit, err := parseLimit(req)
	if err != nil {
		errorJSON(w, r.logger, http.StatusBadRequest, err.Error())
		return
	}
	list, err := r.store.ListTeamReviews(req.Context(), limit)
	if err != nil {
		errorJSON(w, r.logger, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []store.TeamReview{}
	}
	respondJSON(w, r.logger, map[string]any{"reviews": list, "count": len(list)})
}

func (r *Router) addReview(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Text       string `json:"text"`
		TeamMember string `json:"team_member"`
	}
	if err := decodeOptional(req, &body); err != nil {
		errorJSON(w, r.logger, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		errorJSON(w, r.logger, http.StatusBadRequest, "text is required")
		return
	}
	review, err := r.store.AddTeamReview(req.Context(), body.Text, strings.TrimSpace(body.TeamMember), config.Now())
	if err != nil {
		errorJSON(w, r.logger, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(review); err != nil {
		r.logger.Warn("write json", zap.Error(err))
	}
}

func (r *Router) status(w http.ResponseWriter, req *http.Request) {
	db := "ok"
	if err := r.store.Health(req.Context()); err != nil {
		db = err.Error()
	}
	body := map[string]any{
		"service":  serviceName,
		"version":  serviceVersion,
		"env":      r.cfg.Env,
		"database": db,
		"broker":   map[string]any{"mode": "stub", "dir": r.cfg.DataDir, "solace_host": r.cfg.Solace.Host},
	}
	if r.queue != nil {
		body["queue"] = r.queue.Stats()
		body["queue_healthy"] = r.queue.Healthy()
	}
	if r.metrics != nil {
		body["metrics"] = r.metrics.Snapshot()
	}
	if r.events != nil {
		body["event_listeners"] = r.events.Subscribers()
	}
	if env, ok := r.reports.Latest(); ok {
		body["latest_report"] = env.Timestamp
	}
	if len(r.cfg.Warnings) > 0 {
		body["config_warnings"] = r.cfg.Warnings
	}
	respondJSON(w, r.logger, body)
}

// decodeOptional decodes a JSON body into v, treating an empty body as {}.
func decodeOptional(req *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(req.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func parseLimit(req *http.Request) (int, error) {
	raw := req.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	return min(n, maxListLimit), nil
}

func respondJSON(w http.ResponseWriter, logger *zap.Logger, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Warn("write json", zap.Error(err))
	}
}

// errorJSON writes {"detail": ...} with status.
func errorJSON(w http.ResponseWriter, logger *zap.Logger, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"detail": detail}); err != nil {
		logger.Warn("write json", zap.Error(err))
	}
}
