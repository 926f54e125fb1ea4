// Package app wires the squire components together and runs them until the
// context is cancelled.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"squire/internal/agents"
	"squire/internal/broker"
	"squire/internal/config"
	"squire/internal/events"
	"squire/internal/gdocs"
	"squire/internal/github"
	"squire/internal/httpapi"
	"squire/internal/metrics"
	"squire/internal/notify"
	"squire/internal/queue"
	"squire/internal/reports"
	"squire/internal/sam"
	"squire/internal/store"
)

const shutdownGrace = 10 * time.Second

// RunOptions selects what a process runs. The zero value runs nothing but
// the queue; Serve runs the API and every agent.
type RunOptions struct {
	// Agents names the agents to register. Empty means none unless AllAgents.
	Agents    []string
	AllAgents bool
	HTTP      bool
}

// Serve is the default single-process mode.
var Serve = RunOptions{AllAgents: true, HTTP: true}

// App owns the long-lived components.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	store   *store.Store
	metrics *metrics.Metrics
	queue   *queue.Queue
	broker  broker.Client
	reports *reports.Store
	events  *events.Bus
	agents  agents.Set
	router  *httpapi.Router

	// addr receives the HTTP listener address once it is bound.
	addr chan string
}

// New opens the store and builds every component. Nothing runs until Run.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	m := metrics.New()
	q := queue.New(cfg.JobQueueSize, cfg.WorkerCount, cfg.JobTimeout(), queue.WithLogger(logger), queue.WithMetrics(m))
	bus := events.NewBus()
	b, err := broker.New(cfg, q, logger, m, broker.WithObserver(forwardTo(bus)))
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("start broker: %w", err)
	}

	rep := reports.New(cfg.DataDir, st, logger)
	gh := github.New(cfg.GitHub.APIURL, cfg.GitHub.Token, nil)
	docs := gdocs.NewReader("", nil)

	set := agents.Set{}
	for _, a := range []agents.Agent{
		agents.NewPRAgent(gh, cfg.GitHub.Owner, cfg.GitHub.Repo, b, logger),
		agents.NewMeetingAgent(docs, cfg.GoogleDocsURLs, b, logger),
		agents.NewTeamAgent(st, b, logger),
		agents.NewJoinAgent(b, logger),
		agents.NewManagerAgent(rep, b, m, logger),
		notify.NewGroupMe(cfg.GroupMe, nil, logger),
	} {
		set[a.Name()] = a
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Config:  cfg,
		Store:   st,
		Reports: rep,
		Broker:  b,
		SAM:     sam.New(cfg.SAM, nil, logger),
		Events:  bus,
		Queue:   q,
		Metrics: m,
		Logger:  logger,
	})

	return &App{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		metrics: m,
		queue:   q,
		broker:  b,
		reports: rep,
		events:  bus,
		agents:  set,
		router:  router,
		addr:    make(chan string, 1),
	}, nil
}

func (a *App) Agents() agents.Set { return a.agents }
func (a *App) Broker() broker.Client { return a.broker }
func (a *App) Store() *store.Store { return a.store }
func (a *App) Reports() *reports.Store { return a.reports }
func (a *App) Handler() http.Handler { return a.router.Handler() }

// Addr returns the bound HTTP address, waiting for the listener if needed.
func (a *App) Addr(ctx context.Context) (string, error) {
	select {
	case addr := <-a.addr:
		a.addr <- addr
		return addr, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Run starts the worker pool, subscribes the selected agents and serves HTTP
// when asked. It returns after ctx is cancelled and everything has stopped.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	a.queue.Start(workerCtx)

	names := opts.Agents
	if opts.AllAgents {
		names = a.agents.Names()
	}
	if len(names) > 0 {
		if err := a.agents.Register(a.broker, names...); err != nil {
			a.shutdown(stopWorkers)
			return err
		}
		a.logger.Info("agents registered", zap.Strings("agents", names))
	}

	g, gctx := errgroup.WithContext(ctx)
	if opts.HTTP {
		ln, err := net.Listen("tcp", a.cfg.HTTPPort)
		if err != nil {
			a.shutdown(stopWorkers)
			return fmt.Errorf("listen %s: %w", a.cfg.HTTPPort, err)
		}
		a.addr <- ln.Addr().String()
		// Requests inherit gctx so open event streams end when Run is cancelled.
		srv := &http.Server{
			Handler:           a.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return gctx },
		}
		g.Go(func() error {
			a.logger.Info("http listening", zap.String("addr", ln.Addr().String()))
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	err := g.Wait()
	a.shutdown(stopWorkers)
	return err
}

func (a *App) shutdown(stopWorkers context.CancelFunc) {
	if err := a.broker.Close(); err != nil {
		a.logger.Warn("close broker", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	a.queue.Stop(ctx)
	stopWorkers()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close store", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
}

// forwardTo copies every workflow message onto bus for SSE listeners. It runs
// inline with the publish, so frames keep pipeline order and cost no worker.
func forwardTo(bus *events.Bus) func(broker.Message) {
	return func(msg broker.Message) {
		var head struct {
			Agent  string `json:"agent"`
			Status string `json:"status"`
		}
		_ = json.Unmarshal(msg.Payload, &head)
		bus.Publish(events.Event{
			Topic:     msg.Topic,
			Agent:     head.Agent,
			Status:    head.Status,
			Timestamp: msg.Timestamp,
			Payload:   msg.Payload,
		})
	}
}
