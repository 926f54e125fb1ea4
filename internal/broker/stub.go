package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"squire/internal/metrics"
	"squire/internal/queue"
)

const (
	defaultPollInterval  = 500 * time.Millisecond
	defaultRetention     = 2 * time.Second
	defaultMaxAge        = time.Minute
	defaultEnqueueWindow = 2 * time.Second
	enqueueRetryInterval = 50 * time.Millisecond
)

// Stub delivers every publish to handlers registered in this process and
// writes it to <dir>/<topic>/<id>.json for handlers in other processes.
//
// A message file is handled at most once per process. Files a process wrote
// itself are never read back. Files are removed by whichever process sees
// them after the retention window, and files older than the max age are
// dropped unread.
type Stub struct {
	dir       string
	q         *queue.Queue
	logger    *zap.Logger
	metrics   *metrics.Metrics
	poll      time.Duration
	retention time.Duration
	maxAge    time.Duration
	window    time.Duration
	observe   func(Message)

	mu       sync.RWMutex
	handlers map[string][]Handler
	watched  map[string]string // topic dir -> topic

	seenMu sync.Mutex
	seen   map[string]time.Time

	watcher   *fsnotify.Watcher
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// StubOption customises a Stub.
type StubOption func(*Stub)

func WithLogger(l *zap.Logger) StubOption {
	return func(s *Stub) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) StubOption {
	return func(s *Stub) { s.metrics = m }
}

// WithPollInterval sets how often topic directories are rescanned in case a
// filesystem event was missed.
func WithPollInterval(d time.Duration) StubOption {
	return func(s *Stub) {
		if d > 0 {
			s.poll = d
		}
	}
}

// WithRetention sets how long handled files stay on disk for other processes.
func WithRetention(d time.Duration) StubOption {
	return func(s *Stub) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithMaxAge sets the age past which unread files are discarded.
func WithMaxAge(d time.Duration) StubOption {
	return func(s *Stub) {
		if d > 0 {
			s.maxAge = d
		}
	}
}

// WithObserver calls fn with every message this process publishes or reads
// from another process, in the order they arrive and before any handler job
// is queued. fn runs on the publishing goroutine and must not block.
func WithObserver(fn func(Message)) StubOption {
	return func(s *Stub) { s.observe = fn }
}

// NewStub opens the queue directory and starts its watcher.
func NewStub(dir string, q *queue.Queue, opts ...StubOption) (*Stub, error) {
	if q == nil {
		return nil, errors.New("stub broker needs a worker queue")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create queue dir: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Stub{
		dir:       dir,
		q:         q,
		logger:    zap.NewNop(),
		poll:      defaultPollInterval,
		retention: defaultRetention,
		maxAge:    defaultMaxAge,
		window:    defaultEnqueueWindow,
		handlers:  map[string][]Handler{},
		watched:   map[string]string{},
		seen:      map[string]time.Time{},
		watcher:   watcher,
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("broker")

	s.wg.Add(1)
	go s.loop()
	return s, nil
}

// Publish delivers payload to local subscribers and to the file queue.
func (s *Stub) Publish(ctx context.Context, topic string, payload any) error {
	if s.ctx.Err() != nil {
		return fmt.Errorf("publish %s: broker closed", topic)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", topic, err)
	}
	msg := Message{
		ID:        uuid.NewString(),
		Topic:     topic,
		Payload:   data,
		Timestamp: time.Now().UTC(),
	}
	s.markSeen(msg.ID)

	s.notify(msg)
	s.dispatch(msg)
	if err := s.writeFile(msg); err != nil {
		s.logger.Error("write message file", zap.String("topic", topic), zap.Error(err))
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	if s.metrics != nil {
		s.metrics.RecordPublish()
	}
	s.logger.Debug("published", zap.String("topic", topic), zap.String("id", msg.ID), zap.Int("bytes", len(data)))
	return nil
}

// Subscribe registers h for topic. The first subscription to a topic starts
// watching its directory and picks up files already waiting there.
func (s *Stub) Subscribe(topic string, h Handler) error {
	if h == nil {
		return errors.New("nil handler")
	}
	dir := s.topicDir(topic)

	s.mu.Lock()
	s.handlers[topic] = append(s.handlers[topic], h)
	_, watching := s.watched[dir]
	if !watching {
		s.watched[dir] = topic
	}
	s.mu.Unlock()

	if watching {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create topic dir: %w", err)
	}
	if err := s.watcher.Add(dir); err != nil {
		// The rescan ticker still covers this directory.
		s.logger.Warn("watch topic dir", zap.String("dir", dir), zap.Error(err))
	}
	s.scanDir(dir, true)
	s.logger.Info("subscribed", zap.String("topic", topic))
	return nil
}

// Close stops the watcher. Jobs already queued still run on the queue.
func (s *Stub) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		err = s.watcher.Close()
		s.wg.Wait()
	})
	return err
}

func (s *Stub) loop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case evt, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if evt.Op&(fsnotify.Create|fsnotify.Write) != 0 && isMessageFile(evt.Name) {
				s.handleFile(evt.Name)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("watcher error", zap.Error(err))
		case <-ticker.C:
			s.rescan()
		}
	}
}

func (s *Stub) notify(msg Message) {
	if s.observe != nil {
		s.observe(msg)
	}
}

func (s *Stub) dispatch(msg Message) {
	s.mu.RLock()
	handlers := append([]Handler(nil), s.handlers[msg.Topic]...)
	s.mu.RUnlock()

	for i, h := range handlers {
		job := queue.Job{
			ID:     fmt.Sprintf("%s#%d", msg.ID, i),
			Source: msg.Topic,
			Work:   func(ctx context.Context) error { return h(ctx, msg) },
		}
		enqueued, _ := s.q.EnqueueWithRetry(s.ctx, job, s.window, enqueueRetryInterval)
		if enqueued && s.metrics != nil {
			s.metrics.RecordDelivery()
		}
	}
}

// handleFile delivers one message file unless this process has seen it.
func (s *Stub) handleFile(path string) {
	id := strings.TrimSuffix(filepath.Base(path), ".json")
	if !s.markSeen(id) {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("read message file", zap.String("path", path), zap.Error(err))
		}
		return
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Warn("decode message file", zap.String("path", path), zap.Error(err))
		return
	}
	if msg.ID == "" {
		msg.ID = id
	}
	if !msg.Timestamp.IsZero() && time.Since(msg.Timestamp) > s.maxAge {
		s.logger.Debug("skipping stale message", zap.String("topic", msg.Topic), zap.String("id", id))
		return
	}
	s.notify(msg)
	s.dispatch(msg)
}

// rescan picks up files whose events were missed and prunes old files from
// every topic directory, subscribed or not.
func (s *Stub) rescan() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Warn("scan queue dir", zap.Error(err))
		return
	}
	s.mu.RLock()
	watched := make(map[string]bool, len(s.watched))
	for dir := range s.watched {
		watched[dir] = true
	}
	s.mu.RUnlock()

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(s.dir, e.Name())
		s.scanDir(dir, watched[dir])
	}
	s.pruneSeen()
}

func (s *Stub) scanDir(dir string, deliver bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("scan topic dir", zap.String("dir", dir), zap.Error(err))
		}
		return
	}
	now := time.Now()
	for _, e := range entries {
		if e.IsDir() || !isMessageFile(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		info, err := e.Info()
		if err != nil {
			continue
		}
		age := now.Sub(info.ModTime())
		id := strings.TrimSuffix(e.Name(), ".json")
		switch {
		case age > s.maxAge:
			s.remove(path)
		case s.wasSeen(id):
			if age > s.retention {
				s.remove(path)
			}
		case deliver:
			s.handleFile(path)
		}
	}
}

func (s *Stub) writeFile(msg Message) error {
	dir := s.topicDir(msg.Topic)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	// Write then rename so readers never see a partial file.
	tmp := filepath.Join(dir, "."+msg.ID+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(dir, msg.ID+".json"))
}

func (s *Stub) remove(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Debug("remove message file", zap.String("path", path), zap.Error(err))
	}
}

// markSeen records id and reports whether it was new.
func (s *Stub) markSeen(id string) bool {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = time.Now()
	return true
}

func (s *Stub) wasSeen(id string) bool {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()
	_, ok := s.seen[id]
	return ok
}

// pruneSeen forgets IDs whose files are past the max age and thus gone.
func (s *Stub) pruneSeen() {
	cutoff := time.Now().Add(-2 * s.maxAge)
	s.seenMu.Lock()
	defer s.seenMu.Unlock()
	for id, at := range s.seen {
		if at.Before(cutoff) {
			delete(s.seen, id)
		}
	}
}

func (s *Stub) topicDir(topic string) string {
	return filepath.Join(s.dir, strings.ReplaceAll(topic, "/", "_"))
}

func isMessageFile(name string) bool {
	base := filepath.Base(name)
	return strings.HasSuffix(base, ".json") && !strings.HasPrefix(base, ".")
}
