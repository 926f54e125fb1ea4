// Package reports keeps the latest manager report where every squire process
// can read it, and appends each report to the SQLite history.
package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"squire/internal/config"
)

const (
	FileName        = "latest_report.json"
	StatusAvailable = "available"
)

// Envelope is the body served by GET /api/analysis/report.
type Envelope struct {
	Report    json.RawMessage `json:"report"`
	Timestamp string          `json:"timestamp"`
	Status    string          `json:"status"`
}

// History persists every saved report.
type History interface {
	RecordReport(ctx context.Context, reportJSON, status string, createdAt time.Time) (int64, error)
}

// Store holds the latest report on disk and in memory.
type Store struct {
	path    string
	history History
	logger  *zap.Logger
	now     func() time.Time

	mu     sync.RWMutex
	latest *Envelope
}

// New stores the report file under dataDir. history may be nil.
func New(dataDir string, history History, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		path:    filepath.Join(dataDir, FileName),
		history: history,
		logger:  logger.Named("reports"),
		now:     config.Now,
	}
}

// Path is the location of the shared report file.
func (s *Store) Path() string { return s.path }

// Save stamps report and makes it the latest. Only encoding errors are
// returned; the file and history writes are best effort.
func (s *Store) Save(ctx context.Context, report any) (Envelope, error) {
	raw, err := json.Marshal(report)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode report: %w", err)
	}
	ts := s.now()
	env := Envelope{Report: raw, Timestamp: ts.Format(time.RFC3339), Status: StatusAvailable}

	s.mu.Lock()
	s.latest = &env
	s.mu.Unlock()

	if err := s.writeFile(env); err != nil {
		s.logger.Error("write report file", zap.String("path", s.path), zap.Error(err))
	}
	if s.history != nil {
		if _, err := s.history.RecordReport(ctx, string(raw), StatusAvailable, ts); err != nil {
			s.logger.Error("record report history", zap.Error(err))
		}
	}
	s.logger.Info("report stored", zap.String("timestamp", env.Timestamp), zap.Int("bytes", len(raw)))
	return env, nil
}

// Latest returns the newest report, preferring the shared file so reports
// written by other processes are visible.
func (s *Store) Latest() (Envelope, bool) {
	env, err := s.readFile()
	if err == nil {
		s.mu.Lock()
		s.latest = &env
		s.mu.Unlock()
		return env, true
	}
	if !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("read report file", zap.String("path", s.path), zap.Error(err))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return Envelope{}, false
	}
	return *s.latest, true
}

// Clear drops the in-memory copy. The shared file is left alone.
func (s *Store) Clear() {
	s.mu.Lock()
	s.latest = nil
	s.mu.Unlock()
}

func (s *Store) writeFile(env Envelope) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) readFile() (Envelope, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Envelope{}, err
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode %s: %w", s.path, err)
	}
	if len(env.Report) == 0 || string(env.Report) == "null" {
		return Envelope{}, fmt.Errorf("%s has no report", s.path)
	}
	return env, nil
}
