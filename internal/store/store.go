package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store wraps SQLite access for team reviews and report history.
type Store struct {
	db *sql.DB
}

// Open creates the database file (and its directory) if missing and applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// modernc sqlite serialises writers; one connection avoids SQLITE_BUSY under the worker pool.
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS team_review (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            text TEXT NOT NULL,
            team_member TEXT,
            created_at TIMESTAMP
        );`,
		`CREATE INDEX IF NOT EXISTS idx_team_review_created ON team_review(created_at);`,
		`CREATE TABLE IF NOT EXISTS reports (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            report_json TEXT NOT NULL,
            status TEXT,
            created_at TIMESTAMP
        );`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// TeamReview is free-form feedback about a team member's work.
type TeamReview struct {
	ID         int64     `json:"id"`
	Text       string    `json:"text"`
	TeamMember string    `json:"team_member"`
	CreatedAt  time.Time `json:"created_at"`
}

// ReportRecord is one stored manager report.
type ReportRecord struct {
	ID         int64     `json:"id"`
	ReportJSON string    `json:"report_json"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// AddTeamReview inserts a review. An empty member is stored as "Anonymous".
func (s *Store) AddTeamReview(ctx context.Context, text, member string, ts time.Time) (*TeamReview, error) {
	if text == "" {
		return nil, errors.New("review text is required")
	}
	if member == "" {
		member = "Anonymous"
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO team_review(text, team_member, created_at) VALUES(?,?,?)`, text, member, ts)
	if err != nil {
		return nil, err
	}
	id, _ := res.LastInsertId()
	return &TeamReview{ID: id, Text: text, TeamMember: member, CreatedAt: ts}, nil
}

// LatestTeamReview returns the most recently created review or ErrNotFound.
func (s *Store) LatestTeamReview(ctx context.Context) (*TeamReview, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, text, team_member, created_at FROM team_review ORDER BY created_at DESC, id DESC LIMIT 1`)
	var r TeamReview
	var member sql.NullString
	switch err := row.Scan(&r.ID, &r.Text, &member, &r.CreatedAt); err {
	case nil:
		r.TeamMember = member.String
		return &r, nil
	case sql.ErrNoRows:
		return nil, ErrNotFound
	default:
		return nil, err
	}
}

func (s *Store) ListTeamReviews(ctx context.Context, limit int) ([]TeamReview, error) {
	// SQLite reads a negative LIMIT as no limit.
	if limit <= 0 {
		return nil, fmt.Errorf("list team reviews: limit must be positive, got %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, text, team_member, created_at FROM team_review ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TeamReview
	for rows.Next() {
		var r TeamReview
		var member sql.NullString
		if err := rows.Scan(&r.ID, &r.Text, &member, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.TeamMember = member.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecordReport appends a report to the history table.
func (s *Store) RecordReport(ctx context.Context, reportJSON, status string, ts time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO reports(report_json, status, created_at) VALUES(?,?,?)`, reportJSON, status, ts)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) ListReports(ctx context.Context, limit int) ([]ReportRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, report_json, status, created_at FROM reports ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ReportRecord
	for rows.Next() {
		var r ReportRecord
		var status sql.NullString
		if err := rows.Scan(&r.ID, &r.ReportJSON, &status, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Status = status.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// Health returns err if DB not reachable.
func (s *Store) Health(ctx context.Context) error {
	row := s.db.QueryRowContext(ctx, `SELECT 1`)
	var v int
	if err := row.Scan(&v); err != nil {
		return fmt.Errorf("db health: %w", err)
	}
	return nil
}
