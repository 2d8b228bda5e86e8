package infra

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pi-benchmark/piseries/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStatsStore guarda uma linha por conexão encerrada.
type SQLiteStatsStore struct {
	db *sql.DB
}

func NewSQLiteStatsStore(path string) (*SQLiteStatsStore, error) {
	if strings.TrimSpace(path) == "" {
		path = "data/pi-stats.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir failed: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite failed: %w", err)
	}
	// um único writer evita SQLITE_BUSY com várias conexões gravando juntas
	db.SetMaxOpenConns(1)

	s := &SQLiteStatsStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStatsStore) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS connections (
			id INTEGER PRIMARY KEY,
			client_key TEXT NOT NULL,
			outcome TEXT NOT NULL,
			iterations INTEGER NOT NULL DEFAULT 0,
			duration_us INTEGER NOT NULL,
			at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_connections_outcome ON connections(outcome);`,
		`CREATE INDEX IF NOT EXISTS idx_connections_at ON connections(at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema failed: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO connections (client_key, outcome, iterations, duration_us, at) VALUES (?, ?, ?, ?, ?)",
		string(ev.Key), string(ev.Outcome), int64(ev.Iterations), ev.Duration.Microseconds(), at.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert connection failed: %w", err)
	}
	return nil
}

// Totals conta conexões por desfecho.
func (s *SQLiteStatsStore) Totals(ctx context.Context) (map[domain.Outcome]int64, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT outcome, COUNT(*) FROM connections GROUP BY outcome")
	if err != nil {
		return nil, fmt.Errorf("query totals failed: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.Outcome]int64)
	for rows.Next() {
		var outcome string
		var n int64
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		out[domain.Outcome(outcome)] = n
	}
	return out, rows.Err()
}

func (s *SQLiteStatsStore) Close() error { return s.db.Close() }
