package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/racebot/gorace/internal/domain"
)

// Store 巡检周期报告的 SQLite 存储
type Store struct {
	db *sql.DB
}

// Open 打开（必要时创建）报告库
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("打开周期报告库失败: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite：单连接更稳定

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`
CREATE TABLE IF NOT EXISTS cycle_reports (
  id TEXT PRIMARY KEY,
  started_at TEXT NOT NULL,
  duration_ms INTEGER NOT NULL,
  bots_total INTEGER NOT NULL,
  bots_ok INTEGER NOT NULL,
  bots_failed INTEGER NOT NULL,
  bots_skipped INTEGER NOT NULL,
  paid_cost TEXT NOT NULL,
  phases_json TEXT NOT NULL,
  actions_json TEXT NOT NULL,
  failures_json TEXT NOT NULL,
  evicted_json TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_cycle_reports_started ON cycle_reports(started_at DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// SaveReport 落库一份周期报告
func (s *Store) SaveReport(ctx context.Context, r *domain.CycleReport) error {
	phases, err := json.Marshal(r.Phases)
	if err != nil {
		return err
	}
	actions, err := json.Marshal(r.Actions)
	if err != nil {
		return err
	}
	failures, err := json.Marshal(r.Failures)
	if err != nil {
		return err
	}
	evicted, err := json.Marshal(r.Evicted)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO cycle_reports (id,started_at,duration_ms,bots_total,bots_ok,bots_failed,bots_skipped,paid_cost,phases_json,actions_json,failures_json,evicted_json)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
`, r.ID, r.StartedAt.Format(time.RFC3339Nano), r.Duration.Milliseconds(),
		r.BotsTotal, r.BotsOK, r.BotsFailed, r.BotsSkipped, r.PaidCost.String(),
		string(phases), string(actions), string(failures), string(evicted))
	if err != nil {
		return fmt.Errorf("insert cycle report: %w", err)
	}
	return nil
}

// ListReports 按开始时间倒序取最近 limit 条报告
func (s *Store) ListReports(ctx context.Context, limit int) ([]domain.CycleReport, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id,started_at,duration_ms,bots_total,bots_ok,bots_failed,bots_skipped,paid_cost,phases_json,actions_json,failures_json,evicted_json
FROM cycle_reports ORDER BY started_at DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CycleReport
	for rows.Next() {
		r, err := scanReport(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// GetReport 按 ID 取单条报告，不存在时返回 nil
func (s *Store) GetReport(ctx context.Context, id string) (*domain.CycleReport, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id,started_at,duration_ms,bots_total,bots_ok,bots_failed,bots_skipped,paid_cost,phases_json,actions_json,failures_json,evicted_json
FROM cycle_reports WHERE id=?
`, id)
	r, err := scanReport(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

func scanReport(scan func(dest ...any) error) (*domain.CycleReport, error) {
	var r domain.CycleReport
	var started, cost string
	var durationMs int64
	var phases, actions, failures, evicted string
	if err := scan(&r.ID, &started, &durationMs, &r.BotsTotal, &r.BotsOK, &r.BotsFailed, &r.BotsSkipped,
		&cost, &phases, &actions, &failures, &evicted); err != nil {
		return nil, err
	}
	r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	r.Duration = time.Duration(durationMs) * time.Millisecond
	r.PaidCost, _ = decimal.NewFromString(cost)
	if err := json.Unmarshal([]byte(phases), &r.Phases); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(actions), &r.Actions); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(failures), &r.Failures); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(evicted), &r.Evicted); err != nil {
		return nil, err
	}
	return &r, nil
}
