// Package store persists evaluations, runs, items, summaries, the query
// attempt log and report leads in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/goaiso/brandrank/internal/evaluation"
)

const schema = `
CREATE TABLE IF NOT EXISTS evaluations (
	id           TEXT PRIMARY KEY,
	product_type TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'PENDING',
	country      TEXT NOT NULL DEFAULT '',
	location     TEXT NOT NULL DEFAULT '',
	created_at   TEXT NOT NULL,
	completed_at TEXT
);

CREATE TABLE IF NOT EXISTS criteria (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	evaluation_id TEXT NOT NULL REFERENCES evaluations(id) ON DELETE CASCADE,
	name          TEXT NOT NULL,
	order_index   INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS prompt_runs (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	evaluation_id TEXT NOT NULL REFERENCES evaluations(id) ON DELETE CASCADE,
	phase         TEXT NOT NULL,
	criterion_id  INTEGER REFERENCES criteria(id) ON DELETE SET NULL,
	prompt_text   TEXT NOT NULL,
	response_raw  TEXT NOT NULL DEFAULT '',
	sources       TEXT NOT NULL DEFAULT '[]',
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ranking_items (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id   INTEGER NOT NULL REFERENCES prompt_runs(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	brand    TEXT NOT NULL DEFAULT '',
	model    TEXT NOT NULL DEFAULT '',
	raw_text TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS ranking_summaries (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	evaluation_id TEXT NOT NULL REFERENCES evaluations(id) ON DELETE CASCADE,
	phase         TEXT NOT NULL,
	criterion_id  INTEGER REFERENCES criteria(id) ON DELETE SET NULL,
	brand         TEXT NOT NULL,
	score         INTEGER NOT NULL DEFAULT 0,
	share         REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS query_attempts (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	ts              TEXT NOT NULL,
	model           TEXT NOT NULL DEFAULT '',
	phase           TEXT NOT NULL DEFAULT '',
	criterion       TEXT NOT NULL DEFAULT '',
	evaluation_id   TEXT NOT NULL DEFAULT '',
	attempt         INTEGER NOT NULL DEFAULT 1,
	elapsed_seconds REAL NOT NULL DEFAULT 0,
	valid           INTEGER NOT NULL DEFAULT 0,
	prompt          TEXT NOT NULL DEFAULT '',
	output_text     TEXT NOT NULL DEFAULT '',
	sources         TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS leads (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	evaluation_id TEXT NOT NULL REFERENCES evaluations(id) ON DELETE CASCADE,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL,
	phone         TEXT NOT NULL DEFAULT '',
	created_at    TEXT NOT NULL
);
`

// SQLite implements evaluation.Store and evaluation.AttemptSink on a single
// SQLite file. The run mutex implements the single-flight lock: it guards
// only the cheap status-flip-and-reset transaction, never the query phase.
type SQLite struct {
	db    *sqlx.DB
	runMu sync.Mutex
}

var (
	_ evaluation.Store       = (*SQLite)(nil)
	_ evaluation.AttemptSink = (*SQLite)(nil)
)

func Open(dbPath string) (*SQLite, error) {
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// --- evaluations ---

func (s *SQLite) CreateEvaluation(ctx context.Context, ev *evaluation.Evaluation) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO evaluations (id, product_type, status, country, location, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.ProductType, ev.Status, ev.Country, ev.Location, formatTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert evaluation: %w", err)
	}
	for i := range ev.Criteria {
		c := &ev.Criteria[i]
		res, err := tx.ExecContext(ctx,
			`INSERT INTO criteria (evaluation_id, name, order_index) VALUES (?, ?, ?)`,
			ev.ID, c.Name, c.OrderIndex)
		if err != nil {
			return fmt.Errorf("insert criterion: %w", err)
		}
		c.ID, _ = res.LastInsertId()
		c.EvaluationID = ev.ID
	}
	return tx.Commit()
}

func (s *SQLite) GetEvaluation(ctx context.Context, id string) (*evaluation.Evaluation, error) {
	var row struct {
		ID          string         `db:"id"`
		ProductType string         `db:"product_type"`
		Status      string         `db:"status"`
		Country     string         `db:"country"`
		Location    string         `db:"location"`
		CreatedAt   string         `db:"created_at"`
		CompletedAt sql.NullString `db:"completed_at"`
	}
	err := s.db.GetContext(ctx, &row, `SELECT id, product_type, status, country, location, created_at, completed_at FROM evaluations WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, evaluation.NewNotFoundError(id)
	}
	if err != nil {
		return nil, fmt.Errorf("select evaluation: %w", err)
	}

	ev := &evaluation.Evaluation{
		ID:          row.ID,
		ProductType: row.ProductType,
		Status:      evaluation.Status(row.Status),
		Country:     row.Country,
		Location:    row.Location,
		CreatedAt:   parseTime(row.CreatedAt),
	}
	if row.CompletedAt.Valid && row.CompletedAt.String != "" {
		t := parseTime(row.CompletedAt.String)
		ev.CompletedAt = &t
	}

	if err := s.db.SelectContext(ctx, &ev.Criteria,
		`SELECT id, evaluation_id, name, order_index FROM criteria WHERE evaluation_id = ? ORDER BY order_index`, id); err != nil {
		return nil, fmt.Errorf("select criteria: %w", err)
	}
	return ev, nil
}

func (s *SQLite) ListEvaluations(ctx context.Context) ([]evaluation.Evaluation, error) {
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, `SELECT id FROM evaluations ORDER BY created_at DESC, id`); err != nil {
		return nil, fmt.Errorf("select evaluations: %w", err)
	}
	out := make([]evaluation.Evaluation, 0, len(ids))
	for _, id := range ids {
		ev, err := s.GetEvaluation(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *ev)
	}
	return out, nil
}

// --- run lifecycle ---

func (s *SQLite) BeginProcessing(ctx context.Context, id string) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var status string
	err = tx.GetContext(ctx, &status, `SELECT status FROM evaluations WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return evaluation.NewNotFoundError(id)
	}
	if err != nil {
		return fmt.Errorf("select status: %w", err)
	}
	if evaluation.Status(status) == evaluation.StatusProcessing {
		return evaluation.NewConflictError(id)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE evaluations SET status = ?, completed_at = NULL WHERE id = ?`,
		evaluation.StatusProcessing, id); err != nil {
		return fmt.Errorf("set processing: %w", err)
	}
	// Idempotent reset: ranking_items cascade with their runs.
	if _, err := tx.ExecContext(ctx, `DELETE FROM prompt_runs WHERE evaluation_id = ?`, id); err != nil {
		return fmt.Errorf("reset runs: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM ranking_summaries WHERE evaluation_id = ?`, id); err != nil {
		return fmt.Errorf("reset summaries: %w", err)
	}
	return tx.Commit()
}

func (s *SQLite) FinishProcessing(ctx context.Context, id string, status evaluation.Status, completedAt *time.Time) error {
	var completed any
	if completedAt != nil {
		completed = formatTime(*completedAt)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE evaluations SET status = ?, completed_at = ? WHERE id = ?`,
		status, completed, id)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return evaluation.NewNotFoundError(id)
	}
	return nil
}

// --- runs and items ---

func (s *SQLite) CreateRun(ctx context.Context, run *evaluation.PromptRun, items []evaluation.ParsedItem) error {
	sources, err := json.Marshal(run.Sources)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO prompt_runs (evaluation_id, phase, criterion_id, prompt_text, response_raw, sources, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.EvaluationID, run.Phase, run.CriterionID, run.PromptText, run.ResponseRaw, string(sources), formatTime(run.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	run.ID, _ = res.LastInsertId()

	for _, item := range items {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ranking_items (run_id, position, brand, model, raw_text) VALUES (?, ?, ?, ?, ?)`,
			run.ID, item.Position, item.Brand, item.Model, item.RawText); err != nil {
			return fmt.Errorf("insert item: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) ListRuns(ctx context.Context, evaluationID string, phase evaluation.Phase, criterionID *int64) ([]evaluation.PromptRun, error) {
	builder := sq.Select("id", "evaluation_id", "phase", "criterion_id", "prompt_text", "response_raw", "sources", "created_at").
		From("prompt_runs").
		Where(sq.Eq{"evaluation_id": evaluationID, "phase": phase}).
		OrderBy("created_at", "id")
	if criterionID != nil {
		builder = builder.Where(sq.Eq{"criterion_id": *criterionID})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build runs query: %w", err)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	defer rows.Close()

	var out []evaluation.PromptRun
	for rows.Next() {
		var run evaluation.PromptRun
		var criterion sql.NullInt64
		var sources, createdAt string
		if err := rows.Scan(&run.ID, &run.EvaluationID, &run.Phase, &criterion, &run.PromptText, &run.ResponseRaw, &sources, &createdAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if criterion.Valid {
			v := criterion.Int64
			run.CriterionID = &v
		}
		_ = json.Unmarshal([]byte(sources), &run.Sources)
		run.CreatedAt = parseTime(createdAt)
		out = append(out, run)
	}
	return out, rows.Err()
}

func (s *SQLite) ListRunItems(ctx context.Context, runID int64) ([]evaluation.RankingItem, error) {
	var items []evaluation.RankingItem
	err := s.db.SelectContext(ctx, &items,
		`SELECT id, run_id, position, brand, model, raw_text FROM ranking_items WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("select run items: %w", err)
	}
	return items, nil
}

func (s *SQLite) ListItems(ctx context.Context, evaluationID string, phase evaluation.Phase, criterionID *int64) ([]evaluation.RankingItem, error) {
	builder := sq.Select("i.id", "i.run_id", "i.position", "i.brand", "i.model", "i.raw_text").
		From("ranking_items i").
		Join("prompt_runs r ON r.id = i.run_id").
		Where(sq.Eq{"r.evaluation_id": evaluationID, "r.phase": phase}).
		OrderBy("r.created_at", "r.id", "i.position")
	if criterionID != nil {
		builder = builder.Where(sq.Eq{"r.criterion_id": *criterionID})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build items query: %w", err)
	}

	var items []evaluation.RankingItem
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}
	return items, nil
}

// --- summaries ---

func (s *SQLite) ReplaceSummaries(ctx context.Context, evaluationID string, phase evaluation.Phase, criterionID *int64, summaries []evaluation.RankingSummary) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	del := sq.Delete("ranking_summaries").Where(sq.Eq{"evaluation_id": evaluationID, "phase": phase})
	if criterionID != nil {
		del = del.Where(sq.Eq{"criterion_id": *criterionID})
	} else {
		del = del.Where(sq.Eq{"criterion_id": nil})
	}
	query, args, err := del.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete summaries: %w", err)
	}

	for _, row := range summaries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ranking_summaries (evaluation_id, phase, criterion_id, brand, score, share) VALUES (?, ?, ?, ?, ?, ?)`,
			evaluationID, phase, criterionID, row.Brand, row.Score, row.Share); err != nil {
			return fmt.Errorf("insert summary: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) ListSummaries(ctx context.Context, evaluationID string, phase evaluation.Phase, criterionID *int64) ([]evaluation.RankingSummary, error) {
	builder := sq.Select("id", "evaluation_id", "phase", "criterion_id", "brand", "score", "share").
		From("ranking_summaries").
		Where(sq.Eq{"evaluation_id": evaluationID, "phase": phase}).
		OrderBy("score DESC", "id")
	if criterionID != nil {
		builder = builder.Where(sq.Eq{"criterion_id": *criterionID})
	} else {
		builder = builder.Where(sq.Eq{"criterion_id": nil})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build summaries query: %w", err)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select summaries: %w", err)
	}
	defer rows.Close()

	var out []evaluation.RankingSummary
	for rows.Next() {
		var row evaluation.RankingSummary
		var criterion sql.NullInt64
		if err := rows.Scan(&row.ID, &row.EvaluationID, &row.Phase, &criterion, &row.Brand, &row.Score, &row.Share); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		if criterion.Valid {
			v := criterion.Int64
			row.CriterionID = &v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// --- attempt log ---

func (s *SQLite) AppendAttempt(ctx context.Context, a evaluation.Attempt) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO query_attempts (ts, model, phase, criterion, evaluation_id, attempt, elapsed_seconds, valid, prompt, output_text, sources)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		formatTime(a.Timestamp), a.Model, a.Phase, a.Criterion, a.EvaluationID, a.Attempt, a.Elapsed, boolInt(a.Valid), a.Prompt, a.Output, a.Sources)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (s *SQLite) ListAttempts(ctx context.Context, evaluationID string) ([]evaluation.Attempt, error) {
	builder := sq.Select("ts", "model", "phase", "criterion", "evaluation_id", "attempt", "elapsed_seconds", "valid", "prompt", "output_text", "sources").
		From("query_attempts").
		OrderBy("id")
	if evaluationID != "" {
		builder = builder.Where(sq.Eq{"evaluation_id": evaluationID})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build attempts query: %w", err)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select attempts: %w", err)
	}
	defer rows.Close()

	var out []evaluation.Attempt
	for rows.Next() {
		var a evaluation.Attempt
		var ts string
		var valid int
		if err := rows.Scan(&ts, &a.Model, &a.Phase, &a.Criterion, &a.EvaluationID, &a.Attempt, &a.Elapsed, &valid, &a.Prompt, &a.Output, &a.Sources); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Timestamp = parseTime(ts)
		a.Valid = valid != 0
		out = append(out, a)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
