package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"stabledracor/internal/services"
)

const runColumns = "id, operation, corpus, source, state, outcome, copied, failed, excluded, expected, actual, error_message, started_at, finished_at"

// Record stores a run and its items. An empty ID is replaced with a new
// UUID and a zero FinishedAt with the current time. It returns the run ID.
func (s *Store) Record(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = s.now()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = run.FinishedAt
	}

	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, string(run.Operation), run.Corpus, run.Source, run.State, string(run.Outcome),
			run.Copied, run.Failed, run.Excluded, nullInt(run.Expected), nullInt(run.Actual),
			nullString(run.Error), formatTime(run.StartedAt), formatTime(run.FinishedAt),
		); err != nil {
			return err
		}
		for _, item := range run.Items {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO run_items (run_id, position, play, status, error_message) VALUES (?, ?, ?, ?, ?)`,
				run.ID, item.Position, item.Play, item.Status, nullString(item.Error),
			); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}
	return run.ID, nil
}

// List returns the most recent runs first, without items. An empty corpus
// lists all corpora; limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, corpus string, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if corpus = strings.TrimSpace(corpus); corpus != "" {
		query += ` WHERE corpus = ?`
		args = append(args, corpus)
	}
	query += ` ORDER BY started_at DESC, rowid DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Get returns one run with its items.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, services.Wrap(services.ErrNotFound, "journal", "get run", "no run "+id, nil)
	}
	if err != nil {
		return Run{}, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT position, play, status, error_message FROM run_items WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return Run{}, fmt.Errorf("load run items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			item   RunItem
			errMsg sql.NullString
		)
		if err := rows.Scan(&item.Position, &item.Play, &item.Status, &errMsg); err != nil {
			return Run{}, err
		}
		item.Error = errMsg.String
		run.Items = append(run.Items, item)
	}
	return run, rows.Err()
}

// FailedPlays returns the plays that failed in a run, in roster order.
func (s *Store) FailedPlays(ctx context.Context, id string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT play FROM run_items WHERE run_id = ? AND status = 'failed' ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed plays: %w", err)
	}
	defer rows.Close()
	var plays []string
	for rows.Next() {
		var play string
		if err := rows.Scan(&play); err != nil {
			return nil, err
		}
		plays = append(plays, play)
	}
	return plays, rows.Err()
}

// Stats counts runs by outcome.
func (s *Store) Stats(ctx context.Context) (map[services.Outcome]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(1) FROM runs GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("journal stats: %w", err)
	}
	defer rows.Close()
	stats := make(map[services.Outcome]int)
	for rows.Next() {
		var (
			outcome string
			count   int
		)
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, err
		}
		stats[services.Outcome(outcome)] = count
	}
	return stats, rows.Err()
}

// Prune removes runs that started before cutoff and reports how many.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, formatTime(cutoff))
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (Run, error) {
	var (
		run                   Run
		operation, outcome    string
		expected, actual      sql.NullInt64
		errMsg                sql.NullString
		startedRaw, finishRaw string
	)
	if err := scanner.Scan(&run.ID, &operation, &run.Corpus, &run.Source, &run.State, &outcome,
		&run.Copied, &run.Failed, &run.Excluded, &expected, &actual, &errMsg, &startedRaw, &finishRaw); err != nil {
		return Run{}, err
	}
	run.Operation = Operation(operation)
	run.Outcome = services.Outcome(outcome)
	run.Error = errMsg.String
	if expected.Valid {
		v := int(expected.Int64)
		run.Expected = &v
	}
	if actual.Valid {
		v := int(actual.Int64)
		run.Actual = &v
	}
	run.StartedAt = parseTime(startedRaw)
	run.FinishedAt = parseTime(finishRaw)
	return run, nil
}

// timeLayout has a fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
