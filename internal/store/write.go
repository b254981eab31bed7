package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/quenchlabs/quench/internal/report"
)

// WriteReport persists a completed run in a single transaction.
// The run row, its tests, and their assertions either all land or none do.
// Uses ON CONFLICT(id) DO NOTHING for idempotency on the run row, so
// writing the same run twice is a silent no-op.
func (s *Store) WriteReport(ctx context.Context, rep *report.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, title, passed, failed, total, runtime_ms)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rep.RunID,
		rep.Title,
		rep.Stats.Passed,
		rep.Stats.Failed,
		rep.Stats.Total,
		int64(rep.Stats.Runtime),
	)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	// Run already present: skip tests too, they were written with it.
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return tx.Commit()
	}

	for _, tr := range rep.Tests {
		if err := writeTest(ctx, tx, rep.RunID, tr); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func writeTest(ctx context.Context, tx *sql.Tx, runID string, tr report.TestResult) error {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO tests (run_id, name, module, skipped, passed, failed, total, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		tr.Name,
		tr.Module,
		boolToInt(tr.Skipped),
		tr.Passed,
		tr.Failed,
		tr.Total,
		int64(tr.Duration),
	)
	if err != nil {
		return fmt.Errorf("insert test %q: %w", tr.Name, err)
	}

	testID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert test %q: %w", tr.Name, err)
	}

	for _, a := range tr.Assertions {
		actual, err := marshalValue(a.Actual)
		if err != nil {
			return fmt.Errorf("insert assertion %d: %w", a.Seq, err)
		}
		expected, err := marshalValue(a.Expected)
		if err != nil {
			return fmt.Errorf("insert assertion %d: %w", a.Seq, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO assertions (test_id, seq, result, actual, expected, message)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			testID,
			a.Seq,
			boolToInt(a.Result),
			actual,
			expected,
			a.Message,
		)
		if err != nil {
			return fmt.Errorf("insert assertion %d: %w", a.Seq, err)
		}
	}

	return nil
}

// marshalValue serializes an assertion payload to JSON.
// nil maps to SQL NULL so absent payloads stay distinguishable from "null".
func marshalValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return string(b), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
