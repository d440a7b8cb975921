package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/leadpilot/leadpilot/internal/models"
)

// SaveSyncRun сохраняет итог прогона синхронизации, затирая предыдущий:
// долговременная история прогонов не ведётся.
func (s *Storage) SaveSyncRun(ctx context.Context, run models.SyncRun) error {
	const op = "storage.SaveSyncRun"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO sync_runs (account_uid, source_url, ran_at, added, skipped, failed, limit_reached)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  ON CONFLICT (account_uid)
			  DO UPDATE SET source_url = EXCLUDED.source_url,
			      ran_at = EXCLUDED.ran_at,
			      added = EXCLUDED.added,
			      skipped = EXCLUDED.skipped,
			      failed = EXCLUDED.failed,
			      limit_reached = EXCLUDED.limit_reached;`
	if _, err := s.DB.ExecContext(ctx, query, run.AccountUID, run.SourceURL, run.RanAt,
		run.Added, run.Skipped, run.Failed, run.LimitReached); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetLastSyncRun возвращает итог последнего прогона синхронизации
// или (nil, nil), если прогонов ещё не было.
func (s *Storage) GetLastSyncRun(ctx context.Context, accountUID string) (*models.SyncRun, error) {
	const op = "storage.GetLastSyncRun"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	run := &models.SyncRun{}
	query := `SELECT account_uid, source_url, ran_at, added, skipped, failed, limit_reached
			  FROM sync_runs
			  WHERE account_uid = $1`
	err := s.DB.QueryRowContext(ctx, query, accountUID).Scan(&run.AccountUID, &run.SourceURL,
		&run.RanAt, &run.Added, &run.Skipped, &run.Failed, &run.LimitReached)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return run, nil
}
