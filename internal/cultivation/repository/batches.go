package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cultivation_backend/internal/cultivation/domain"
	"cultivation_backend/platform/apperr"
	"cultivation_backend/platform/db"

	"github.com/jackc/pgx/v5"
)

const batchColumns = `batch_id, farm_id, prepared_date, batch_sequence, strain_code, substrate_id,
	planned_baglet_count, created_by, created_at, is_deleted`

func scanBatch(row pgx.Row) (domain.Batch, error) {
	var b domain.Batch
	err := row.Scan(
		&b.BatchID, &b.FarmID, &b.PreparedDate, &b.BatchSequence, &b.StrainCode, &b.SubstrateID,
		&b.PlannedBagletCount, &b.CreatedBy, &b.CreatedAt, &b.IsDeleted,
	)
	return b, err
}

func batchScopeKey(farmID string, preparedDate time.Time) string {
	return "batch-sequence:" + farmID + ":" + preparedDate.Format(time.DateOnly)
}

// LockBatchScope takes a transaction-scoped advisory lock on (farm, date).
// Concurrent provisioning for the same scope waits here until the holder
// commits or rolls back.
func (s *queries) LockBatchScope(ctx context.Context, farmID string, preparedDate time.Time) error {
	if _, err := s.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, batchScopeKey(farmID, preparedDate)); err != nil {
		return fmt.Errorf("lock batch scope: %w", err)
	}
	return nil
}

// NextBatchSequence returns 1 + the highest sequence ever used for (farm,
// date). Soft-deleted batches count, so ids are never reused.
func (s *queries) NextBatchSequence(ctx context.Context, farmID string, preparedDate time.Time) (int, error) {
	query := `
		SELECT COALESCE(MAX(batch_sequence), 0) + 1
		FROM batches
		WHERE farm_id = $1 AND prepared_date = $2`

	var next int
	if err := s.q.QueryRow(ctx, query, farmID, preparedDate).Scan(&next); err != nil {
		return 0, fmt.Errorf("next batch sequence: %w", err)
	}
	return next, nil
}

// InsertBatch writes the batch row and returns its creation timestamp.
func (s *queries) InsertBatch(ctx context.Context, batch domain.Batch) (time.Time, error) {
	query := `
		INSERT INTO batches (batch_id, farm_id, prepared_date, batch_sequence, strain_code, substrate_id,
			planned_baglet_count, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`

	var createdAt time.Time
	if err := s.q.QueryRow(ctx, query,
		batch.BatchID, batch.FarmID, batch.PreparedDate, batch.BatchSequence, batch.StrainCode,
		batch.SubstrateID, batch.PlannedBagletCount, batch.CreatedBy,
	).Scan(&createdAt); err != nil {
		return time.Time{}, fmt.Errorf("insert batch: %w", err)
	}
	return createdAt, nil
}

// LockBatch loads a live batch and share-locks it so it cannot be
// soft-deleted while the caller's transaction is open.
func (s *queries) LockBatch(ctx context.Context, batchID string) (domain.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches WHERE batch_id = $1 AND NOT is_deleted FOR SHARE`

	b, err := scanBatch(s.q.QueryRow(ctx, query, batchID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Batch{}, apperr.NotFound(batchNotFoundMessage)
		}
		return domain.Batch{}, fmt.Errorf("lock batch: %w", err)
	}
	return b, nil
}

// GetBatch retrieves a live batch.
func (s *queries) GetBatch(ctx context.Context, batchID string) (domain.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches WHERE batch_id = $1 AND NOT is_deleted`

	b, err := scanBatch(s.q.QueryRow(ctx, query, batchID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Batch{}, apperr.NotFound(batchNotFoundMessage)
		}
		return domain.Batch{}, fmt.Errorf("get batch: %w", err)
	}
	return b, nil
}

// ListBatches lists live batches, newest first, with the unpaged total.
func (s *queries) ListBatches(ctx context.Context, params ListBatchesParams) ([]domain.Batch, int, error) {
	whereClauses := []string{"NOT is_deleted"}
	args := []interface{}{}
	argIdx := 1

	if params.FarmID != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("farm_id = $%d", argIdx))
		args = append(args, params.FarmID)
		argIdx++
	}
	if params.PreparedDate != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("prepared_date = $%d", argIdx))
		args = append(args, *params.PreparedDate)
		argIdx++
	}

	whereClause := strings.Join(whereClauses, " AND ")

	var total int
	if err := s.q.QueryRow(ctx, `SELECT COUNT(*) FROM batches WHERE `+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count batches: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM batches
		WHERE %s
		ORDER BY prepared_date DESC, farm_id, batch_sequence DESC
		LIMIT $%d OFFSET $%d`, batchColumns, whereClause, argIdx, argIdx+1)
	args = append(args, params.Limit, params.Offset)

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	batches := make([]domain.Batch, 0)
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan batch: %w", err)
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate batches: %w", err)
	}

	return batches, total, nil
}

// SoftDeleteBatch flags a batch and its baglets as deleted without touching
// their statuses or history. It returns how many baglets were flagged.
func (r *Repo) SoftDeleteBatch(ctx context.Context, batchID string) (int, error) {
	var flagged int
	err := db.WithTx(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE batches SET is_deleted = true WHERE batch_id = $1 AND NOT is_deleted`, batchID)
		if err != nil {
			return fmt.Errorf("soft delete batch: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperr.NotFound(batchNotFoundMessage)
		}

		tag, err = tx.Exec(ctx, `UPDATE baglets SET is_deleted = true WHERE batch_id = $1 AND NOT is_deleted`, batchID)
		if err != nil {
			return fmt.Errorf("soft delete baglets: %w", err)
		}
		flagged = int(tag.RowsAffected())
		return nil
	})
	return flagged, err
}
