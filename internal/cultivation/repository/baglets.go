package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"cultivation_backend/internal/cultivation/domain"
	"cultivation_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
)

const bagletColumns = `baglet_id, batch_id, baglet_sequence, current_status, status_changed_at,
	latest_weight_g, latest_temperature_c, latest_humidity_pct, latest_ph, last_observed_at,
	contamination_flag, is_deleted, created_at`

func scanBaglet(row pgx.Row) (domain.Baglet, error) {
	var (
		b      domain.Baglet
		status string
	)
	if err := row.Scan(
		&b.BagletID, &b.BatchID, &b.BagletSequence, &status, &b.StatusChangedAt,
		&b.Metrics.WeightG, &b.Metrics.TemperatureC, &b.Metrics.HumidityPct, &b.Metrics.PH, &b.Metrics.LastObservedAt,
		&b.ContaminationFlag, &b.IsDeleted, &b.CreatedAt,
	); err != nil {
		return domain.Baglet{}, err
	}

	parsed, err := domain.ParseStatus(status)
	if err != nil {
		return domain.Baglet{}, fmt.Errorf("baglet %s: %w", b.BagletID, err)
	}
	b.CurrentStatus = parsed
	return b, nil
}

// InsertBaglets bulk-writes provisioned baglets with COPY.
func (s *queries) InsertBaglets(ctx context.Context, baglets []NewBaglet) error {
	rows := make([][]any, len(baglets))
	for i, b := range baglets {
		rows[i] = []any{b.BagletID, b.BatchID, b.BagletSequence, b.Status.String()}
	}

	n, err := s.q.CopyFrom(ctx,
		pgx.Identifier{"baglets"},
		[]string{"baglet_id", "batch_id", "baglet_sequence", "current_status"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("insert baglets: %w", err)
	}
	if int(n) != len(baglets) {
		return fmt.Errorf("insert baglets: wrote %d of %d rows", n, len(baglets))
	}
	return nil
}

// GetBaglet retrieves a baglet, soft-deleted or not. Callers decide how to
// treat IsDeleted.
func (s *queries) GetBaglet(ctx context.Context, bagletID string) (domain.Baglet, error) {
	query := `SELECT ` + bagletColumns + ` FROM baglets WHERE baglet_id = $1`

	b, err := scanBaglet(s.q.QueryRow(ctx, query, bagletID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Baglet{}, apperr.NotFound(bagletNotFoundMessage)
		}
		return domain.Baglet{}, fmt.Errorf("get baglet: %w", err)
	}
	return b, nil
}

// LockBaglet loads a live baglet and locks its row for the rest of the
// transaction.
func (s *queries) LockBaglet(ctx context.Context, bagletID string) (domain.Baglet, error) {
	query := `SELECT ` + bagletColumns + ` FROM baglets WHERE baglet_id = $1 AND NOT is_deleted FOR UPDATE`

	b, err := scanBaglet(s.q.QueryRow(ctx, query, bagletID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Baglet{}, apperr.NotFound(bagletNotFoundMessage)
		}
		return domain.Baglet{}, fmt.Errorf("lock baglet: %w", err)
	}
	return b, nil
}

// ListBaglets lists the live baglets of a batch in sequence order.
func (s *queries) ListBaglets(ctx context.Context, batchID string) ([]domain.Baglet, error) {
	query := `SELECT ` + bagletColumns + `
		FROM baglets
		WHERE batch_id = $1 AND NOT is_deleted
		ORDER BY baglet_sequence`

	rows, err := s.q.Query(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("list baglets: %w", err)
	}
	defer rows.Close()

	baglets := make([]domain.Baglet, 0)
	for rows.Next() {
		b, err := scanBaglet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan baglet: %w", err)
		}
		baglets = append(baglets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate baglets: %w", err)
	}
	return baglets, nil
}

// CompareAndSwapStatus moves a live baglet from Expected to Next. It reports
// false, without error, when the row is missing, soft-deleted, or no longer
// at Expected. Entering CONTAMINATED also raises the contamination flag.
func (s *queries) CompareAndSwapStatus(ctx context.Context, params CASParams) (string, bool, error) {
	query := `
		UPDATE baglets
		SET current_status = $3,
			status_changed_at = now(),
			contamination_flag = contamination_flag OR $4
		WHERE baglet_id = $1 AND current_status = $2 AND NOT is_deleted
		RETURNING batch_id`

	var batchID string
	err := s.q.QueryRow(ctx, query,
		params.BagletID, params.Expected.String(), params.Next.String(), params.Next == domain.StatusContaminated,
	).Scan(&batchID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("update baglet status: %w", err)
	}
	return batchID, true, nil
}

// ClaimCohort moves every live baglet of a batch at From to To in one
// statement and returns exactly the ids it changed, sorted. Rows moved away
// from From by a concurrent transaction are re-checked after their lock is
// released and skipped.
func (s *queries) ClaimCohort(ctx context.Context, params CohortParams) ([]string, error) {
	query := `
		UPDATE baglets
		SET current_status = $3,
			status_changed_at = now(),
			contamination_flag = contamination_flag OR $4
		WHERE batch_id = $1 AND current_status = $2 AND NOT is_deleted
		RETURNING baglet_id`

	rows, err := s.q.Query(ctx, query,
		params.BatchID, params.From.String(), params.To.String(), params.To == domain.StatusContaminated,
	)
	if err != nil {
		return nil, fmt.Errorf("bulk update baglet status: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan baglet id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bulk update baglet status: %w", err)
	}

	sort.Strings(ids)
	return ids, nil
}

// MergeMetrics overwrites only the supplied metric columns and always
// refreshes last_observed_at.
func (s *queries) MergeMetrics(ctx context.Context, bagletID string, patch domain.PartialMetrics) (domain.ObservedMetrics, error) {
	query := `
		UPDATE baglets
		SET latest_weight_g = COALESCE($2, latest_weight_g),
			latest_temperature_c = COALESCE($3, latest_temperature_c),
			latest_humidity_pct = COALESCE($4, latest_humidity_pct),
			latest_ph = COALESCE($5, latest_ph),
			last_observed_at = now()
		WHERE baglet_id = $1 AND NOT is_deleted
		RETURNING latest_weight_g, latest_temperature_c, latest_humidity_pct, latest_ph, last_observed_at`

	var m domain.ObservedMetrics
	if err := s.q.QueryRow(ctx, query,
		bagletID, patch.WeightG, patch.TemperatureC, patch.HumidityPct, patch.PH,
	).Scan(&m.WeightG, &m.TemperatureC, &m.HumidityPct, &m.PH, &m.LastObservedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ObservedMetrics{}, apperr.NotFound(bagletNotFoundMessage)
		}
		return domain.ObservedMetrics{}, fmt.Errorf("merge baglet metrics: %w", err)
	}
	return m, nil
}

// StatusCounts groups the live baglets of a batch by status.
func (s *queries) StatusCounts(ctx context.Context, batchID string) (domain.StatusCounts, error) {
	query := `
		SELECT current_status, COUNT(*)
		FROM baglets
		WHERE batch_id = $1 AND NOT is_deleted
		GROUP BY current_status`

	rows, err := s.q.Query(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("count baglet statuses: %w", err)
	}
	defer rows.Close()

	counts := domain.StatusCounts{}
	for rows.Next() {
		var (
			name  string
			count int
		)
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		status, err := domain.ParseStatus(name)
		if err != nil {
			return nil, fmt.Errorf("count baglet statuses: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}
	return counts, nil
}
