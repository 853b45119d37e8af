package repository

import (
	"context"
	"fmt"

	"cultivation_backend/internal/cultivation/domain"

	"github.com/jackc/pgx/v5"
)

// AppendStatusLog bulk-writes audit rows with COPY. Append order is kept by
// the entry_seq identity column.
func (s *queries) AppendStatusLog(ctx context.Context, entries []NewStatusLogEntry) error {
	rows := make([][]any, len(entries))
	for i, e := range entries {
		rows[i] = []any{e.ID, e.BagletID, e.BatchID, statusName(e.PreviousStatus), e.Status.String(), nullIfEmpty(e.Notes), e.Actor}
	}

	n, err := s.q.CopyFrom(ctx,
		pgx.Identifier{"baglet_status_log"},
		[]string{"id", "baglet_id", "batch_id", "previous_status", "status", "notes", "actor"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("append status log: %w", err)
	}
	if int(n) != len(entries) {
		return fmt.Errorf("append status log: wrote %d of %d rows", n, len(entries))
	}
	return nil
}

// ListStatusHistory returns a baglet's audit trail in append order.
func (s *queries) ListStatusHistory(ctx context.Context, bagletID string) ([]domain.StatusLogEntry, error) {
	query := `
		SELECT id, baglet_id, batch_id, previous_status, status, COALESCE(notes, ''), actor, logged_at
		FROM baglet_status_log
		WHERE baglet_id = $1
		ORDER BY entry_seq`

	rows, err := s.q.Query(ctx, query, bagletID)
	if err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.StatusLogEntry, 0)
	for rows.Next() {
		var (
			e        domain.StatusLogEntry
			previous *string
			status   string
		)
		if err := rows.Scan(&e.ID, &e.BagletID, &e.BatchID, &previous, &status, &e.Notes, &e.Actor, &e.LoggedAt); err != nil {
			return nil, fmt.Errorf("scan status log entry: %w", err)
		}
		if e.Status, err = domain.ParseStatus(status); err != nil {
			return nil, fmt.Errorf("status log entry %s: %w", e.ID, err)
		}
		if previous != nil {
			prev, err := domain.ParseStatus(*previous)
			if err != nil {
				return nil, fmt.Errorf("status log entry %s: %w", e.ID, err)
			}
			e.PreviousStatus = &prev
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status history: %w", err)
	}
	return entries, nil
}
