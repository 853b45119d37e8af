package repository

import (
	"context"
	"fmt"

	"cultivation_backend/internal/cultivation/domain"

	"github.com/jackc/pgx/v5"
)

// InsertFindings appends contamination findings with COPY.
func (s *queries) InsertFindings(ctx context.Context, findings []domain.ContaminationFinding) error {
	rows := make([][]any, len(findings))
	for i, f := range findings {
		rows[i] = []any{f.ID, f.BagletID, f.BatchID, f.Code, f.Notes, f.RecordedBy, f.RecordedAt}
	}

	n, err := s.q.CopyFrom(ctx,
		pgx.Identifier{"contamination_findings"},
		[]string{"id", "baglet_id", "batch_id", "code", "notes", "recorded_by", "recorded_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("insert contamination findings: %w", err)
	}
	if int(n) != len(findings) {
		return fmt.Errorf("insert contamination findings: wrote %d of %d rows", n, len(findings))
	}
	return nil
}

// ListFindings returns a baglet's findings, oldest first.
func (s *queries) ListFindings(ctx context.Context, bagletID string) ([]domain.ContaminationFinding, error) {
	query := `
		SELECT id, baglet_id, batch_id, code, notes, recorded_by, recorded_at
		FROM contamination_findings
		WHERE baglet_id = $1
		ORDER BY recorded_at, id`

	rows, err := s.q.Query(ctx, query, bagletID)
	if err != nil {
		return nil, fmt.Errorf("list contamination findings: %w", err)
	}
	defer rows.Close()

	findings := make([]domain.ContaminationFinding, 0)
	for rows.Next() {
		var f domain.ContaminationFinding
		if err := rows.Scan(&f.ID, &f.BagletID, &f.BatchID, &f.Code, &f.Notes, &f.RecordedBy, &f.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan contamination finding: %w", err)
		}
		findings = append(findings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contamination findings: %w", err)
	}
	return findings, nil
}
