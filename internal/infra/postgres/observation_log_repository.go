package postgres

import (
	"context"
	"fmt"

	"github.com/openctemio/observe/pkg/domain/observation"
)

// ObservationLogRepository implements observation.LogRepository using
// PostgreSQL. The table is insert-only.
type ObservationLogRepository struct {
	db *DB
}

// NewObservationLogRepository creates a new ObservationLogRepository.
func NewObservationLogRepository(db *DB) *ObservationLogRepository {
	return &ObservationLogRepository{db: db}
}

// Append inserts one audit entry.
func (r *ObservationLogRepository) Append(ctx context.Context, entry *observation.LogEntry) error {
	query := `
		INSERT INTO observation_logs (
			id, observation_id,
			severity_before, severity_after,
			status_before, status_after,
			justification_before, justification_after,
			expiry_before, expiry_after,
			comment, actor, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID().String(),
		entry.ObservationID().String(),
		nullString(string(entry.SeverityBefore())),
		nullString(string(entry.SeverityAfter())),
		nullString(string(entry.StatusBefore())),
		nullString(string(entry.StatusAfter())),
		nullString(string(entry.JustificationBefore())),
		nullString(string(entry.JustificationAfter())),
		nullTime(entry.ExpiryBefore()),
		nullTime(entry.ExpiryAfter()),
		entry.Comment(),
		entry.Actor(),
		entry.CreatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to append observation log: %w", err)
	}
	return nil
}
