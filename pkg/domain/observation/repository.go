package observation

import (
	"context"
	"time"

	"github.com/openctemio/observe/pkg/domain/shared"
)

// Repository defines the persistence interface for observations.
type Repository interface {
	// FindByScanContext returns all observations for one scan context.
	FindByScanContext(ctx context.Context, sc ScanContext) ([]*Observation, error)

	// FindByProduct returns all observations of a product, in stable order.
	FindByProduct(ctx context.Context, productID shared.ID) ([]*Observation, error)

	// FindByID returns one observation, or shared.ErrNotFound.
	FindByID(ctx context.Context, id shared.ID) (*Observation, error)

	// FindExpiredRiskAcceptances returns all risk accepted observations
	// whose expiry date lies at or before the given time.
	FindExpiredRiskAcceptances(ctx context.Context, asOf time.Time) ([]*Observation, error)

	// Save upserts an observation.
	Save(ctx context.Context, o *Observation) error
}

// LogRepository defines the append-only persistence interface for the audit
// trail.
type LogRepository interface {
	Append(ctx context.Context, entry *LogEntry) error
}
