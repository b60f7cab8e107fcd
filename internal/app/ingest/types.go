// Package ingest implements the import reconciler: it diffs a freshly
// parsed scan against the stored observations of one scan context and
// applies the rule engine to every touched observation.
package ingest

import (
	"context"

	"github.com/openctemio/observe/pkg/domain/observation"
)

// Candidate is one freshly parsed observation as delivered by a scanner
// parser. Format validation happens before the reconciler runs.
type Candidate struct {
	Title          string
	Description    string
	Recommendation string

	ScannerObservationID string

	Origin observation.Origin

	VulnerabilityID string
	CVSSScore       *float64
	CVSSVector      string
	CWE             string

	ParserSeverity observation.Severity
	ParserStatus   observation.Status

	References []observation.Reference
	Evidences  []observation.Evidence
}

// Counts is the outcome of one reconciliation run. New and Updated only
// count observations whose resolved status is open; Resolved only counts
// observations that transitioned out of open.
type Counts struct {
	New      int
	Updated  int
	Resolved int
	Skipped  int
}

// ChangeCallback is called for every observation whose derived state changed
// during reconciliation, carrying the before/after snapshots for
// notification and issue tracker collaborators.
type ChangeCallback func(ctx context.Context, o *observation.Observation, before, after observation.StateSnapshot)
