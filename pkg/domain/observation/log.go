package observation

import (
	"time"

	"github.com/openctemio/observe/pkg/domain/shared"
)

// LogEntry is one append-only audit record for an observation. Entries are
// created whenever the resolver output changes as a side effect of
// reconciliation, rule application or VEX application, and are never edited
// or deleted.
type LogEntry struct {
	id            shared.ID
	observationID shared.ID

	severityBefore Severity
	severityAfter  Severity
	statusBefore   Status
	statusAfter    Status

	justificationBefore Justification
	justificationAfter  Justification

	expiryBefore *time.Time
	expiryAfter  *time.Time

	comment   string
	actor     string
	createdAt time.Time
}

// NewLogEntry creates an audit entry from a before/after snapshot pair.
func NewLogEntry(observationID shared.ID, before, after StateSnapshot, comment, actor string) *LogEntry {
	return &LogEntry{
		id:                  shared.NewID(),
		observationID:       observationID,
		severityBefore:      before.Severity,
		severityAfter:       after.Severity,
		statusBefore:        before.Status,
		statusAfter:         after.Status,
		justificationBefore: before.Justification,
		justificationAfter:  after.Justification,
		expiryBefore:        before.RiskAcceptanceExpiry,
		expiryAfter:         after.RiskAcceptanceExpiry,
		comment:             comment,
		actor:               actor,
		createdAt:           time.Now().UTC(),
	}
}

// LogData contains all data needed to reconstitute a LogEntry.
type LogData struct {
	ID                  shared.ID
	ObservationID       shared.ID
	SeverityBefore      Severity
	SeverityAfter       Severity
	StatusBefore        Status
	StatusAfter         Status
	JustificationBefore Justification
	JustificationAfter  Justification
	ExpiryBefore        *time.Time
	ExpiryAfter         *time.Time
	Comment             string
	Actor               string
	CreatedAt           time.Time
}

// ReconstituteLogEntry recreates a LogEntry from persistence.
func ReconstituteLogEntry(data LogData) *LogEntry {
	return &LogEntry{
		id:                  data.ID,
		observationID:       data.ObservationID,
		severityBefore:      data.SeverityBefore,
		severityAfter:       data.SeverityAfter,
		statusBefore:        data.StatusBefore,
		statusAfter:         data.StatusAfter,
		justificationBefore: data.JustificationBefore,
		justificationAfter:  data.JustificationAfter,
		expiryBefore:        data.ExpiryBefore,
		expiryAfter:         data.ExpiryAfter,
		comment:             data.Comment,
		actor:               data.Actor,
		createdAt:           data.CreatedAt,
	}
}

func (e *LogEntry) ID() shared.ID                       { return e.id }
func (e *LogEntry) ObservationID() shared.ID            { return e.observationID }
func (e *LogEntry) SeverityBefore() Severity            { return e.severityBefore }
func (e *LogEntry) SeverityAfter() Severity             { return e.severityAfter }
func (e *LogEntry) StatusBefore() Status                { return e.statusBefore }
func (e *LogEntry) StatusAfter() Status                 { return e.statusAfter }
func (e *LogEntry) JustificationBefore() Justification  { return e.justificationBefore }
func (e *LogEntry) JustificationAfter() Justification   { return e.justificationAfter }
func (e *LogEntry) ExpiryBefore() *time.Time            { return e.expiryBefore }
func (e *LogEntry) ExpiryAfter() *time.Time             { return e.expiryAfter }
func (e *LogEntry) Comment() string                     { return e.comment }
func (e *LogEntry) Actor() string                       { return e.actor }
func (e *LogEntry) CreatedAt() time.Time                { return e.createdAt }
