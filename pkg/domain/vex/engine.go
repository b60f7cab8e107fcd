package vex

import (
	"fmt"

	"github.com/openctemio/observe/pkg/domain/observation"
	"github.com/openctemio/observe/pkg/domain/purl"
	"github.com/openctemio/observe/pkg/domain/shared"
)

// Result reports the outcome of one engine pass over one observation.
// Updated means the vex layer was mutated and must be persisted; Changed
// means the outcome is worth logging and notifying. Storing a matched
// statement reference on an observation that stays open sets Updated without
// Changed.
type Result struct {
	Changed bool
	Updated bool
	Comment string
	Before  observation.StateSnapshot
	After   observation.StateSnapshot
}

// Engine applies preloaded VEX statements to the observations of one
// product/branch. The effective purl is the branch purl when set, the
// product purl otherwise; statements were preloaded by the prefix of that
// purl reduced to type/namespace/name.
type Engine struct {
	effectivePURL string
	statements    []*Statement
}

// NewEngine creates an engine for one product/branch.
func NewEngine(effectivePURL string, statements []*Statement) *Engine {
	return &Engine{effectivePURL: effectivePURL, statements: statements}
}

// SearchPrefix reduces a purl to its pkg:type/namespace/name form, the
// prefix statements are preloaded by. An unparseable purl yields an error;
// the caller decides whether that disables VEX for the product.
func SearchPrefix(rawPURL string) (string, error) {
	p, err := purl.Parse(rawPURL)
	if err != nil {
		return "", err
	}
	return p.BaseString(), nil
}

// vexLayerState captures everything change detection compares across a pass.
type vexLayerState struct {
	vexStatus            observation.Status
	vexJustification     observation.Justification
	currentStatus        observation.Status
	currentJustification observation.Justification
	statementID          *shared.ID
}

func captureVEXLayer(o *observation.Observation) vexLayerState {
	return vexLayerState{
		vexStatus:            o.VEXStatus(),
		vexJustification:     o.VEXJustification(),
		currentStatus:        o.CurrentStatus(),
		currentJustification: o.CurrentJustification(),
		statementID:          o.VEXStatementID(),
	}
}

func (s vexLayerState) equals(other vexLayerState) bool {
	if s.vexStatus != other.vexStatus ||
		s.vexJustification != other.vexJustification ||
		s.currentStatus != other.currentStatus ||
		s.currentJustification != other.currentJustification {
		return false
	}
	if (s.statementID == nil) != (other.statementID == nil) {
		return false
	}
	return s.statementID == nil || s.statementID.Equals(*other.statementID)
}

// Apply runs the statement list against one observation in load order. The
// first matching statement wins. The caller persists the observation and
// writes the audit log entry when Changed is set.
func (e *Engine) Apply(o *observation.Observation) Result {
	before := captureVEXLayer(o)
	beforeSnapshot := o.Snapshot()

	for _, stmt := range e.statements {
		if !e.matches(stmt, o) {
			continue
		}
		o.ApplyVEX(stmt.ID(), stmt.DocumentLabel(), stmt.Status().ToObservationStatus(), stmt.Justification())
		o.Resolve()

		after := captureVEXLayer(o)
		return Result{
			Changed: e.changed(before, after),
			Updated: !before.equals(after),
			Comment: fmt.Sprintf("Applied VEX statement from %s", stmt.DocumentLabel()),
			Before:  beforeSnapshot,
			After:   o.Snapshot(),
		}
	}

	if before.statementID == nil {
		return Result{Before: beforeSnapshot, After: beforeSnapshot}
	}

	comment := "Removed VEX statement from unknown document"
	if o.VEXDocumentID() != "" {
		comment = fmt.Sprintf("Removed VEX statement from %s", o.VEXDocumentID())
	}
	o.ClearVEX()
	o.Resolve()

	after := captureVEXLayer(o)
	return Result{
		Changed: e.changed(before, after),
		Updated: !before.equals(after),
		Comment: comment,
		Before:  beforeSnapshot,
		After:   o.Snapshot(),
	}
}

// matches checks vulnerability id equality and the purl template match: the
// statement's product purl against the effective product/branch purl, and
// the component purl only when the statement specifies one. A statement
// whose purl cannot be parsed is no match for that statement only.
func (e *Engine) matches(stmt *Statement, o *observation.Observation) bool {
	if stmt.VulnerabilityID() == "" || stmt.VulnerabilityID() != o.VulnerabilityID() {
		return false
	}
	if !purl.MatchesString(stmt.ProductPURL(), e.effectivePURL) {
		return false
	}
	if stmt.ComponentPURL() != "" {
		if !purl.MatchesString(stmt.ComponentPURL(), o.Origin().ComponentPURL) {
			return false
		}
	}
	return true
}

// changed reports whether the pass did anything worth logging. A statement
// reasserting an already open observation as still open is churn, not a
// change, unless the justification moved with it.
func (e *Engine) changed(before, after vexLayerState) bool {
	if before.currentStatus == observation.StatusOpen && after.currentStatus == observation.StatusOpen &&
		before.currentJustification == after.currentJustification {
		return false
	}
	return !before.equals(after)
}
