package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/openctemio/observe/internal/metrics"
	"github.com/openctemio/observe/pkg/domain/observation"
	"github.com/openctemio/observe/pkg/domain/product"
	"github.com/openctemio/observe/pkg/domain/rule"
	"github.com/openctemio/observe/pkg/domain/shared"
	"github.com/openctemio/observe/pkg/logger"
)

// Reconciler diffs one scan against the stored observations of its scan
// context. The caller must serialize runs per scan context; the reconciler
// assumes exclusive access to the context's observations for the duration
// of one run.
type Reconciler struct {
	observations observation.Repository
	logs         observation.LogRepository
	branches     product.BranchRepository
	logger       *logger.Logger

	changeCallback ChangeCallback
	now            func() time.Time
}

// NewReconciler creates a reconciler.
func NewReconciler(
	observations observation.Repository,
	logs observation.LogRepository,
	branches product.BranchRepository,
	log *logger.Logger,
) *Reconciler {
	return &Reconciler{
		observations: observations,
		logs:         logs,
		branches:     branches,
		logger:       log.With("component", "reconciler"),
		now:          time.Now,
	}
}

// SetChangeCallback sets the callback invoked for every observation whose
// derived state changed.
func (r *Reconciler) SetChangeCallback(callback ChangeCallback) {
	r.changeCallback = callback
}

// Run reconciles the candidates of one scan against the scan context. Rules
// are applied through the given engine on every touched observation. It
// returns the counts plus the set of touched observations for downstream
// collaborators.
func (r *Reconciler) Run(
	ctx context.Context,
	sc observation.ScanContext,
	scannerName string,
	candidates []Candidate,
	engine *rule.Engine,
) (Counts, []*observation.Observation, error) {
	started := r.now()
	defer func() {
		metrics.ImportRunDuration.Observe(time.Since(started).Seconds())
	}()

	// Step 1: load the context's observations keyed by identity hash.
	existing, err := r.observations.FindByScanContext(ctx, sc)
	if err != nil {
		return Counts{}, nil, fmt.Errorf("failed to load observations: %w", err)
	}
	before := make(map[string]*observation.Observation, len(existing))
	for _, o := range existing {
		if prev, ok := before[o.IdentityHash()]; ok {
			return Counts{}, nil, fmt.Errorf("%w: identity hash collision between observations %s and %s",
				shared.ErrConflict, prev.ID(), o.ID())
		}
		before[o.IdentityHash()] = o
	}

	var counts Counts
	touched := make([]*observation.Observation, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	importedAt := r.now().UTC()

	for _, candidate := range candidates {
		hash, err := candidateHash(sc, scannerName, candidate)
		if err != nil {
			r.logger.Warn("candidate skipped", "error", err)
			counts.Skipped++
			continue
		}
		// Duplicate within one scan: the first occurrence wins.
		if seen[hash] {
			counts.Skipped++
			continue
		}
		seen[hash] = true

		if o, ok := before[hash]; ok {
			changed, err := r.updateExisting(ctx, o, candidate, importedAt, engine)
			if err != nil {
				return counts, touched, err
			}
			delete(before, hash)
			touched = append(touched, o)
			if changed && o.CurrentStatus() == observation.StatusOpen {
				counts.Updated++
				metrics.ImportObservationsTotal.WithLabelValues("updated").Inc()
			}
			continue
		}

		o, err := r.createNew(ctx, sc, scannerName, candidate, importedAt, engine)
		if err != nil {
			return counts, touched, err
		}
		touched = append(touched, o)
		if o.CurrentStatus() == observation.StatusOpen {
			counts.New++
			metrics.ImportObservationsTotal.WithLabelValues("new").Inc()
		}
	}

	// Step 5: whatever is left was not seen in this scan.
	for _, o := range before {
		resolved, err := r.resolveMissing(ctx, o)
		if err != nil {
			return counts, touched, err
		}
		touched = append(touched, o)
		if resolved {
			counts.Resolved++
			metrics.ImportObservationsTotal.WithLabelValues("resolved").Inc()
		}
	}

	if sc.BranchID != nil {
		if err := r.markBranchImported(ctx, *sc.BranchID, importedAt); err != nil {
			return counts, touched, err
		}
	}

	r.logger.Info("reconciliation complete",
		"product_id", sc.ProductID,
		"scanner_key", sc.ScannerKey(),
		"new", counts.New,
		"updated", counts.Updated,
		"resolved", counts.Resolved,
		"skipped", counts.Skipped,
	)
	return counts, touched, nil
}

// candidateHash builds a throwaway observation to compute the candidate's
// identity hash without touching persistence.
func candidateHash(sc observation.ScanContext, scannerName string, candidate Candidate) (string, error) {
	o, err := observation.NewObservation(sc.ProductID, scannerName, candidate.Title)
	if err != nil {
		return "", err
	}
	o.SetOrigin(candidate.Origin)
	return o.UpdateIdentityHash(), nil
}

// updateExisting merges scanner-provided fields onto a stored observation,
// re-resolves and runs the rule engine. It reports whether the derived state
// changed.
func (r *Reconciler) updateExisting(
	ctx context.Context,
	o *observation.Observation,
	candidate Candidate,
	importedAt time.Time,
	engine *rule.Engine,
) (bool, error) {
	pre := o.Snapshot()

	o.SetTitle(candidate.Title)
	o.SetDescription(candidate.Description)
	o.SetRecommendation(candidate.Recommendation)
	o.SetScannerObservationID(candidate.ScannerObservationID)
	o.SetOrigin(candidate.Origin)
	o.SetVulnerability(candidate.VulnerabilityID, candidate.CVSSScore, candidate.CVSSVector, candidate.CWE)
	o.SetReferences(candidate.References)
	o.SetEvidences(candidate.Evidences)
	o.MarkSeen(importedAt)

	switch {
	case candidate.ParserStatus != "":
		o.SetParserLayer(candidate.ParserSeverity, candidate.ParserStatus)
	case o.ParserStatus() == observation.StatusResolved:
		// The finding is back and the new run makes no explicit claim:
		// reopen before resolving.
		o.SetParserLayer(candidate.ParserSeverity, observation.StatusOpen)
	default:
		o.SetParserLayer(candidate.ParserSeverity, o.ParserStatus())
	}

	o.Resolve()
	ruleResult := engine.Apply(o)
	if ruleResult.Changed {
		metrics.RuleApplicationsTotal.Inc()
	}

	post := o.Snapshot()
	changed := !pre.Equals(post)
	if changed {
		comment := "Observation updated by import"
		if ruleResult.Changed && ruleResult.Comment != "" {
			comment = ruleResult.Comment
		}
		if err := r.logChange(ctx, o, pre, post, comment, "import"); err != nil {
			return false, err
		}
	}
	if err := r.observations.Save(ctx, o); err != nil {
		return false, fmt.Errorf("failed to save observation: %w", err)
	}
	return changed, nil
}

// createNew constructs a fresh observation from a candidate.
func (r *Reconciler) createNew(
	ctx context.Context,
	sc observation.ScanContext,
	scannerName string,
	candidate Candidate,
	importedAt time.Time,
	engine *rule.Engine,
) (*observation.Observation, error) {
	o, err := observation.NewObservation(sc.ProductID, scannerName, candidate.Title)
	if err != nil {
		return nil, err
	}
	o.SetBranchID(sc.BranchID)
	o.SetScanContextKey(sc.UploadFilename, sc.APIConfigurationName)
	o.SetDescription(candidate.Description)
	o.SetRecommendation(candidate.Recommendation)
	o.SetScannerObservationID(candidate.ScannerObservationID)
	o.SetOrigin(candidate.Origin)
	o.SetVulnerability(candidate.VulnerabilityID, candidate.CVSSScore, candidate.CVSSVector, candidate.CWE)
	o.SetReferences(candidate.References)
	o.SetEvidences(candidate.Evidences)
	o.SetParserLayer(candidate.ParserSeverity, candidate.ParserStatus)
	o.MarkSeen(importedAt)
	o.UpdateIdentityHash()

	o.Resolve()
	pre := o.Snapshot()
	ruleResult := engine.Apply(o)
	if ruleResult.Changed {
		metrics.RuleApplicationsTotal.Inc()
	}

	comment := "Observation created by import"
	if ruleResult.Changed && ruleResult.Comment != "" {
		comment = comment + "; " + ruleResult.Comment
	}
	if err := r.logChange(ctx, o, pre, o.Snapshot(), comment, "import"); err != nil {
		return nil, err
	}
	if err := r.observations.Save(ctx, o); err != nil {
		return nil, fmt.Errorf("failed to save observation: %w", err)
	}
	return o, nil
}

// resolveMissing forces an observation absent from the scan to resolved. Any
// status change is logged, but only a transition out of open counts towards
// the resolved counter: an observation a rule had already parked at
// false_positive or risk_accepted was not open, so its disappearance resolves
// nothing.
func (r *Reconciler) resolveMissing(ctx context.Context, o *observation.Observation) (bool, error) {
	pre := o.Snapshot()

	o.SetParserStatus(observation.StatusResolved)
	o.Resolve()

	post := o.Snapshot()
	if pre.Status != post.Status {
		if err := r.logChange(ctx, o, pre, post, "Observation not found in latest scan", "import"); err != nil {
			return false, err
		}
	}
	if err := r.observations.Save(ctx, o); err != nil {
		return false, fmt.Errorf("failed to save observation: %w", err)
	}
	return pre.Status == observation.StatusOpen && post.Status != pre.Status, nil
}

func (r *Reconciler) logChange(ctx context.Context, o *observation.Observation, before, after observation.StateSnapshot, comment, actor string) error {
	entry := observation.NewLogEntry(o.ID(), before, after, comment, actor)
	if err := r.logs.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to append observation log: %w", err)
	}
	if r.changeCallback != nil {
		r.changeCallback(ctx, o, before, after)
	}
	return nil
}

func (r *Reconciler) markBranchImported(ctx context.Context, branchID shared.ID, importedAt time.Time) error {
	branch, err := r.branches.FindByID(ctx, branchID)
	if err != nil {
		return fmt.Errorf("failed to load branch: %w", err)
	}
	branch.MarkImported(importedAt)
	if err := r.branches.Save(ctx, branch); err != nil {
		return fmt.Errorf("failed to save branch: %w", err)
	}
	return nil
}
