package rule

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/openctemio/observe/pkg/domain/observation"
	"github.com/openctemio/observe/pkg/domain/shared"
)

// fieldMatcher is a compiled predicate over one observation field.
type fieldMatcher struct {
	re    *regexp.Regexp
	value func(*observation.Observation) string
}

// compiledRule is a rule with its regex matchers compiled once.
type compiledRule struct {
	rule     *Rule
	matchers []fieldMatcher
}

// Result reports the outcome of one engine pass over one observation.
type Result struct {
	Changed bool
	Comment string
	Before  observation.StateSnapshot
	After   observation.StateSnapshot
}

// Engine evaluates an ordered rule list against observations. Rules are
// compiled at construction; a pattern that fails to compile fails the whole
// construction since a broken rule is a data integrity bug, not a runtime
// condition. The first rule whose predicate matches wins and evaluation
// stops there.
type Engine struct {
	rules []compiledRule
	byID  map[shared.ID]*Rule

	riskAcceptanceExpiryDays *int
	now                      func() time.Time
}

// NewEngine compiles the given rules in list order. The expiry days setting
// comes from the product and controls the risk acceptance expiry date set
// when a rule transitions an observation into risk_accepted; nil means no
// automatic expiry.
func NewEngine(rules []*Rule, riskAcceptanceExpiryDays *int) (*Engine, error) {
	e := &Engine{
		rules:                    make([]compiledRule, 0, len(rules)),
		byID:                     make(map[shared.ID]*Rule, len(rules)),
		riskAcceptanceExpiryDays: riskAcceptanceExpiryDays,
		now:                      time.Now,
	}
	for _, r := range rules {
		e.byID[r.ID()] = r
		cr, err := compileRule(r)
		if err != nil {
			return nil, err
		}
		e.rules = append(e.rules, cr)
	}
	return e, nil
}

func compileRule(r *Rule) (compiledRule, error) {
	m := r.Matchers()
	specs := []struct {
		name    string
		pattern string
		value   func(*observation.Observation) string
	}{
		{"title", m.Title, func(o *observation.Observation) string { return o.Title() }},
		{"description", m.Description, func(o *observation.Observation) string { return o.Description() }},
		{"component_name", m.ComponentName, func(o *observation.Observation) string { return o.Origin().ComponentName }},
		{"docker_image_name", m.DockerImageName, func(o *observation.Observation) string { return o.Origin().DockerImageName }},
		{"endpoint_url", m.EndpointURL, func(o *observation.Observation) string { return o.Origin().EndpointURL }},
		{"service_name", m.ServiceName, func(o *observation.Observation) string { return o.Origin().ServiceName }},
		{"source_file", m.SourceFile, func(o *observation.Observation) string { return o.Origin().SourceFile }},
		{"cloud_resource", m.CloudResource, func(o *observation.Observation) string { return o.Origin().CloudResource }},
		{"kubernetes_resource", m.KubernetesResource, func(o *observation.Observation) string { return o.Origin().KubernetesResource }},
	}

	cr := compiledRule{rule: r}
	for _, spec := range specs {
		if spec.pattern == "" {
			continue
		}
		// Case-insensitive and anchored at the start: the pattern must
		// match the field's beginning, not merely occur somewhere in it.
		re, err := regexp.Compile("(?i)^(?:" + spec.pattern + ")")
		if err != nil {
			return compiledRule{}, fmt.Errorf("%w: rule %q: invalid %s pattern: %v",
				shared.ErrValidation, r.Name(), spec.name, err)
		}
		cr.matchers = append(cr.matchers, fieldMatcher{re: re, value: spec.value})
	}
	return cr, nil
}

// matches evaluates the full predicate. Every configured matcher must pass;
// an unset observation field fails a configured matcher.
func (c compiledRule) matches(o *observation.Observation) bool {
	m := c.rule.Matchers()
	if m.ScannerName != "" && m.ScannerName != o.ScannerName() {
		return false
	}
	if m.ScannerPrefix != "" && !strings.HasPrefix(o.ScannerName(), m.ScannerPrefix) {
		return false
	}
	for _, fm := range c.matchers {
		v := fm.value(o)
		if v == "" {
			return false
		}
		if !fm.re.MatchString(v) {
			return false
		}
	}
	return true
}

// ruleLayerState captures everything change detection compares across a pass.
type ruleLayerState struct {
	ruleSeverity         observation.Severity
	ruleStatus           observation.Status
	ruleJustification    observation.Justification
	currentSeverity      observation.Severity
	currentStatus        observation.Status
	currentJustification observation.Justification
	productRuleID        *shared.ID
	generalRuleID        *shared.ID
}

func captureRuleLayer(o *observation.Observation) ruleLayerState {
	return ruleLayerState{
		ruleSeverity:         o.RuleSeverity(),
		ruleStatus:           o.RuleStatus(),
		ruleJustification:    o.RuleJustification(),
		currentSeverity:      o.CurrentSeverity(),
		currentStatus:        o.CurrentStatus(),
		currentJustification: o.CurrentJustification(),
		productRuleID:        o.ProductRuleID(),
		generalRuleID:        o.GeneralRuleID(),
	}
}

func idEqual(a, b *shared.ID) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || a.Equals(*b)
}

func (s ruleLayerState) equals(other ruleLayerState) bool {
	return s.ruleSeverity == other.ruleSeverity &&
		s.ruleStatus == other.ruleStatus &&
		s.ruleJustification == other.ruleJustification &&
		s.currentSeverity == other.currentSeverity &&
		s.currentStatus == other.currentStatus &&
		s.currentJustification == other.currentJustification &&
		idEqual(s.productRuleID, other.productRuleID) &&
		idEqual(s.generalRuleID, other.generalRuleID)
}

// Apply runs the rule list against one observation. It mutates the rule
// layer and the derived fields; the caller persists the observation and
// writes the audit log entry when Changed is set.
func (e *Engine) Apply(o *observation.Observation) Result {
	before := captureRuleLayer(o)
	beforeSnapshot := o.Snapshot()

	for _, cr := range e.rules {
		if !cr.matches(o) {
			continue
		}
		r := cr.rule
		o.ApplyRule(r.ID(), r.IsGeneral(), r.NewSeverity(), r.NewStatus(), r.NewJustification())
		o.Resolve()
		e.adjustRiskAcceptanceExpiry(o, beforeSnapshot.Status)

		comment := fmt.Sprintf("Applied product rule %s", r.Name())
		if r.IsGeneral() {
			comment = fmt.Sprintf("Applied general rule %s", r.Name())
		}
		return Result{
			Changed: !captureRuleLayer(o).equals(before),
			Comment: comment,
			Before:  beforeSnapshot,
			After:   o.Snapshot(),
		}
	}

	if before.productRuleID == nil && before.generalRuleID == nil {
		return Result{Before: beforeSnapshot, After: beforeSnapshot}
	}

	comment := e.removalComment(before)
	o.ClearRule()
	o.Resolve()
	e.adjustRiskAcceptanceExpiry(o, beforeSnapshot.Status)

	return Result{
		Changed: !captureRuleLayer(o).equals(before),
		Comment: comment,
		Before:  beforeSnapshot,
		After:   o.Snapshot(),
	}
}

func (e *Engine) removalComment(before ruleLayerState) string {
	if before.productRuleID != nil {
		if r, ok := e.byID[*before.productRuleID]; ok {
			return fmt.Sprintf("Removed product rule %s", r.Name())
		}
	}
	if before.generalRuleID != nil {
		if r, ok := e.byID[*before.generalRuleID]; ok {
			return fmt.Sprintf("Removed general rule %s", r.Name())
		}
	}
	return "Removed unknown rule"
}

// adjustRiskAcceptanceExpiry recomputes the expiry date only when the
// resolved status transitions into or out of risk_accepted.
func (e *Engine) adjustRiskAcceptanceExpiry(o *observation.Observation, statusBefore observation.Status) {
	statusAfter := o.CurrentStatus()
	switch {
	case statusBefore != observation.StatusRiskAccepted && statusAfter == observation.StatusRiskAccepted:
		if e.riskAcceptanceExpiryDays == nil {
			o.SetRiskAcceptanceExpiry(nil)
			return
		}
		expiry := e.now().UTC().AddDate(0, 0, *e.riskAcceptanceExpiryDays)
		o.SetRiskAcceptanceExpiry(&expiry)
	case statusBefore == observation.StatusRiskAccepted && statusAfter != observation.StatusRiskAccepted:
		o.SetRiskAcceptanceExpiry(nil)
	}
}
