package app

import (
	"context"
	"fmt"

	"github.com/openctemio/observe/pkg/domain/observation"
	"github.com/openctemio/observe/pkg/domain/rule"
	"github.com/openctemio/observe/pkg/domain/shared"
	"github.com/openctemio/observe/pkg/logger"
)

// RuleService manages observation rules. Saving a rule never rewrites
// observations by itself; changed rules take effect through an explicit
// reapply or on the next import.
type RuleService struct {
	rules     rule.Repository
	ruleApply *RuleApplyService
	logger    *logger.Logger
}

// NewRuleService creates a new rule service.
func NewRuleService(rules rule.Repository, ruleApply *RuleApplyService, log *logger.Logger) *RuleService {
	return &RuleService{
		rules:     rules,
		ruleApply: ruleApply,
		logger:    log.With("service", "rule"),
	}
}

// CreateRuleInput describes a new rule.
type CreateRuleInput struct {
	Name           string
	ProductID      string
	ProductGroupID string

	Matchers rule.Matchers

	NewSeverity      string
	NewStatus        string
	NewJustification string
}

// CreateRule creates a rule. The rule's patterns are compiled immediately so
// that an invalid pattern is rejected at save time, not at apply time.
func (s *RuleService) CreateRule(ctx context.Context, input CreateRuleInput) (*rule.Rule, error) {
	r, err := rule.NewRule(input.Name)
	if err != nil {
		return nil, err
	}

	if input.ProductID != "" {
		id, err := shared.IDFromString(input.ProductID)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid product id", shared.ErrValidation)
		}
		r.SetProductID(&id)
	}
	if input.ProductGroupID != "" {
		id, err := shared.IDFromString(input.ProductGroupID)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid product group id", shared.ErrValidation)
		}
		r.SetProductGroupID(&id)
	}

	r.SetMatchers(input.Matchers)
	r.SetRewrite(
		observation.Severity(input.NewSeverity),
		observation.Status(input.NewStatus),
		observation.Justification(input.NewJustification),
	)

	// Compiling the single rule surfaces pattern errors before persisting.
	if _, err := rule.NewEngine([]*rule.Rule{r}, nil); err != nil {
		return nil, err
	}

	if err := s.rules.Save(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to save rule: %w", err)
	}

	s.logger.Info("rule created", "rule_id", r.ID().String(), "name", r.Name())
	return r, nil
}

// GetRule returns one rule by id.
func (s *RuleService) GetRule(ctx context.Context, id string) (*rule.Rule, error) {
	ruleID, err := shared.IDFromString(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid rule id", shared.ErrValidation)
	}
	return s.rules.FindByID(ctx, ruleID)
}

// ListForProduct returns all rules scoped to a product, in priority order.
func (s *RuleService) ListForProduct(ctx context.Context, productID string) ([]*rule.Rule, error) {
	id, err := shared.IDFromString(productID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid product id", shared.ErrValidation)
	}
	return s.rules.FindByProduct(ctx, id)
}

// ListGeneral returns all unscoped rules, in priority order.
func (s *RuleService) ListGeneral(ctx context.Context) ([]*rule.Rule, error) {
	return s.rules.FindGeneral(ctx)
}

// SetApprovalStatus updates a rule's approval status and reapplies the
// product or group rule set when the rule is scoped.
func (s *RuleService) SetApprovalStatus(ctx context.Context, id string, status rule.ApprovalStatus) (*rule.Rule, error) {
	r, err := s.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := r.SetApprovalStatus(status); err != nil {
		return nil, err
	}
	if err := s.rules.Save(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to save rule: %w", err)
	}

	switch {
	case r.ProductID() != nil:
		if _, err := s.ruleApply.ApplyToProduct(ctx, *r.ProductID()); err != nil {
			return nil, err
		}
	case r.ProductGroupID() != nil:
		if _, err := s.ruleApply.ApplyToProductGroup(ctx, *r.ProductGroupID()); err != nil {
			return nil, err
		}
	}

	s.logger.Info("rule approval changed", "rule_id", r.ID().String(), "approval_status", string(status))
	return r, nil
}
