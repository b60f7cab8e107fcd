// Package app contains the application services that orchestrate the domain
// engines against persistence.
package app

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/openctemio/observe/internal/metrics"
	"github.com/openctemio/observe/pkg/domain/observation"
	"github.com/openctemio/observe/pkg/domain/product"
	"github.com/openctemio/observe/pkg/domain/rule"
	"github.com/openctemio/observe/pkg/domain/shared"
	"github.com/openctemio/observe/pkg/logger"
)

// RuleApplyService builds rule engines and re-runs them over stored
// observations after rules change.
type RuleApplyService struct {
	rules        rule.Repository
	products     product.Repository
	observations observation.Repository
	logs         observation.LogRepository
	logger       *logger.Logger
}

// NewRuleApplyService creates a rule apply service.
func NewRuleApplyService(
	rules rule.Repository,
	products product.Repository,
	observations observation.Repository,
	logs observation.LogRepository,
	log *logger.Logger,
) *RuleApplyService {
	return &RuleApplyService{
		rules:        rules,
		products:     products,
		observations: observations,
		logs:         logs,
		logger:       log.With("service", "rule_apply"),
	}
}

// EngineForProduct builds the rule engine for one product: the product's own
// participating rules first, then its group's, then the general rules if the
// product opts in. The repository's stable order within each tier is the
// priority order.
func (s *RuleApplyService) EngineForProduct(ctx context.Context, p *product.Product) (*rule.Engine, error) {
	var ordered []*rule.Rule

	productRules, err := s.rules.FindByProduct(ctx, p.ID())
	if err != nil {
		return nil, fmt.Errorf("failed to load product rules: %w", err)
	}
	ordered = appendParticipating(ordered, productRules)

	if p.ProductGroupID() != nil {
		groupRules, err := s.rules.FindByProductGroup(ctx, *p.ProductGroupID())
		if err != nil {
			return nil, fmt.Errorf("failed to load product group rules: %w", err)
		}
		ordered = appendParticipating(ordered, groupRules)
	}

	if p.ApplyGeneralRules() {
		generalRules, err := s.rules.FindGeneral(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load general rules: %w", err)
		}
		ordered = appendParticipating(ordered, generalRules)
	}

	return rule.NewEngine(ordered, p.RiskAcceptanceExpiryDays())
}

func appendParticipating(dst []*rule.Rule, rules []*rule.Rule) []*rule.Rule {
	for _, r := range rules {
		if r.Participates() {
			dst = append(dst, r)
		}
	}
	return dst
}

// ApplyToProduct re-runs the product's rule engine over every observation of
// the product, persisting and logging the ones that changed.
func (s *RuleApplyService) ApplyToProduct(ctx context.Context, productID shared.ID) (int, error) {
	p, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("failed to load product: %w", err)
	}

	engine, err := s.EngineForProduct(ctx, p)
	if err != nil {
		return 0, err
	}

	observations, err := s.observations.FindByProduct(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("failed to load observations: %w", err)
	}

	changed := 0
	for _, o := range observations {
		result := engine.Apply(o)
		if !result.Changed {
			continue
		}
		entry := observation.NewLogEntry(o.ID(), result.Before, result.After, result.Comment, "rule_engine")
		if err := s.logs.Append(ctx, entry); err != nil {
			return changed, fmt.Errorf("failed to append observation log: %w", err)
		}
		if err := s.observations.Save(ctx, o); err != nil {
			return changed, fmt.Errorf("failed to save observation: %w", err)
		}
		changed++
		metrics.RuleApplicationsTotal.Inc()
	}

	s.logger.Info("rule pass complete", "product_id", productID, "changed", changed)
	return changed, nil
}

// ApplyToProductGroup re-runs rules for every member product of a group.
// Member products are independent scan scopes, so the passes run
// concurrently, bounded to keep connection pool pressure flat.
func (s *RuleApplyService) ApplyToProductGroup(ctx context.Context, groupID shared.ID) (int, error) {
	members, err := s.products.FindByGroup(ctx, groupID)
	if err != nil {
		return 0, fmt.Errorf("failed to load group members: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	var total atomic.Int64
	for _, p := range members {
		g.Go(func() error {
			changed, err := s.ApplyToProduct(gctx, p.ID())
			total.Add(int64(changed))
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return int(total.Load()), err
	}
	return int(total.Load()), nil
}
