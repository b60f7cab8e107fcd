package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openctemio/observe/internal/metrics"
	"github.com/openctemio/observe/pkg/domain/observation"
	"github.com/openctemio/observe/pkg/domain/product"
	"github.com/openctemio/observe/pkg/domain/shared"
	"github.com/openctemio/observe/pkg/domain/vex"
	"github.com/openctemio/observe/pkg/logger"
)

// VEXApplyService runs the VEX engine over stored observations, per product
// and after document imports.
type VEXApplyService struct {
	statements   vex.StatementRepository
	products     product.Repository
	branches     product.BranchRepository
	observations observation.Repository
	logs         observation.LogRepository
	logger       *logger.Logger
}

// NewVEXApplyService creates a VEX apply service.
func NewVEXApplyService(
	statements vex.StatementRepository,
	products product.Repository,
	branches product.BranchRepository,
	observations observation.Repository,
	logs observation.LogRepository,
	log *logger.Logger,
) *VEXApplyService {
	return &VEXApplyService{
		statements:   statements,
		products:     products,
		branches:     branches,
		observations: observations,
		logs:         logs,
		logger:       log.With("service", "vex_apply"),
	}
}

// ApplyToProduct preloads the statements matching the purl prefixes of the
// product and of every branch carrying its own purl, then runs the engine
// over every observation of the product. Observations on a branch with its
// own purl are matched against that purl instead of the product's.
func (s *VEXApplyService) ApplyToProduct(ctx context.Context, productID shared.ID) (int, error) {
	p, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("failed to load product: %w", err)
	}

	branchPURLs, err := s.branchPURLs(ctx, p.ID())
	if err != nil {
		return 0, err
	}

	prefixes := s.searchPrefixes(p, branchPURLs)
	if len(prefixes) == 0 {
		return 0, nil
	}

	statements, err := s.loadStatements(ctx, prefixes)
	if err != nil {
		return 0, err
	}

	return s.apply(ctx, p, branchPURLs, statements)
}

// ApplyStatementsAfterImport re-runs the engine for every product or branch
// whose purl prefix-matches any of the newly imported statements, against
// those statements only.
func (s *VEXApplyService) ApplyStatementsAfterImport(ctx context.Context, imported []*vex.Statement) (int, error) {
	if len(imported) == 0 {
		return 0, nil
	}

	candidates, err := s.productsWithPURLs(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, p := range candidates {
		branchPURLs, err := s.branchPURLs(ctx, p.ID())
		if err != nil {
			return total, err
		}
		prefixes := s.searchPrefixes(p, branchPURLs)

		relevant := make([]*vex.Statement, 0)
		for _, stmt := range imported {
			for _, prefix := range prefixes {
				if strings.HasPrefix(stmt.ProductPURL(), prefix) {
					relevant = append(relevant, stmt)
					break
				}
			}
		}
		if len(relevant) == 0 {
			continue
		}
		changed, err := s.apply(ctx, p, branchPURLs, relevant)
		total += changed
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// productsWithPURLs returns every product carrying a purl itself or on one of
// its branches.
func (s *VEXApplyService) productsWithPURLs(ctx context.Context) ([]*product.Product, error) {
	products, err := s.products.FindWithPURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	seen := make(map[shared.ID]bool, len(products))
	for _, p := range products {
		seen[p.ID()] = true
	}

	branches, err := s.branches.FindWithPURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load branches: %w", err)
	}
	for _, b := range branches {
		if seen[b.ProductID()] {
			continue
		}
		p, err := s.products.FindByID(ctx, b.ProductID())
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to load product: %w", err)
		}
		seen[p.ID()] = true
		products = append(products, p)
	}
	return products, nil
}

// searchPrefixes collects the unique statement search prefixes for the
// product purl and every branch purl. An unparseable purl disables VEX for
// that scope only.
func (s *VEXApplyService) searchPrefixes(p *product.Product, branchPURLs map[shared.ID]string) []string {
	seen := make(map[string]bool)
	var prefixes []string
	add := func(rawPURL string) {
		if rawPURL == "" {
			return
		}
		prefix, err := vex.SearchPrefix(rawPURL)
		if err != nil {
			s.logger.Warn("purl not parseable, skipping VEX scope",
				"product_id", p.ID(), "purl", rawPURL, "error", err)
			return
		}
		if !seen[prefix] {
			seen[prefix] = true
			prefixes = append(prefixes, prefix)
		}
	}
	add(p.PURL())
	for _, purl := range branchPURLs {
		add(purl)
	}
	return prefixes
}

// loadStatements preloads statements for every prefix, deduplicated across
// overlapping prefixes.
func (s *VEXApplyService) loadStatements(ctx context.Context, prefixes []string) ([]*vex.Statement, error) {
	seen := make(map[shared.ID]bool)
	var statements []*vex.Statement
	for _, prefix := range prefixes {
		loaded, err := s.statements.FindByPURLPrefix(ctx, prefix)
		if err != nil {
			return nil, fmt.Errorf("failed to load VEX statements: %w", err)
		}
		for _, stmt := range loaded {
			if seen[stmt.ID()] {
				continue
			}
			seen[stmt.ID()] = true
			statements = append(statements, stmt)
		}
	}
	return statements, nil
}

// apply runs one engine pass per effective purl over the product's
// observations. Matched statement references are persisted even when the
// outcome does not warrant a log entry.
func (s *VEXApplyService) apply(ctx context.Context, p *product.Product, branchPURLs map[shared.ID]string, statements []*vex.Statement) (int, error) {
	observations, err := s.observations.FindByProduct(ctx, p.ID())
	if err != nil {
		return 0, fmt.Errorf("failed to load observations: %w", err)
	}
	if len(observations) == 0 {
		return 0, nil
	}

	engines := map[string]*vex.Engine{"": vex.NewEngine(p.PURL(), statements)}

	changed := 0
	for _, o := range observations {
		effective := ""
		if o.BranchID() != nil {
			if purl, ok := branchPURLs[*o.BranchID()]; ok && purl != "" {
				effective = purl
			}
		}
		engine, ok := engines[effective]
		if !ok {
			engine = vex.NewEngine(effective, statements)
			engines[effective] = engine
		}

		result := engine.Apply(o)
		if !result.Updated {
			continue
		}
		if result.Changed {
			entry := observation.NewLogEntry(o.ID(), result.Before, result.After, result.Comment, "vex_engine")
			if err := s.logs.Append(ctx, entry); err != nil {
				return changed, fmt.Errorf("failed to append observation log: %w", err)
			}
		}
		if err := s.observations.Save(ctx, o); err != nil {
			return changed, fmt.Errorf("failed to save observation: %w", err)
		}
		if result.Changed {
			changed++
			metrics.VEXApplicationsTotal.Inc()
		}
	}

	s.logger.Info("VEX pass complete", "product_id", p.ID(), "changed", changed)
	return changed, nil
}

func (s *VEXApplyService) branchPURLs(ctx context.Context, productID shared.ID) (map[shared.ID]string, error) {
	branches, err := s.branches.FindByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load branches: %w", err)
	}
	purls := make(map[shared.ID]string, len(branches))
	for _, b := range branches {
		purls[b.ID()] = b.PURL()
	}
	return purls, nil
}
