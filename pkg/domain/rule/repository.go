package rule

import (
	"context"

	"github.com/openctemio/observe/pkg/domain/shared"
)

// Repository defines the persistence interface for rules. All Find methods
// return rules in their stable priority order, ties broken by insertion
// order.
type Repository interface {
	// FindByID returns one rule, or shared.ErrNotFound.
	FindByID(ctx context.Context, id shared.ID) (*Rule, error)

	// FindByProduct returns all rules scoped to the product.
	FindByProduct(ctx context.Context, productID shared.ID) ([]*Rule, error)

	// FindByProductGroup returns all rules scoped to the product group.
	FindByProductGroup(ctx context.Context, groupID shared.ID) ([]*Rule, error)

	// FindGeneral returns all rules with no product or group scope.
	FindGeneral(ctx context.Context) ([]*Rule, error)

	// Save upserts a rule.
	Save(ctx context.Context, r *Rule) error
}
