package product

import (
	"context"

	"github.com/openctemio/observe/pkg/domain/shared"
)

// Repository defines the persistence interface for products.
type Repository interface {
	// FindByID returns one product, or shared.ErrNotFound.
	FindByID(ctx context.Context, id shared.ID) (*Product, error)

	// FindByName returns the product with the given name, or
	// shared.ErrNotFound.
	FindByName(ctx context.Context, name string) (*Product, error)

	// FindByGroup returns all products in a product group.
	FindByGroup(ctx context.Context, groupID shared.ID) ([]*Product, error)

	// FindWithPURL returns all products that carry a non-empty purl.
	FindWithPURL(ctx context.Context) ([]*Product, error)

	// Save upserts a product.
	Save(ctx context.Context, p *Product) error
}

// BranchRepository defines the persistence interface for branches.
type BranchRepository interface {
	// FindByID returns one branch, or shared.ErrNotFound.
	FindByID(ctx context.Context, id shared.ID) (*Branch, error)

	// FindByName returns the branch of a product with the given name, or
	// shared.ErrNotFound.
	FindByName(ctx context.Context, productID shared.ID, name string) (*Branch, error)

	// FindByProduct returns all branches of a product.
	FindByProduct(ctx context.Context, productID shared.ID) ([]*Branch, error)

	// FindWithPURL returns all branches that carry a non-empty purl.
	FindWithPURL(ctx context.Context) ([]*Branch, error)

	// Save upserts a branch.
	Save(ctx context.Context, b *Branch) error
}
