package app

import (
	"context"
	"fmt"

	"github.com/openctemio/observe/pkg/domain/product"
	"github.com/openctemio/observe/pkg/domain/shared"
	"github.com/openctemio/observe/pkg/logger"
)

// ProductService manages products and their branches.
type ProductService struct {
	products product.Repository
	branches product.BranchRepository
	logger   *logger.Logger
}

// NewProductService creates a new product service.
func NewProductService(products product.Repository, branches product.BranchRepository, log *logger.Logger) *ProductService {
	return &ProductService{
		products: products,
		branches: branches,
		logger:   log.With("service", "product"),
	}
}

// CreateProductInput describes a new product.
type CreateProductInput struct {
	Name                     string
	PURL                     string
	ProductGroupID           string
	ApplyGeneralRules        *bool
	RiskAcceptanceExpiryDays *int
	NotificationWebhookURL   string
}

// CreateProduct creates a product.
func (s *ProductService) CreateProduct(ctx context.Context, input CreateProductInput) (*product.Product, error) {
	p, err := product.NewProduct(input.Name)
	if err != nil {
		return nil, err
	}

	if input.PURL != "" {
		p.SetPURL(input.PURL)
	}
	if input.ProductGroupID != "" {
		id, err := shared.IDFromString(input.ProductGroupID)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid product group id", shared.ErrValidation)
		}
		p.SetProductGroupID(&id)
	}
	if input.ApplyGeneralRules != nil {
		p.SetApplyGeneralRules(*input.ApplyGeneralRules)
	}
	if input.RiskAcceptanceExpiryDays != nil {
		if err := p.SetRiskAcceptanceExpiryDays(input.RiskAcceptanceExpiryDays); err != nil {
			return nil, err
		}
	}
	if input.NotificationWebhookURL != "" {
		p.SetNotificationWebhookURL(input.NotificationWebhookURL)
	}

	if err := s.products.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save product: %w", err)
	}

	s.logger.Info("product created", "product_id", p.ID().String(), "name", p.Name())
	return p, nil
}

// GetProduct returns one product by id.
func (s *ProductService) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	productID, err := shared.IDFromString(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid product id", shared.ErrValidation)
	}
	return s.products.FindByID(ctx, productID)
}

// GetProductByName returns one product by name.
func (s *ProductService) GetProductByName(ctx context.Context, name string) (*product.Product, error) {
	return s.products.FindByName(ctx, name)
}

// ListBranches returns all branches of a product.
func (s *ProductService) ListBranches(ctx context.Context, productID string) ([]*product.Branch, error) {
	id, err := shared.IDFromString(productID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid product id", shared.ErrValidation)
	}
	return s.branches.FindByProduct(ctx, id)
}
