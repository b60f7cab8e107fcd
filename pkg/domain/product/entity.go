// Package product provides the product and branch entities that observations
// attach to. A product is the unit rules and VEX statements scope to; a
// branch tracks per-ref imports of the same product.
package product

import (
	"fmt"
	"strings"
	"time"

	"github.com/openctemio/observe/pkg/domain/shared"
)

// Product is a scannable software product.
type Product struct {
	id             shared.ID
	name           string
	purl           string
	productGroupID *shared.ID

	applyGeneralRules        bool
	riskAcceptanceExpiryDays *int

	notificationWebhookURL string

	createdAt time.Time
	updatedAt time.Time
}

// NewProduct creates a new product.
func NewProduct(name string) (*Product, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: product name is required", shared.ErrValidation)
	}

	now := time.Now().UTC()
	return &Product{
		id:                shared.NewID(),
		name:              strings.TrimSpace(name),
		applyGeneralRules: true,
		createdAt:         now,
		updatedAt:         now,
	}, nil
}

// Data contains all data needed to reconstitute a Product from persistence.
type Data struct {
	ID                       shared.ID
	Name                     string
	PURL                     string
	ProductGroupID           *shared.ID
	ApplyGeneralRules        bool
	RiskAcceptanceExpiryDays *int
	NotificationWebhookURL   string
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// Reconstitute recreates a Product from persistence.
func Reconstitute(data Data) *Product {
	return &Product{
		id:                       data.ID,
		name:                     data.Name,
		purl:                     data.PURL,
		productGroupID:           data.ProductGroupID,
		applyGeneralRules:        data.ApplyGeneralRules,
		riskAcceptanceExpiryDays: data.RiskAcceptanceExpiryDays,
		notificationWebhookURL:   data.NotificationWebhookURL,
		createdAt:                data.CreatedAt,
		updatedAt:                data.UpdatedAt,
	}
}

// Getters

func (p *Product) ID() shared.ID                  { return p.id }
func (p *Product) Name() string                   { return p.name }
func (p *Product) PURL() string                   { return p.purl }
func (p *Product) ProductGroupID() *shared.ID     { return p.productGroupID }
func (p *Product) ApplyGeneralRules() bool        { return p.applyGeneralRules }
func (p *Product) RiskAcceptanceExpiryDays() *int { return p.riskAcceptanceExpiryDays }
func (p *Product) NotificationWebhookURL() string { return p.notificationWebhookURL }
func (p *Product) CreatedAt() time.Time           { return p.createdAt }
func (p *Product) UpdatedAt() time.Time           { return p.updatedAt }

func (p *Product) touch() { p.updatedAt = time.Now().UTC() }

// SetPURL sets the Package-URL identifying the product itself. VEX engines
// use it to decide which documents apply.
func (p *Product) SetPURL(purl string) {
	p.purl = strings.TrimSpace(purl)
	p.touch()
}

// SetProductGroupID assigns or clears the product group.
func (p *Product) SetProductGroupID(groupID *shared.ID) {
	p.productGroupID = groupID
	p.touch()
}

// SetApplyGeneralRules toggles whether general rules run against this
// product's observations.
func (p *Product) SetApplyGeneralRules(apply bool) {
	p.applyGeneralRules = apply
	p.touch()
}

// SetRiskAcceptanceExpiryDays sets the product-level default for how long a
// risk acceptance stays valid. Nil means no automatic expiry.
func (p *Product) SetRiskAcceptanceExpiryDays(days *int) error {
	if days != nil && *days < 0 {
		return fmt.Errorf("%w: risk acceptance expiry days must not be negative", shared.ErrValidation)
	}
	p.riskAcceptanceExpiryDays = days
	p.touch()
	return nil
}

// SetNotificationWebhookURL sets the webhook observations changes are
// reported to. Empty disables notifications.
func (p *Product) SetNotificationWebhookURL(url string) {
	p.notificationWebhookURL = strings.TrimSpace(url)
	p.touch()
}

// Branch is one ref of a product, e.g. a git branch or a release line.
// Imports carry a branch name so findings on different refs do not collide.
type Branch struct {
	id        shared.ID
	productID shared.ID
	name      string
	purl      string

	lastImport *time.Time

	createdAt time.Time
	updatedAt time.Time
}

// NewBranch creates a new branch for a product.
func NewBranch(productID shared.ID, name string) (*Branch, error) {
	if productID.IsZero() {
		return nil, fmt.Errorf("%w: product id is required", shared.ErrValidation)
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: branch name is required", shared.ErrValidation)
	}

	now := time.Now().UTC()
	return &Branch{
		id:        shared.NewID(),
		productID: productID,
		name:      strings.TrimSpace(name),
		createdAt: now,
		updatedAt: now,
	}, nil
}

// BranchData contains all data needed to reconstitute a Branch from
// persistence.
type BranchData struct {
	ID         shared.ID
	ProductID  shared.ID
	Name       string
	PURL       string
	LastImport *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ReconstituteBranch recreates a Branch from persistence.
func ReconstituteBranch(data BranchData) *Branch {
	return &Branch{
		id:         data.ID,
		productID:  data.ProductID,
		name:       data.Name,
		purl:       data.PURL,
		lastImport: data.LastImport,
		createdAt:  data.CreatedAt,
		updatedAt:  data.UpdatedAt,
	}
}

func (b *Branch) ID() shared.ID          { return b.id }
func (b *Branch) ProductID() shared.ID   { return b.productID }
func (b *Branch) Name() string           { return b.name }
func (b *Branch) PURL() string           { return b.purl }
func (b *Branch) LastImport() *time.Time { return b.lastImport }
func (b *Branch) CreatedAt() time.Time   { return b.createdAt }
func (b *Branch) UpdatedAt() time.Time   { return b.updatedAt }

// SetPURL sets the branch-level Package-URL, overriding the product's for
// VEX matching on this branch.
func (b *Branch) SetPURL(purl string) {
	b.purl = strings.TrimSpace(purl)
	b.updatedAt = time.Now().UTC()
}

// MarkImported records a completed import on the branch.
func (b *Branch) MarkImported(at time.Time) {
	b.lastImport = &at
	b.updatedAt = time.Now().UTC()
}
