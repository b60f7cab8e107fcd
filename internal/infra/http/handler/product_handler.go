package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/openctemio/observe/internal/app"
	"github.com/openctemio/observe/pkg/apierror"
	"github.com/openctemio/observe/pkg/domain/product"
	"github.com/openctemio/observe/pkg/domain/shared"
	"github.com/openctemio/observe/pkg/logger"
	"github.com/openctemio/observe/pkg/validator"
)

// ProductHandler handles product-related HTTP requests.
type ProductHandler struct {
	service   *app.ProductService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewProductHandler creates a new product handler.
func NewProductHandler(svc *app.ProductService, v *validator.Validator, log *logger.Logger) *ProductHandler {
	return &ProductHandler{
		service:   svc,
		validator: v,
		logger:    log,
	}
}

// CreateProductRequest represents the request to create a product.
type CreateProductRequest struct {
	Name                     string `json:"name" validate:"required,min=1,max=255"`
	PURL                     string `json:"purl" validate:"max=2048"`
	ProductGroupID           string `json:"product_group_id" validate:"omitempty,uuid"`
	ApplyGeneralRules        *bool  `json:"apply_general_rules"`
	RiskAcceptanceExpiryDays *int   `json:"risk_acceptance_expiry_days" validate:"omitempty,min=0,max=3650"`
	NotificationWebhookURL   string `json:"notification_webhook_url" validate:"omitempty,url,max=2048"`
}

// ProductResponse represents a product in API responses.
type ProductResponse struct {
	ID                       string    `json:"id"`
	Name                     string    `json:"name"`
	PURL                     string    `json:"purl,omitempty"`
	ProductGroupID           string    `json:"product_group_id,omitempty"`
	ApplyGeneralRules        bool      `json:"apply_general_rules"`
	RiskAcceptanceExpiryDays *int      `json:"risk_acceptance_expiry_days,omitempty"`
	NotificationWebhookURL   string    `json:"notification_webhook_url,omitempty"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
}

// toProductResponse converts a domain product to API response.
func toProductResponse(p *product.Product) ProductResponse {
	resp := ProductResponse{
		ID:                       p.ID().String(),
		Name:                     p.Name(),
		PURL:                     p.PURL(),
		ApplyGeneralRules:        p.ApplyGeneralRules(),
		RiskAcceptanceExpiryDays: p.RiskAcceptanceExpiryDays(),
		NotificationWebhookURL:   p.NotificationWebhookURL(),
		CreatedAt:                p.CreatedAt(),
		UpdatedAt:                p.UpdatedAt(),
	}
	if p.ProductGroupID() != nil {
		resp.ProductGroupID = p.ProductGroupID().String()
	}
	return resp
}

// BranchResponse represents a branch in API responses.
type BranchResponse struct {
	ID         string     `json:"id"`
	ProductID  string     `json:"product_id"`
	Name       string     `json:"name"`
	PURL       string     `json:"purl,omitempty"`
	LastImport *time.Time `json:"last_import,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// toBranchResponse converts a domain branch to API response.
func toBranchResponse(b *product.Branch) BranchResponse {
	return BranchResponse{
		ID:         b.ID().String(),
		ProductID:  b.ProductID().String(),
		Name:       b.Name(),
		PURL:       b.PURL(),
		LastImport: b.LastImport(),
		CreatedAt:  b.CreatedAt(),
		UpdatedAt:  b.UpdatedAt(),
	}
}

// Create handles POST /api/v1/products.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := decodeJSON(r, &req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}

	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	p, err := h.service.CreateProduct(r.Context(), app.CreateProductInput{
		Name:                     req.Name,
		PURL:                     req.PURL,
		ProductGroupID:           req.ProductGroupID,
		ApplyGeneralRules:        req.ApplyGeneralRules,
		RiskAcceptanceExpiryDays: req.RiskAcceptanceExpiryDays,
		NotificationWebhookURL:   req.NotificationWebhookURL,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toProductResponse(p))
}

// Get handles GET /api/v1/products/{productId}.
// The path value may be a product id or a product name.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("productId")
	if productID == "" {
		apierror.BadRequest("Product ID is required").WriteJSON(w)
		return
	}

	p, err := h.service.GetProduct(r.Context(), productID)
	if errors.Is(err, shared.ErrValidation) {
		p, err = h.service.GetProductByName(r.Context(), productID)
	}
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(p))
}

// ListBranches handles GET /api/v1/products/{productId}/branches.
func (h *ProductHandler) ListBranches(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("productId")
	if productID == "" {
		apierror.BadRequest("Product ID is required").WriteJSON(w)
		return
	}

	branches, err := h.service.ListBranches(r.Context(), productID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	data := make([]BranchResponse, len(branches))
	for i, b := range branches {
		data[i] = toBranchResponse(b)
	}
	writeJSON(w, http.StatusOK, data)
}

// handleServiceError converts service errors to API errors.
func (h *ProductHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		apierror.NotFound("Product").WriteJSON(w)
	case errors.Is(err, shared.ErrAlreadyExists):
		apierror.Conflict("Product already exists").WriteJSON(w)
	case errors.Is(err, shared.ErrValidation):
		apierror.BadRequest(err.Error()).WriteJSON(w)
	default:
		h.logger.Error("product service error", "error", err)
		apierror.InternalError(err).WriteJSON(w)
	}
}
