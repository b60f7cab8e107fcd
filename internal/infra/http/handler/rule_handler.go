package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/openctemio/observe/internal/app"
	"github.com/openctemio/observe/pkg/apierror"
	"github.com/openctemio/observe/pkg/domain/rule"
	"github.com/openctemio/observe/pkg/domain/shared"
	"github.com/openctemio/observe/pkg/logger"
	"github.com/openctemio/observe/pkg/validator"
)

// RuleHandler handles rule-related HTTP requests.
type RuleHandler struct {
	service   *app.RuleService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewRuleHandler creates a new rule handler.
func NewRuleHandler(svc *app.RuleService, v *validator.Validator, log *logger.Logger) *RuleHandler {
	return &RuleHandler{
		service:   svc,
		validator: v,
		logger:    log,
	}
}

// RuleMatchersRequest are the matcher fields of a rule request.
type RuleMatchersRequest struct {
	ScannerName   string `json:"scanner_name" validate:"max=255"`
	ScannerPrefix string `json:"scanner_prefix" validate:"max=255"`

	Title              string `json:"title" validate:"max=1024"`
	Description        string `json:"description" validate:"max=1024"`
	ComponentName      string `json:"component_name" validate:"max=1024"`
	DockerImageName    string `json:"docker_image_name" validate:"max=1024"`
	EndpointURL        string `json:"endpoint_url" validate:"max=1024"`
	ServiceName        string `json:"service_name" validate:"max=1024"`
	SourceFile         string `json:"source_file" validate:"max=1024"`
	CloudResource      string `json:"cloud_resource" validate:"max=1024"`
	KubernetesResource string `json:"kubernetes_resource" validate:"max=1024"`
}

// CreateRuleRequest represents the request to create a rule.
type CreateRuleRequest struct {
	Name           string `json:"name" validate:"required,min=1,max=255"`
	ProductID      string `json:"product_id" validate:"omitempty,uuid"`
	ProductGroupID string `json:"product_group_id" validate:"omitempty,uuid"`

	Matchers RuleMatchersRequest `json:"matchers"`

	NewSeverity      string `json:"new_severity" validate:"omitempty,severity"`
	NewStatus        string `json:"new_status" validate:"omitempty,observation_status"`
	NewJustification string `json:"new_justification" validate:"max=255"`
}

// SetApprovalRequest represents the request to change a rule's approval.
type SetApprovalRequest struct {
	Status string `json:"status" validate:"required,approval_status"`
}

// RuleResponse represents a rule in API responses.
type RuleResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ProductID      string `json:"product_id,omitempty"`
	ProductGroupID string `json:"product_group_id,omitempty"`
	Enabled        bool   `json:"enabled"`
	ApprovalStatus string `json:"approval_status"`

	Matchers RuleMatchersRequest `json:"matchers"`

	NewSeverity      string `json:"new_severity,omitempty"`
	NewStatus        string `json:"new_status,omitempty"`
	NewJustification string `json:"new_justification,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// toRuleResponse converts a domain rule to API response.
func toRuleResponse(r *rule.Rule) RuleResponse {
	m := r.Matchers()
	resp := RuleResponse{
		ID:             r.ID().String(),
		Name:           r.Name(),
		Enabled:        r.Enabled(),
		ApprovalStatus: string(r.ApprovalStatus()),
		Matchers: RuleMatchersRequest{
			ScannerName:        m.ScannerName,
			ScannerPrefix:      m.ScannerPrefix,
			Title:              m.Title,
			Description:        m.Description,
			ComponentName:      m.ComponentName,
			DockerImageName:    m.DockerImageName,
			EndpointURL:        m.EndpointURL,
			ServiceName:        m.ServiceName,
			SourceFile:         m.SourceFile,
			CloudResource:      m.CloudResource,
			KubernetesResource: m.KubernetesResource,
		},
		NewSeverity:      string(r.NewSeverity()),
		NewStatus:        string(r.NewStatus()),
		NewJustification: string(r.NewJustification()),
		CreatedAt:        r.CreatedAt(),
		UpdatedAt:        r.UpdatedAt(),
	}
	if r.ProductID() != nil {
		resp.ProductID = r.ProductID().String()
	}
	if r.ProductGroupID() != nil {
		resp.ProductGroupID = r.ProductGroupID().String()
	}
	return resp
}

// Create handles POST /api/v1/rules.
func (h *RuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}

	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	created, err := h.service.CreateRule(r.Context(), app.CreateRuleInput{
		Name:           req.Name,
		ProductID:      req.ProductID,
		ProductGroupID: req.ProductGroupID,
		Matchers: rule.Matchers{
			ScannerName:        req.Matchers.ScannerName,
			ScannerPrefix:      req.Matchers.ScannerPrefix,
			Title:              req.Matchers.Title,
			Description:        req.Matchers.Description,
			ComponentName:      req.Matchers.ComponentName,
			DockerImageName:    req.Matchers.DockerImageName,
			EndpointURL:        req.Matchers.EndpointURL,
			ServiceName:        req.Matchers.ServiceName,
			SourceFile:         req.Matchers.SourceFile,
			CloudResource:      req.Matchers.CloudResource,
			KubernetesResource: req.Matchers.KubernetesResource,
		},
		NewSeverity:      req.NewSeverity,
		NewStatus:        req.NewStatus,
		NewJustification: req.NewJustification,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toRuleResponse(created))
}

// List handles GET /api/v1/rules.
// With a product_id query parameter it lists the product's rules, otherwise
// the general rules.
func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("product_id")

	var (
		rules []*rule.Rule
		err   error
	)
	if productID != "" {
		rules, err = h.service.ListForProduct(r.Context(), productID)
	} else {
		rules, err = h.service.ListGeneral(r.Context())
	}
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	data := make([]RuleResponse, len(rules))
	for i, rl := range rules {
		data[i] = toRuleResponse(rl)
	}
	writeJSON(w, http.StatusOK, data)
}

// Get handles GET /api/v1/rules/{ruleId}.
func (h *RuleHandler) Get(w http.ResponseWriter, r *http.Request) {
	ruleID := r.PathValue("ruleId")
	if ruleID == "" {
		apierror.BadRequest("Rule ID is required").WriteJSON(w)
		return
	}

	rl, err := h.service.GetRule(r.Context(), ruleID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRuleResponse(rl))
}

// SetApproval handles PUT /api/v1/rules/{ruleId}/approval.
// Approving or rejecting a scoped rule reapplies the product's rule set.
func (h *RuleHandler) SetApproval(w http.ResponseWriter, r *http.Request) {
	ruleID := r.PathValue("ruleId")
	if ruleID == "" {
		apierror.BadRequest("Rule ID is required").WriteJSON(w)
		return
	}

	var req SetApprovalRequest
	if err := decodeJSON(r, &req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}

	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	rl, err := h.service.SetApprovalStatus(r.Context(), ruleID, rule.ApprovalStatus(req.Status))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRuleResponse(rl))
}

// handleServiceError converts service errors to API errors.
func (h *RuleHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		apierror.NotFound("Rule").WriteJSON(w)
	case errors.Is(err, shared.ErrValidation):
		apierror.BadRequest(err.Error()).WriteJSON(w)
	default:
		h.logger.Error("rule service error", "error", err)
		apierror.InternalError(err).WriteJSON(w)
	}
}
