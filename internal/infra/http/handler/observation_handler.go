package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/openctemio/observe/internal/app"
	"github.com/openctemio/observe/pkg/apierror"
	"github.com/openctemio/observe/pkg/domain/observation"
	"github.com/openctemio/observe/pkg/domain/shared"
	"github.com/openctemio/observe/pkg/logger"
	"github.com/openctemio/observe/pkg/validator"
)

// ObservationHandler handles observation-related HTTP requests.
type ObservationHandler struct {
	service   *app.ObservationService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewObservationHandler creates a new observation handler.
func NewObservationHandler(svc *app.ObservationService, v *validator.Validator, log *logger.Logger) *ObservationHandler {
	return &ObservationHandler{
		service:   svc,
		validator: v,
		logger:    log,
	}
}

// ObservationResponse represents an observation in API responses. Every
// layer is exposed alongside the derived current fields so that clients can
// see where a severity or status came from.
type ObservationResponse struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	BranchID  string `json:"branch_id,omitempty"`

	ScannerName          string `json:"scanner_name"`
	ScannerObservationID string `json:"scanner_observation_id,omitempty"`
	UploadFilename       string `json:"upload_filename,omitempty"`
	APIConfigurationName string `json:"api_configuration_name,omitempty"`

	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	Recommendation string `json:"recommendation,omitempty"`

	VulnerabilityID string   `json:"vulnerability_id,omitempty"`
	CVSSScore       *float64 `json:"cvss_score,omitempty"`
	CVSSVector      string   `json:"cvss_vector,omitempty"`
	CWE             string   `json:"cwe,omitempty"`

	ParserSeverity string `json:"parser_severity"`
	ParserStatus   string `json:"parser_status,omitempty"`

	RuleSeverity      string `json:"rule_severity,omitempty"`
	RuleStatus        string `json:"rule_status,omitempty"`
	RuleJustification string `json:"rule_justification,omitempty"`
	ProductRuleID     string `json:"product_rule_id,omitempty"`
	GeneralRuleID     string `json:"general_rule_id,omitempty"`

	VEXStatus        string `json:"vex_status,omitempty"`
	VEXJustification string `json:"vex_justification,omitempty"`
	VEXDocumentID    string `json:"vex_document_id,omitempty"`

	AssessmentSeverity string `json:"assessment_severity,omitempty"`
	AssessmentStatus   string `json:"assessment_status,omitempty"`

	CurrentSeverity      string     `json:"current_severity"`
	CurrentStatus        string     `json:"current_status"`
	CurrentJustification string     `json:"current_justification,omitempty"`
	NumericalSeverity    int        `json:"numerical_severity"`
	RiskAcceptanceExpiry *time.Time `json:"risk_acceptance_expiry,omitempty"`

	IdentityHash   string    `json:"identity_hash"`
	ImportLastSeen time.Time `json:"import_last_seen"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// toObservationResponse converts a domain observation to API response.
func toObservationResponse(o *observation.Observation) ObservationResponse {
	resp := ObservationResponse{
		ID:                   o.ID().String(),
		ProductID:            o.ProductID().String(),
		ScannerName:          o.ScannerName(),
		ScannerObservationID: o.ScannerObservationID(),
		UploadFilename:       o.UploadFilename(),
		APIConfigurationName: o.APIConfigurationName(),
		Title:                o.Title(),
		Description:          o.Description(),
		Recommendation:       o.Recommendation(),
		VulnerabilityID:      o.VulnerabilityID(),
		CVSSScore:            o.CVSSScore(),
		CVSSVector:           o.CVSSVector(),
		CWE:                  o.CWE(),
		ParserSeverity:       string(o.ParserSeverity()),
		ParserStatus:         string(o.ParserStatus()),
		RuleSeverity:         string(o.RuleSeverity()),
		RuleStatus:           string(o.RuleStatus()),
		RuleJustification:    string(o.RuleJustification()),
		VEXStatus:            string(o.VEXStatus()),
		VEXJustification:     string(o.VEXJustification()),
		VEXDocumentID:        o.VEXDocumentID(),
		AssessmentSeverity:   string(o.AssessmentSeverity()),
		AssessmentStatus:     string(o.AssessmentStatus()),
		CurrentSeverity:      string(o.CurrentSeverity()),
		CurrentStatus:        string(o.CurrentStatus()),
		CurrentJustification: string(o.CurrentJustification()),
		NumericalSeverity:    o.NumericalSeverity(),
		RiskAcceptanceExpiry: o.RiskAcceptanceExpiry(),
		IdentityHash:         o.IdentityHash(),
		ImportLastSeen:       o.ImportLastSeen(),
		CreatedAt:            o.CreatedAt(),
		UpdatedAt:            o.UpdatedAt(),
	}
	if o.BranchID() != nil {
		resp.BranchID = o.BranchID().String()
	}
	if o.ProductRuleID() != nil {
		resp.ProductRuleID = o.ProductRuleID().String()
	}
	if o.GeneralRuleID() != nil {
		resp.GeneralRuleID = o.GeneralRuleID().String()
	}
	return resp
}

// ListForProduct handles GET /api/v1/products/{productId}/observations.
func (h *ObservationHandler) ListForProduct(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("productId")
	if productID == "" {
		apierror.BadRequest("Product ID is required").WriteJSON(w)
		return
	}

	observations, err := h.service.ListForProduct(r.Context(), productID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	data := make([]ObservationResponse, len(observations))
	for i, o := range observations {
		data[i] = toObservationResponse(o)
	}
	writeJSON(w, http.StatusOK, data)
}

// Get handles GET /api/v1/observations/{observationId}.
func (h *ObservationHandler) Get(w http.ResponseWriter, r *http.Request) {
	observationID := r.PathValue("observationId")
	if observationID == "" {
		apierror.BadRequest("Observation ID is required").WriteJSON(w)
		return
	}

	o, err := h.service.Get(r.Context(), observationID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toObservationResponse(o))
}

// AssessRequest represents a manual assessment of one observation.
type AssessRequest struct {
	Severity string `json:"severity" validate:"omitempty,severity"`
	Status   string `json:"status" validate:"omitempty,observation_status"`
	Comment  string `json:"comment" validate:"max=4096"`
	Actor    string `json:"actor" validate:"max=255"`
}

// Assess handles PUT /api/v1/observations/{observationId}/assessment.
func (h *ObservationHandler) Assess(w http.ResponseWriter, r *http.Request) {
	observationID := r.PathValue("observationId")
	if observationID == "" {
		apierror.BadRequest("Observation ID is required").WriteJSON(w)
		return
	}

	var req AssessRequest
	if err := decodeJSON(r, &req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}

	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	o, err := h.service.Assess(r.Context(), observationID, app.AssessInput{
		Severity: req.Severity,
		Status:   req.Status,
		Comment:  req.Comment,
		Actor:    req.Actor,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toObservationResponse(o))
}

// handleServiceError converts service errors to API errors.
func (h *ObservationHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		apierror.NotFound("Observation").WriteJSON(w)
	case errors.Is(err, shared.ErrValidation):
		apierror.BadRequest(err.Error()).WriteJSON(w)
	default:
		h.logger.Error("observation service error", "error", err)
		apierror.InternalError(err).WriteJSON(w)
	}
}
