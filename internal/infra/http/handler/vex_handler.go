package handler

import (
	"errors"
	"net/http"

	"github.com/openctemio/observe/internal/app"
	"github.com/openctemio/observe/pkg/apierror"
	"github.com/openctemio/observe/pkg/domain/shared"
	"github.com/openctemio/observe/pkg/logger"
	"github.com/openctemio/observe/pkg/validator"
)

// VEXHandler handles VEX document imports.
type VEXHandler struct {
	service   *app.VEXImportService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewVEXHandler creates a new VEX handler.
func NewVEXHandler(svc *app.VEXImportService, v *validator.Validator, log *logger.Logger) *VEXHandler {
	return &VEXHandler{
		service:   svc,
		validator: v,
		logger:    log,
	}
}

// VEXStatementRequest is one statement of an imported VEX document.
type VEXStatementRequest struct {
	VulnerabilityID string `json:"vulnerability_id" validate:"required,min=1,max=255"`
	ProductPURL     string `json:"product_purl" validate:"required,min=1,max=2048"`
	ComponentPURL   string `json:"component_purl" validate:"max=2048"`
	Status          string `json:"status" validate:"required,vex_status"`
	Justification   string `json:"justification" validate:"max=255"`
	Impact          string `json:"impact" validate:"max=4096"`
	Remediation     string `json:"remediation" validate:"max=4096"`
}

// ImportVEXDocumentRequest represents the request to import a VEX document.
type ImportVEXDocumentRequest struct {
	DocumentID string                `json:"document_id" validate:"required,min=1,max=255"`
	Version    string                `json:"version" validate:"max=64"`
	Author     string                `json:"author" validate:"max=255"`
	Role       string                `json:"role" validate:"max=255"`
	Statements []VEXStatementRequest `json:"statements" validate:"dive"`
}

// ImportVEXDocumentResponse reports the outcome of one VEX import.
type ImportVEXDocumentResponse struct {
	DocumentID          string `json:"document_id"`
	Statements          int    `json:"statements"`
	ObservationsChanged int    `json:"observations_changed"`
}

// Import handles POST /api/v1/vex/documents.
// Re-importing a known document replaces its statements wholesale.
func (h *VEXHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req ImportVEXDocumentRequest
	if err := decodeJSON(r, &req); err != nil {
		apierror.BadRequest("Invalid request body").WriteJSON(w)
		return
	}

	if err := h.validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	statements := make([]app.VEXStatementInput, 0, len(req.Statements))
	for _, s := range req.Statements {
		statements = append(statements, app.VEXStatementInput{
			VulnerabilityID: s.VulnerabilityID,
			ProductPURL:     s.ProductPURL,
			ComponentPURL:   s.ComponentPURL,
			Status:          s.Status,
			Justification:   s.Justification,
			Impact:          s.Impact,
			Remediation:     s.Remediation,
		})
	}

	result, err := h.service.ImportDocument(r.Context(), app.VEXDocumentInput{
		DocumentID: req.DocumentID,
		Version:    req.Version,
		Author:     req.Author,
		Role:       req.Role,
		Statements: statements,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ImportVEXDocumentResponse{
		DocumentID:          result.Document.DocumentID(),
		Statements:          result.Statements,
		ObservationsChanged: result.Applied,
	})
}

// handleServiceError converts service errors to API errors.
func (h *VEXHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrValidation):
		apierror.BadRequest(err.Error()).WriteJSON(w)
	default:
		h.logger.Error("vex import failed", "error", err)
		apierror.InternalError(err).WriteJSON(w)
	}
}
