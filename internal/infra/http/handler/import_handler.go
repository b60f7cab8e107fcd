package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/openctemio/observe/internal/app"
	"github.com/openctemio/observe/internal/app/ingest"
	"github.com/openctemio/observe/pkg/apierror"
	"github.com/openctemio/observe/pkg/domain/observation"
	"github.com/openctemio/observe/pkg/domain/shared"
	"github.com/openctemio/observe/pkg/logger"
	"github.com/openctemio/observe/pkg/validator"
)

// ImportHandler handles scan import requests.
type ImportHandler struct {
	service   *app.ImportService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewImportHandler creates a new import handler.
func NewImportHandler(svc *app.ImportService, v *validator.Validator, log *logger.Logger) *ImportHandler {
	return &ImportHandler{
		service:   svc,
		validator: v,
		logger:    log,
	}
}

// originPayload is the origin block of one uploaded observation.
type originPayload struct {
	ComponentName         string `json:"component_name"`
	ComponentVersion      string `json:"component_version"`
	ComponentPURL         string `json:"component_purl"`
	ComponentCPE          string `json:"component_cpe"`
	ComponentDependencies string `json:"component_dependencies"`

	DockerImageName string `json:"docker_image_name"`
	DockerImageTag  string `json:"docker_image_tag"`

	EndpointURL string `json:"endpoint_url"`
	ServiceName string `json:"service_name"`

	SourceFile      string `json:"source_file"`
	SourceLineStart *int   `json:"source_line_start"`
	SourceLineEnd   *int   `json:"source_line_end"`

	CloudResource      string `json:"cloud_resource"`
	KubernetesResource string `json:"kubernetes_resource"`
}

// evidencePayload is one evidence blob of an uploaded observation.
type evidencePayload struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// candidatePayload is one observation of an uploaded scan file. Severity and
// status are free-form scanner vocabulary and are normalized on ingest.
type candidatePayload struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	Recommendation string `json:"recommendation"`

	ScannerObservationID string `json:"scanner_observation_id"`

	VulnerabilityID string   `json:"vulnerability_id"`
	CVSSScore       *float64 `json:"cvss_score"`
	CVSSVector      string   `json:"cvss_vector"`
	CWE             string   `json:"cwe"`

	Severity string `json:"severity"`
	Status   string `json:"status"`

	Origin     originPayload     `json:"origin"`
	References []string          `json:"references"`
	Evidences  []evidencePayload `json:"evidences"`
}

// toCandidate converts the payload to an ingest candidate.
func (p candidatePayload) toCandidate() ingest.Candidate {
	references := make([]observation.Reference, 0, len(p.References))
	for _, url := range p.References {
		references = append(references, observation.Reference{URL: url})
	}
	evidences := make([]observation.Evidence, 0, len(p.Evidences))
	for _, e := range p.Evidences {
		evidences = append(evidences, observation.Evidence{Name: e.Name, Content: e.Content})
	}

	return ingest.Candidate{
		Title:                p.Title,
		Description:          p.Description,
		Recommendation:       p.Recommendation,
		ScannerObservationID: p.ScannerObservationID,
		Origin: observation.Origin{
			ComponentName:         p.Origin.ComponentName,
			ComponentVersion:      p.Origin.ComponentVersion,
			ComponentPURL:         p.Origin.ComponentPURL,
			ComponentCPE:          p.Origin.ComponentCPE,
			ComponentDependencies: p.Origin.ComponentDependencies,
			DockerImageName:       p.Origin.DockerImageName,
			DockerImageTag:        p.Origin.DockerImageTag,
			EndpointURL:           p.Origin.EndpointURL,
			ServiceName:           p.Origin.ServiceName,
			SourceFile:            p.Origin.SourceFile,
			SourceLineStart:       p.Origin.SourceLineStart,
			SourceLineEnd:         p.Origin.SourceLineEnd,
			CloudResource:         p.Origin.CloudResource,
			KubernetesResource:    p.Origin.KubernetesResource,
		},
		VulnerabilityID: p.VulnerabilityID,
		CVSSScore:       p.CVSSScore,
		CVSSVector:      p.CVSSVector,
		CWE:             p.CWE,
		ParserSeverity:  observation.SeverityFromString(p.Severity),
		ParserStatus:    observation.StatusFromString(p.Status),
		References:      references,
		Evidences:       evidences,
	}
}

// importForm are the multipart form fields accompanying the scan file.
type importForm struct {
	Product string `validate:"required,min=1,max=255"`
	Branch  string `validate:"max=255"`
	Scanner string `validate:"required,min=1,max=255"`
}

// ImportResponse reports the outcome of one import.
type ImportResponse struct {
	New      int `json:"new"`
	Updated  int `json:"updated"`
	Resolved int `json:"resolved"`
	Skipped  int `json:"skipped"`
}

// ImportFile handles POST /api/v1/imports/file.
// The multipart form carries the scan file plus product, branch and scanner
// fields. The file holds a JSON array of observations.
func (h *ImportHandler) ImportFile(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		apierror.BadRequest("Scan file is required").WriteJSON(w)
		return
	}
	defer file.Close()

	form := importForm{
		Product: r.FormValue("product"),
		Branch:  r.FormValue("branch"),
		Scanner: r.FormValue("scanner"),
	}
	if err := h.validator.Validate(form); err != nil {
		writeValidationError(w, err)
		return
	}

	var payload []candidatePayload
	if err := json.NewDecoder(file).Decode(&payload); err != nil {
		apierror.BadRequest("Scan file is not a valid JSON observation list").WriteJSON(w)
		return
	}

	candidates := make([]ingest.Candidate, 0, len(payload))
	for _, p := range payload {
		candidates = append(candidates, p.toCandidate())
	}

	counts, err := h.service.Import(r.Context(), app.ImportInput{
		ProductName:    form.Product,
		BranchName:     form.Branch,
		ScannerName:    form.Scanner,
		UploadFilename: header.Filename,
		Candidates:     candidates,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ImportResponse{
		New:      counts.New,
		Updated:  counts.Updated,
		Resolved: counts.Resolved,
		Skipped:  counts.Skipped,
	})
}

// handleServiceError converts service errors to API errors.
func (h *ImportHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		apierror.NotFound("Product").WriteJSON(w)
	case errors.Is(err, shared.ErrConflict):
		apierror.Conflict(err.Error()).WriteJSON(w)
	case errors.Is(err, shared.ErrValidation):
		apierror.BadRequest(err.Error()).WriteJSON(w)
	default:
		h.logger.Error("import failed", "error", err)
		apierror.InternalError(err).WriteJSON(w)
	}
}
