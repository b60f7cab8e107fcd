package app

import (
	"context"
	"fmt"

	"github.com/openctemio/observe/pkg/domain/observation"
	"github.com/openctemio/observe/pkg/domain/product"
	"github.com/openctemio/observe/pkg/domain/shared"
	"github.com/openctemio/observe/pkg/logger"
)

// ObservationService provides read access to observations and manual
// assessment of single observations.
type ObservationService struct {
	observations observation.Repository
	logs         observation.LogRepository
	products     product.Repository
	logger       *logger.Logger
}

// NewObservationService creates a new observation service.
func NewObservationService(
	observations observation.Repository,
	logs observation.LogRepository,
	products product.Repository,
	log *logger.Logger,
) *ObservationService {
	return &ObservationService{
		observations: observations,
		logs:         logs,
		products:     products,
		logger:       log.With("service", "observation"),
	}
}

// ListForProduct returns all observations of a product, in stable order.
func (s *ObservationService) ListForProduct(ctx context.Context, productID string) ([]*observation.Observation, error) {
	id, err := shared.IDFromString(productID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid product id", shared.ErrValidation)
	}
	if _, err := s.products.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.observations.FindByProduct(ctx, id)
}

// Get returns one observation by id.
func (s *ObservationService) Get(ctx context.Context, id string) (*observation.Observation, error) {
	observationID, err := shared.IDFromString(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid observation id", shared.ErrValidation)
	}
	return s.observations.FindByID(ctx, observationID)
}

// AssessInput is a manual assessment of one observation. Empty fields leave
// the corresponding assessment layer untouched.
type AssessInput struct {
	Severity string
	Status   string
	Comment  string
	Actor    string
}

// Assess sets the assessment layer of an observation and logs the change.
func (s *ObservationService) Assess(ctx context.Context, id string, input AssessInput) (*observation.Observation, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	severity := o.AssessmentSeverity()
	if input.Severity != "" {
		severity = observation.Severity(input.Severity)
		if !severity.IsValid() {
			return nil, fmt.Errorf("%w: invalid severity %q", shared.ErrValidation, input.Severity)
		}
	}
	status := o.AssessmentStatus()
	if input.Status != "" {
		status = observation.Status(input.Status)
		if !status.IsValid() {
			return nil, fmt.Errorf("%w: invalid status %q", shared.ErrValidation, input.Status)
		}
	}

	before := o.Snapshot()
	o.SetAssessment(severity, status)
	o.Resolve()
	after := o.Snapshot()

	if err := s.observations.Save(ctx, o); err != nil {
		return nil, fmt.Errorf("failed to save observation: %w", err)
	}

	if !before.Equals(after) {
		actor := input.Actor
		if actor == "" {
			actor = "assessment"
		}
		comment := input.Comment
		if comment == "" {
			comment = "Assessment updated"
		}
		entry := observation.NewLogEntry(o.ID(), before, after, comment, actor)
		if err := s.logs.Append(ctx, entry); err != nil {
			return nil, fmt.Errorf("failed to log assessment: %w", err)
		}
	}

	s.logger.Info("observation assessed", "observation_id", o.ID().String(), "actor", input.Actor)
	return o, nil
}
