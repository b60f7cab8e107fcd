package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openctemio/observe/pkg/domain/observation"
	"github.com/openctemio/observe/pkg/domain/shared"
	"github.com/openctemio/observe/pkg/logger"
)

func newOpenObservation(t *testing.T, productID shared.ID, title string) *observation.Observation {
	t.Helper()
	o, err := observation.NewObservation(productID, "trivy", title)
	require.NoError(t, err)
	o.SetParserLayer(observation.SeverityHigh, observation.StatusOpen)
	o.Resolve()
	return o
}

func newObservationService(t *testing.T) (*ObservationService, *mockObservationRepo, *mockLogRepo, *mockProductRepo) {
	t.Helper()
	obsRepo := newMockObservationRepo()
	logRepo := &mockLogRepo{}
	productRepo := newMockProductRepo()
	svc := NewObservationService(obsRepo, logRepo, productRepo, logger.NewNop())
	return svc, obsRepo, logRepo, productRepo
}

func TestAssessRewritesCurrentStateAndLogs(t *testing.T) {
	svc, obsRepo, logRepo, _ := newObservationService(t)
	o := newOpenObservation(t, shared.NewID(), "CVE-2024-0001 in openssl")
	require.NoError(t, obsRepo.Save(context.Background(), o))

	assessed, err := svc.Assess(context.Background(), o.ID().String(), AssessInput{
		Severity: "low",
		Status:   "false_positive",
		Comment:  "Not reachable in our build",
		Actor:    "alice",
	})

	require.NoError(t, err)
	assert.Equal(t, observation.SeverityLow, assessed.CurrentSeverity())
	assert.Equal(t, observation.StatusFalsePositive, assessed.CurrentStatus())
	require.Len(t, logRepo.entries, 1)
	entry := logRepo.entries[0]
	assert.Equal(t, "alice", entry.Actor())
	assert.Equal(t, "Not reachable in our build", entry.Comment())
	assert.Equal(t, observation.StatusOpen, entry.StatusBefore())
	assert.Equal(t, observation.StatusFalsePositive, entry.StatusAfter())
}

func TestAssessRejectsInvalidSeverity(t *testing.T) {
	svc, obsRepo, logRepo, _ := newObservationService(t)
	o := newOpenObservation(t, shared.NewID(), "CVE-2024-0002")
	require.NoError(t, obsRepo.Save(context.Background(), o))

	_, err := svc.Assess(context.Background(), o.ID().String(), AssessInput{Severity: "severe"})

	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.Empty(t, logRepo.entries)
}

func TestAssessRejectsInvalidStatus(t *testing.T) {
	svc, obsRepo, _, _ := newObservationService(t)
	o := newOpenObservation(t, shared.NewID(), "CVE-2024-0003")
	require.NoError(t, obsRepo.Save(context.Background(), o))

	_, err := svc.Assess(context.Background(), o.ID().String(), AssessInput{Status: "whatever"})

	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestAssessWithoutChangeWritesNoLog(t *testing.T) {
	svc, obsRepo, logRepo, _ := newObservationService(t)
	o := newOpenObservation(t, shared.NewID(), "CVE-2024-0004")
	require.NoError(t, obsRepo.Save(context.Background(), o))

	// Empty fields leave the assessment layer untouched, so nothing changes.
	assessed, err := svc.Assess(context.Background(), o.ID().String(), AssessInput{Actor: "alice"})

	require.NoError(t, err)
	assert.Equal(t, observation.StatusOpen, assessed.CurrentStatus())
	assert.Empty(t, logRepo.entries)
}

func TestAssessStatusOnlyPreservesSeverity(t *testing.T) {
	svc, obsRepo, _, _ := newObservationService(t)
	o := newOpenObservation(t, shared.NewID(), "CVE-2024-0005")
	require.NoError(t, obsRepo.Save(context.Background(), o))

	_, err := svc.Assess(context.Background(), o.ID().String(), AssessInput{Severity: "low", Actor: "alice"})
	require.NoError(t, err)

	assessed, err := svc.Assess(context.Background(), o.ID().String(), AssessInput{Status: "false_positive", Actor: "alice"})

	require.NoError(t, err)
	assert.Equal(t, observation.SeverityLow, assessed.CurrentSeverity())
	assert.Equal(t, observation.StatusFalsePositive, assessed.CurrentStatus())
}

func TestAssessUnknownObservation(t *testing.T) {
	svc, _, _, _ := newObservationService(t)

	_, err := svc.Assess(context.Background(), shared.NewID().String(), AssessInput{Status: "resolved"})

	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGetRejectsMalformedID(t *testing.T) {
	svc, _, _, _ := newObservationService(t)

	_, err := svc.Get(context.Background(), "not-a-uuid")

	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestListForProductRequiresExistingProduct(t *testing.T) {
	svc, _, _, _ := newObservationService(t)

	_, err := svc.ListForProduct(context.Background(), shared.NewID().String())

	assert.ErrorIs(t, err, shared.ErrNotFound)
}
