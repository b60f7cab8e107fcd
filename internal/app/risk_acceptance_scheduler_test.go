package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openctemio/observe/pkg/domain/observation"
	"github.com/openctemio/observe/pkg/domain/shared"
	"github.com/openctemio/observe/pkg/logger"
)

func newTestScheduler(t *testing.T) (*RiskAcceptanceScheduler, *mockObservationRepo, *mockLogRepo) {
	t.Helper()
	obsRepo := newMockObservationRepo()
	logRepo := &mockLogRepo{}
	s := NewRiskAcceptanceScheduler(obsRepo, logRepo, DefaultRiskAcceptanceSchedulerConfig(), logger.NewNop())
	return s, obsRepo, logRepo
}

func riskAcceptedObservation(t *testing.T, expiry time.Time) *observation.Observation {
	t.Helper()
	o := newOpenObservation(t, shared.NewID(), "CVE-2024-0100 in libxml2")
	o.SetAssessment(observation.SeverityHigh, observation.StatusRiskAccepted)
	o.SetRiskAcceptanceExpiry(&expiry)
	o.Resolve()
	return o
}

func TestExpireDueReopensExpiredAcceptance(t *testing.T) {
	s, obsRepo, logRepo := newTestScheduler(t)
	now := time.Now().UTC()
	s.now = func() time.Time { return now }

	o := riskAcceptedObservation(t, now.Add(-time.Hour))
	require.NoError(t, obsRepo.Save(context.Background(), o))

	reopened, err := s.ExpireDue(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, reopened)
	assert.Equal(t, observation.StatusOpen, o.CurrentStatus())
	assert.Equal(t, observation.SeverityHigh, o.CurrentSeverity())
	assert.Nil(t, o.RiskAcceptanceExpiry())
	require.Len(t, logRepo.entries, 1)
	entry := logRepo.entries[0]
	assert.Equal(t, "risk_acceptance_scheduler", entry.Actor())
	assert.Equal(t, "Risk acceptance expired", entry.Comment())
	assert.Equal(t, observation.StatusRiskAccepted, entry.StatusBefore())
	assert.Equal(t, observation.StatusOpen, entry.StatusAfter())
}

func TestExpireDueLeavesFutureAcceptanceAlone(t *testing.T) {
	s, obsRepo, logRepo := newTestScheduler(t)
	now := time.Now().UTC()
	s.now = func() time.Time { return now }

	o := riskAcceptedObservation(t, now.Add(24*time.Hour))
	require.NoError(t, obsRepo.Save(context.Background(), o))

	reopened, err := s.ExpireDue(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, reopened)
	assert.Equal(t, observation.StatusRiskAccepted, o.CurrentStatus())
	assert.Empty(t, logRepo.entries)
}

func TestSchedulerStopWhenDisabled(t *testing.T) {
	obsRepo := newMockObservationRepo()
	logRepo := &mockLogRepo{}
	cfg := RiskAcceptanceSchedulerConfig{Enabled: false, CheckInterval: time.Minute}
	s := NewRiskAcceptanceScheduler(obsRepo, logRepo, cfg, logger.NewNop())

	// Neither call may block or panic when the scheduler never ran.
	s.Start()
	s.Stop()
}
