package app

import (
	"context"
	"sync"
	"time"

	"github.com/openctemio/observe/internal/metrics"
	"github.com/openctemio/observe/pkg/domain/observation"
	"github.com/openctemio/observe/pkg/logger"
)

// RiskAcceptanceScheduler periodically reopens observations whose risk
// acceptance has expired.
type RiskAcceptanceScheduler struct {
	observations observation.Repository
	logs         observation.LogRepository
	logger       *logger.Logger

	config RiskAcceptanceSchedulerConfig
	stopCh chan struct{}
	wg     sync.WaitGroup
	now    func() time.Time
}

// RiskAcceptanceSchedulerConfig holds configuration for the scheduler.
type RiskAcceptanceSchedulerConfig struct {
	// CheckInterval is how often expired acceptances are checked (default: 1 hour)
	CheckInterval time.Duration

	// Enabled controls whether the scheduler runs (default: true)
	Enabled bool
}

// DefaultRiskAcceptanceSchedulerConfig returns default configuration.
func DefaultRiskAcceptanceSchedulerConfig() RiskAcceptanceSchedulerConfig {
	return RiskAcceptanceSchedulerConfig{
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
	}
}

// NewRiskAcceptanceScheduler creates a new scheduler.
func NewRiskAcceptanceScheduler(
	observations observation.Repository,
	logs observation.LogRepository,
	cfg RiskAcceptanceSchedulerConfig,
	log *logger.Logger,
) *RiskAcceptanceScheduler {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 1 * time.Hour
	}

	return &RiskAcceptanceScheduler{
		observations: observations,
		logs:         logs,
		logger:       log.With("component", "risk_acceptance_scheduler"),
		config:       cfg,
		stopCh:       make(chan struct{}),
		now:          time.Now,
	}
}

// Start starts the scheduler.
func (s *RiskAcceptanceScheduler) Start() {
	if !s.config.Enabled {
		s.logger.Info("risk acceptance scheduler disabled")
		return
	}

	s.wg.Add(1)
	go s.run()
	s.logger.Info("risk acceptance scheduler started", "interval", s.config.CheckInterval)
}

// Stop stops the scheduler gracefully. Safe to call even if Start() was
// never called.
func (s *RiskAcceptanceScheduler) Stop() {
	if !s.config.Enabled {
		return
	}
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("risk acceptance scheduler stopped")
}

func (s *RiskAcceptanceScheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	// Run immediately on start
	s.safeExpire()

	for {
		select {
		case <-ticker.C:
			s.safeExpire()
		case <-s.stopCh:
			return
		}
	}
}

// safeExpire wraps ExpireDue with panic recovery so a single iteration panic
// doesn't crash the scheduler goroutine.
func (s *RiskAcceptanceScheduler) safeExpire() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic during risk acceptance expiry", "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if _, err := s.ExpireDue(ctx); err != nil {
		s.logger.Error("risk acceptance expiry cycle failed", "error", err)
	}
}

// ExpireDue reopens every observation whose risk acceptance expiry lies in
// the past. The reopen is written through the assessment layer so it
// overrides the rule or assessment that accepted the risk.
func (s *RiskAcceptanceScheduler) ExpireDue(ctx context.Context) (int, error) {
	expired, err := s.observations.FindExpiredRiskAcceptances(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}

	reopened := 0
	for _, o := range expired {
		pre := o.Snapshot()

		o.SetAssessment(o.AssessmentSeverity(), observation.StatusOpen)
		o.SetRiskAcceptanceExpiry(nil)
		o.Resolve()

		entry := observation.NewLogEntry(o.ID(), pre, o.Snapshot(), "Risk acceptance expired", "risk_acceptance_scheduler")
		if err := s.logs.Append(ctx, entry); err != nil {
			return reopened, err
		}
		if err := s.observations.Save(ctx, o); err != nil {
			return reopened, err
		}
		reopened++
		metrics.RiskAcceptanceExpiriesTotal.Inc()
	}

	if reopened > 0 {
		s.logger.Info("expired risk acceptances reopened", "count", reopened)
	}
	return reopened, nil
}
