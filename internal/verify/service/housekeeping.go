package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/stepauth/internal/verify/metrics"
	"github.com/aussiebroadwan/stepauth/internal/verify/store"
)

// HousekeepingService periodically removes expired challenges and stale
// sessions so the tables do not grow without bound.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Interval time.Duration

	// Clock defaults to time.Now.
	Clock func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService returns a service running every interval, or every
// hour when interval is not positive.
func NewHousekeepingService(st store.Store, logger *slog.Logger, m *metrics.Metrics, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &HousekeepingService{
		Store:    st,
		Logger:   logger,
		Metrics:  m,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the worker in the background. Call Stop to shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until an in-progress cleanup has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup runs one pass. Each deletion is independent; a failure in one does
// not stop the other.
func (s *HousekeepingService) Cleanup(ctx context.Context) {
	now := time.Now()
	if s.Clock != nil {
		now = s.Clock()
	}

	if n, err := s.Store.Challenges().DeleteExpiredChallenges(ctx, now); err != nil {
		s.Logger.Error("failed to delete expired challenges", "error", err)
	} else {
		s.record("challenges", n)
	}

	if n, err := s.Store.Sessions().DeleteStaleSessions(ctx, now); err != nil {
		s.Logger.Error("failed to delete stale sessions", "error", err)
	} else {
		s.record("sessions", n)
	}
}

func (s *HousekeepingService) record(kind string, n int64) {
	s.Logger.Debug("housekeeping pass", "kind", kind, "deleted", n)
	if s.Metrics != nil && n > 0 {
		s.Metrics.HousekeepingDeleted.WithLabelValues(kind).Add(float64(n))
	}
}
