package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/autolinkhq/autolink/internal/store"
)

// HousekeepingService periodically materializes the expiry of stale PENDING
// invites. Readers already treat past-expiry invites as expired, so this is
// hygiene for listings and unbounded table growth, not correctness.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates the sweeper. If interval is 0 or negative,
// defaults to 1 hour.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:    st,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker. Non-blocking; call Stop() to shut down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop shuts down the worker, blocking until any in-progress sweep finishes.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Sweep once on startup so a long interval doesn't leave stale rows
	// sitting from before the last shutdown.
	s.Sweep(context.Background())

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Sweep(context.Background())
		}
	}
}

// Sweep runs one expiry pass. Exposed for tests.
func (s *HousekeepingService) Sweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	n, err := s.Store.Invites().ExpireStaleInvites(ctx, time.Now())
	if err != nil {
		s.Logger.Error("failed to expire stale invites", slog.Any("error", err))
		return
	}
	if n > 0 {
		s.Logger.Info("expired stale invites", slog.Int64("count", n))
	}
}
