package weather

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/skyfield/simwx/pkg/logger"
)

// PositionSource provides the current position of the simulated aircraft.
// ok is false while no position is known yet.
type PositionSource interface {
	Position() (loc Location, ok bool)
}

// Service owns the periodic weather refresh: on every tick it reads the
// aircraft position and submits an update request to the scheduler. Ticks
// that land while a fetch is still running are simply refused by the
// scheduler, so the effective fetch rate adapts to upstream latency.
type Service struct {
	cfg       Config
	scheduler *Scheduler
	positions PositionSource
	cron      *gocron.Scheduler
	logger    *logger.Logger

	mu      sync.Mutex
	started bool
}

// NewService creates the weather refresh service.
func NewService(cfg Config, scheduler *Scheduler, positions PositionSource, logger *logger.Logger) *Service {
	return &Service{
		cfg:       cfg,
		scheduler: scheduler,
		positions: positions,
		cron:      gocron.NewScheduler(time.UTC),
		logger:    logger.Named("wx-service"),
	}
}

// Start schedules the periodic refresh job.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	interval := s.cfg.RefreshIntervalSeconds
	if interval <= 0 {
		return fmt.Errorf("refresh interval must be positive: %d", interval)
	}

	s.logger.Info("Starting weather service",
		logger.Int("refresh_interval_seconds", interval),
		logger.Float64("search_radius_nm", s.cfg.SearchRadiusNM))

	if _, err := s.cron.Every(interval).Seconds().Do(s.refresh); err != nil {
		return fmt.Errorf("failed to schedule weather refresh job: %w", err)
	}
	s.cron.StartAsync()

	s.started = true
	return nil
}

// Stop cancels the refresh job. An in-flight fetch keeps running to its
// natural completion.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info("Stopping weather service")
	s.cron.Stop()
	s.started = false
}

// RequestNow submits an immediate update request, bypassing the refresh
// interval but not the at-most-one-in-flight rule.
func (s *Service) RequestNow() bool {
	loc, ok := s.positions.Position()
	if !ok {
		s.logger.Debug("No aircraft position available, skipping weather refresh")
		return false
	}
	return s.scheduler.RequestUpdate(loc, s.cfg.SearchRadiusNM)
}

func (s *Service) refresh() {
	accepted := s.RequestNow()
	s.logger.Debug("Periodic weather refresh", logger.Bool("accepted", accepted))
}
