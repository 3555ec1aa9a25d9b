package simulation

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/skyfield/simwx/internal/weather"
	"github.com/skyfield/simwx/pkg/logger"
)

// Ownship is the simulated aircraft whose position drives the weather
// lookups.
type Ownship struct {
	Lat             float64   `json:"lat"`
	Lon             float64   `json:"lon"`
	AltitudeFt      float64   `json:"altitude_ft"`
	HeadingDeg      float64   `json:"heading_deg"`
	SpeedKts        float64   `json:"speed_kts"`
	VerticalRateFPM float64   `json:"vertical_rate_fpm"`
	LastUpdate      time.Time `json:"last_update"`
}

// Config holds the initial ownship state and the position update cadence.
type Config struct {
	InitialLat            float64
	InitialLon            float64
	InitialAltitudeFt     float64
	InitialHeadingDeg     float64
	InitialSpeedKts       float64
	UpdateIntervalSeconds int
}

// Service advances the ownship by dead reckoning on a fixed tick and
// serves as the weather subsystem's position source.
type Service struct {
	logger *logger.Logger

	mu      sync.RWMutex
	ownship Ownship

	interval time.Duration
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  bool
}

// NewService creates a simulation service with the configured ownship.
func NewService(cfg Config, logger *logger.Logger) *Service {
	interval := time.Duration(cfg.UpdateIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Second
	}
	return &Service{
		logger: logger.Named("simulation"),
		ownship: Ownship{
			Lat:        cfg.InitialLat,
			Lon:        cfg.InitialLon,
			AltitudeFt: cfg.InitialAltitudeFt,
			HeadingDeg: cfg.InitialHeadingDeg,
			SpeedKts:   cfg.InitialSpeedKts,
			LastUpdate: time.Now().UTC(),
		},
		interval: interval,
	}
}

// Start begins the position update loop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()

	s.logger.Info("Simulation started",
		logger.Float64("lat", s.ownship.Lat),
		logger.Float64("lon", s.ownship.Lon),
		logger.Duration("update_interval", s.interval))

	s.started = true
	return nil
}

// Stop halts the position update loop.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Info("Simulation stopped")
}

func (s *Service) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.advance()
		}
	}
}

// Position implements weather.PositionSource.
func (s *Service) Position() (weather.Location, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return weather.Location{Lat: s.ownship.Lat, Lon: s.ownship.Lon}, true
}

// Ownship returns a copy of the current ownship state.
func (s *Service) Ownship() Ownship {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ownship
}

// SetPosition teleports the ownship, e.g. to reposition the flight.
func (s *Service) SetPosition(lat, lon, altitudeFt float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("invalid latitude: %f", lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("invalid longitude: %f", lon)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ownship.Lat = lat
	s.ownship.Lon = lon
	s.ownship.AltitudeFt = altitudeFt
	s.ownship.LastUpdate = time.Now().UTC()

	s.logger.Info("Ownship repositioned",
		logger.Float64("lat", lat),
		logger.Float64("lon", lon),
		logger.Float64("altitude_ft", altitudeFt))
	return nil
}

// UpdateControls sets the ownship's target heading, speed and vertical
// rate used by the dead-reckoning loop.
func (s *Service) UpdateControls(headingDeg, speedKts, verticalRateFPM float64) error {
	if headingDeg < 0 || headingDeg >= 360 {
		return fmt.Errorf("invalid heading: %f", headingDeg)
	}
	if speedKts < 0 {
		return fmt.Errorf("invalid speed: %f", speedKts)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ownship.HeadingDeg = headingDeg
	s.ownship.SpeedKts = speedKts
	s.ownship.VerticalRateFPM = verticalRateFPM

	s.logger.Debug("Ownship controls updated",
		logger.Float64("heading", headingDeg),
		logger.Float64("speed_kts", speedKts),
		logger.Float64("vertical_rate_fpm", verticalRateFPM))
	return nil
}

// advance moves the ownship along its heading by dead reckoning.
func (s *Service) advance() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	dt := now.Sub(s.ownship.LastUpdate).Seconds()
	if dt <= 0 {
		return
	}
	s.ownship.LastUpdate = now

	// Aviation heading (0°=N, clockwise) to math angle (0°=E, CCW).
	headingRad := (90 - s.ownship.HeadingDeg) * math.Pi / 180
	distanceNM := s.ownship.SpeedKts * dt / 3600

	// 1° latitude ≈ 60 NM; 1° longitude ≈ 60·cos(lat) NM.
	s.ownship.Lat += distanceNM * math.Sin(headingRad) / 60
	s.ownship.Lon += distanceNM * math.Cos(headingRad) /
		(60 * math.Cos(s.ownship.Lat*math.Pi/180))

	s.ownship.AltitudeFt += s.ownship.VerticalRateFPM * dt / 60
	if s.ownship.AltitudeFt < 0 {
		s.ownship.AltitudeFt = 0
		s.ownship.VerticalRateFPM = 0
	}
}
