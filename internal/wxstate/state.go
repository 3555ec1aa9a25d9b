package wxstate

import (
	"sync"
	"time"

	"github.com/skyfield/simwx/internal/weather"
	"github.com/skyfield/simwx/pkg/logger"
)

// Snapshot is the last published weather observation plus its arrival time.
type Snapshot struct {
	weather.Observation
	UpdatedAt time.Time `json:"updated_at"`
}

// Listener is notified after every store write. Listeners run on the
// writer's goroutine and must not block.
type Listener func(Snapshot)

// Store holds the shared weather state consumed by rendering and physics.
// Last write wins; writers are fetch workers, readers are API handlers.
type Store struct {
	logger *logger.Logger

	mu        sync.RWMutex
	current   *Snapshot
	listeners []Listener
}

// NewStore creates an empty weather state store.
func NewStore(logger *logger.Logger) *Store {
	return &Store{
		logger: logger.Named("wx-state"),
	}
}

// SetWeather publishes a new observation. Implements weather.Sink.
func (s *Store) SetWeather(obs weather.Observation) {
	snap := Snapshot{
		Observation: obs,
		UpdatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	s.current = &snap
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	s.logger.Debug("Weather state updated",
		logger.Float64("pressure_hpa", obs.PressureHPa),
		logger.String("station", obs.StationID))

	for _, fn := range listeners {
		fn(snap)
	}
}

// Get returns the current snapshot; ok is false until the first publish.
func (s *Store) Get() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return Snapshot{}, false
	}
	return *s.current, true
}

// Subscribe registers a listener for future writes.
func (s *Store) Subscribe(fn Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}
