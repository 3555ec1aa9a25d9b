package weather

import (
	"sync"

	"github.com/skyfield/simwx/internal/observability"
	"github.com/skyfield/simwx/pkg/logger"
)

// fetchFunc runs one fetch cycle; swapped out in tests.
type fetchFunc func(loc Location, radiusNM float64) bool

// inFlight is the handle to the single outstanding fetch. It is owned
// exclusively by the Scheduler and only ever polled, never awaited.
type inFlight struct {
	done chan struct{}
}

func (h *inFlight) completed() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Scheduler is the entry point of the weather subsystem. It admits at most
// one fetch at a time: a new request is only launched once the previous
// handle reports completion. There is no cancellation; a launched fetch
// always runs to its natural end.
type Scheduler struct {
	fetch  fetchFunc
	logger *logger.Logger

	// RequestUpdate is reachable from both the periodic refresh job and
	// the HTTP refresh endpoint, so the handle is mutex-guarded.
	mu       sync.Mutex
	inFlight *inFlight
}

// NewScheduler creates a scheduler launching fetches on the given Fetcher.
func NewScheduler(fetcher *Fetcher, logger *logger.Logger) *Scheduler {
	return newScheduler(fetcher.Fetch, logger)
}

func newScheduler(fetch fetchFunc, logger *logger.Logger) *Scheduler {
	return &Scheduler{
		fetch:  fetch,
		logger: logger.Named("wx-scheduler"),
	}
}

// RequestUpdate asks for a fresh observation around loc. It never blocks:
// the fetch runs on its own goroutine and its outcome is visible only
// through the weather state, logs and metrics.
//
// The request is refused (false, no side effect) when the latitude is
// outside the usable range or a fetch is still in flight. Refusals are a
// normal part of operation, not errors.
func (s *Scheduler) RequestUpdate(loc Location, radiusNM float64) bool {
	if loc.Lat >= MaxUsableLatitudeDeg {
		s.logger.Debug("Ignoring weather update request, latitude out of usable range",
			logger.Float64("lat", loc.Lat))
		observability.WxRequestsRejectedTotal.WithLabelValues("latitude").Inc()
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight != nil && !s.inFlight.completed() {
		s.logger.Debug("Ignoring weather update request, fetch already in flight")
		observability.WxRequestsRejectedTotal.WithLabelValues("in_flight").Inc()
		return false
	}

	handle := &inFlight{done: make(chan struct{})}
	s.inFlight = handle

	go func() {
		defer close(handle.done)
		s.fetch(loc, radiusNM)
	}()

	return true
}
