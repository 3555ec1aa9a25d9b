package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/skyfield/simwx/internal/observability"
	"github.com/skyfield/simwx/internal/simulation"
	"github.com/skyfield/simwx/internal/weather"
	"github.com/skyfield/simwx/internal/websocket"
	"github.com/skyfield/simwx/internal/wxstate"
	"github.com/skyfield/simwx/pkg/logger"
)

// Handler contains the API handlers
type Handler struct {
	weatherService *weather.Service
	weatherState   *wxstate.Store
	simService     *simulation.Service
	wsServer       *websocket.Server
	logger         *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(weatherService *weather.Service, weatherState *wxstate.Store, simService *simulation.Service, wsServer *websocket.Server, logger *logger.Logger) *Handler {
	return &Handler{
		weatherService: weatherService,
		weatherState:   weatherState,
		simService:     simService,
		wsServer:       wsServer,
		logger:         logger.Named("api-handler"),
	}
}

// Routes returns the HTTP router
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/weather", h.GetWeather)
		r.Post("/weather/refresh", h.RefreshWeather)

		r.Get("/ownship", h.GetOwnship)
		r.Put("/ownship/position", h.SetOwnshipPosition)
		r.Put("/ownship/controls", h.SetOwnshipControls)

		r.Get("/ws", h.wsServer.HandleConnection)
	})

	r.Handle("/metrics", observability.MetricsHandler())

	return r
}

// GetWeather returns the last published weather observation
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.weatherState.Get()
	if !ok {
		h.respondError(w, http.StatusNotFound, "no weather observation published yet")
		return
	}
	h.respondJSON(w, http.StatusOK, snap)
}

// RefreshWeather submits an immediate weather update request. The response
// only says whether the request was accepted; the fetch itself is
// asynchronous and its outcome surfaces through GET /api/weather.
func (h *Handler) RefreshWeather(w http.ResponseWriter, r *http.Request) {
	accepted := h.weatherService.RequestNow()
	h.respondJSON(w, http.StatusAccepted, map[string]bool{"accepted": accepted})
}

// GetOwnship returns the current simulated aircraft state
func (h *Handler) GetOwnship(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.simService.Ownship())
}

// SetOwnshipPosition teleports the simulated aircraft
func (h *Handler) SetOwnshipPosition(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Lat        float64 `json:"lat"`
		Lon        float64 `json:"lon"`
		AltitudeFt float64 `json:"altitude_ft"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.simService.SetPosition(req.Lat, req.Lon, req.AltitudeFt); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, h.simService.Ownship())
}

// SetOwnshipControls updates the simulated aircraft's movement controls
func (h *Handler) SetOwnshipControls(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HeadingDeg      float64 `json:"heading_deg"`
		SpeedKts        float64 `json:"speed_kts"`
		VerticalRateFPM float64 `json:"vertical_rate_fpm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.simService.UpdateControls(req.HeadingDeg, req.SpeedKts, req.VerticalRateFPM); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, h.simService.Ownship())
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response", logger.Error(err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, msg string) {
	h.respondJSON(w, status, map[string]string{"error": msg})
}
