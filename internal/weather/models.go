package weather

// Unit conversions. The AWC dataserver reports pressure in inches of
// mercury and takes its search radius in statute miles, while the rest of
// the system works in hectopascals and nautical miles.
const (
	HPaStandard        = 1013.25
	InHgStandard       = 29.92126
	HPaPerInHg         = HPaStandard / InHgStandard
	StatutePerNautical = 1.151
)

// MaxRadiusNM is the ceiling for the METAR search radius. A fetch that
// finds nothing below the ceiling is retried once at exactly this radius.
const MaxRadiusNM = 100.0

// MaxUsableLatitudeDeg guards against the transient bogus positions the
// host simulation reports during startup (latitudes of 80° and above).
const MaxUsableLatitudeDeg = 80.0

// Location is a point on the globe in decimal degrees.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// SearchRequest is a query center plus a search radius in nautical miles.
// Radius escalation only ever moves upward to MaxRadiusNM, exactly once.
type SearchRequest struct {
	Location Location
	RadiusNM float64
}

// Observation is one decoded METAR pressure report. Pressure is the only
// mandatory field; everything else is best effort. Station coordinates are
// pointers because a missing coordinate must stay distinguishable from 0°.
type Observation struct {
	PressureHPa float64  `json:"pressure_hpa"`
	StationID   string   `json:"station_id,omitempty"`
	RawMETAR    string   `json:"raw_metar,omitempty"`
	StationLat  *float64 `json:"station_lat,omitempty"`
	StationLon  *float64 `json:"station_lon,omitempty"`
}

// Sink receives decoded observations. Implementations must be callable
// from the fetch worker goroutine; last write wins.
type Sink interface {
	SetWeather(obs Observation)
}

// Config holds the weather subsystem configuration, converted from the
// config package's WxConfig to avoid a circular import.
type Config struct {
	BaseURL                string
	RequestTimeoutSeconds  int
	SearchRadiusNM         float64
	RefreshIntervalSeconds int
	UserAgent              string
}
