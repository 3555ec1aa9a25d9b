package weather

import (
	"fmt"
	"strconv"

	"github.com/skyfield/simwx/pkg/logger"
)

// Decoder pulls a single observation out of an AWC METAR response and
// forwards it to the sink.
type Decoder struct {
	sink   Sink
	logger *logger.Logger
}

// NewDecoder creates a new response decoder publishing to the given sink.
func NewDecoder(sink Sink, logger *logger.Logger) *Decoder {
	return &Decoder{
		sink:   sink,
		logger: logger.Named("wx-decoder"),
	}
}

// Decode processes one response buffer. found=false with a nil error is
// the well-formed empty result ("no station in radius") that lets the
// caller widen the search radius; a non-nil error is a service-reported
// error payload, which is terminal.
//
// Numeric fields that fail to parse are treated as absent rather than
// aborting the decode: an unparseable pressure makes the whole response
// count as "not found" (pressure gates publication), an unparseable
// latitude or longitude merely blanks that one field.
func (d *Decoder) Decode(buf string) (Observation, bool, error) {
	var obs Observation

	// An <error> tag with non-empty content ends interpretation right away.
	pos := 0
	if errTxt := extractField(buf, "<error>", &pos); errTxt != "" {
		d.logger.Error("Weather request returned with error",
			logger.String("error", errTxt))
		return obs, false, fmt.Errorf("weather service error: %s", errTxt)
	}

	pos = 0
	val := extractField(buf, "<altim_in_hg>", &pos)
	if val == "" {
		// The normal outcome when no station reported within the radius.
		return obs, false, nil
	}
	inHg, err := strconv.ParseFloat(val, 64)
	if err != nil {
		d.logger.Warn("Unparseable pressure value in METAR response",
			logger.String("value", val))
		return obs, false, nil
	}
	obs.PressureHPa = inHg * HPaPerInHg

	// The remaining fields appear in document order, but not necessarily
	// after the pressure tag, so rescan from the top of the buffer.
	pos = 0
	obs.RawMETAR = extractField(buf, "<raw_text>", &pos)
	obs.StationID = extractField(buf, "<station_id>", &pos)

	if val := extractField(buf, "<latitude>", &pos); val != "" {
		if lat, err := strconv.ParseFloat(val, 64); err == nil {
			obs.StationLat = &lat
		}
	}
	if val := extractField(buf, "<longitude>", &pos); val != "" {
		if lon, err := strconv.ParseFloat(val, 64); err == nil {
			obs.StationLon = &lon
		}
	}

	d.sink.SetWeather(obs)
	return obs, true, nil
}
