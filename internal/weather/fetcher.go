package weather

import (
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/skyfield/simwx/internal/observability"
	"github.com/skyfield/simwx/pkg/logger"
)

// awcQueryFmt is the AWC dataserver request. Parameters are, in order:
// base URL, search radius (statute miles), longitude, latitude. The query
// asks for the most recent report of the last two hours and only the five
// fields the decoder knows about.
const awcQueryFmt = "%s?dataSource=metars&requestType=retrieve&format=xml" +
	"&radialDistance=%.0f;%.2f,%.2f&hoursBeforeNow=2&mostRecent=true" +
	"&fields=raw_text,station_id,latitude,longitude,altim_in_hg"

// revocationSignatures mark a failed certificate-revocation-list lookup.
// On localized Windows the word "revocation" is translated, so the two
// error codes seen in the wild are matched as well.
var revocationSignatures = []string{"revocation", "80092012", "80092013"}

// Fetcher retrieves one METAR observation around a location and hands the
// response to the decoder. It is stateless per call; a single Fetcher is
// shared by all fetch workers.
type Fetcher struct {
	cfg            Config
	client         *http.Client
	noRevokeClient *http.Client
	decoder        *Decoder
	logger         *logger.Logger
}

// NewFetcher creates a new weather fetcher.
func NewFetcher(cfg Config, decoder *Decoder, logger *logger.Logger) *Fetcher {
	timeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	return &Fetcher{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		// Fallback client for the single retry after a revocation-check
		// failure. InsecureSkipVerify turns off chain verification
		// entirely, which is wider than skipping just the revocation
		// lookup, but crypto/tls has no revocation-only switch. The
		// relaxation is confined to this client and its one extra
		// attempt.
		noRevokeClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
		decoder: decoder,
		logger:  logger.Named("wx-fetcher"),
	}
}

// Fetch runs one full fetch cycle for the given location and radius. It is
// meant to run on its own goroutine and never lets a fault escape: any
// panic is logged and converted into found=false.
//
// A cycle that decodes no observation below the radius ceiling is repeated
// exactly once at the ceiling, so radius escalation adds at most one extra
// round trip regardless of the starting radius.
func (f *Fetcher) Fetch(loc Location, radiusNM float64) (found bool) {
	start := time.Now()
	log := f.logger.With(logger.String("fetch_id", uuid.NewString()[:8]))

	defer func() {
		if r := recover(); r != nil {
			log.Error("Fetching weather failed with fault", logger.Any("fault", r))
			observability.WxFetchesTotal.WithLabelValues("fault").Inc()
			found = false
		}
		observability.WxFetchDuration.Observe(time.Since(start).Seconds())
	}()

	for repeat := true; repeat; {
		repeat = false

		url := f.buildURL(loc, radiusNM)
		body, status, err := f.get(url, log)
		if err != nil {
			log.Error("Weather request failed", logger.Error(err))
			observability.WxFetchesTotal.WithLabelValues("transport_error").Inc()
			return false
		}
		if status != http.StatusOK {
			log.Error("Could not request weather from aviationweather.gov",
				logger.Int("status", status))
			observability.WxFetchesTotal.WithLabelValues("http_error").Inc()
			return false
		}

		obs, ok, decodeErr := f.decoder.Decode(body)
		if decodeErr != nil {
			// The service answered with an explicit error payload;
			// widening the radius won't help.
			observability.WxFetchesTotal.WithLabelValues("service_error").Inc()
			return false
		}
		if ok {
			log.Info("Weather observation published",
				logger.Float64("pressure_hpa", obs.PressureHPa),
				logger.String("station", obs.StationID),
				logger.Float64("radius_nm", radiusNM))
			observability.WxFetchesTotal.WithLabelValues("found").Inc()
			observability.WxObservationsTotal.Inc()
			return true
		}

		log.Warn("Found no weather in radius", logger.Float64("radius_nm", radiusNM))
		if radiusNM < MaxRadiusNM {
			radiusNM = MaxRadiusNM
			repeat = true
			observability.WxRadiusRetriesTotal.Inc()
		}
	}

	observability.WxFetchesTotal.WithLabelValues("no_data").Inc()
	return false
}

// buildURL assembles the request URL, converting the radius from nautical
// to statute miles.
func (f *Fetcher) buildURL(loc Location, radiusNM float64) string {
	return fmt.Sprintf(awcQueryFmt, f.cfg.BaseURL,
		radiusNM/StatutePerNautical, loc.Lon, loc.Lat)
}

// get performs the HTTP GET, retrying exactly once with revocation
// checking disabled if the first attempt fails with a revocation-check
// error. Any other transport failure is returned as-is.
func (f *Fetcher) get(url string, log *logger.Logger) (string, int, error) {
	resp, err := f.do(f.client, url)
	if err != nil {
		if !isRevocationError(err) {
			return "", 0, err
		}
		log.Warn("Querying revocation list failed, retrying with revocation checks disabled",
			logger.Error(err))
		observability.WxRevocationRetriesTotal.Inc()
		if resp, err = f.do(f.noRevokeClient, url); err != nil {
			return "", 0, err
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("error reading weather response: %w", err)
	}
	return string(body), resp.StatusCode, nil
}

func (f *Fetcher) do(client *http.Client, url string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	return client.Do(req)
}

// isRevocationError reports whether a transport failure looks like a
// failed certificate-revocation-list lookup.
func isRevocationError(err error) bool {
	msg := err.Error()
	for _, s := range revocationSignatures {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
