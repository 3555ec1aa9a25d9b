package weather

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/skyfield/simwx/pkg/logger"
)

const noDataResponse = `<response><errors/><warnings/><data num_results="0"/></response>`

// fakeAWC is a scripted AWC endpoint that records every request.
type fakeAWC struct {
	mu        sync.Mutex
	radials   []string
	agents    []string
	responses []func(w http.ResponseWriter)
}

func (f *fakeAWC) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		n := len(f.radials)
		f.radials = append(f.radials, rawQueryParam(r.URL.RawQuery, "radialDistance"))
		f.agents = append(f.agents, r.Header.Get("User-Agent"))
		var respond func(w http.ResponseWriter)
		if n < len(f.responses) {
			respond = f.responses[n]
		} else {
			respond = f.responses[len(f.responses)-1]
		}
		f.mu.Unlock()

		respond(w)
	}
}

func (f *fakeAWC) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.radials)
}

// rawQueryParam extracts a query parameter from the raw query string.
// url.Values drops any pair whose value contains a semicolon, which the
// radialDistance value legitimately does.
func rawQueryParam(rawQuery, key string) string {
	for _, kv := range strings.Split(rawQuery, "&") {
		if v, ok := strings.CutPrefix(kv, key+"="); ok {
			dec, err := url.QueryUnescape(v)
			if err != nil {
				return v
			}
			return dec
		}
	}
	return ""
}

func respondWith(body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Write([]byte(body))
	}
}

func respondStatus(code int) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.WriteHeader(code)
	}
}

func newTestFetcher(t *testing.T, awc *fakeAWC) (*Fetcher, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	return newTestFetcherWithSink(t, awc, sink), sink
}

func newTestFetcherWithSink(t *testing.T, awc *fakeAWC, sink Sink) *Fetcher {
	t.Helper()
	server := httptest.NewServer(awc.handler())
	t.Cleanup(server.Close)

	cfg := Config{
		BaseURL:               server.URL,
		RequestTimeoutSeconds: 5,
		UserAgent:             "simwx-test/1.0",
	}
	decoder := NewDecoder(sink, logger.NewNop())
	return NewFetcher(cfg, decoder, logger.NewNop())
}

// failingTransport fails every request with a fixed error and counts the
// attempts that reached it.
type failingTransport struct {
	err   error
	calls int
}

func (ft *failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	ft.calls++
	return nil, ft.err
}

// panickingSink blows up on publication, standing in for a faulty consumer.
type panickingSink struct{}

func (panickingSink) SetWeather(Observation) {
	panic("sink failure")
}

func TestFetchFoundFirstAttempt(t *testing.T) {
	awc := &fakeAWC{responses: []func(http.ResponseWriter){respondWith(fullResponse)}}
	f, sink := newTestFetcher(t, awc)

	if !f.Fetch(Location{Lat: 33.40, Lon: -117.25}, 25) {
		t.Fatal("Fetch() = false, want true")
	}
	if got := awc.requestCount(); got != 1 {
		t.Errorf("request count = %d, want 1", got)
	}
	if len(sink.calls) != 1 {
		t.Errorf("sink called %d times, want 1", len(sink.calls))
	}

	// 25 NM converted to statute miles, then lon and lat at 2 decimals.
	if got, want := awc.radials[0], "22;-117.25,33.40"; got != want {
		t.Errorf("radialDistance = %q, want %q", got, want)
	}
	if got, want := awc.agents[0], "simwx-test/1.0"; got != want {
		t.Errorf("User-Agent = %q, want %q", got, want)
	}
}

func TestFetchWidensRadiusExactlyOnce(t *testing.T) {
	// "Not found" keeps recurring; the fetcher must stop after the single
	// retry at the ceiling no matter what.
	awc := &fakeAWC{responses: []func(http.ResponseWriter){respondWith(noDataResponse)}}
	f, sink := newTestFetcher(t, awc)

	if f.Fetch(Location{Lat: 33.40, Lon: -117.25}, 25) {
		t.Fatal("Fetch() = true, want false")
	}
	if got := awc.requestCount(); got != 2 {
		t.Fatalf("request count = %d, want 2", got)
	}
	if len(sink.calls) != 0 {
		t.Errorf("sink called %d times, want 0", len(sink.calls))
	}

	if got, want := awc.radials[0], "22;-117.25,33.40"; got != want {
		t.Errorf("first radialDistance = %q, want %q", got, want)
	}
	// 100 NM ceiling converted to statute miles.
	if got, want := awc.radials[1], "87;-117.25,33.40"; got != want {
		t.Errorf("second radialDistance = %q, want %q", got, want)
	}
}

func TestFetchFindsAfterWidening(t *testing.T) {
	awc := &fakeAWC{responses: []func(http.ResponseWriter){
		respondWith(noDataResponse),
		respondWith(fullResponse),
	}}
	f, sink := newTestFetcher(t, awc)

	if !f.Fetch(Location{Lat: 33.40, Lon: -117.25}, 25) {
		t.Fatal("Fetch() = false, want true")
	}
	if got := awc.requestCount(); got != 2 {
		t.Errorf("request count = %d, want 2", got)
	}
	if len(sink.calls) != 1 {
		t.Errorf("sink called %d times, want 1", len(sink.calls))
	}
}

func TestFetchNoRetryAtCeiling(t *testing.T) {
	awc := &fakeAWC{responses: []func(http.ResponseWriter){respondWith(noDataResponse)}}
	f, _ := newTestFetcher(t, awc)

	if f.Fetch(Location{Lat: 33.40, Lon: -117.25}, MaxRadiusNM) {
		t.Fatal("Fetch() = true, want false")
	}
	if got := awc.requestCount(); got != 1 {
		t.Errorf("request count = %d, want 1", got)
	}
}

func TestFetchNonOKStatusIsTerminal(t *testing.T) {
	awc := &fakeAWC{responses: []func(http.ResponseWriter){respondStatus(http.StatusBadGateway)}}
	f, sink := newTestFetcher(t, awc)

	if f.Fetch(Location{Lat: 33.40, Lon: -117.25}, 25) {
		t.Fatal("Fetch() = true, want false")
	}
	if got := awc.requestCount(); got != 1 {
		t.Errorf("request count = %d, want 1 (no retry on non-OK status)", got)
	}
	if len(sink.calls) != 0 {
		t.Errorf("sink called %d times, want 0", len(sink.calls))
	}
}

func TestFetchServiceErrorIsTerminal(t *testing.T) {
	// An explicit error payload must not trigger the radius retry.
	awc := &fakeAWC{responses: []func(http.ResponseWriter){
		respondWith(`<response><errors><error>Query must be constrained by time</error></errors></response>`),
	}}
	f, sink := newTestFetcher(t, awc)

	if f.Fetch(Location{Lat: 33.40, Lon: -117.25}, 25) {
		t.Fatal("Fetch() = true, want false")
	}
	if got := awc.requestCount(); got != 1 {
		t.Errorf("request count = %d, want 1 (no retry on service error)", got)
	}
	if len(sink.calls) != 0 {
		t.Errorf("sink called %d times, want 0", len(sink.calls))
	}
}

func TestFetchTransportErrorIsTerminal(t *testing.T) {
	awc := &fakeAWC{responses: []func(http.ResponseWriter){respondWith(noDataResponse)}}
	f, sink := newTestFetcher(t, awc)

	// Point the fetcher at a server that's already gone.
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()
	f.cfg.BaseURL = server.URL

	if f.Fetch(Location{Lat: 33.40, Lon: -117.25}, 25) {
		t.Fatal("Fetch() = true, want false")
	}
	if got := awc.requestCount(); got != 0 {
		t.Errorf("request count = %d, want 0", got)
	}
	if len(sink.calls) != 0 {
		t.Errorf("sink called %d times, want 0", len(sink.calls))
	}
}

func TestFetchRetriesOnceWithoutRevocationChecks(t *testing.T) {
	// A revocation-check failure on the primary client must trigger exactly
	// one retry on the relaxed client, which then completes the fetch.
	awc := &fakeAWC{responses: []func(http.ResponseWriter){respondWith(fullResponse)}}
	f, sink := newTestFetcher(t, awc)

	primary := &failingTransport{err: errors.New("schannel: failed to check revocation, error 80092012")}
	f.client.Transport = primary

	if !f.Fetch(Location{Lat: 33.40, Lon: -117.25}, 25) {
		t.Fatal("Fetch() = false, want true via fallback client")
	}
	if primary.calls != 1 {
		t.Errorf("primary client attempts = %d, want 1", primary.calls)
	}
	if got := awc.requestCount(); got != 1 {
		t.Errorf("fallback requests reaching the server = %d, want 1", got)
	}
	if len(sink.calls) != 1 {
		t.Errorf("sink called %d times, want 1", len(sink.calls))
	}
}

func TestFetchGivesUpAfterFallbackFailure(t *testing.T) {
	// When the relaxed retry fails too, the fetch is over: one attempt per
	// client, no third try even if the second error also mentions revocation.
	awc := &fakeAWC{responses: []func(http.ResponseWriter){respondWith(fullResponse)}}
	f, sink := newTestFetcher(t, awc)

	primary := &failingTransport{err: errors.New("x509: revocation status unknown")}
	fallback := &failingTransport{err: errors.New("x509: revocation status unknown")}
	f.client.Transport = primary
	f.noRevokeClient.Transport = fallback

	if f.Fetch(Location{Lat: 33.40, Lon: -117.25}, 25) {
		t.Fatal("Fetch() = true, want false")
	}
	if primary.calls != 1 {
		t.Errorf("primary client attempts = %d, want 1", primary.calls)
	}
	if fallback.calls != 1 {
		t.Errorf("fallback client attempts = %d, want 1", fallback.calls)
	}
	if got := awc.requestCount(); got != 0 {
		t.Errorf("requests reaching the server = %d, want 0", got)
	}
	if len(sink.calls) != 0 {
		t.Errorf("sink called %d times, want 0", len(sink.calls))
	}
}

func TestFetchConvertsPanicToNotFound(t *testing.T) {
	// A panic anywhere downstream, here from the sink on a perfectly good
	// response, must be contained and reported as found=false.
	awc := &fakeAWC{responses: []func(http.ResponseWriter){respondWith(fullResponse)}}
	f := newTestFetcherWithSink(t, awc, panickingSink{})

	if f.Fetch(Location{Lat: 33.40, Lon: -117.25}, 25) {
		t.Error("Fetch() = true after sink panic, want false")
	}
}

func TestIsRevocationError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"revocation keyword", errors.New("schannel: failed to check revocation list"), true},
		{"windows error code 80092012", errors.New("x509: error 80092012"), true},
		{"windows error code 80092013", errors.New("x509: error 80092013"), true},
		{"plain timeout", errors.New("context deadline exceeded"), false},
		{"connection refused", errors.New("dial tcp: connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRevocationError(tt.err); got != tt.want {
				t.Errorf("isRevocationError(%v) = %t, want %t", tt.err, got, tt.want)
			}
		})
	}
}
