package upstream

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rinkvault/scheduler/internal/config"
)

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		UpstreamBaseURL:          baseURL,
		UpstreamPlatform:         "common-gen5",
		UpstreamRequestsPerMin:   6000, // effectively unthrottled for fast tests
		UpstreamTimeout:          5 * time.Second,
		UpstreamMaxRetries:       3,
		UpstreamBaseBackoff:      time.Millisecond,
		UpstreamMaxBackoff:       4 * time.Millisecond,
		UpstreamRateLimitBackoff: time.Millisecond,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// A 500 is retried until the server starts returning 200 (spec §4.1/§7:
// upstream_5xx is retryable).
func TestClient_ListMatches_RetriesOn5xxThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"matchId":"m1","timestamp":1,"clubs":{},"players":{}}]`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), discardLogger())
	matches, err := c.ListMatches(context.Background(), 100, "common-gen5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 || matches[0].ExternalMatchID != "m1" {
		t.Fatalf("got %+v, want one match m1", matches)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts (2 failures + 1 success), got %d", calls.Load())
	}
}

// A permanent 4xx (not 429) fails immediately without retrying.
func TestClient_ListMatches_PermanentErrorDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), discardLogger())
	_, err := c.ListMatches(context.Background(), 100, "common-gen5")
	if err == nil {
		t.Fatal("expected an error")
	}
	var upErr *Error
	if !asUpstreamError(err, &upErr) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if upErr.Kind != ErrPermanent {
		t.Fatalf("got kind %q, want %q", upErr.Kind, ErrPermanent)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected exactly one attempt, got %d", calls.Load())
	}
}

// Exhausting all retries on a persistently failing 5xx surfaces the last
// classified error rather than hanging or panicking.
func TestClient_ListMatches_ExhaustsRetriesOnPersistent5xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), discardLogger())
	_, err := c.ListMatches(context.Background(), 100, "common-gen5")
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	var upErr *Error
	if !asUpstreamError(err, &upErr) || upErr.Kind != ErrUpstream5xx {
		t.Fatalf("got %v, want an ErrUpstream5xx", err)
	}
}

// 429 is retried with at least the configured rate-limit backoff floor, and
// eventually succeeds.
func TestClient_ResolveClub_RetriesOn429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"clubId":555}]`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), discardLogger())
	id, err := c.ResolveClub(context.Background(), "Rink United", "common-gen5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 555 {
		t.Fatalf("got club id %d, want 555", id)
	}
}

// A resolved club id is cached: a second ResolveClub call for the same
// (name, platform) does not hit the network again.
func TestClient_ResolveClub_CachesResult(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"clubId":42}]`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), discardLogger())
	for i := 0; i < 2; i++ {
		id, err := c.ResolveClub(context.Background(), "Ice Dragons", "common-gen5")
		if err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
		if id != 42 {
			t.Fatalf("call %d: got %d, want 42", i, id)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected exactly one upstream call across both ResolveClub calls, got %d", calls.Load())
	}
}

// A club name with no search results is a decode-kind error, not a panic on
// an empty slice.
func TestClient_ResolveClub_NoResultsIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), discardLogger())
	_, err := c.ResolveClub(context.Background(), "Nobody FC", "common-gen5")
	if err == nil {
		t.Fatal("expected an error for zero search results")
	}
}

// Context cancellation during a retry backoff wait is observed promptly
// rather than waiting out the full backoff.
func TestClient_ListMatches_CancellationDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.UpstreamBaseBackoff = time.Hour
	cfg.UpstreamMaxBackoff = time.Hour
	c := NewClient(cfg, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.ListMatches(ctx, 100, "common-gen5")
	if err == nil {
		t.Fatal("expected an error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("expected cancellation to cut the wait short, took %v", elapsed)
	}
}

// asUpstreamError is a direct type assertion to *Error (it does not unwrap
// like errors.As), used by the tests above; the client returns *Error values
// unwrapped, so the assertion is enough here.
func asUpstreamError(err error, target **Error) bool {
	if e, ok := err.(*Error); ok {
		*target = e
		return true
	}
	return false
}
