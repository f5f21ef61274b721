// Package upstream is the one-shot HTTP client for the external NHL clubs
// data provider: resolving a club name to its numeric id, and listing a
// club's recent matches. See spec §4.1 and §6.1.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"log/slog"

	"golang.org/x/time/rate"

	"github.com/rinkvault/scheduler/internal/config"
)

// userAgent is an innocuous desktop-browser identifier per spec §4.1.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// Client is the shared HTTP client for the clubs provider.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	logger     *slog.Logger

	maxRetries       int
	baseBackoff      time.Duration
	maxBackoff       time.Duration
	rateLimitBackoff time.Duration

	mu          sync.Mutex
	clubIDCache map[clubCacheKey]int
}

type clubCacheKey struct {
	name     string
	platform string
}

// NewClient creates an upstream HTTP client with rate limiting and retry
// policy sourced from Config.
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	rps := float64(cfg.UpstreamRequestsPerMin) / 60.0
	return &Client{
		httpClient:       &http.Client{Timeout: cfg.UpstreamTimeout},
		baseURL:          cfg.UpstreamBaseURL,
		limiter:          rate.NewLimiter(rate.Limit(rps), 1),
		logger:           logger,
		maxRetries:       cfg.UpstreamMaxRetries,
		baseBackoff:      cfg.UpstreamBaseBackoff,
		maxBackoff:       cfg.UpstreamMaxBackoff,
		rateLimitBackoff: cfg.UpstreamRateLimitBackoff,
		clubIDCache:      make(map[clubCacheKey]int),
	}
}

// ResolveClub resolves a human club name to its upstream numeric id. Results
// are cached in memory keyed by (name, platform) since the mapping is stable
// for the lifetime of the process.
func (c *Client) ResolveClub(ctx context.Context, name, platform string) (int, error) {
	key := clubCacheKey{name: name, platform: platform}

	c.mu.Lock()
	if id, ok := c.clubIDCache[key]; ok {
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	params := url.Values{
		"clubName":       {name},
		"platform":       {platform},
		"maxResultCount": {"5"},
	}

	var results []clubSearchResult
	err := c.withRetry(ctx, "clubs/search", func(ctx context.Context) error {
		body, err := c.get(ctx, "/clubs/search", params)
		if err != nil {
			return err
		}
		if len(body) == 0 {
			results = nil
			return nil
		}
		if err := json.Unmarshal(body, &results); err != nil {
			return &Error{Kind: ErrDecode, Path: "/clubs/search", Err: err}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, &Error{Kind: ErrDecode, Path: "/clubs/search", Err: fmt.Errorf("no club named %q on %s", name, platform)}
	}

	id := results[0].ClubID
	c.mu.Lock()
	c.clubIDCache[key] = id
	c.mu.Unlock()
	return id, nil
}

// ListMatches fetches the upstream's recent club_private matches for a club.
// The upstream returns only a bounded recent window; no older-page pagination
// is attempted (spec §4.1).
func (c *Client) ListMatches(ctx context.Context, clubID int, platform string) ([]Match, error) {
	params := url.Values{
		"matchType": {"club_private"},
		"platform":  {platform},
		"clubIds":   {strconv.Itoa(clubID)},
	}

	var matches []Match
	err := c.withRetry(ctx, "clubs/matches", func(ctx context.Context) error {
		body, err := c.get(ctx, "/clubs/matches", params)
		if err != nil {
			return err
		}
		if len(body) == 0 {
			matches = nil
			return nil
		}
		if err := json.Unmarshal(body, &matches); err != nil {
			// Malformed bodies are treated as an empty result, not an error.
			c.logger.Warn("decode matches: malformed body treated as empty", "club_id", clubID, "error", err)
			matches = nil
			return nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// get performs a single rate-limited GET and classifies the response into a
// tagged *Error on failure. A 200 with an empty or malformed body is not an
// error at this layer — callers decide how to treat decode failures.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &Error{Kind: ErrNetwork, Path: path, Err: err}
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &Error{Kind: ErrPermanent, Path: path, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: ErrNetwork, Path: path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: ErrNetwork, Path: path, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &Error{Kind: ErrRateLimited, StatusCode: resp.StatusCode, Path: path, Err: fmt.Errorf("rate limited")}
	case resp.StatusCode >= 500:
		return nil, &Error{Kind: ErrUpstream5xx, StatusCode: resp.StatusCode, Path: path, Err: fmt.Errorf("server error")}
	case resp.StatusCode >= 400:
		return nil, &Error{Kind: ErrPermanent, StatusCode: resp.StatusCode, Path: path, Err: fmt.Errorf("client error: %s", truncate(body, 200))}
	default:
		return nil, &Error{Kind: ErrDecode, StatusCode: resp.StatusCode, Path: path, Err: fmt.Errorf("unexpected status")}
	}
}

func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
