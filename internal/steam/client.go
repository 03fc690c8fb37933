// Package steam is a rate-limited client for the Dota 2 match endpoints of the Steam WebAPI.
package steam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.steampowered.com"
	matchInterface = "/IDOTA2Match_570"

	// Steam asks for no more than about one request per second
	defaultRate  = 1
	defaultBurst = 2

	// MaxMatchesPerRequest is the cap on matches_requested
	MaxMatchesPerRequest = 100

	defaultRetryAfter = 10 * time.Second
	maxRetries        = 3
)

var (
	// ErrAPIKeyInvalid is returned on 401/403 responses
	ErrAPIKeyInvalid = errors.New("steam API key invalid or revoked")
	// ErrMatchNotFound is returned when GetMatchDetails knows no such match
	ErrMatchNotFound = errors.New("match not found")
)

// RawMatch is one match exactly as the API returned it
type RawMatch struct {
	MatchID     int64
	MatchSeqNum int64
	Raw         json.RawMessage
}

// Client is a rate-limited Steam WebAPI client
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL sets a custom base URL (useful for testing)
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithRateLimit sets the sustained request rate and burst
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the client logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client for apiKey
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("STEAM_API_KEY environment variable not set")
	}

	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(defaultRate, defaultBurst),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "steam")
	return c, nil
}

// doRequest makes a rate-limited GET and decodes the response body into result.
// 429 and 503 responses are retried after Retry-After.
func (c *Client) doRequest(ctx context.Context, method string, params url.Values, result any) error {
	params.Set("key", c.apiKey)
	endpoint := c.baseURL + matchInterface + "/" + method + "/V001/?" + params.Encode()

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%s request failed: %w", method, err)
		}

		switch resp.StatusCode {
		case http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(result)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("failed to decode %s response: %w", method, err)
			}
			return nil

		case http.StatusTooManyRequests, http.StatusServiceUnavailable:
			resp.Body.Close()
			if attempt >= maxRetries {
				return fmt.Errorf("%s: still rate limited after %d retries", method, maxRetries)
			}
			wait := retryAfter(resp.Header.Get("Retry-After"))
			c.logger.Warn("Rate limited, waiting", "method", method, "status", resp.StatusCode, "wait", wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}

		case http.StatusUnauthorized, http.StatusForbidden:
			resp.Body.Close()
			return fmt.Errorf("%s: %w (status %d)", method, ErrAPIKeyInvalid, resp.StatusCode)

		default:
			resp.Body.Close()
			return fmt.Errorf("%s: API returned status %d", method, resp.StatusCode)
		}
	}
}

func retryAfter(header string) time.Duration {
	if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultRetryAfter
}

// GetMatchHistoryBySequenceNum returns up to count matches starting at seq, in sequence order
func (c *Client) GetMatchHistoryBySequenceNum(ctx context.Context, seq int64, count int) ([]RawMatch, error) {
	if count <= 0 || count > MaxMatchesPerRequest {
		count = MaxMatchesPerRequest
	}
	params := url.Values{}
	params.Set("start_at_match_seq_num", strconv.FormatInt(seq, 10))
	params.Set("matches_requested", strconv.Itoa(count))

	var resp struct {
		Result struct {
			Status       int               `json:"status"`
			StatusDetail string            `json:"statusDetail"`
			Matches      []json.RawMessage `json:"matches"`
		} `json:"result"`
	}
	if err := c.doRequest(ctx, "GetMatchHistoryBySequenceNum", params, &resp); err != nil {
		return nil, err
	}
	if resp.Result.Status != 1 {
		return nil, fmt.Errorf("GetMatchHistoryBySequenceNum: status %d: %s", resp.Result.Status, resp.Result.StatusDetail)
	}

	matches := make([]RawMatch, 0, len(resp.Result.Matches))
	for _, raw := range resp.Result.Matches {
		m, err := newRawMatch(raw)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// GetMatchDetails fetches one match by id
func (c *Client) GetMatchDetails(ctx context.Context, matchID int64) (RawMatch, error) {
	params := url.Values{}
	params.Set("match_id", strconv.FormatInt(matchID, 10))

	var resp struct {
		Result json.RawMessage `json:"result"`
	}
	if err := c.doRequest(ctx, "GetMatchDetails", params, &resp); err != nil {
		return RawMatch{}, err
	}

	var probe struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(resp.Result, &probe); err == nil && probe.Error != "" {
		return RawMatch{}, fmt.Errorf("match %d: %w: %s", matchID, ErrMatchNotFound, probe.Error)
	}
	return newRawMatch(resp.Result)
}

// ValidateKey reports whether the configured key is accepted.
// Returns (false, nil) for a rejected key and (false, err) when validity is unknown.
func (c *Client) ValidateKey(ctx context.Context) (bool, error) {
	_, err := c.GetMatchHistoryBySequenceNum(ctx, 1, 1)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrAPIKeyInvalid):
		return false, nil
	default:
		return false, err
	}
}

func newRawMatch(raw json.RawMessage) (RawMatch, error) {
	var ids struct {
		MatchID     int64 `json:"match_id"`
		MatchSeqNum int64 `json:"match_seq_num"`
	}
	if err := json.Unmarshal(raw, &ids); err != nil {
		return RawMatch{}, fmt.Errorf("failed to read match ids: %w", err)
	}
	return RawMatch{MatchID: ids.MatchID, MatchSeqNum: ids.MatchSeqNum, Raw: raw}, nil
}
