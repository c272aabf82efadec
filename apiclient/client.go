// Package apiclient provides a low-level, request-signing client for the
// vCider API.
//
// The client knows how to issue properly authenticated HTTP requests, but it
// does not know anything about the resources it accesses, such as nodes or
// networks. Higher-level functionality is built on top of it by the root
// vcider package.
//
// Rather than hard-coding URI patterns, callers should learn the relevant
// links from the root resource:
//
//	ac, err := apiclient.New(&apiclient.Config{
//		BaseURI:     "https://my.vcider.com/api/",
//		Credentials: apiclient.Credentials{AppID: "0", APIID: apiID, APIKey: apiKey},
//	})
//	resp, err := ac.Get(ctx, "/") // the API root resource
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"

	"github.com/vcider/go-vcider/internal/httpclient"
	"github.com/vcider/go-vcider/internal/middleware"
	"github.com/vcider/go-vcider/internal/ratelimit"
	"github.com/vcider/go-vcider/observability"
)

// ErrExcessiveTimeDrift indicates the server rejected a request because the
// signed timestamp was too far from its own clock, and the drift could not be
// resolved: either auto-sync is disabled or a resync-and-retry already failed.
var ErrExcessiveTimeDrift = errors.New("excessive time drift")

// driftMarker is the substring the server places in a 403 body when the
// rejection is specifically due to clock drift. The status code alone is
// ambiguous with other authorization failures.
const driftMarker = "Excessive time drift"

const (
	// DefaultClockOffset is the local-minus-server offset (seconds) assumed
	// before the first sync. It is deliberately slightly stale: servers with
	// a generous verification window accept it as-is, and stricter servers
	// reject the first request, which triggers exactly one auto-resync.
	DefaultClockOffset = 300

	// DefaultServerInfoPath is the well-known server-info resource, relative
	// to the API base. It carries the server time used for clock sync.
	DefaultServerInfoPath = "server_info/"

	// DefaultAppID is the application identifier. Currently always "0".
	DefaultAppID = "0"

	// DefaultRateLimit is the default client-side rate limit (requests per minute).
	DefaultRateLimit = 1000

	// DefaultTimeout is the default HTTP client timeout.
	DefaultTimeout = 30 * time.Second
)

// Response is the outcome of a single API request. Interpretation of the
// status code is up to the caller: expected codes differ per operation
// (GET 200, PUT 204, POST 201, DELETE 204).
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// Config holds configuration for the low-level API client.
type Config struct {
	// BaseURI is the base URI of the API, e.g. "https://my.vcider.com/api/".
	BaseURI string

	// Credentials hold the application and API identifiers plus the secret key.
	// AppID defaults to DefaultAppID when empty.
	Credentials Credentials

	// Algorithm selects the signature hash (defaults to SHA256).
	Algorithm Algorithm

	// AutoSync enables the automatic clock resynchronization-and-retry cycle
	// when the server rejects a request for excessive time drift.
	AutoSync bool

	// HTTPClient is the HTTP client to use (optional).
	HTTPClient *http.Client

	// Timeout sets the HTTP client timeout (defaults to DefaultTimeout).
	Timeout time.Duration

	// RateLimitPerMinute sets the client-side rate limit. Zero means
	// DefaultRateLimit; a negative value disables limiting.
	RateLimitPerMinute int

	// Logger for observability (optional, uses noop logger if nil).
	Logger observability.Logger

	// Metrics recorder for observability (optional, uses noop recorder if nil).
	Metrics observability.MetricsRecorder
}

// Client issues signed requests against a single API endpoint.
//
// The clock offset is owned by the client instance (not process-global), so
// independent clients never interfere, and it is updated atomically so a
// client may be shared between goroutines.
type Client struct {
	serverRoot     string // scheme://host
	basePath       string // path component of the base URI, trailing slash
	serverInfoPath string
	creds          Credentials
	alg            Algorithm
	autoSync       bool

	offset  atomic.Int64 // local time minus server time, seconds
	http    *httpclient.Client
	limiter *rate.Limiter
	logger  observability.Logger
	metrics observability.MetricsRecorder
}

// New creates a low-level API client.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.BaseURI == "" {
		return nil, errors.New("base URI is required")
	}
	if cfg.Credentials.APIID == "" {
		return nil, errors.New("API ID is required")
	}
	if cfg.Credentials.APIKey == "" {
		return nil, errors.New("API key is required")
	}

	creds := cfg.Credentials
	if creds.AppID == "" {
		creds.AppID = DefaultAppID
	}

	alg := cfg.Algorithm
	if alg == "" {
		alg = SHA256
	}
	if _, err := alg.hashFunc(); err != nil {
		return nil, err
	}

	base := cfg.BaseURI
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, errors.Wrap(err, "invalid base URI")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Newf("base URI %q must be absolute", cfg.BaseURI)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = observability.NoopLogger()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observability.NoopMetricsRecorder()
	}

	var limiter *rate.Limiter
	switch {
	case cfg.RateLimitPerMinute == 0:
		limiter = ratelimit.NewRateLimiter(DefaultRateLimit)
	case cfg.RateLimitPerMinute > 0:
		limiter = ratelimit.NewRateLimiter(cfg.RateLimitPerMinute)
	}

	c := &Client{
		serverRoot:     u.Scheme + "://" + u.Host,
		basePath:       u.Path,
		serverInfoPath: DefaultServerInfoPath,
		creds:          creds,
		alg:            alg,
		autoSync:       cfg.AutoSync,
		http: httpclient.New(
			httpclient.WithHTTPClient(cfg.HTTPClient),
			httpclient.WithTimeout(timeout),
			httpclient.WithMiddleware(
				middleware.Observability(logger, metrics),
				middleware.JSONHeaders(),
			),
		),
		limiter: limiter,
		logger:  logger,
		metrics: metrics,
	}
	c.offset.Store(DefaultClockOffset)

	return c, nil
}

// Get performs a GET request. The normal response code is 200.
func (c *Client) Get(ctx context.Context, uri string) (*Response, error) {
	return c.do(ctx, http.MethodGet, c.resolve(uri), nil, false)
}

// Put performs a PUT request. The normal response code is 204.
func (c *Client) Put(ctx context.Context, uri string, body []byte) (*Response, error) {
	return c.do(ctx, http.MethodPut, c.resolve(uri), body, false)
}

// Post performs a POST request. The normal response code is 201, with the
// location of the newly created entity in the Location response header.
func (c *Client) Post(ctx context.Context, uri string, body []byte) (*Response, error) {
	return c.do(ctx, http.MethodPost, c.resolve(uri), body, false)
}

// Delete performs a DELETE request. The normal response code is 204.
func (c *Client) Delete(ctx context.Context, uri string) (*Response, error) {
	return c.do(ctx, http.MethodDelete, c.resolve(uri), nil, false)
}

// ClockOffset returns the current local-minus-server offset in seconds.
func (c *Client) ClockOffset() int64 {
	return c.offset.Load()
}

// resolve turns a caller-supplied URI into the absolute request path.
// A URI starting with "/" (and longer than just "/") is taken as-is; a bare
// "/" means the API base itself; anything else is relative to the base path.
func (c *Client) resolve(uri string) string {
	if strings.HasPrefix(uri, "/") && len(uri) > 1 {
		return uri
	}
	if uri == "/" {
		uri = ""
	}
	return c.basePath + uri
}

// do signs and issues one request. When the server reports excessive clock
// drift and auto-sync is enabled, it resynchronizes the clock and re-issues
// the same request exactly once; the retrying flag makes a second drift
// failure fatal instead of looping.
func (c *Client) do(ctx context.Context, method, uri string, body []byte, retrying bool) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "rate limiter wait failed")
		}
	}

	authHdr, err := AuthHeader(method, uri, body, c.alg, time.Now(), c.offset.Load(), c.creds)
	if err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.serverRoot+uri, reqBody)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build %s %s", method, uri)
	}
	req.Header.Set("Authorization", authHdr)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s failed", method, uri)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read response body for %s %s", method, uri)
	}

	if resp.StatusCode == http.StatusForbidden && bytes.Contains(respBody, []byte(driftMarker)) {
		if c.autoSync && !retrying {
			c.logger.Warn("server reported excessive time drift, resyncing clock",
				observability.Field{Key: "method", Value: method},
				observability.Field{Key: "uri", Value: uri},
			)
			if err := c.TimeSync(ctx); err != nil {
				return nil, errors.Wrap(err, "clock resync failed")
			}
			return c.do(ctx, method, uri, body, true)
		}
		c.metrics.RecordError("request", "ExcessiveTimeDrift")
		return nil, errors.Wrapf(ErrExcessiveTimeDrift, "%s %s: %s", method, uri, string(respBody))
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       respBody,
		Header:     resp.Header,
	}, nil
}

// TimeSync compares the local clock against the server time reported by the
// server-info resource and stores the difference, which is applied to all
// future signed requests.
//
// The request issued here is itself signed with whatever offset currently
// applies; if the drift is extreme it may legitimately fail once more, which
// is reported to the caller rather than retried.
func (c *Client) TimeSync(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, c.resolve(c.serverInfoPath), nil, true)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Newf("time sync: unexpected status %d from %s", resp.StatusCode, c.serverInfoPath)
	}

	var info struct {
		Volatile struct {
			ServerTime json.Number `json:"server_time"`
		} `json:"volatile"`
	}
	if err := json.Unmarshal(resp.Body, &info); err != nil {
		return errors.Wrap(err, "time sync: failed to decode server info")
	}
	serverTime, err := info.Volatile.ServerTime.Int64()
	if err != nil {
		return errors.Wrap(err, "time sync: invalid server time")
	}

	offset := time.Now().Unix() - serverTime
	c.offset.Store(offset)
	c.metrics.RecordClockResync(offset)
	c.logger.Info("clock offset updated",
		observability.Field{Key: "offset_seconds", Value: offset},
	)

	return nil
}
