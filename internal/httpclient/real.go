package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/openkit-go/openkit/internal/protocol"
)

// defaultTimeout matches spec §5's "per-request timeout (default 30 s)".
const defaultTimeout = 30 * time.Second

// statusWire is the JSON envelope the ingest endpoint is assumed to speak
// for status/beacon/new-session responses.
type statusWire struct {
	Capture            bool  `json:"capture"`
	ServerID           int32 `json:"serverId"`
	SendIntervalMs     int64 `json:"sendIntervalMs"`
	MaxBeaconSizeBytes int32 `json:"maxBeaconSizeBytes"`
	CaptureErrors      bool  `json:"captureErrors"`
	CaptureCrashes     bool  `json:"captureCrashes"`
}

// RealClient is the production Client, instrumented with OpenTelemetry
// client-side spans via otelhttp.NewTransport.
type RealClient struct {
	mu  sync.RWMutex
	cfg Config
	hc  *http.Client
}

// New builds a RealClient for the given configuration.
func New(cfg Config) *RealClient {
	if cfg.TimeoutMs == 0 {
		cfg.TimeoutMs = defaultTimeout.Milliseconds()
	}
	return &RealClient{
		cfg: cfg,
		hc: &http.Client{
			Timeout:   time.Duration(cfg.TimeoutMs) * time.Millisecond,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Rebuild replaces the client's configuration, used when the Configuration
// Store's ServerID changes and the base URL derivation must follow it.
func (c *RealClient) Rebuild(cfg Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cfg.TimeoutMs == 0 {
		cfg.TimeoutMs = c.cfg.TimeoutMs
	}
	c.cfg = cfg
	c.hc.Timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
}

func (c *RealClient) config() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

func (c *RealClient) baseURL(path string) string {
	cfg := c.config()
	base := strings.TrimRight(cfg.Endpoint, "/")
	q := url.Values{}
	q.Set("type", "m")
	q.Set("srvid", strconv.Itoa(int(cfg.ServerID)))
	q.Set("app", cfg.ApplicationID)
	return fmt.Sprintf("%s%s?%s", base, path, q.Encode())
}

// SendStatusRequest implements Client.
func (c *RealClient) SendStatusRequest(ctx context.Context) (*protocol.StatusResponse, error) {
	return c.do(ctx, "GET", c.baseURL("/status"), nil)
}

// SendBeaconRequest implements Client.
func (c *RealClient) SendBeaconRequest(ctx context.Context, clientIP, body string) (*protocol.StatusResponse, error) {
	u := c.baseURL("/beacon")
	if clientIP != "" {
		u += "&ip=" + url.QueryEscape(clientIP)
	}
	return c.do(ctx, "POST", u, strings.NewReader(body))
}

// SendNewSessionRequest implements Client.
func (c *RealClient) SendNewSessionRequest(ctx context.Context) (*protocol.StatusResponse, error) {
	return c.do(ctx, "GET", c.baseURL("/newsession"), nil)
}

func (c *RealClient) do(ctx context.Context, method, u string, body io.Reader) (*protocol.StatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	headers := make(map[string][]string, len(resp.Header))
	for k, v := range resp.Header {
		headers[strings.ToLower(k)] = v
	}

	sr := &protocol.StatusResponse{
		HTTPCode:           resp.StatusCode,
		ServerID:           protocol.Unset,
		SendIntervalMs:     protocol.Unset,
		MaxBeaconSizeBytes: protocol.Unset,
		ResponseHeaders:    headers,
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		sr.RetryAfter = protocol.RetryAfterFromHeaders(headers)
	}
	if sr.IsSuccess() {
		wire := statusWire{ServerID: protocol.Unset, SendIntervalMs: protocol.Unset, MaxBeaconSizeBytes: protocol.Unset}
		if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
			return nil, fmt.Errorf("decode status response: %w", err)
		}
		sr.Capture = wire.Capture
		sr.ServerID = wire.ServerID
		sr.SendIntervalMs = wire.SendIntervalMs
		sr.MaxBeaconSizeBytes = wire.MaxBeaconSizeBytes
		sr.CaptureErrors = wire.CaptureErrors
		sr.CaptureCrashes = wire.CaptureCrashes
	}
	return sr, nil
}
