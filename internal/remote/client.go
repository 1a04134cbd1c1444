package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	defaultUserAgent = "dashsync/0.1"

	// maxErrorBody caps how much of an error response is kept for messages.
	maxErrorBody = 4096
)

// BackupType tags why a payload was sent.
type BackupType string

// Backup types understood by the backup endpoint.
const (
	BackupAuto   BackupType = "AUTO"
	BackupManual BackupType = "MANUAL"
	BackupSync   BackupType = "SYNC"
)

// Config holds the options for NewClient.
type Config struct {
	BackupURL         string
	SessionURL        string
	HTTPClient        *http.Client // nil → http.DefaultClient
	UserAgent         string
	RequestsPerSecond float64 // 0 → unlimited
	Logger            *slog.Logger
}

// Client talks to the backup store and the session registry. It performs
// exactly one HTTP attempt per call; retry policy belongs to the caller.
type Client struct {
	backupURL  string
	sessionURL string
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	logger     *slog.Logger

	// sleepFunc waits between websocket reconnects. Tests override it.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewClient creates a remote client.
func NewClient(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := max(1, int(cfg.RequestsPerSecond))
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		backupURL:  cfg.BackupURL,
		sessionURL: cfg.SessionURL,
		httpClient: httpClient,
		limiter:    limiter,
		userAgent:  ua,
		logger:     logger,
		sleepFunc:  timeSleep,
	}
}

// NewHTTPClient builds the HTTP client used for remote calls. A non-empty
// apiToken is attached as a bearer token on every request. timeout 0 leaves
// requests bounded only by their context.
func NewHTTPClient(apiToken string, timeout time.Duration) *http.Client {
	if apiToken == "" {
		return &http.Client{Timeout: timeout}
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: apiToken, TokenType: "Bearer"})
	hc := oauth2.NewClient(context.Background(), ts)
	hc.Timeout = timeout

	return hc
}

// do executes one request and returns the response body of a 2xx reply.
// Network failures wrap ErrUnreachable; non-2xx replies return *Error.
func (c *Client) do(ctx context.Context, method, rawURL string, payload any) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("remote: waiting for rate limiter: %w", err)
		}
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("remote: encoding request: %w", err)
		}

		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("remote: creating request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("remote: request canceled: %w", ctx.Err())
		}

		return nil, fmt.Errorf("%w: %s %s: %w", ErrUnreachable, method, redact(rawURL), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrUnreachable, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg := respBody
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}

		return nil, &Error{
			StatusCode: resp.StatusCode,
			Message:    string(msg),
			Err:        classifyStatus(resp.StatusCode),
		}
	}

	c.logger.Debug("request succeeded",
		slog.String("method", method),
		slog.String("url", redact(rawURL)),
		slog.Int("status", resp.StatusCode),
	)

	return respBody, nil
}

// redact strips the query string so user ids do not end up in logs.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.RawQuery = ""

	return u.String()
}

// timeSleep waits for the given duration or until the context is canceled.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
