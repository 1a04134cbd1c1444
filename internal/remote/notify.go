package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Reconnect backoff for the notification socket.
const (
	notifyBaseBackoff = 1 * time.Second
	notifyMaxBackoff  = 60 * time.Second
	backoffFactor     = 2.0
	jitterFraction    = 0.25
)

// Notification is a change announcement pushed by the backup store.
type Notification struct {
	Type      string `json:"type"`
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId,omitempty"`
}

// Listen opens one websocket connection to notifyURL and invokes fn for
// every notification until the connection drops or ctx is canceled. The
// returned error is never nil except on clean context cancellation.
func (c *Client) Listen(ctx context.Context, notifyURL string, fn func(Notification)) error {
	// The websocket library rejects clients with a Timeout; the connection
	// is long-lived and bounded by ctx instead.
	hc := *c.httpClient
	hc.Timeout = 0

	conn, _, err := websocket.Dial(ctx, notifyURL, &websocket.DialOptions{
		HTTPClient: &hc,
		HTTPHeader: http.Header{"User-Agent": []string{c.userAgent}},
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}

		return fmt.Errorf("%w: dialing notifications: %w", ErrUnreachable, err)
	}
	defer conn.CloseNow()

	c.logger.Info("notification channel connected", slog.String("url", redact(notifyURL)))

	for {
		var n Notification
		if err := wsjson.Read(ctx, conn, &n); err != nil {
			if ctx.Err() != nil {
				conn.Close(websocket.StatusNormalClosure, "shutting down")
				return nil
			}

			return fmt.Errorf("remote: reading notification: %w", err)
		}

		fn(n)
	}
}

// Subscribe keeps a notification connection open until ctx is canceled,
// reconnecting with exponential backoff after failures.
func (c *Client) Subscribe(ctx context.Context, notifyURL string, fn func(Notification)) error {
	attempt := 0

	for {
		started := time.Now()
		err := c.Listen(ctx, notifyURL, fn)

		if ctx.Err() != nil {
			return nil
		}

		// A connection that stayed up for a while resets the backoff.
		if time.Since(started) > notifyMaxBackoff {
			attempt = 0
		}

		backoff := calcBackoff(attempt)
		c.logger.Warn("notification channel lost, reconnecting",
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
			slog.String("error", errString(err)),
		)

		if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
			return nil
		}

		attempt++
	}
}

// calcBackoff computes exponential backoff with ±25% jitter.
func calcBackoff(attempt int) time.Duration {
	backoff := float64(notifyBaseBackoff) * math.Pow(backoffFactor, float64(attempt))
	if backoff > float64(notifyMaxBackoff) {
		backoff = float64(notifyMaxBackoff)
	}

	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1) //nolint:gosec // jitter does not need crypto rand

	return time.Duration(backoff + jitter)
}

func errString(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.Canceled) {
		return "canceled"
	}

	return err.Error()
}
