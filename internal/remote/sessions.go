package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Session is one entry of the registry's active list.
type Session struct {
	ID        string `json:"id"`
	LastSeen  int64  `json:"lastSeen"` // epoch milliseconds
	UserAgent string `json:"userAgent,omitempty"`
}

// SessionList is the registry's reply to heartbeats and listings.
type SessionList struct {
	TotalCount     int       `json:"totalCount"`
	ActiveSessions []Session `json:"activeSessions"`
}

// IDs returns the session ids in registry order.
func (l *SessionList) IDs() []string {
	out := make([]string, len(l.ActiveSessions))
	for i, s := range l.ActiveSessions {
		out[i] = s.ID
	}

	return out
}

type heartbeatRequest struct {
	SessionID string `json:"sessionId"`
	Action    string `json:"action"`
	Timestamp int64  `json:"timestamp"`
}

// Heartbeat refreshes sessionID in the registry and returns the active list.
func (c *Client) Heartbeat(ctx context.Context, sessionID string, now time.Time) (*SessionList, error) {
	body, err := c.do(ctx, http.MethodPost, c.sessionURL, heartbeatRequest{
		SessionID: sessionID,
		Action:    "heartbeat",
		Timestamp: now.UnixMilli(),
	})
	if err != nil {
		return nil, err
	}

	return decodeSessions(body)
}

// Sessions lists the active sessions without refreshing this client's own.
func (c *Client) Sessions(ctx context.Context) (*SessionList, error) {
	body, err := c.do(ctx, http.MethodGet, c.sessionURL, nil)
	if err != nil {
		return nil, err
	}

	return decodeSessions(body)
}

// Ping reports whether the remote is reachable. Any HTTP answer, even an
// error status, counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, c.sessionURL, nil)
	if err != nil && IsOffline(err) {
		return err
	}

	if err != nil && ctx.Err() != nil {
		return err
	}

	return nil
}

func decodeSessions(body []byte) (*SessionList, error) {
	var list SessionList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("%w: decoding session list: %w", ErrMalformed, err)
	}

	if list.TotalCount == 0 && len(list.ActiveSessions) > 0 {
		list.TotalCount = len(list.ActiveSessions)
	}

	return &list, nil
}
