package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/tonimelisma/dashsync/internal/document"
)

// BackupRequest is one outbound snapshot delivery.
type BackupRequest struct {
	UserID   string
	Document *document.Document
	Type     BackupType
	Source   string
}

// backupResponse is the backup endpoint's reply to both POST and GET.
type backupResponse struct {
	Success     bool            `json:"success"`
	Data        json.RawMessage `json:"data,omitempty"`
	ProjectData json.RawMessage `json:"projectData,omitempty"`
	IsEmpty     bool            `json:"isEmpty,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// Backup posts a snapshot. The body is the document's own fields with
// userId, backupType and backupSource added alongside them.
func (c *Client) Backup(ctx context.Context, req BackupRequest) error {
	if req.Document == nil {
		return errors.New("remote: backup of nil document")
	}

	body, err := backupBody(req)
	if err != nil {
		return err
	}

	respBody, err := c.do(ctx, http.MethodPost, c.backupURL, body)
	if err != nil {
		return err
	}

	var resp backupResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return fmt.Errorf("%w: decoding backup reply: %w", ErrMalformed, err)
	}

	if !resp.Success {
		return &Error{Message: resp.Error, Err: ErrRejected}
	}

	c.logger.Debug("backup delivered",
		slog.String("type", string(req.Type)),
		slog.String("version", req.Document.Version),
	)

	return nil
}

// backupBody flattens the document into a JSON object and adds the
// envelope fields.
func backupBody(req BackupRequest) (map[string]json.RawMessage, error) {
	data, err := document.Marshal(req.Document)
	if err != nil {
		return nil, fmt.Errorf("remote: encoding document: %w", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("remote: flattening document: %w", err)
	}

	for k, v := range map[string]string{
		"userId":       req.UserID,
		"backupType":   string(req.Type),
		"backupSource": req.Source,
	} {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("remote: encoding %s: %w", k, err)
		}

		fields[k] = raw
	}

	return fields, nil
}

// Restore fetches the latest remote snapshot for userID. Absence of data
// (HTTP 404, isEmpty, or no data field) returns (nil, nil).
func (c *Client) Restore(ctx context.Context, userID string) (*document.Document, error) {
	u, err := url.Parse(c.backupURL)
	if err != nil {
		return nil, fmt.Errorf("remote: parsing backup url: %w", err)
	}

	q := u.Query()
	q.Set("userId", userID)
	u.RawQuery = q.Encode()

	respBody, err := c.do(ctx, http.MethodGet, u.String(), nil)
	if errors.Is(err, ErrNotFound) {
		c.logger.Debug("no remote data yet", slog.String("reason", "not found"))
		return nil, nil //nolint:nilnil // nil document = no remote data
	}

	if err != nil {
		return nil, err
	}

	var resp backupResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: decoding restore reply: %w", ErrMalformed, err)
	}

	if resp.IsEmpty {
		c.logger.Debug("no remote data yet", slog.String("reason", "empty"))
		return nil, nil //nolint:nilnil // nil document = no remote data
	}

	if !resp.Success {
		return nil, &Error{Message: resp.Error, Err: ErrRejected}
	}

	raw := resp.Data
	if isNullJSON(raw) {
		raw = resp.ProjectData
	}

	if isNullJSON(raw) {
		c.logger.Debug("no remote data yet", slog.String("reason", "missing data"))
		return nil, nil //nolint:nilnil // nil document = no remote data
	}

	doc, err := document.Unmarshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding remote document: %w", ErrMalformed, err)
	}

	return doc, nil
}

func isNullJSON(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
