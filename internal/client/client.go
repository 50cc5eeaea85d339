// Package client talks to the GymDesk REST API on behalf of one user.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/meltforce/gymdesk/internal/auth"
	"github.com/meltforce/gymdesk/internal/docstore"
	"github.com/meltforce/gymdesk/internal/models"
)

// Client calls the REST API with a bearer token. It satisfies the tracker's
// stores, so a session can run on a device without database access.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a Client targeting baseURL.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// StatusError is a non-2xx response. 404 responses unwrap to docstore.ErrNotFound.
type StatusError struct {
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("client: %s returned %d: %s", e.Path, e.Status, e.Body)
}

func (e *StatusError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return docstore.ErrNotFound
	}
	return nil
}

// do sends body (if any) as JSON and decodes the response into out (if any).
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encode %s: %w", path, err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("client: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("client: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("client: decode %s: %w", path, err)
	}
	return nil
}

// Me returns the identity the server derived from the token.
func (c *Client) Me(ctx context.Context) (auth.Identity, error) {
	var id auth.Identity
	err := c.do(ctx, http.MethodGet, "/api/v1/me", nil, &id)
	return id, err
}

func (c *Client) GetRoutine(ctx context.Context, id string) (*models.Routine, error) {
	var r models.Routine
	if err := c.do(ctx, http.MethodGet, "/api/v1/routines/"+url.PathEscape(id), nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRoutines lists routines visible to the caller. Athletes always get
// their own regardless of memberID.
func (c *Client) ListRoutines(ctx context.Context, memberID string) ([]models.Routine, error) {
	path := "/api/v1/routines"
	if memberID != "" {
		path += "?" + url.Values{"member_id": {memberID}}.Encode()
	}
	var out []models.Routine
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) SetProgress(ctx context.Context, routineID, key string, entry models.ProgressEntry) error {
	path := "/api/v1/routines/" + url.PathEscape(routineID) + "/progress/" + url.PathEscape(key)
	return c.do(ctx, http.MethodPut, path, entry, nil)
}

// UpsertLiveSession publishes the caller's snapshot. The server keys it by
// the token's subject, so athleteID is informational.
func (c *Client) UpsertLiveSession(ctx context.Context, _ string, patch models.LivePatch) error {
	return c.do(ctx, http.MethodPut, "/api/v1/live", patch, nil)
}

func (c *Client) DeleteLiveSession(ctx context.Context, _ string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/live", nil, nil)
}

// ListLiveSessions returns the live sessions of the token's tenant; tenantID
// is ignored.
func (c *Client) ListLiveSessions(ctx context.Context, _ string) ([]models.LiveSession, error) {
	var out []models.LiveSession
	err := c.do(ctx, http.MethodGet, "/api/v1/live", nil, &out)
	return out, err
}
