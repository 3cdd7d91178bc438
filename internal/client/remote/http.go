package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/dkarpov/papersync/internal/common"
	"github.com/dkarpov/papersync/internal/logging"
)

// Client is the HTTP implementation of DocumentStore plus the auth and
// presign surface of the server API. It holds the token pair and refreshes
// it once transparently when the access token expires mid-session.
type Client struct {
	baseURL string
	http    *http.Client
	logger  logging.Logger

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

// NewClient constructs a Client for the server at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger logging.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	UserID       string `json:"userId,omitempty"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Register creates an account and signs the client in.
func (c *Client) Register(ctx context.Context, email, password string) (string, error) {
	var resp tokenResponse
	err := c.doOnce(ctx, http.MethodPost, "/api/auth/register", false,
		credentialsRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return "", err
	}
	c.setTokens(resp.AccessToken, resp.RefreshToken)
	return resp.UserID, nil
}

// Login authenticates and stores the token pair. The returned user id is the
// principal all subsequent calls are scoped to.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var resp tokenResponse
	err := c.doOnce(ctx, http.MethodPost, "/api/auth/login", false,
		credentialsRequest{Email: email, Password: password}, &resp)
	if err != nil {
		if errors.Is(err, common.ErrAuthExpired) {
			return "", fmt.Errorf("%w: invalid credentials", common.ErrUnauthorized)
		}
		return "", err
	}
	c.setTokens(resp.AccessToken, resp.RefreshToken)
	return resp.UserID, nil
}

// Logout drops the token pair.
func (c *Client) Logout() {
	c.setTokens("", "")
}

func (c *Client) setTokens(access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = access
	c.refreshToken = refresh
}

func (c *Client) tokens() (string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken, c.refreshToken
}

func (c *Client) refreshSession(ctx context.Context) error {
	_, refresh := c.tokens()
	if refresh == "" {
		return fmt.Errorf("%w: no refresh token", common.ErrUnauthorized)
	}
	var resp tokenResponse
	err := c.doOnce(ctx, http.MethodPost, "/api/auth/refresh", false,
		map[string]string{"refreshToken": refresh}, &resp)
	if err != nil {
		return err
	}
	c.setTokens(resp.AccessToken, resp.RefreshToken)
	c.logger.Debug(ctx, "session tokens refreshed")
	return nil
}

// Ping implements DocumentStore.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/ping", nil, nil)
}

type putResponse struct {
	Version int64 `json:"version"`
}

// Put implements DocumentStore.
func (c *Client) Put(ctx context.Context, doc RemoteDocument) (int64, error) {
	var resp putResponse
	err := c.do(ctx, http.MethodPut, "/api/documents/"+url.PathEscape(doc.Document.SyncID), doc, &resp)
	if err != nil {
		return 0, err
	}
	return resp.Version, nil
}

// Delete implements DocumentStore.
func (c *Client) Delete(ctx context.Context, syncID string, version int64) error {
	p := "/api/documents/" + url.PathEscape(syncID) + "?version=" + strconv.FormatInt(version, 10)
	err := c.do(ctx, http.MethodDelete, p, nil, nil)
	if errors.Is(err, common.ErrNotFound) {
		// already gone; deletion is idempotent
		return nil
	}
	return err
}

// Get implements DocumentStore.
func (c *Client) Get(ctx context.Context, syncID string) (*RemoteDocument, error) {
	var resp RemoteDocument
	err := c.do(ctx, http.MethodGet, "/api/documents/"+url.PathEscape(syncID), nil, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// List implements DocumentStore.
func (c *Client) List(ctx context.Context, since int64) ([]*RemoteDocument, error) {
	var resp []*RemoteDocument
	p := "/api/documents?since=" + strconv.FormatInt(since, 10)
	if err := c.do(ctx, http.MethodGet, p, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

type presignRequest struct {
	Key string `json:"key"`
}

type presignResponse struct {
	URL string `json:"url"`
}

// PresignUpload asks the server for a short-lived URL the object content can
// be PUT to directly.
func (c *Client) PresignUpload(ctx context.Context, key string) (string, error) {
	var resp presignResponse
	if err := c.do(ctx, http.MethodPost, "/api/objects/presign-put", presignRequest{Key: key}, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

// PresignDownload asks the server for a short-lived GET URL for key.
func (c *Client) PresignDownload(ctx context.Context, key string) (string, error) {
	var resp presignResponse
	if err := c.do(ctx, http.MethodPost, "/api/objects/presign-get", presignRequest{Key: key}, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

// DeleteObject removes the stored object behind key.
func (c *Client) DeleteObject(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodPost, "/api/objects/delete", presignRequest{Key: key}, nil)
}

// do performs an authenticated request, refreshing the session once when the
// access token has expired.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	err := c.doOnce(ctx, method, path, true, in, out)
	if !errors.Is(err, common.ErrAuthExpired) {
		return err
	}
	if rerr := c.refreshSession(ctx); rerr != nil {
		return rerr
	}
	return c.doOnce(ctx, method, path, true, in, out)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *Client) doOnce(ctx context.Context, method, path string, authed bool, in, out any) error {
	var body *bytes.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if authed {
		access, _ := c.tokens()
		if access == "" {
			return fmt.Errorf("%w: not signed in", common.ErrUnauthorized)
		}
		req.Header.Set(common.AccessTokenHeaderName, "Bearer "+access)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var e errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return statusError(resp.StatusCode, e.Error)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func classifyTransportError(err error) error {
	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
		return fmt.Errorf("%w: %v", common.ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", common.ErrNetwork, err)
}

func statusError(code int, msg string) error {
	var sentinel error
	switch code {
	case http.StatusBadRequest:
		sentinel = common.ErrValidation
	case http.StatusUnauthorized:
		sentinel = common.ErrAuthExpired
	case http.StatusForbidden:
		sentinel = common.ErrUnauthorized
	case http.StatusNotFound:
		sentinel = common.ErrNotFound
	case http.StatusConflict:
		sentinel = common.ErrVersionConflict
	case http.StatusGone:
		sentinel = common.ErrTombstoned
	default:
		if code >= 500 {
			sentinel = common.ErrInternal
		} else {
			sentinel = common.ErrValidation
		}
	}
	if msg == "" {
		msg = http.StatusText(code)
	}
	return fmt.Errorf("%w: %s", sentinel, msg)
}
