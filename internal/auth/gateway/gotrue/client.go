// Package gotrue is the hosted identity provider gateway. It speaks the
// GoTrue REST API (the auth server behind Supabase) and persists the session
// the way the client SDK does, so a restart resumes the signed-in user.
package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"calorie/internal/auth/gateway"
	"calorie/internal/auth/models"
	"calorie/internal/auth/store/session"
	jwttoken "calorie/internal/jwt_token"
	"calorie/pkg/platform/sentinel"
	"calorie/pkg/requestcontext"
)

const defaultStorageKey = "default"

// Client implements gateway.Gateway over HTTP.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	store      session.Store
	storageKey string
	logger     *slog.Logger

	listeners gateway.Listeners
	// mu serializes every session mutation: load, round trip, save, emit.
	mu sync.Mutex
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSessionStore persists the session somewhere other than process memory.
func WithSessionStore(store session.Store) Option {
	return func(c *Client) { c.store = store }
}

// WithStorageKey names the persisted session, one per device.
func WithStorageKey(key string) Option {
	return func(c *Client) { c.storageKey = key }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New builds a client for the auth server at baseURL.
func New(baseURL, anonKey string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		httpClient: &http.Client{Timeout: timeout},
		store:      session.New(),
		storageKey: defaultStorageKey,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// tokenResponse is the auth server's session payload.
type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	User         userResponse `json:"user"`
}

type userResponse struct {
	ID           string          `json:"id"`
	Email        string          `json:"email"`
	UserMetadata models.Metadata `json:"user_metadata"`
	CreatedAt    time.Time       `json:"created_at"`
}

// errorResponse covers the error shapes the auth server has used over time.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (e errorResponse) text() string {
	for _, s := range []string{e.ErrorDescription, e.Msg, e.Message, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

func (u userResponse) identity() models.Identity {
	return models.Identity{
		ID:        u.ID,
		Email:     u.Email,
		Metadata:  u.UserMetadata.Clone(),
		CreatedAt: u.CreatedAt,
	}
}

// session converts the payload, resolving expiry from expires_at, then
// expires_in, then the access token's own exp claim.
func (t tokenResponse) session(now time.Time) *models.Session {
	s := &models.Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		User:         t.User.identity(),
	}
	switch {
	case t.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(t.ExpiresAt, 0).UTC()
	case t.ExpiresIn > 0:
		s.ExpiresAt = now.Add(time.Duration(t.ExpiresIn) * time.Second).UTC().Truncate(time.Second)
	default:
		if claims, err := jwttoken.ParseUnverified(t.AccessToken); err == nil && claims.ExpiresAt != nil {
			s.ExpiresAt = claims.ExpiresAt.UTC()
		}
	}
	return s
}

// classifier maps a rejected status to a sentinel kind for one endpoint.
type classifier func(status int) error

func credentialsRejected(status int) error {
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusUnprocessableEntity:
		return sentinel.ErrInvalidCredentials
	}
	return sentinel.ErrUnavailable
}

func refreshRejected(status int) error {
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized:
		return sentinel.ErrExpired
	}
	return sentinel.ErrUnavailable
}

func tokenRejected(status int) error {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return sentinel.ErrExpired
	}
	return sentinel.ErrUnavailable
}

// do sends one JSON request and decodes a 2xx body into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path, bearer string, in, out any, classify classifier) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer == "" {
		bearer = c.anonKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	if id := requestcontext.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "identity provider unreachable", "path", path, "error", err)
		return gateway.NewError(sentinel.ErrUnavailable, 0, "identity provider unreachable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return gateway.NewError(sentinel.ErrUnavailable, resp.StatusCode, "failed to read identity provider response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e errorResponse
		_ = json.Unmarshal(raw, &e)
		msg := e.text()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		kind := sentinel.ErrUnavailable
		if resp.StatusCode < 500 {
			kind = classify(resp.StatusCode)
		}
		return gateway.NewError(kind, resp.StatusCode, msg)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return gateway.NewError(sentinel.ErrUnavailable, resp.StatusCode, "malformed identity provider response")
	}
	return nil
}

// loadLocked returns the persisted session, nil if none.
func (c *Client) loadLocked(ctx context.Context) (*models.Session, error) {
	s, err := c.store.Load(ctx, c.storageKey)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to load persisted session", "error", err)
		return nil, gateway.NewError(sentinel.ErrUnavailable, 0, "session storage unavailable")
	}
	return s, nil
}

// commitLocked persists s and emits kind. A nil s clears storage.
func (c *Client) commitLocked(ctx context.Context, kind models.EventKind, s *models.Session) error {
	var err error
	if s == nil {
		err = c.store.Clear(ctx, c.storageKey)
	} else {
		err = c.store.Save(ctx, c.storageKey, s)
	}
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to persist session", "event", string(kind), "error", err)
		return gateway.NewError(sentinel.ErrUnavailable, 0, "session storage unavailable")
	}
	c.listeners.Emit(models.SessionEvent{Kind: kind, Session: s})
	return nil
}
