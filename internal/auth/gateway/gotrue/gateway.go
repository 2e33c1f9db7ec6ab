package gotrue

import (
	"context"
	"errors"
	"net/http"

	"calorie/internal/auth/gateway"
	"calorie/internal/auth/models"
	"calorie/pkg/platform/sentinel"
	"calorie/pkg/requestcontext"
)

var _ gateway.Gateway = (*Client)(nil)

func (c *Client) OnSessionChanged(listener gateway.Listener) gateway.Subscription {
	return c.listeners.Add(listener)
}

// FetchCurrentSession returns the persisted session, refreshing it first when
// its access token has expired. A refresh token the server no longer accepts
// resolves to no session.
func (c *Client) FetchCurrentSession(ctx context.Context) (*models.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, err := c.loadLocked(ctx)
	if err != nil || current == nil {
		return nil, err
	}
	if !current.Expired(requestcontext.Now(ctx)) {
		return current, nil
	}
	refreshed, err := c.refreshLocked(ctx, current)
	if errors.Is(err, sentinel.ErrExpired) {
		return nil, nil
	}
	return refreshed, err
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var resp tokenResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", body, &resp, credentialsRejected); err != nil {
		return nil, err
	}
	s := resp.session(requestcontext.Now(ctx))
	if err := c.commitLocked(ctx, models.EventSignedIn, s); err != nil {
		return nil, err
	}
	return s.Clone(), nil
}

// SignUp returns no session when the server answers with a bare user, which
// it does while email confirmation is pending.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata models.Metadata) (*models.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var resp tokenResponse
	body := map[string]any{"email": email, "password": password, "data": metadata}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/signup", "", body, &resp, credentialsRejected); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, nil
	}
	s := resp.session(requestcontext.Now(ctx))
	if err := c.commitLocked(ctx, models.EventSignedIn, s); err != nil {
		return nil, err
	}
	return s.Clone(), nil
}

// SignOut revokes the session server side and forgets it locally. A token
// the server already rejects still signs out.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, err := c.loadLocked(ctx)
	if err != nil {
		return err
	}
	if current == nil {
		return nil
	}
	err = c.do(ctx, http.MethodPost, "/auth/v1/logout", current.AccessToken, nil, nil, tokenRejected)
	if err != nil && !errors.Is(err, sentinel.ErrExpired) {
		return err
	}
	return c.commitLocked(ctx, models.EventSignedOut, nil)
}

func (c *Client) RefreshSession(ctx context.Context) (*models.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, err := c.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, gateway.NewError(sentinel.ErrExpired, 0, "Auth session missing")
	}
	return c.refreshLocked(ctx, current)
}

// refreshLocked exchanges current's refresh token. A rejected token clears
// the persisted session and emits SIGNED_OUT.
func (c *Client) refreshLocked(ctx context.Context, current *models.Session) (*models.Session, error) {
	var resp tokenResponse
	body := map[string]string{"refresh_token": current.RefreshToken}
	err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", "", body, &resp, refreshRejected)
	if errors.Is(err, sentinel.ErrExpired) {
		if clearErr := c.commitLocked(ctx, models.EventSignedOut, nil); clearErr != nil {
			return nil, clearErr
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	s := resp.session(requestcontext.Now(ctx))
	if err := c.commitLocked(ctx, models.EventTokenRefreshed, s); err != nil {
		return nil, err
	}
	return s.Clone(), nil
}

func (c *Client) UpdateUser(ctx context.Context, metadata models.Metadata) (*models.Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, err := c.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, gateway.NewError(sentinel.ErrExpired, http.StatusUnauthorized, "Auth session missing")
	}

	var resp userResponse
	body := map[string]any{"data": metadata}
	if err := c.do(ctx, http.MethodPut, "/auth/v1/user", current.AccessToken, body, &resp, tokenRejected); err != nil {
		return nil, err
	}
	identity := resp.identity()
	next := current.Clone()
	next.User = identity.Clone()
	if err := c.commitLocked(ctx, models.EventUserUpdated, next); err != nil {
		return nil, err
	}
	return &identity, nil
}
