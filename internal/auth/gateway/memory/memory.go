// Package memory is an in-process identity provider. It backs local
// development and tests with the same behavior a hosted provider exposes:
// password accounts, optional email verification, rotating refresh tokens
// and pushed session events.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"calorie/internal/auth/gateway"
	"calorie/internal/auth/models"
	jwttoken "calorie/internal/jwt_token"
	"calorie/pkg/platform/sentinel"
	"calorie/pkg/requestcontext"
)

const minPasswordLength = 6

type account struct {
	identity     models.Identity
	passwordHash []byte
	confirmed    bool
}

// Gateway implements gateway.Gateway in memory. It holds at most one current
// session, like a client SDK bound to one device.
type Gateway struct {
	listeners gateway.Listeners

	mu            sync.Mutex
	accounts      map[string]*account // by normalized email
	refreshTokens map[string]string   // refresh token -> user ID
	current       *models.Session

	tokens              *jwttoken.JWTService
	accessTTL           time.Duration
	requireVerification bool
	bcryptCost          int
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithEmailVerification makes sign-up return no session until ConfirmEmail.
func WithEmailVerification(required bool) Option {
	return func(g *Gateway) { g.requireVerification = required }
}

// WithAccessTokenTTL sets the access token lifetime.
func WithAccessTokenTTL(ttl time.Duration) Option {
	return func(g *Gateway) {
		if ttl > 0 {
			g.accessTTL = ttl
		}
	}
}

// WithBcryptCost trades hashing strength for speed (tests use bcrypt.MinCost).
func WithBcryptCost(cost int) Option {
	return func(g *Gateway) { g.bcryptCost = cost }
}

// New builds an empty provider signing access tokens with signingKey.
func New(signingKey string, opts ...Option) *Gateway {
	g := &Gateway{
		accounts:      make(map[string]*account),
		refreshTokens: make(map[string]string),
		tokens:        jwttoken.NewJWTService(signingKey, "calorie-memory-gateway", "authenticated"),
		accessTTL:     time.Hour,
		bcryptCost:    bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

func (g *Gateway) OnSessionChanged(listener gateway.Listener) gateway.Subscription {
	return g.listeners.Add(listener)
}

func (g *Gateway) FetchCurrentSession(ctx context.Context) (*models.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.current == nil {
		return nil, nil
	}
	if g.current.Expired(requestcontext.Now(ctx)) {
		// Stored access token is stale: refresh it the way client SDKs do.
		session, err := g.refreshLocked(ctx)
		if err != nil {
			return nil, nil
		}
		return session.Clone(), nil
	}
	return g.current.Clone(), nil
}

func (g *Gateway) SignUp(ctx context.Context, email, password string, metadata models.Metadata) (*models.Session, error) {
	key := normalize(email)
	if len(password) < minPasswordLength {
		return nil, gateway.NewError(sentinel.ErrInvalidCredentials, http.StatusUnprocessableEntity, "Password should be at least 6 characters")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.accounts[key]; exists {
		return nil, gateway.NewError(sentinel.ErrInvalidCredentials, http.StatusUnprocessableEntity, "User already registered")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), g.bcryptCost)
	if err != nil {
		return nil, gateway.NewError(sentinel.ErrUnavailable, http.StatusInternalServerError, "failed to hash password")
	}

	acct := &account{
		identity: models.Identity{
			ID:        uuid.NewString(),
			Email:     key,
			Metadata:  metadata.Clone(),
			CreatedAt: requestcontext.Now(ctx),
		},
		passwordHash: hash,
		confirmed:    !g.requireVerification,
	}
	g.accounts[key] = acct

	if !acct.confirmed {
		return nil, nil
	}
	return g.startSessionLocked(ctx, acct, models.EventSignedIn)
}

// ConfirmEmail marks an account verified, as following the emailed link would.
func (g *Gateway) ConfirmEmail(email string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	acct, ok := g.accounts[normalize(email)]
	if ok {
		acct.confirmed = true
	}
	return ok
}

func (g *Gateway) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	acct, ok := g.accounts[normalize(email)]
	if !ok || bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(password)) != nil {
		return nil, gateway.NewError(sentinel.ErrInvalidCredentials, http.StatusBadRequest, "Invalid login credentials")
	}
	if !acct.confirmed {
		return nil, gateway.NewError(sentinel.ErrInvalidCredentials, http.StatusBadRequest, "Email not confirmed")
	}
	return g.startSessionLocked(ctx, acct, models.EventSignedIn)
}

func (g *Gateway) SignOut(_ context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.current == nil {
		return nil
	}
	delete(g.refreshTokens, g.current.RefreshToken)
	g.current = nil
	g.listeners.Emit(models.SessionEvent{Kind: models.EventSignedOut})
	return nil
}

func (g *Gateway) RefreshSession(ctx context.Context) (*models.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	session, err := g.refreshLocked(ctx)
	if err != nil {
		return nil, err
	}
	return session.Clone(), nil
}

func (g *Gateway) UpdateUser(ctx context.Context, metadata models.Metadata) (*models.Identity, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.current == nil {
		return nil, gateway.NewError(sentinel.ErrExpired, http.StatusUnauthorized, "Auth session missing")
	}
	acct, ok := g.accounts[normalize(g.current.User.Email)]
	if !ok {
		return nil, gateway.NewError(sentinel.ErrExpired, http.StatusUnauthorized, "User not found")
	}
	acct.identity.Metadata = metadata.Clone()

	next := g.current.Clone()
	next.User = acct.identity.Clone()
	g.current = next
	g.listeners.Emit(models.SessionEvent{Kind: models.EventUserUpdated, Session: next})

	identity := acct.identity.Clone()
	return &identity, nil
}

// RevokeRefreshTokens invalidates every refresh token of the user with the
// given email, as an administrator or a password reset would.
func (g *Gateway) RevokeRefreshTokens(email string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	acct, ok := g.accounts[normalize(email)]
	if !ok {
		return
	}
	for token, userID := range g.refreshTokens {
		if userID == acct.identity.ID {
			delete(g.refreshTokens, token)
		}
	}
}

// refreshLocked rotates the current session's tokens. A revoked refresh
// token ends the session and reports ErrExpired.
func (g *Gateway) refreshLocked(ctx context.Context) (*models.Session, error) {
	if g.current == nil {
		return nil, gateway.NewError(sentinel.ErrExpired, http.StatusBadRequest, "Refresh Token Not Found")
	}
	userID, ok := g.refreshTokens[g.current.RefreshToken]
	if !ok || userID != g.current.User.ID {
		g.current = nil
		g.listeners.Emit(models.SessionEvent{Kind: models.EventSignedOut})
		return nil, gateway.NewError(sentinel.ErrExpired, http.StatusBadRequest, "Invalid Refresh Token: Refresh Token Not Found")
	}
	delete(g.refreshTokens, g.current.RefreshToken)

	acct, ok := g.accounts[normalize(g.current.User.Email)]
	if !ok {
		g.current = nil
		g.listeners.Emit(models.SessionEvent{Kind: models.EventSignedOut})
		return nil, gateway.NewError(sentinel.ErrExpired, http.StatusBadRequest, "User not found")
	}
	return g.startSessionLocked(ctx, acct, models.EventTokenRefreshed)
}

func (g *Gateway) startSessionLocked(ctx context.Context, acct *account, kind models.EventKind) (*models.Session, error) {
	now := requestcontext.Now(ctx)
	access, err := g.tokens.GenerateAccessToken(acct.identity.ID, acct.identity.Email, now, g.accessTTL)
	if err != nil {
		return nil, gateway.NewError(sentinel.ErrUnavailable, http.StatusInternalServerError, "failed to sign access token")
	}
	refresh, err := newRefreshToken()
	if err != nil {
		return nil, gateway.NewError(sentinel.ErrUnavailable, http.StatusInternalServerError, "failed to generate refresh token")
	}
	if g.current != nil {
		delete(g.refreshTokens, g.current.RefreshToken)
	}
	g.refreshTokens[refresh] = acct.identity.ID

	g.current = &models.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresAt:    now.Add(g.accessTTL).Truncate(time.Second),
		User:         acct.identity.Clone(),
	}
	g.listeners.Emit(models.SessionEvent{Kind: kind, Session: g.current})
	return g.current.Clone(), nil
}

func newRefreshToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
