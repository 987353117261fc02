// Package auth resolves caller's identity and guards routes.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/Decentr-net/tribune/internal/entities"
	"github.com/Decentr-net/tribune/internal/service"
	"github.com/Decentr-net/tribune/internal/session"
	"github.com/Decentr-net/tribune/internal/token"
)

// BearerPrefix is a prefix of Authorization header carrying a bearer token.
const BearerPrefix = "Bearer "

// ErrUnauthenticated is returned when request carries no valid credentials.
var ErrUnauthenticated = errors.New("unauthenticated")

// Method is a way the caller was authenticated with.
type Method int

const (
	// SessionMethod means the caller presented a session cookie.
	SessionMethod Method = iota + 1
	// BearerMethod means the caller presented a bearer access token.
	BearerMethod
)

// String ...
func (m Method) String() string {
	switch m {
	case SessionMethod:
		return "session"
	case BearerMethod:
		return "bearer"
	default:
		return "anonymous"
	}
}

// Identity is an authenticated caller.
type Identity struct {
	UserID   uuid.UUID
	Username string
	Method   Method
	// SessionID is set for session-authenticated callers.
	SessionID string
	// Token is raw access token of bearer-authenticated callers.
	Token string
}

type ctxKey struct{}

// WithIdentity returns a copy of ctx carrying the identity.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns identity attached by Gate.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(*Identity)
	return id, ok && id != nil
}

// TokenValidator ...
type TokenValidator interface {
	Validate(ctx context.Context, raw string, typ token.Type) (*token.Claims, error)
}

// SessionGetter ...
type SessionGetter interface {
	Get(ctx context.Context, id string) (*session.Session, error)
}

// UserGetter returns active users only.
type UserGetter interface {
	GetActiveUser(ctx context.Context, id uuid.UUID) (*entities.User, error)
}

// Authenticator resolves request's identity from a bearer token or a session cookie.
type Authenticator struct {
	tokens   TokenValidator
	sessions SessionGetter
	users    UserGetter
}

// NewAuthenticator creates new instance of Authenticator.
func NewAuthenticator(tokens TokenValidator, sessions SessionGetter, users UserGetter) *Authenticator {
	return &Authenticator{
		tokens:   tokens,
		sessions: sessions,
		users:    users,
	}
}

// Authenticate returns ErrUnauthenticated for anonymous requests and requests with bad credentials.
// A bearer header takes precedence over the session cookie.
func (a *Authenticator) Authenticate(r *http.Request) (*Identity, error) {
	ctx := r.Context()

	if raw, ok := BearerToken(r); ok {
		claims, err := a.tokens.Validate(ctx, raw, token.Access)
		if err != nil {
			if token.IsRejected(err) {
				return nil, ErrUnauthenticated
			}
			return nil, fmt.Errorf("failed to validate token: %w", err)
		}

		return a.identity(ctx, claims.UserID, Identity{Method: BearerMethod, Token: raw})
	}

	c, err := r.Cookie(session.CookieName)
	if err != nil || c.Value == "" {
		return nil, ErrUnauthenticated
	}

	sess, err := a.sessions.Get(ctx, c.Value)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return a.identity(ctx, sess.UserID, Identity{Method: SessionMethod, SessionID: sess.ID})
}

func (a *Authenticator) identity(ctx context.Context, userID uuid.UUID, id Identity) (*Identity, error) {
	u, err := a.users.GetActiveUser(ctx, userID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	id.UserID = u.ID
	id.Username = u.Username

	return &id, nil
}

// BearerToken extracts token from Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, BearerPrefix) {
		return "", false
	}

	return strings.TrimSpace(strings.TrimPrefix(h, BearerPrefix)), true
}
