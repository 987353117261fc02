package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/sirupsen/logrus"

	"github.com/Decentr-net/tribune/internal/api"
)

var log = logrus.WithField("layer", "auth")

// Policy is an authorization rule attached to a route.
type Policy int

const (
	// Default requires a session- or bearer-authenticated caller.
	Default Policy = iota
	// LogoutRelaxed also lets through requests with a bearer header whose token is not validated.
	LogoutRelaxed
)

// String ...
func (p Policy) String() string {
	switch p {
	case Default:
		return "default"
	case LogoutRelaxed:
		return "logout_relaxed"
	default:
		return "unknown"
	}
}

const notAuthenticatedMessage = "authentication credentials were not provided"

// allows reports whether the request may reach the handler.
func (p Policy) allows(id *Identity, r *http.Request) bool {
	if id != nil {
		return true
	}

	return p == LogoutRelaxed && strings.HasPrefix(r.Header.Get("Authorization"), BearerPrefix)
}

// Gate authenticates requests and rejects the ones the policy does not allow.
// Resolved identity is attached to the request context.
func Gate(a *Authenticator, p Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := a.Authenticate(r)
			if err != nil && !errors.Is(err, ErrUnauthenticated) {
				if !p.allows(nil, r) {
					api.WriteInternalErrorf(r.Context(), w, "failed to authenticate: %s", err.Error())
					return
				}

				log.WithField("request_id", middleware.GetReqID(r.Context())).
					WithError(err).Warn("failed to authenticate, relaxed policy applied")
			}

			if !p.allows(id, r) {
				api.WriteError(w, http.StatusUnauthorized, notAuthenticatedMessage)
				return
			}

			if id != nil {
				r = r.WithContext(WithIdentity(r.Context(), id))
			}

			next.ServeHTTP(w, r)
		})
	}
}
