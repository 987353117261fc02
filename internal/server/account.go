package server

import (
	"errors"
	"net/http"

	"github.com/Decentr-net/tribune/internal/api"
	"github.com/Decentr-net/tribune/internal/auth"
	"github.com/Decentr-net/tribune/internal/session"
	"github.com/Decentr-net/tribune/internal/token"
)

func (s server) obtainToken(w http.ResponseWriter, r *http.Request) {
	// swagger:operation POST /token Accounts ObtainToken
	//
	// Exchanges credentials to a pair of access and refresh tokens.
	//
	// ---
	// produces:
	// - application/json
	// parameters:
	// - name: request
	//   in: body
	//   required: true
	//   schema:
	//     "$ref": "#/definitions/CredentialsRequest"
	// responses:
	//   '200':
	//     description: Tokens
	//     schema:
	//       "$ref": "#/definitions/TokenPairResponse"
	//   '401':
	//     description: invalid credentials
	//     schema:
	//       "$ref": "#/definitions/Error"

	var req CredentialsRequest
	if !s.decode(w, r, &req) {
		return
	}

	u, err := s.s.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, r, err, "failed to authenticate")
		return
	}

	pair, err := s.tokens.Issue(u.ID)
	if err != nil {
		api.WriteInternalErrorf(r.Context(), w, "failed to issue tokens: %s", err.Error())
		return
	}

	api.WriteOK(w, http.StatusOK, TokenPairResponse{
		Access:  pair.Access,
		Refresh: pair.Refresh,
	})
}

func (s server) refreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !s.decode(w, r, &req) {
		return
	}

	access, err := s.tokens.Refresh(r.Context(), req.Refresh)
	if err != nil {
		if token.IsRejected(err) {
			api.WriteError(w, http.StatusUnauthorized, "token is invalid or expired")
			return
		}

		api.WriteInternalErrorf(r.Context(), w, "failed to refresh token: %s", err.Error())
		return
	}

	api.WriteOK(w, http.StatusOK, AccessTokenResponse{Access: access})
}

func (s server) createSession(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !s.decode(w, r, &req) {
		return
	}

	u, err := s.s.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, r, err, "failed to authenticate")
		return
	}

	sess, err := s.sessions.Create(r.Context(), u.ID)
	if err != nil {
		api.WriteInternalErrorf(r.Context(), w, "failed to create session: %s", err.Error())
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    sess.ID,
		Path:     "/",
		MaxAge:   int(s.sessions.TTL().Seconds()),
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})

	api.WriteOK(w, http.StatusOK, User{
		ID:       u.ID,
		Username: u.Username,
	})
}

func (s server) logout(w http.ResponseWriter, r *http.Request) {
	// swagger:operation POST /logout Accounts Logout
	//
	// Revokes caller's tokens and destroys the session.
	// A request with any bearer authorization header is accepted, even if the token is invalid or expired.
	//
	// ---
	// produces:
	// - application/json
	// parameters:
	// - name: request
	//   in: body
	//   required: false
	//   schema:
	//     "$ref": "#/definitions/LogoutRequest"
	// responses:
	//   '200':
	//     description: Logged out
	//     schema:
	//       "$ref": "#/definitions/LogoutResponse"
	//   '400':
	//     description: failed to log out
	//     schema:
	//       "$ref": "#/definitions/LogoutResponse"

	var req LogoutRequest
	if err := jsonDecode(r, &req); err != nil {
		api.WriteOK(w, http.StatusBadRequest, LogoutResponse{Error: "invalid request body"})
		return
	}

	fail := func(msg string, err error) {
		log.WithError(err).Error(msg)
		api.WriteOK(w, http.StatusBadRequest, LogoutResponse{Error: msg})
	}

	if raw, ok := auth.BearerToken(r); ok {
		if err := s.tokens.Revoke(r.Context(), raw); err != nil && !errors.Is(err, token.ErrInvalidToken) {
			fail("failed to revoke access token", err)
			return
		}
	}

	if req.Refresh != "" {
		if err := s.tokens.Revoke(r.Context(), req.Refresh); err != nil && !errors.Is(err, token.ErrInvalidToken) {
			fail("failed to revoke refresh token", err)
			return
		}
	}

	if c, err := r.Cookie(session.CookieName); err == nil && c.Value != "" {
		if err := s.sessions.Delete(r.Context(), c.Value); err != nil {
			fail("failed to delete session", err)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     session.CookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   s.secureCookie,
			SameSite: http.SameSiteStrictMode,
		})
	}

	api.WriteOK(w, http.StatusOK, LogoutResponse{Success: true})
}
