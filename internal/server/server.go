// Package server Tribune
//
// The Tribune is a social network backend which provides access to posts, likes, comments, profiles and follows.
//
//     Schemes: https
//     BasePath: /api
//     Version: 1.0.0
//
//     Produces:
//     - application/json
//     Consumes:
//     - application/json
//     - multipart/form-data
//
// swagger:meta
package server

import (
	"context"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Decentr-net/tribune/internal/auth"
	"github.com/Decentr-net/tribune/internal/blob"
	mm "github.com/Decentr-net/tribune/internal/middleware"
	"github.com/Decentr-net/tribune/internal/service"
	"github.com/Decentr-net/tribune/internal/session"
	"github.com/Decentr-net/tribune/internal/token"
)

//go:generate swagger generate spec -t swagger -m -c . -o ../../static/swagger.json

var log = logrus.WithField("layer", "server")

const (
	maxBodySize   = 64 << 10
	maxImageSize  = 10 << 20
	maxUploadSize = maxImageSize + 1<<20
)

// Tokens issues and revokes bearer tokens.
type Tokens interface {
	Issue(userID uuid.UUID) (*token.Pair, error)
	Refresh(ctx context.Context, refresh string) (string, error)
	Revoke(ctx context.Context, raw string) error
}

// Sessions keeps cookie sessions.
type Sessions interface {
	Create(ctx context.Context, userID uuid.UUID) (*session.Session, error)
	Delete(ctx context.Context, id string) error
	TTL() time.Duration
}

// Options contains server's dependencies.
type Options struct {
	Service       service.Service
	Authenticator *auth.Authenticator
	Tokens        Tokens
	Sessions      Sessions
	Blobs         blob.Store
	// MediaURL is prepended to blob keys in responses.
	MediaURL string
	// SecureCookie sets Secure attribute of session cookie.
	SecureCookie bool
}

type server struct {
	s        service.Service
	tokens   Tokens
	sessions Sessions
	blobs    blob.Store
	v        *validator.Validate

	mediaURL     string
	secureCookie bool
}

// SetupRouter setups handlers to chi router.
func SetupRouter(o Options, r chi.Router, timeout time.Duration) {
	r.Use(
		middleware.RequestID,
		mm.Logger,
		middleware.StripSlashes,
		cors.AllowAll().Handler,
		middleware.Recoverer,
		middleware.Timeout(timeout),
	)

	srv := server{
		s:            o.Service,
		tokens:       o.Tokens,
		sessions:     o.Sessions,
		blobs:        o.Blobs,
		v:            newValidator(),
		mediaURL:     o.MediaURL,
		secureCookie: o.SecureCookie,
	}

	limitJSON := mm.BodyLimiter(maxBodySize)
	limitUpload := mm.BodyLimiter(maxUploadSize)

	r.Route("/api", func(r chi.Router) {
		r.With(limitJSON).Post("/token", srv.obtainToken)
		r.With(limitJSON).Post("/token/refresh", srv.refreshToken)
		r.With(limitJSON).Post("/session", srv.createSession)

		r.With(auth.Gate(o.Authenticator, auth.LogoutRelaxed), limitJSON).Post("/logout", srv.logout)

		r.Group(func(r chi.Router) {
			r.Use(auth.Gate(o.Authenticator, auth.Default))

			r.Get("/like", srv.toggleLike)

			r.Get("/posts", srv.listPosts)
			r.With(limitUpload).Post("/posts", srv.createPost)
			r.Get("/posts/{post_id}", srv.getPost)
			r.Get("/posts/{post_id}/comments", srv.listComments)
			r.With(limitJSON).Post("/posts/{post_id}/comments", srv.createComment)

			r.Get("/profile", srv.getProfile)
			r.With(limitJSON).Put("/profile", srv.updateProfile)
			r.With(limitUpload).Put("/profile/image", srv.updateProfileImage)

			r.Get("/users/{username}", srv.getUser)
			r.With(limitJSON).Post("/follow", srv.toggleFollow)
		})
	})
}
