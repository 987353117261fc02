package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Decentr-net/tribune/internal/entities"
	"github.com/Decentr-net/tribune/internal/service"
	"github.com/Decentr-net/tribune/internal/service/mock"
	"github.com/Decentr-net/tribune/internal/session"
	"github.com/Decentr-net/tribune/internal/token"
)

type env struct {
	redis    *miniredis.Miniredis
	issuer   *token.Issuer
	sessions *session.Store
	users    *mock.MockService
	auth     *Authenticator
}

func newEnv(t *testing.T) *env {
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { client.Close() })

	issuer := token.NewIssuer([]byte("secret"), time.Minute, time.Hour, token.NewRedisRevoker(client, "revoked:"))
	sessions := session.NewStore(client, "session:", time.Hour)
	users := mock.NewMockService(gomock.NewController(t))

	return &env{
		redis:    m,
		issuer:   issuer,
		sessions: sessions,
		users:    users,
		auth:     NewAuthenticator(issuer, sessions, users),
	}
}

// serve runs request through the gate and returns recorded response and identity seen by the handler.
func serve(a *Authenticator, p Policy, r *http.Request) (*httptest.ResponseRecorder, *Identity, bool) {
	var (
		id     *Identity
		called bool
	)

	h := Gate(a, p)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		id, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	return w, id, called
}

func TestGate_Anonymous(t *testing.T) {
	e := newEnv(t)

	for _, p := range []Policy{Default, LogoutRelaxed} {
		t.Run(p.String(), func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)

			w, _, called := serve(e.auth, p, r)
			assert.False(t, called)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.JSONEq(t, `{"error":"authentication credentials were not provided"}`, w.Body.String())
		})
	}
}

func TestGate_Bearer(t *testing.T) {
	e := newEnv(t)
	u := &entities.User{ID: uuid.New(), Username: "alice", IsActive: true}

	pair, err := e.issuer.Issue(u.ID)
	require.NoError(t, err)

	e.users.EXPECT().GetActiveUser(gomock.Any(), u.ID).Return(u, nil)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+pair.Access)

	w, id, called := serve(e.auth, Default, r)
	require.True(t, called)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, &Identity{
		UserID:   u.ID,
		Username: "alice",
		Method:   BearerMethod,
		Token:    pair.Access,
	}, id)
}

func TestGate_Session(t *testing.T) {
	e := newEnv(t)
	u := &entities.User{ID: uuid.New(), Username: "alice", IsActive: true}

	sess, err := e.sessions.Create(context.Background(), u.ID)
	require.NoError(t, err)

	e.users.EXPECT().GetActiveUser(gomock.Any(), u.ID).Return(u, nil)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: session.CookieName, Value: sess.ID})

	w, id, called := serve(e.auth, Default, r)
	require.True(t, called)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, &Identity{
		UserID:    u.ID,
		Username:  "alice",
		Method:    SessionMethod,
		SessionID: sess.ID,
	}, id)
}

func TestGate_BearerTakesPrecedence(t *testing.T) {
	e := newEnv(t)
	u := &entities.User{ID: uuid.New(), Username: "alice", IsActive: true}

	sess, err := e.sessions.Create(context.Background(), u.ID)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer xyz")
	r.AddCookie(&http.Cookie{Name: session.CookieName, Value: sess.ID})

	w, _, called := serve(e.auth, Default, r)
	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGate_InvalidCredentials(t *testing.T) {
	e := newEnv(t)

	pair, err := e.issuer.Issue(uuid.New())
	require.NoError(t, err)
	require.NoError(t, e.issuer.Revoke(context.Background(), pair.Access))

	tt := []struct {
		name  string
		setup func(r *http.Request)
	}{
		{
			name:  "malformed token",
			setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer xyz") },
		},
		{
			name:  "refresh token",
			setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+pair.Refresh) },
		},
		{
			name:  "revoked token",
			setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+pair.Access) },
		},
		{
			name:  "unknown session",
			setup: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: session.CookieName, Value: uuid.NewString()}) },
		},
		{
			name:  "basic auth",
			setup: func(r *http.Request) { r.SetBasicAuth("alice", "password") },
		},
	}

	for i := range tt {
		tc := tt[i]

		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			tc.setup(r)

			w, _, called := serve(e.auth, Default, r)
			assert.False(t, called)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestGate_InactiveUser(t *testing.T) {
	e := newEnv(t)
	userID := uuid.New()

	pair, err := e.issuer.Issue(userID)
	require.NoError(t, err)

	e.users.EXPECT().GetActiveUser(gomock.Any(), userID).Return(nil, service.ErrNotFound)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+pair.Access)

	w, _, called := serve(e.auth, Default, r)
	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGate_LogoutRelaxed(t *testing.T) {
	e := newEnv(t)

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("Authorization", "Bearer xyz")

	w, id, called := serve(e.auth, LogoutRelaxed, r)
	require.True(t, called)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, id)

	r = httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("Authorization", "Token xyz")

	w, _, called = serve(e.auth, LogoutRelaxed, r)
	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGate_LogoutRelaxed_Session(t *testing.T) {
	e := newEnv(t)
	u := &entities.User{ID: uuid.New(), Username: "alice", IsActive: true}

	sess, err := e.sessions.Create(context.Background(), u.ID)
	require.NoError(t, err)

	e.users.EXPECT().GetActiveUser(gomock.Any(), u.ID).Return(u, nil)

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.AddCookie(&http.Cookie{Name: session.CookieName, Value: sess.ID})

	_, id, called := serve(e.auth, LogoutRelaxed, r)
	require.True(t, called)
	require.NotNil(t, id)
	assert.Equal(t, SessionMethod, id.Method)
}

func TestGate_InternalError(t *testing.T) {
	e := newEnv(t)
	e.redis.Close()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: session.CookieName, Value: uuid.NewString()})

	w, _, called := serve(e.auth, Default, r)
	assert.False(t, called)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	pair, err := e.issuer.Issue(uuid.New())
	require.NoError(t, err)

	r = httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("Authorization", "Bearer "+pair.Access)

	w, _, called = serve(e.auth, LogoutRelaxed, r)
	assert.True(t, called)
	assert.Equal(t, http.StatusOK, w.Code)
}
