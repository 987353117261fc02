package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

func newStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewStore(client, "session:", time.Hour), m
}

func TestStore_Create(t *testing.T) {
	s, m := newStore(t)
	userID := uuid.New()

	sess, err := s.Create(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, userID, sess.UserID)

	got, err := s.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, userID, got.UserID)

	assert.Equal(t, time.Hour, m.TTL("session:"+sess.ID))
}

func TestStore_Get(t *testing.T) {
	s, m := newStore(t)

	_, err := s.Get(ctx, uuid.NewString())
	require.Equal(t, ErrNotFound, err)

	_, err = s.Get(ctx, "../../etc")
	require.Equal(t, ErrNotFound, err)

	sess, err := s.Create(ctx, uuid.New())
	require.NoError(t, err)

	m.FastForward(30 * time.Minute)
	_, err = s.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, m.TTL("session:"+sess.ID))

	m.FastForward(2 * time.Hour)
	_, err = s.Get(ctx, sess.ID)
	require.Equal(t, ErrNotFound, err)
}

func TestStore_Delete(t *testing.T) {
	s, _ := newStore(t)

	sess, err := s.Create(ctx, uuid.New())
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, sess.ID))
	require.NoError(t, s.Delete(ctx, sess.ID))

	_, err = s.Get(ctx, sess.ID)
	require.Equal(t, ErrNotFound, err)
}
