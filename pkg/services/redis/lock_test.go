package redisservice

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisService) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return mr, New(rc, logger)
}

func TestLeaderLockSingleWinner(t *testing.T) {
	_, rs := setupTestRedis(t)
	ctx := context.Background()

	a := rs.NewLock("workshop_voice_session", time.Minute)
	b := rs.NewLock("workshop_voice_session", time.Minute)

	won, err := a.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, won)

	// a different task key is an independent lock
	c := rs.NewLock("workshop_transcription", time.Minute)
	won, err = c.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, won)
}

func TestLeaderLockUnlockByNonOwner(t *testing.T) {
	mr, rs := setupTestRedis(t)
	ctx := context.Background()

	a := rs.NewLock("workshop_voice_session", time.Minute)
	won, err := a.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, won)

	// b never acquired; its unlock must not release a's lock
	b := rs.NewLock("workshop_voice_session", time.Minute)
	_ = b.Unlock(ctx)
	assert.True(t, mr.Exists(a.key))
	require.NoError(t, a.Refresh(ctx))

	require.NoError(t, a.Unlock(ctx))
	assert.False(t, mr.Exists(a.key))
}

func TestLeaderLockRefreshExtendsTTL(t *testing.T) {
	mr, rs := setupTestRedis(t)
	ctx := context.Background()

	l := rs.NewLock("workshop_voice_session", time.Second)
	won, err := l.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, won)

	mr.FastForward(time.Millisecond * 600)
	require.NoError(t, l.Refresh(ctx))

	// without the refresh the original second would be long gone
	mr.FastForward(time.Millisecond * 600)
	assert.True(t, mr.Exists(l.key))

	mr.FastForward(time.Second * 2)
	assert.False(t, mr.Exists(l.key))
	assert.Error(t, l.Refresh(ctx))
}

func TestLeaderLockRefreshAfterTakeover(t *testing.T) {
	mr, rs := setupTestRedis(t)
	ctx := context.Background()

	a := rs.NewLock("workshop_voice_session", time.Second)
	won, err := a.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, won)

	// a's lease expires and b takes over; a must notice on refresh
	mr.FastForward(time.Second * 2)
	b := rs.NewLock("workshop_voice_session", time.Minute)
	won, err = b.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, won)

	err = a.Refresh(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no longer held")
	assert.True(t, mr.Exists(b.key))
}

func TestRoomCreationLock(t *testing.T) {
	_, rs := setupTestRedis(t)
	ctx := context.Background()

	acquired, lockValue, err := rs.LockRoomCreation(ctx, "workshop", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)
	require.NotEmpty(t, lockValue)

	locked, err := rs.IsRoomCreationLock(ctx, "workshop")
	require.NoError(t, err)
	assert.True(t, locked)

	acquired, _, err = rs.LockRoomCreation(ctx, "workshop", time.Minute)
	require.NoError(t, err)
	assert.False(t, acquired)

	// a stale value must not release the current holder
	err = rs.UnlockRoomCreation(ctx, "workshop", "not-the-lock-value")
	require.Error(t, err)
	locked, err = rs.IsRoomCreationLock(ctx, "workshop")
	require.NoError(t, err)
	assert.True(t, locked)

	require.NoError(t, rs.UnlockRoomCreation(ctx, "workshop", lockValue))
	locked, err = rs.IsRoomCreationLock(ctx, "workshop")
	require.NoError(t, err)
	assert.False(t, locked)

	// other rooms stay unaffected
	locked, err = rs.IsRoomCreationLock(ctx, "another-room")
	require.NoError(t, err)
	assert.False(t, locked)
}
