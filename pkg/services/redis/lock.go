package redisservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	RoomCreationLockKey = Prefix + "roomCreationLock-%s"
	agentLockKeyFormat  = Prefix + "agentLock-%s"
	janitorLockKey      = Prefix + "janitorLock-%s"
)

// unlockScript is a Lua script for atomic check-and-delete.
const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
else
    return 0
end
`

// refreshScript extends the TTL of a lock only while we still own it.
const refreshScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
    return 0
end
`

var refreshScriptExec = redis.NewScript(refreshScript)

// Lock is a single distributed lock instance, used for agent leader
// election across cluster nodes. Every node that receives a task payload
// races on TryLock; only the winner runs the agent and keeps the lock
// alive with Refresh until the task ends.
type Lock struct {
	rs    *RedisService
	key   string
	value string
	ttl   time.Duration
}

// NewLock prepares a lock handle for the given task key. Nothing is
// acquired until TryLock is called.
func (s *RedisService) NewLock(taskKey string, ttl time.Duration) *Lock {
	return &Lock{
		rs:    s,
		key:   fmt.Sprintf(agentLockKeyFormat, taskKey),
		value: uuid.NewString(),
		ttl:   ttl,
	}
}

// TryLock attempts to acquire the lock. Returns true if this instance is
// now the owner, false if another node holds it.
func (l *Lock) TryLock(ctx context.Context) (bool, error) {
	ok, err := l.rs.rc.SetNX(ctx, l.key, l.value, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis SetNX error for key %s: %w", l.key, err)
	}
	return ok, nil
}

// Refresh extends the lock's TTL. It fails if the lock expired or was
// taken over by another instance, in which case the caller must stop
// treating itself as the leader.
func (l *Lock) Refresh(ctx context.Context) error {
	ok, err := refreshScriptExec.Eval(ctx, l.rs.rc, []string{l.key}, l.value, l.ttl.Milliseconds()).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis Eval error for refresh script on key %s: %w", l.key, err)
	}
	if ok == 0 {
		return fmt.Errorf("lock on key %s is no longer held by this instance", l.key)
	}
	return nil
}

// Unlock releases the lock if this instance still owns it.
func (l *Lock) Unlock(ctx context.Context) error {
	_, err := l.rs.unlockScriptExec.Eval(ctx, l.rs.rc, []string{l.key}, l.value).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis Eval error for unlock script on key %s: %w", l.key, err)
	}
	return nil
}

// LockRoomCreation tries to take the per-room creation lock. On success the
// returned lockValue must be passed to UnlockRoomCreation; acquired=false with
// a nil error means another node holds it.
func (s *RedisService) LockRoomCreation(ctx context.Context, roomID string, ttl time.Duration) (acquired bool, lockValue string, err error) {
	key := fmt.Sprintf(RoomCreationLockKey, roomID)
	val := uuid.New().String()

	ok, err := s.rc.SetNX(ctx, key, val, ttl).Result()
	if err != nil {
		return false, "", fmt.Errorf("redis SetNX error for key %s: %w", key, err)
	}
	if !ok {
		return false, "", nil
	}
	return true, val, nil
}

// UnlockRoomCreation releases the creation lock, but only if this holder's
// lockValue is still in place.
func (s *RedisService) UnlockRoomCreation(ctx context.Context, roomID string, lockValue string) error {
	key := fmt.Sprintf(RoomCreationLockKey, roomID)
	if lockValue == "" {
		return nil
	}

	deleted, err := s.unlockScriptExec.Eval(ctx, s.rc, []string{key}, lockValue).Int64()
	if errors.Is(err, redis.Nil) {
		// already expired or released
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis Eval error for unlock script on key %s (roomID: %s): %w", key, roomID, err)
	}
	if deleted == 0 {
		return fmt.Errorf("could not release lock on key %s roomID: %s (it may have expired or been taken by another process)", key, roomID)
	}
	return nil
}

// IsRoomCreationLock reports whether some request is currently creating the room.
func (s *RedisService) IsRoomCreationLock(ctx context.Context, roomID string) (isLocked bool, err error) {
	key := fmt.Sprintf(RoomCreationLockKey, roomID)
	val, err := s.rc.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis Exists error for key %s: %w", key, err)
	}
	return val == 1, nil
}

func (s *RedisService) IsJanitorTaskLock(task string) bool {
	val, _ := s.rc.Get(s.ctx, fmt.Sprintf(janitorLockKey, task)).Result()
	return val != ""
}

func (s *RedisService) LockJanitorTask(task string, duration time.Duration) {
	err := s.rc.Set(s.ctx, fmt.Sprintf(janitorLockKey, task), "locked", duration).Err()
	if err != nil {
		s.logger.WithError(err).Errorln("LockJanitorTask failed")
	}
}

func (s *RedisService) UnlockJanitorTask(task string) {
	_, _ = s.rc.Del(s.ctx, fmt.Sprintf(janitorLockKey, task)).Result()
}
