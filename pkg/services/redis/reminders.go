package redisservice

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	remindersRedisKey = Prefix + "assistant:reminders"
)

// Reminder is a scheduled note. All reminders live in a single sorted set
// scored by due time, so the janitor can fetch everything due with one
// range query regardless of which room created it.
type Reminder struct {
	ID     string `json:"id"`
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
	Text   string `json:"text"`
	DueAt  int64  `json:"due_at"`

	// raw holds the stored member verbatim so ZRem matches exactly.
	raw string
}

// AddReminder schedules a reminder and returns its generated id.
func (s *RedisService) AddReminder(ctx context.Context, roomId, userId, text string, dueAt time.Time) (string, error) {
	r := Reminder{
		ID:     uuid.NewString(),
		RoomID: roomId,
		UserID: userId,
		Text:   text,
		DueAt:  dueAt.Unix(),
	}
	member, err := json.Marshal(r)
	if err != nil {
		return "", err
	}

	err = s.rc.ZAdd(ctx, remindersRedisKey, redis.Z{
		Score:  float64(r.DueAt),
		Member: member,
	}).Err()
	if err != nil {
		return "", err
	}
	return r.ID, nil
}

// GetDueReminders returns all reminders whose due time has passed.
func (s *RedisService) GetDueReminders(ctx context.Context, now time.Time) ([]*Reminder, error) {
	res, err := s.rc.ZRangeByScore(ctx, remindersRedisKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now.Unix()),
	}).Result()
	if err != nil {
		return nil, err
	}
	return s.parseReminders(res), nil
}

// GetRemindersByRoom returns every pending reminder for a room, soonest first.
func (s *RedisService) GetRemindersByRoom(ctx context.Context, roomId string) ([]*Reminder, error) {
	res, err := s.rc.ZRange(ctx, remindersRedisKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	var out []*Reminder
	for _, r := range s.parseReminders(res) {
		if r.RoomID == roomId {
			out = append(out, r)
		}
	}
	return out, nil
}

// RemoveReminder deletes a fired or cancelled reminder from the set.
func (s *RedisService) RemoveReminder(ctx context.Context, r *Reminder) error {
	if r == nil || r.raw == "" {
		return nil
	}
	return s.rc.ZRem(ctx, remindersRedisKey, r.raw).Err()
}

func (s *RedisService) parseReminders(members []string) []*Reminder {
	out := make([]*Reminder, 0, len(members))
	for _, m := range members {
		r := new(Reminder)
		if err := json.Unmarshal([]byte(m), r); err != nil {
			s.logger.WithError(err).Warnln("could not parse stored reminder")
			continue
		}
		r.raw = m
		out = append(out, r)
	}
	return out
}
