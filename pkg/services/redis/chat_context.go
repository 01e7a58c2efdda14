package redisservice

import (
	"context"
	"fmt"
	"time"

	"github.com/ajvoice/aj-server/pkg/assistant"
	"github.com/goccy/go-json"
)

const (
	TextChatRedisKey = Prefix + "assistant:textChat"
)

func (s *RedisService) GetTextChatSummary(ctx context.Context, roomId, userId string) (string, error) {
	key := fmt.Sprintf("%s:summary:%s:%s", TextChatRedisKey, roomId, userId)
	return s.rc.Get(ctx, key).Result()
}

func (s *RedisService) SetTextChatSummary(ctx context.Context, roomId, userId, summary string) error {
	key := fmt.Sprintf("%s:summary:%s:%s", TextChatRedisKey, roomId, userId)
	return s.rc.Set(ctx, key, summary, 24*time.Hour).Err()
}

func (s *RedisService) GetTextChatContext(ctx context.Context, roomId, userId string, start, stop int64) ([]*assistant.ChatMessage, error) {
	key := fmt.Sprintf("%s:context:%s:%s", TextChatRedisKey, roomId, userId)
	res, err := s.rc.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, err
	}

	var messages []*assistant.ChatMessage
	for _, r := range res {
		m := new(assistant.ChatMessage)
		err = json.Unmarshal([]byte(r), m)
		if err != nil {
			continue
		}
		messages = append(messages, m)
	}

	return messages, nil
}

func (s *RedisService) AppendToTextChatContext(ctx context.Context, roomId, userId string, messages ...*assistant.ChatMessage) error {
	key := fmt.Sprintf("%s:context:%s:%s", TextChatRedisKey, roomId, userId)
	pipe := s.rc.TxPipeline()

	for _, msg := range messages {
		val, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		pipe.RPush(ctx, key, val)
	}
	pipe.Expire(ctx, key, 24*time.Hour)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisService) DeleteTextChatContext(ctx context.Context, roomId, userId string) error {
	key := fmt.Sprintf("%s:context:%s:%s", TextChatRedisKey, roomId, userId)
	return s.rc.Del(ctx, key).Err()
}

func (s *RedisService) GetTextChatContextLength(ctx context.Context, roomId, userId string) (int64, error) {
	key := fmt.Sprintf("%s:context:%s:%s", TextChatRedisKey, roomId, userId)
	return s.rc.LLen(ctx, key).Result()
}
