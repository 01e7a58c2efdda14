package redisservice

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ajvoice/aj-server/pkg/assistant"
	"github.com/redis/go-redis/v9"
)

const (
	AgentUsageRedisKey = Prefix + "assistant:usage"
)

// Counters are kept per room AND per service so two agents running in the
// same room never fold each other's usage away when one of them ends.
func agentUsageKey(roomId, service string) string {
	return fmt.Sprintf("%s:%s:%s", AgentUsageRedisKey, roomId, service)
}

// UpdateLLMUsage accumulates token counters for one agent service in a room,
// both per user and per task type, plus global per-task totals. Everything
// lives in a single HASH so it can be collected in one read when the session
// closes.
func (s *RedisService) UpdateLLMUsage(ctx context.Context, roomId, service, userId string, taskType assistant.TaskType, promptTokens, completionTokens, totalTokens uint32) error {
	key := agentUsageKey(roomId, service)
	pipe := s.rc.TxPipeline()

	// Per-user, per-task tracking
	userPromptKey := fmt.Sprintf("%s:%s:prompt", userId, taskType)
	userCompletionKey := fmt.Sprintf("%s:%s:completion", userId, taskType)
	userTotalKey := fmt.Sprintf("%s:%s:total", userId, taskType)

	pipe.HIncrBy(ctx, key, userPromptKey, int64(promptTokens))
	pipe.HIncrBy(ctx, key, userCompletionKey, int64(completionTokens))
	pipe.HIncrBy(ctx, key, userTotalKey, int64(totalTokens))

	// Global, per-task tracking
	totalPromptKey := fmt.Sprintf("total_%s_prompt_tokens", taskType)
	totalCompletionKey := fmt.Sprintf("total_%s_completion_tokens", taskType)
	totalTokensKey := fmt.Sprintf("total_%s_tokens", taskType)

	pipe.HIncrBy(ctx, key, totalPromptKey, int64(promptTokens))
	pipe.HIncrBy(ctx, key, totalCompletionKey, int64(completionTokens))
	pipe.HIncrBy(ctx, key, totalTokensKey, int64(totalTokens))

	pipe.Expire(ctx, key, time.Hour*24)
	_, err := pipe.Exec(ctx)
	return err
}

// UpdateTTSUsage accumulates synthesized character counts for one agent
// service in a room.
func (s *RedisService) UpdateTTSUsage(ctx context.Context, roomId, service, userId, provider string, incBy int) error {
	key := agentUsageKey(roomId, service)
	pipe := s.rc.TxPipeline()
	pipe.HIncrBy(ctx, key, fmt.Sprintf("%s:tts_characters", userId), int64(incBy))
	pipe.HIncrBy(ctx, key, fmt.Sprintf("tts_%s_characters", provider), int64(incBy))
	pipe.HIncrBy(ctx, key, "total_tts_characters", int64(incBy))
	pipe.Expire(ctx, key, time.Hour*24)
	_, err := pipe.Exec(ctx)
	return err
}

// IncrementTurnCounters bumps the turn and tool-call counters for one agent
// service in a room.
func (s *RedisService) IncrementTurnCounters(ctx context.Context, roomId, service string, turns, toolCalls int) error {
	key := agentUsageKey(roomId, service)
	pipe := s.rc.TxPipeline()
	if turns > 0 {
		pipe.HIncrBy(ctx, key, "total_turns", int64(turns))
	}
	if toolCalls > 0 {
		pipe.HIncrBy(ctx, key, "total_tool_calls", int64(toolCalls))
	}
	pipe.Expire(ctx, key, time.Hour*24)
	_, err := pipe.Exec(ctx)
	return err
}

// GetAgentRoomUsage retrieves the accumulated usage counters of one agent
// service in a room. If cleanup is true, it deletes the key after retrieval;
// counters of other services in the same room are untouched.
func (s *RedisService) GetAgentRoomUsage(ctx context.Context, roomId, service string, cleanup bool) (map[string]int64, error) {
	key := agentUsageKey(roomId, service)
	var res *redis.MapStringStringCmd

	_, err := s.rc.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		res = pipe.HGetAll(ctx, key)
		if cleanup {
			pipe.Del(ctx, key)
		}
		return nil
	})

	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	rawMap, err := res.Result()
	if err != nil {
		return nil, err
	}

	usageMap := make(map[string]int64, len(rawMap))
	for k, v := range rawMap {
		val, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.logger.WithError(err).Warnf("could not parse usage value '%s' for key '%s'", v, k)
			continue
		}
		usageMap[k] = val
	}

	return usageMap, nil
}
