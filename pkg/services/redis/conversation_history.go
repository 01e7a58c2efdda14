package redisservice

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

const conversationHistoryPrefix = Prefix + "conversation_history:" // A HASH for each room

type ConversationTurn struct {
	FromUserID string `json:"from_user_id"`
	Name       string `json:"name"`
	Role       string `json:"role"` // user | assistant | tool
	Text       string `json:"text"`
}

// formatConversationHistoryKey generates the Redis key for the conversation history of a room.
func (s *RedisService) formatConversationHistoryKey(roomId string) string {
	return fmt.Sprintf("%s%s", conversationHistoryPrefix, roomId)
}

// AddConversationTurn appends a finalized turn to the room's history in Redis.
func (s *RedisService) AddConversationTurn(roomId, userId, name, role, text string) error {
	key := s.formatConversationHistoryKey(roomId)
	turn := ConversationTurn{
		FromUserID: userId,
		Name:       name,
		Role:       role,
		Text:       text,
	}

	jsonData, err := json.Marshal(turn)
	if err != nil {
		return err
	}

	// The field will be the timestamp
	field := fmt.Sprintf("%d", time.Now().UnixNano())

	pipe := s.rc.Pipeline()
	pipe.HSet(s.ctx, key, field, jsonData)
	pipe.Expire(s.ctx, key, DefaultTTL)

	_, err = pipe.Exec(s.ctx)
	return err
}

// GetConversationHistory retrieves all turns for a given room, ordered by
// the time they were recorded. Returns nil when the room has no history.
func (s *RedisService) GetConversationHistory(roomId string) ([]*ConversationTurn, error) {
	key := s.formatConversationHistoryKey(roomId)
	result, err := s.rc.HGetAll(s.ctx, key).Result()
	if err != nil {
		return nil, err
	}

	if len(result) == 0 {
		return nil, nil
	}

	fields := make([]string, 0, len(result))
	for f := range result {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool {
		a, _ := strconv.ParseInt(fields[i], 10, 64)
		b, _ := strconv.ParseInt(fields[j], 10, 64)
		return a < b
	})

	turns := make([]*ConversationTurn, 0, len(fields))
	for _, f := range fields {
		turn := new(ConversationTurn)
		if err := json.Unmarshal([]byte(result[f]), turn); err != nil {
			s.logger.WithError(err).Warnf("could not parse conversation turn for room %s", roomId)
			continue
		}
		turns = append(turns, turn)
	}

	return turns, nil
}

// GetRecentConversationTurns returns at most the last `limit` turns for a room.
func (s *RedisService) GetRecentConversationTurns(roomId string, limit int) ([]*ConversationTurn, error) {
	turns, err := s.GetConversationHistory(roomId)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns, nil
}

// DeleteConversationHistory deletes the entire conversation history for a room.
func (s *RedisService) DeleteConversationHistory(roomId string) {
	key := s.formatConversationHistoryKey(roomId)
	// We don't need to check the error for a cleanup operation.
	_ = s.rc.Del(s.ctx, key).Err()
}
