package redisservice

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajvoice/aj-server/pkg/assistant"
)

func TestAgentUsageIsolatedPerService(t *testing.T) {
	_, rs := setupTestRedis(t)
	ctx := context.Background()
	roomId := "workshop"

	require.NoError(t, rs.UpdateLLMUsage(ctx, roomId, "voice_session", "user01", assistant.TaskVoiceSession, 100, 40, 140))
	require.NoError(t, rs.UpdateTTSUsage(ctx, roomId, "voice_session", "agent-voice_session", "openai", 250))
	require.NoError(t, rs.IncrementTurnCounters(ctx, roomId, "voice_session", 1, 2))

	require.NoError(t, rs.UpdateLLMUsage(ctx, roomId, "chat", "user01", assistant.TaskChat, 30, 10, 40))
	require.NoError(t, rs.IncrementTurnCounters(ctx, roomId, "chat", 1, 0))

	// closing the voice session folds and purges only its own counters
	usage, err := rs.GetAgentRoomUsage(ctx, roomId, "voice_session", true)
	require.NoError(t, err)
	assert.EqualValues(t, 100, usage["total_voice_session_prompt_tokens"])
	assert.EqualValues(t, 250, usage["total_tts_characters"])
	assert.EqualValues(t, 1, usage["total_turns"])
	assert.EqualValues(t, 2, usage["total_tool_calls"])
	assert.NotContains(t, usage, "total_chat_prompt_tokens")

	// the chat service's counters survive the other session's cleanup
	usage, err = rs.GetAgentRoomUsage(ctx, roomId, "chat", false)
	require.NoError(t, err)
	assert.EqualValues(t, 30, usage["total_chat_prompt_tokens"])
	assert.EqualValues(t, 10, usage["total_chat_completion_tokens"])
	assert.EqualValues(t, 1, usage["total_turns"])

	// and the purged service reads back empty
	usage, err = rs.GetAgentRoomUsage(ctx, roomId, "voice_session", false)
	require.NoError(t, err)
	assert.Empty(t, usage)
}

func TestAgentUsageAccumulates(t *testing.T) {
	_, rs := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, rs.UpdateLLMUsage(ctx, "r1", "chat", "u1", assistant.TaskChat, 10, 5, 15))
	require.NoError(t, rs.UpdateLLMUsage(ctx, "r1", "chat", "u1", assistant.TaskChat, 20, 5, 25))
	require.NoError(t, rs.UpdateLLMUsage(ctx, "r1", "chat", "u2", assistant.TaskChat, 7, 3, 10))

	usage, err := rs.GetAgentRoomUsage(ctx, "r1", "chat", false)
	require.NoError(t, err)
	assert.EqualValues(t, 37, usage["total_chat_prompt_tokens"])
	assert.EqualValues(t, 13, usage["total_chat_completion_tokens"])
	assert.EqualValues(t, 50, usage["total_chat_tokens"])
	assert.EqualValues(t, 30, usage["u1:chat:prompt"])
	assert.EqualValues(t, 7, usage["u2:chat:prompt"])
}
