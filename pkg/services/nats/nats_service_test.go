package natsservice

import (
	"io"
	"testing"

	"github.com/ajvoice/aj-server/pkg/config"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testService() *NatsService {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	app := &config.AppConfig{
		NatsInfo: config.NatsInfo{
			Subjects: config.NatsSubjects{
				AgentTask:      config.DefaultAgentTaskSubject,
				SpeechOutput:   config.DefaultSpeechOutputSubject,
				WebhookCleanup: config.DefaultWebhookCleanupSubject,
			},
		},
	}

	return &NatsService{
		app:    app,
		logger: logger.WithField("service", "nats"),
	}
}

func TestAgentTaskPayloadJson(t *testing.T) {
	t.Run("full payload", func(t *testing.T) {
		p := &AgentTaskPayload{
			Task:        AgentTaskStart,
			RoomId:      "room-01",
			UserId:      "user-a",
			Service:     "voice_session",
			Options:     map[string]string{"language": "en-US"},
			RoomE2EEKey: "secret",
		}

		data, err := json.Marshal(p)
		require.NoError(t, err)

		got := new(AgentTaskPayload)
		require.NoError(t, json.Unmarshal(data, got))
		assert.Equal(t, p, got)
	})

	t.Run("omits empty optional fields", func(t *testing.T) {
		p := &AgentTaskPayload{
			Task:   AgentTaskEndAll,
			RoomId: "room-01",
		}

		data, err := json.Marshal(p)
		require.NoError(t, err)

		assert.JSONEq(t, `{"task":"end-all","room_id":"room-01"}`, string(data))
	})

	t.Run("task names are stable", func(t *testing.T) {
		assert.Equal(t, "boot", AgentTaskBoot)
		assert.Equal(t, "start", AgentTaskStart)
		assert.Equal(t, "end", AgentTaskEnd)
		assert.Equal(t, "end-service", AgentTaskEndService)
		assert.Equal(t, "end-all", AgentTaskEndAll)
	})
}

func TestAgentStateKey(t *testing.T) {
	assert.Equal(t, "room-01-voice_session", agentStateKey("room-01", "voice_session"))
	assert.Equal(t, Prefix+"agent-state", AgentStateBucket)
}

func TestAgentStateJson(t *testing.T) {
	st := &AgentState{
		RoomId:        "room-01",
		Service:       "transcription",
		Status:        AgentStateRunning,
		NodeId:        "node-1",
		AgentIdentity: "aj-agent-transcription-1a2b3c4d",
		SessionId:     "ses-xyz",
		StartedAt:     1736000000,
	}

	data, err := json.Marshal(st)
	require.NoError(t, err)

	got := new(AgentState)
	require.NoError(t, json.Unmarshal(data, got))
	assert.Equal(t, st, got)
}

func TestSpeechOutputSubject(t *testing.T) {
	s := testService()

	assert.Equal(t, config.DefaultSpeechOutputSubject+".room-01", s.speechOutputSubject("room-01"))
	assert.Equal(t, config.DefaultSpeechOutputSubject+".*", s.speechOutputSubject("*"))
}

func TestSpeechChunkJson(t *testing.T) {
	chunk := SpeechChunk{
		FromUserId: "user-a",
		Name:       "Alice",
		Role:       "user",
		Text:       "hello there",
	}

	data, err := json.Marshal(chunk)
	require.NoError(t, err)
	assert.JSONEq(t, `{"from_user_id":"user-a","name":"Alice","role":"user","text":"hello there"}`, string(data))
}
