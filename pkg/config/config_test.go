package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minimalConfig(t *testing.T) *AppConfig {
	t.Helper()
	return &AppConfig{
		RootWorkingDir: t.TempDir(),
		Client: ClientInfo{
			ApiKey: "AJKEY",
			Secret: "AJSECRET",
		},
		LivekitInfo: LivekitInfo{
			Host:   "http://localhost:7880",
			ApiKey: "LKKEY",
			Secret: "LKSECRET",
		},
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	a, err := New(minimalConfig(t))
	require.NoError(t, err)

	assert.Equal(t, DefaultHttpPort, a.Client.Port)
	assert.Equal(t, time.Minute*10, *a.Client.TokenValidity)
	assert.Equal(t, DefaultAgentTaskSubject, a.NatsInfo.Subjects.AgentTask)
	assert.Equal(t, DefaultSpeechOutputSubject, a.NatsInfo.Subjects.SpeechOutput)
	assert.Equal(t, DefaultWebhookCleanupSubject, a.NatsInfo.Subjects.WebhookCleanup)

	assert.True(t, *a.Assistant.Agent.GreetingEnabled)
	assert.Equal(t, time.Millisecond*800, *a.Assistant.Agent.TurnSilenceWindow)
	assert.Equal(t, 10, a.Assistant.Agent.SpeechQueueSize)

	assert.Equal(t, "smtp.gmail.com", a.ToolSettings.Gmail.SmtpHost)
	assert.Equal(t, 587, a.ToolSettings.Gmail.SmtpPort)
	assert.Equal(t, 30, *a.ArtifactSettings.RetentionDays)
}

func TestNewValidation(t *testing.T) {
	t.Run("missing livekit credentials", func(t *testing.T) {
		a := minimalConfig(t)
		a.LivekitInfo.ApiKey = ""
		_, err := New(a)
		assert.ErrorContains(t, err, "livekit_info.api_key")
	})

	t.Run("missing client credentials", func(t *testing.T) {
		a := minimalConfig(t)
		a.Client.Secret = ""
		_, err := New(a)
		assert.ErrorContains(t, err, "client.api_key and client.secret")
	})
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LIVEKIT_URL", "http://lk:7880")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("GMAIL_USER", "aj@example.com")

	a := minimalConfig(t)
	a.LivekitInfo.Host = ""
	_, err := New(a)
	require.NoError(t, err)

	assert.Equal(t, "http://lk:7880", a.LivekitInfo.Host)
	assert.Equal(t, "aj@example.com", a.ToolSettings.Gmail.User)

	account, err := a.Assistant.GetProviderAccount(ProviderOpenAI, "")
	require.NoError(t, err)
	assert.Equal(t, "sk-env", account.Credentials.APIKey)
}

func TestAssistantValidation(t *testing.T) {
	base := func(t *testing.T) *AppConfig {
		a := minimalConfig(t)
		a.Assistant.Enabled = true
		a.Assistant.Providers = map[string][]ProviderAccount{
			ProviderOpenAI:   {{ID: "default", Credentials: CredentialsConfig{APIKey: "sk-1"}}},
			ProviderDeepgram: {{ID: "default", Credentials: CredentialsConfig{APIKey: "dg-1"}}},
		}
		a.Assistant.Services = map[string]ServiceConfig{
			ServiceVoiceSession: {
				Provider: ProviderOpenAI,
				Options:  map[string]interface{}{"stt_provider": ProviderDeepgram},
			},
		}
		return a
	}

	t.Run("valid stage composition", func(t *testing.T) {
		_, err := New(base(t))
		assert.NoError(t, err)
	})

	t.Run("service without provider", func(t *testing.T) {
		a := base(t)
		a.Assistant.Services[ServiceChat] = ServiceConfig{}
		_, err := New(a)
		assert.ErrorContains(t, err, "has no provider")
	})

	t.Run("missing account for stage provider", func(t *testing.T) {
		a := base(t)
		svc := a.Assistant.Services[ServiceVoiceSession]
		svc.Options["stt_provider"] = ProviderAzure
		a.Assistant.Services[ServiceVoiceSession] = svc
		_, err := New(a)
		assert.ErrorContains(t, err, "no accounts configured")
	})

	t.Run("stt provider cannot serve chat", func(t *testing.T) {
		a := base(t)
		svc := a.Assistant.Services[ServiceVoiceSession]
		svc.Options["llm_provider"] = ProviderDeepgram
		a.Assistant.Services[ServiceVoiceSession] = svc
		_, err := New(a)
		assert.ErrorContains(t, err, "cannot serve chat")
	})

	t.Run("account without api key", func(t *testing.T) {
		a := base(t)
		a.Assistant.Providers[ProviderOpenAI] = []ProviderAccount{{ID: "default"}}
		_, err := New(a)
		assert.ErrorContains(t, err, "has no api key")
	})
}

func TestServiceConfigOptions(t *testing.T) {
	svc := &ServiceConfig{
		Provider: ProviderOpenAI,
		ID:       "acct-1",
		Options: map[string]interface{}{
			"model":          "gpt-4o",
			"endpointing_ms": 500,
			"smart_format":   false,
			"from_json":      float64(7),
		},
	}

	assert.Equal(t, "gpt-4o", svc.StringOption("model", "fallback"))
	assert.Equal(t, "fallback", svc.StringOption("missing", "fallback"))
	assert.Equal(t, 500, svc.IntOption("endpointing_ms", 800))
	assert.Equal(t, 7, svc.IntOption("from_json", 0))
	assert.Equal(t, 800, svc.IntOption("missing", 800))
	assert.False(t, svc.BoolOption("smart_format", true))
	assert.True(t, svc.BoolOption("missing", true))
}

func TestStageProvider(t *testing.T) {
	svc := &ServiceConfig{
		Provider: ProviderOpenAI,
		ID:       "acct-1",
		Options: map[string]interface{}{
			"stt_provider": ProviderDeepgram,
			"stt_id":       "dg-acct",
		},
	}

	provider, id := svc.StageProvider(StageSTT)
	assert.Equal(t, ProviderDeepgram, provider)
	assert.Equal(t, "dg-acct", id)

	// unset stages inherit the service's own binding
	provider, id = svc.StageProvider(StageLLM)
	assert.Equal(t, ProviderOpenAI, provider)
	assert.Equal(t, "acct-1", id)
}
