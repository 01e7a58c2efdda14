package config

import (
	"fmt"
	"time"
)

// Provider types the assistant services can bind to.
const (
	ProviderOpenAI   = "openai"
	ProviderGoogle   = "google"
	ProviderAzure    = "azure"
	ProviderDeepgram = "deepgram"
)

// Assistant service names. Each one maps to a Task implementation.
const (
	ServiceVoiceSession  = "voice_session"
	ServiceTranscription = "transcription"
	ServiceChat          = "chat"
	ServiceSummary       = "summary"
)

// Pipeline stages of the voice session. Each stage may bind its own provider
// through service options ("stt_provider", "llm_provider", "tts_provider").
const (
	StageSTT = "stt"
	StageLLM = "llm"
	StageTTS = "tts"
)

// AssistantConfig is the main config block for the assistant feature.
type AssistantConfig struct {
	Enabled bool `yaml:"enabled"`
	// The key is the provider type ("openai", "deepgram", "google", "azure"),
	// the value is a list of accounts.
	Providers map[string][]ProviderAccount `yaml:"providers"`
	// The key is the service name ("voice_session", "transcription", ...).
	Services map[string]ServiceConfig `yaml:"services"`
	Agent    AgentBehavior            `yaml:"agent"`
}

// ProviderAccount defines a single, uniquely identified set of credentials for a provider.
type ProviderAccount struct {
	ID          string                 `yaml:"id"`
	Credentials CredentialsConfig      `yaml:"credentials"`
	Options     map[string]interface{} `yaml:"options"` // Generic options for the provider
}

// ServiceConfig references a provider type and a specific account ID.
type ServiceConfig struct {
	Provider string                 `yaml:"provider"`
	ID       string                 `yaml:"id"`
	Options  map[string]interface{} `yaml:"options"` // Generic options, e.g., model, voice, language
}

// CredentialsConfig contains the most common credential fields.
// Providers needing extra data can use the account Options field.
type CredentialsConfig struct {
	APIKey   string `yaml:"api_key"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// AgentBehavior tunes the in-room voice pipeline.
type AgentBehavior struct {
	GreetingEnabled     *bool          `yaml:"greeting_enabled"`
	InterruptionEnabled *bool          `yaml:"interruption_enabled"`
	IdleTimeout         *time.Duration `yaml:"idle_timeout"`
	TurnSilenceWindow   *time.Duration `yaml:"turn_silence_window"`
	MaxToolRounds       int            `yaml:"max_tool_rounds"`
	HistoryWindow       int            `yaml:"history_window"`
	SpeechQueueSize     int            `yaml:"speech_queue_size"`
	DisabledTools       []string       `yaml:"disabled_tools"`
}

func (c *AssistantConfig) applyDefaults() {
	if c.Providers == nil {
		c.Providers = make(map[string][]ProviderAccount)
	}
	if c.Services == nil {
		c.Services = make(map[string]ServiceConfig)
	}

	b := &c.Agent
	if b.GreetingEnabled == nil {
		v := true
		b.GreetingEnabled = &v
	}
	if b.InterruptionEnabled == nil {
		v := true
		b.InterruptionEnabled = &v
	}
	if b.IdleTimeout == nil || *b.IdleTimeout <= 0 {
		d := time.Minute * 10
		b.IdleTimeout = &d
	}
	if b.TurnSilenceWindow == nil || *b.TurnSilenceWindow <= 0 {
		d := time.Millisecond * 800
		b.TurnSilenceWindow = &d
	}
	if b.MaxToolRounds <= 0 {
		b.MaxToolRounds = 5
	}
	if b.HistoryWindow <= 0 {
		b.HistoryWindow = 20
	}
	if b.SpeechQueueSize <= 0 {
		b.SpeechQueueSize = 10
	}
}

// setAccountCredentials injects env-supplied credentials into the first
// account of the given provider, creating the account when the yaml did not
// declare one. Empty values never override configured ones.
func (c *AssistantConfig) setAccountCredentials(provider, apiKey, region string) {
	if apiKey == "" && region == "" {
		return
	}
	if c.Providers == nil {
		c.Providers = make(map[string][]ProviderAccount)
	}
	accounts := c.Providers[provider]
	if len(accounts) == 0 {
		accounts = []ProviderAccount{{ID: "default"}}
	}
	if apiKey != "" {
		accounts[0].Credentials.APIKey = apiKey
	}
	if region != "" {
		accounts[0].Credentials.Region = region
	}
	c.Providers[provider] = accounts
}

// GetProviderAccount resolves an account by provider type and account ID.
func (c *AssistantConfig) GetProviderAccount(provider, id string) (*ProviderAccount, error) {
	accounts, ok := c.Providers[provider]
	if !ok || len(accounts) == 0 {
		return nil, fmt.Errorf("no accounts configured for provider '%s'", provider)
	}
	if id == "" {
		return &accounts[0], nil
	}
	for i := range accounts {
		if accounts[i].ID == id {
			return &accounts[i], nil
		}
	}
	return nil, fmt.Errorf("provider '%s' has no account with id '%s'", provider, id)
}

// GetServiceConfig resolves a service entry by name.
func (c *AssistantConfig) GetServiceConfig(name string) (*ServiceConfig, error) {
	svc, ok := c.Services[name]
	if !ok {
		return nil, fmt.Errorf("assistant service '%s' is not configured", name)
	}
	return &svc, nil
}

// StringOption reads a string value from a service's generic options.
func (s *ServiceConfig) StringOption(key, fallback string) string {
	if s.Options == nil {
		return fallback
	}
	if v, ok := s.Options[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// IntOption reads an integer value from a service's generic options.
// YAML hands integers over as int, JSON as float64.
func (s *ServiceConfig) IntOption(key string, fallback int) int {
	if s.Options == nil {
		return fallback
	}
	switch v := s.Options[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}

// BoolOption reads a boolean value from a service's generic options.
func (s *ServiceConfig) BoolOption(key string, fallback bool) bool {
	if s.Options == nil {
		return fallback
	}
	if v, ok := s.Options[key].(bool); ok {
		return v
	}
	return fallback
}

// StageProvider resolves the provider type and account ID a pipeline stage
// binds to, falling back to the service's own provider and account.
func (s *ServiceConfig) StageProvider(stage string) (provider string, accountID string) {
	provider = s.StringOption(stage+"_provider", s.Provider)
	accountID = s.StringOption(stage+"_id", "")
	if provider == s.Provider && accountID == "" {
		accountID = s.ID
	}
	return provider, accountID
}

func (c *AssistantConfig) validate() error {
	for name, svc := range c.Services {
		if svc.Provider == "" {
			return fmt.Errorf("assistant service '%s' has no provider", name)
		}
		if err := c.checkAccount(name, svc.Provider, svc.ID); err != nil {
			return err
		}
	}

	// the voice session composes three provider stages; make sure every one
	// of them resolves to a usable account before boot.
	if svc, ok := c.Services[ServiceVoiceSession]; ok {
		for _, stage := range []string{StageSTT, StageLLM, StageTTS} {
			provider, id := svc.StageProvider(stage)
			if err := c.checkAccount(ServiceVoiceSession+"."+stage, provider, id); err != nil {
				return err
			}
		}
		if llm, _ := svc.StageProvider(StageLLM); llm != ProviderOpenAI && llm != ProviderGoogle {
			return fmt.Errorf("voice_session llm stage: provider '%s' cannot serve chat", llm)
		}
	}
	return nil
}

func (c *AssistantConfig) checkAccount(scope, provider, id string) error {
	account, err := c.GetProviderAccount(provider, id)
	if err != nil {
		return fmt.Errorf("assistant service '%s': %w", scope, err)
	}
	if account.Credentials.APIKey == "" {
		return fmt.Errorf("assistant service '%s': provider '%s' account '%s' has no api key; set it in the config file or via the provider env var", scope, provider, account.ID)
	}
	if provider == ProviderAzure && account.Credentials.Region == "" {
		return fmt.Errorf("assistant service '%s': azure account '%s' requires a region; set it via AZURE_SPEECH_REGION", scope, account.ID)
	}
	return nil
}
