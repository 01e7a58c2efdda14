package openai

import (
	"fmt"

	"github.com/ajvoice/aj-server/pkg/config"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sirupsen/logrus"
)

const (
	defaultChatModel = "gpt-4o-mini"
	defaultSTTModel  = "whisper-1"
	defaultTTSModel  = "tts-1"
	defaultTTSVoice  = "alloy"

	// pcmSampleRate is what the speech endpoint produces for the pcm
	// response format.
	pcmSampleRate = 24000
)

// Provider talks to OpenAI (or any compatible endpoint) for chat, tool
// calling, Whisper transcription and speech synthesis.
type Provider struct {
	client    openai.Client
	account   *config.ProviderAccount
	service   *config.ServiceConfig
	logger    *logrus.Entry
	chatModel string
	sttModel  string
	ttsModel  string
	ttsVoice  string
}

// NewProvider constructs the OpenAI provider for a configured service.
func NewProvider(providerAccount *config.ProviderAccount, serviceConfig *config.ServiceConfig, log *logrus.Entry) (*Provider, error) {
	if providerAccount.Credentials.APIKey == "" {
		return nil, fmt.Errorf("openai provider requires api_key")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(providerAccount.Credentials.APIKey),
	}
	if providerAccount.Credentials.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(providerAccount.Credentials.Endpoint))
	}

	return &Provider{
		client:    openai.NewClient(opts...),
		account:   providerAccount,
		service:   serviceConfig,
		logger:    log,
		chatModel: serviceConfig.StringOption("model", defaultChatModel),
		sttModel:  serviceConfig.StringOption("stt_model", defaultSTTModel),
		ttsModel:  serviceConfig.StringOption("tts_model", defaultTTSModel),
		ttsVoice:  serviceConfig.StringOption("voice", defaultTTSVoice),
	}, nil
}

// SupportsTools reports that this provider honors tool definitions.
func (p *Provider) SupportsTools() bool {
	return true
}
