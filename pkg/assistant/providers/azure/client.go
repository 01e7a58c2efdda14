package azure

import (
	"context"
	"fmt"

	"github.com/ajvoice/aj-server/pkg/assistant"
	"github.com/ajvoice/aj-server/pkg/config"
	"github.com/sirupsen/logrus"
)

// Provider implements speech-to-text and text-to-speech on top of the Azure
// Speech SDK. It holds no SDK state itself, every stream or synthesis builds
// its own config from the stored credentials.
type Provider struct {
	account *config.ProviderAccount
	service *config.ServiceConfig
	logger  *logrus.Entry
}

// NewProvider creates a new, fully configured Azure provider.
func NewProvider(providerAccount *config.ProviderAccount, serviceConfig *config.ServiceConfig, log *logrus.Entry) (*Provider, error) {
	if providerAccount.Credentials.APIKey == "" || providerAccount.Credentials.Region == "" {
		return nil, fmt.Errorf("azure provider requires api_key (subscription key) and region")
	}
	return &Provider{
		account: providerAccount,
		service: serviceConfig,
		logger:  log,
	}, nil
}

// CreateTranscription delegates the transcription task to the specialized
// transcribe client.
func (p *Provider) CreateTranscription(ctx context.Context, roomId, userId, spokenLang string) (assistant.TranscriptionStream, error) {
	client, err := newTranscribeClient(p.account.Credentials, p.logger)
	if err != nil {
		return nil, err
	}
	return client.CreateTranscription(ctx, roomId, userId, spokenLang)
}

// SynthesizeText delegates to the text-to-speech client.
func (p *Provider) SynthesizeText(ctx context.Context, text, language, voice string) (*assistant.SpeechResult, error) {
	if voice == "" {
		voice = p.service.StringOption("voice", "")
	}
	client, err := newTTSClient(p.account.Credentials, p.logger)
	if err != nil {
		return nil, err
	}
	return client.SynthesizeText(ctx, text, language, voice)
}
