package deepgram

import (
	"context"
	"fmt"

	"github.com/ajvoice/aj-server/pkg/assistant"
	"github.com/ajvoice/aj-server/pkg/config"
	"github.com/sirupsen/logrus"
)

const (
	defaultEndpoint = "wss://api.deepgram.com"
	defaultModel    = "nova-2"

	// defaultEndpointingMs is how long Deepgram waits in silence before it
	// marks a result speech_final.
	defaultEndpointingMs = 800
)

// Provider implements live speech-to-text over Deepgram's websocket API.
type Provider struct {
	apiKey       string
	endpoint     string
	model        string
	endpointing  int
	smartFormat  bool
	logger       *logrus.Entry
}

// NewProvider creates a new Deepgram provider.
func NewProvider(providerAccount *config.ProviderAccount, serviceConfig *config.ServiceConfig, log *logrus.Entry) (*Provider, error) {
	if providerAccount.Credentials.APIKey == "" {
		return nil, fmt.Errorf("deepgram provider requires api_key")
	}

	endpoint := providerAccount.Credentials.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	return &Provider{
		apiKey:      providerAccount.Credentials.APIKey,
		endpoint:    endpoint,
		model:       serviceConfig.StringOption("model", defaultModel),
		endpointing: serviceConfig.IntOption("endpointing_ms", defaultEndpointingMs),
		smartFormat: serviceConfig.BoolOption("smart_format", true),
		logger:      log,
	}, nil
}

// CreateTranscription dials the live listen endpoint and returns the
// connected stream.
func (p *Provider) CreateTranscription(ctx context.Context, roomId, userId, spokenLang string) (assistant.TranscriptionStream, error) {
	log := p.logger.WithFields(logrus.Fields{
		"roomId": roomId,
		"userId": userId,
	})
	return newLiveStream(ctx, p, spokenLang, log)
}
