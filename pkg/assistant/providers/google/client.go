package google

import (
	"context"
	"fmt"

	"github.com/ajvoice/aj-server/pkg/config"
	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

const defaultChatModel = "gemini-2.0-flash"

// Provider implements chat and summarization on top of Gemini. It does not
// offer speech services or tool calling, the factory pairs it with a speech
// provider when a voice session asks for a Gemini brain.
type Provider struct {
	client *genai.Client
	logger *logrus.Entry
	model  string
}

// NewProvider creates a new Google AI provider.
func NewProvider(ctx context.Context, providerAccount *config.ProviderAccount, serviceConfig *config.ServiceConfig, log *logrus.Entry) (*Provider, error) {
	if providerAccount.Credentials.APIKey == "" {
		return nil, fmt.Errorf("google provider requires api_key")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: providerAccount.Credentials.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Provider{
		client: client,
		logger: log,
		model:  serviceConfig.StringOption("model", defaultChatModel),
	}, nil
}

// SupportsTools reports that Gemini requests are sent without tool
// definitions. Tool calls are only available on providers that implement
// them.
func (p *Provider) SupportsTools() bool {
	return false
}
