package assistantservice

import (
	"context"
	"fmt"

	"github.com/ajvoice/aj-server/pkg/assistant"
	"github.com/ajvoice/aj-server/pkg/assistant/providers/azure"
	"github.com/ajvoice/aj-server/pkg/assistant/providers/deepgram"
	"github.com/ajvoice/aj-server/pkg/assistant/providers/google"
	"github.com/ajvoice/aj-server/pkg/assistant/providers/openai"
	"github.com/ajvoice/aj-server/pkg/config"
	"github.com/sirupsen/logrus"
)

// newProvider builds the configured provider instance. The returned value
// implements one or more of the assistant capability interfaces; callers
// assert the one they need.
func newProvider(ctx context.Context, providerType string, account *config.ProviderAccount, serviceConfig *config.ServiceConfig, logger *logrus.Entry) (interface{}, error) {
	log := logger.WithField("provider", providerType)

	switch providerType {
	case config.ProviderOpenAI:
		return openai.NewProvider(account, serviceConfig, log)
	case config.ProviderGoogle:
		return google.NewProvider(ctx, account, serviceConfig, log)
	case config.ProviderAzure:
		return azure.NewProvider(account, serviceConfig, log)
	case config.ProviderDeepgram:
		return deepgram.NewProvider(account, serviceConfig, log)
	default:
		return nil, fmt.Errorf("unknown assistant provider type: %s", providerType)
	}
}

// stageProvider resolves one pipeline stage of a service to a concrete
// provider instance.
func stageProvider(ctx context.Context, conf *config.AssistantConfig, serviceConfig *config.ServiceConfig, stage string, logger *logrus.Entry) (interface{}, error) {
	providerType, accountId := serviceConfig.StageProvider(stage)
	account, err := conf.GetProviderAccount(providerType, accountId)
	if err != nil {
		return nil, fmt.Errorf("stage '%s': %w", stage, err)
	}
	return newProvider(ctx, providerType, account, serviceConfig, logger.WithField("stage", stage))
}

// NewChatProvider resolves the llm stage of a service.
func NewChatProvider(ctx context.Context, conf *config.AssistantConfig, serviceConfig *config.ServiceConfig, logger *logrus.Entry) (assistant.ChatProvider, error) {
	p, err := stageProvider(ctx, conf, serviceConfig, config.StageLLM, logger)
	if err != nil {
		return nil, err
	}
	cp, ok := p.(assistant.ChatProvider)
	if !ok {
		providerType, _ := serviceConfig.StageProvider(config.StageLLM)
		return nil, fmt.Errorf("provider '%s' cannot serve chat", providerType)
	}
	return cp, nil
}

// NewSpeechToTextProvider resolves the stt stage of a service.
func NewSpeechToTextProvider(ctx context.Context, conf *config.AssistantConfig, serviceConfig *config.ServiceConfig, logger *logrus.Entry) (assistant.SpeechToTextProvider, error) {
	p, err := stageProvider(ctx, conf, serviceConfig, config.StageSTT, logger)
	if err != nil {
		return nil, err
	}
	sp, ok := p.(assistant.SpeechToTextProvider)
	if !ok {
		providerType, _ := serviceConfig.StageProvider(config.StageSTT)
		return nil, fmt.Errorf("provider '%s' cannot serve transcription", providerType)
	}
	return sp, nil
}

// NewTextToSpeechProvider resolves the tts stage of a service.
func NewTextToSpeechProvider(ctx context.Context, conf *config.AssistantConfig, serviceConfig *config.ServiceConfig, logger *logrus.Entry) (assistant.TextToSpeechProvider, error) {
	p, err := stageProvider(ctx, conf, serviceConfig, config.StageTTS, logger)
	if err != nil {
		return nil, err
	}
	tp, ok := p.(assistant.TextToSpeechProvider)
	if !ok {
		providerType, _ := serviceConfig.StageProvider(config.StageTTS)
		return nil, fmt.Errorf("provider '%s' cannot serve speech synthesis", providerType)
	}
	return tp, nil
}

// newTask is the factory that returns the Task implementation for a service.
func (s *AssistantService) newTask(serviceName, roomId, sessionId string, e2eeKey *string, logger *logrus.Entry) (Task, error) {
	serviceConfig, err := s.conf.Assistant.GetServiceConfig(serviceName)
	if err != nil {
		return nil, err
	}

	switch serviceName {
	case config.ServiceVoiceSession:
		return s.newVoiceSessionTask(serviceConfig, roomId, sessionId, e2eeKey, logger)
	case config.ServiceTranscription:
		return s.newTranscriptionTask(serviceConfig, roomId, sessionId, logger)
	default:
		return nil, fmt.Errorf("unknown assistant service task: %s", serviceName)
	}
}
