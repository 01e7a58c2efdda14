package azure

import (
	"context"
	"fmt"

	"github.com/Microsoft/cognitive-services-speech-sdk-go/common"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/speech"
	"github.com/ajvoice/aj-server/pkg/assistant"
	"github.com/ajvoice/aj-server/pkg/config"
	"github.com/sirupsen/logrus"
)

// ttsSampleRate matches the Raw16Khz16BitMonoPcm output format requested
// below.
const ttsSampleRate = 16000

// ttsClient holds the configuration needed for Azure text-to-speech.
type ttsClient struct {
	creds config.CredentialsConfig
	log   *logrus.Entry
}

// newTTSClient creates a new client for text-to-speech.
func newTTSClient(creds config.CredentialsConfig, log *logrus.Entry) (*ttsClient, error) {
	if creds.APIKey == "" || creds.Region == "" {
		return nil, fmt.Errorf("azure provider requires api_key (subscription key) and region")
	}

	return &ttsClient{
		creds: creds,
		log:   log.WithField("service", "azure-tts"),
	}, nil
}

// SynthesizeText performs the synthesis and returns a streaming reader for
// the audio data.
func (c *ttsClient) SynthesizeText(ctx context.Context, text, language, voice string) (*assistant.SpeechResult, error) {
	// Create the speech config from the stored credentials for this specific task.
	conf, err := speech.NewSpeechConfigFromSubscription(c.creds.APIKey, c.creds.Region)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure speech config: %w", err)
	}
	defer conf.Close()

	if language == "zh-Hans" {
		language = "zh-CN"
	} else if language == "zh-Hant" {
		language = "zh-TW"
	}
	if language == "" {
		language = "en-US"
	}

	if err = conf.SetSpeechSynthesisLanguage(language); err != nil {
		return nil, fmt.Errorf("failed to set synthesis language: %w", err)
	}
	if voice != "" {
		if err = conf.SetSpeechSynthesisVoiceName(voice); err != nil {
			return nil, fmt.Errorf("failed to set synthesis voice: %w", err)
		}
	}
	// Raw PCM so the audio can go straight onto a local track without
	// container parsing.
	if err = conf.SetSpeechSynthesisOutputFormat(common.Raw16Khz16BitMonoPcm); err != nil {
		return nil, fmt.Errorf("failed to set synthesis output format: %w", err)
	}

	// Create the synthesizer. Audio config is nil as we get a stream from the result.
	synthesizer, err := speech.NewSpeechSynthesizerFromConfig(conf, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech synthesizer: %w", err)
	}
	defer synthesizer.Close()

	// Start the synthesis task asynchronously.
	task := synthesizer.StartSpeakingTextAsync(text)
	var outcome speech.SpeechSynthesisOutcome

	// Wait for the synthesis to begin or for the context to be cancelled.
	select {
	case outcome = <-task:
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled while waiting for synthesis result: %w", ctx.Err())
	}

	if outcome.Error != nil {
		outcome.Close()
		return nil, fmt.Errorf("synthesis outcome error: %w", outcome.Error)
	}

	if outcome.Result.Reason != common.SynthesizingAudioStarted {
		cancellation, _ := speech.NewCancellationDetailsFromSpeechSynthesisResult(outcome.Result)
		err := fmt.Errorf("synthesis failed: reason=%s, details=%s", outcome.Result.Reason.String(), cancellation.ErrorDetails)
		outcome.Close()
		return nil, err
	}

	// Create the audio data stream from the successful result.
	stream, err := speech.NewAudioDataStreamFromSpeechSynthesisResult(outcome.Result)
	if err != nil {
		outcome.Close()
		return nil, fmt.Errorf("failed to create audio data stream: %w", err)
	}

	// Return our custom wrapper which holds the stream and the outcome,
	// ensuring both are closed properly by the consumer.
	return &assistant.SpeechResult{
		Audio: &azureTTSStream{
			stream:  stream,
			outcome: &outcome,
		},
		SampleRate: ttsSampleRate,
	}, nil
}
