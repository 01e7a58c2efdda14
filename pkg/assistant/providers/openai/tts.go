package openai

import (
	"context"

	"github.com/ajvoice/aj-server/pkg/assistant"
	"github.com/openai/openai-go/v3"
)

// SynthesizeText converts text into raw PCM. The pcm response format is
// fixed at 24kHz 16-bit mono, the publisher resamples as needed. The
// language argument is unused, OpenAI voices are multilingual.
func (p *Provider) SynthesizeText(ctx context.Context, text, language, voice string) (*assistant.SpeechResult, error) {
	if voice == "" {
		voice = p.ttsVoice
	}

	resp, err := p.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(p.ttsModel),
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		Input:          text,
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatPCM,
	})
	if err != nil {
		return nil, err
	}

	return &assistant.SpeechResult{
		Audio:      resp.Body,
		SampleRate: pcmSampleRate,
	}, nil
}
