package openai

import (
	"bytes"
	"context"
	"strings"
	"sync"

	"github.com/ajvoice/aj-server/pkg/assistant"
	"github.com/ajvoice/aj-server/pkg/assistant/media"
	"github.com/openai/openai-go/v3"
	"github.com/sirupsen/logrus"
)

// CreateTranscription returns a stream that transcribes raw PCM with
// Whisper. Whisper is a batch API, so the stream buffers audio until the
// utterance detector decides the speaker is done and uploads one utterance
// at a time. A single partial result is emitted when speech starts so the
// session can react to the user talking over the agent.
func (p *Provider) CreateTranscription(ctx context.Context, roomId, userId, spokenLang string) (assistant.TranscriptionStream, error) {
	ctx, cancel := context.WithCancel(ctx)
	ws := &whisperStream{
		provider: p,
		ctx:      ctx,
		cancel:   cancel,
		lang:     normalizeWhisperLang(spokenLang),
		detector: media.NewUtteranceDetector(media.TargetSampleRate, 0),
		pending:  make(chan []int16, 4),
		results:  make(chan *assistant.TranscriptionResult, 8),
		logger: p.logger.WithFields(logrus.Fields{
			"roomId": roomId,
			"userId": userId,
		}),
	}

	ws.wg.Add(1)
	go ws.run()

	return ws, nil
}

type whisperStream struct {
	provider *Provider
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *logrus.Entry

	lang     string
	detector *media.UtteranceDetector
	pending  chan []int16
	results  chan *assistant.TranscriptionResult

	mu       sync.Mutex
	closed   bool
	speaking bool
	wg       sync.WaitGroup
}

func (ws *whisperStream) Write(data []byte) (int, error) {
	ws.mu.Lock()
	if ws.closed {
		ws.mu.Unlock()
		return 0, assistant.ErrStreamClosed
	}

	samples := media.BytesToPCM16(data)
	utterance := ws.detector.Feed(samples)

	if ws.detector.Speaking() && !ws.speaking {
		ws.speaking = true
		ws.emit(&assistant.TranscriptionResult{IsPartial: true})
	}
	if utterance != nil {
		ws.speaking = false
	}
	ws.mu.Unlock()

	if utterance != nil {
		select {
		case ws.pending <- utterance:
		case <-ws.ctx.Done():
			return 0, ws.ctx.Err()
		}
	}
	return len(data), nil
}

func (ws *whisperStream) SetProperty(key, value string) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if key == "language" {
		ws.lang = normalizeWhisperLang(value)
	}
	return nil
}

func (ws *whisperStream) Results() <-chan *assistant.TranscriptionResult {
	return ws.results
}

func (ws *whisperStream) Close() error {
	ws.mu.Lock()
	if ws.closed {
		ws.mu.Unlock()
		return nil
	}
	ws.closed = true
	tail := ws.detector.Flush()
	ws.mu.Unlock()

	if tail != nil {
		select {
		case ws.pending <- tail:
		default:
		}
	}
	close(ws.pending)
	ws.wg.Wait()
	ws.cancel()
	close(ws.results)
	return nil
}

// run uploads utterances one at a time so results keep their spoken order.
func (ws *whisperStream) run() {
	defer ws.wg.Done()
	for utterance := range ws.pending {
		text, err := ws.transcribe(utterance)
		if err != nil {
			if ws.ctx.Err() == nil {
				ws.logger.WithError(err).Errorln("whisper transcription failed")
			}
			continue
		}
		if text == "" {
			continue
		}
		ws.emit(&assistant.TranscriptionResult{
			Text:        text,
			IsEndOfTurn: true,
		})
	}
}

func (ws *whisperStream) transcribe(samples []int16) (string, error) {
	wav := media.EncodeWAV(samples, media.TargetSampleRate, 1)

	params := openai.AudioTranscriptionNewParams{
		Model: openai.AudioModel(ws.provider.sttModel),
		File:  openai.File(bytes.NewReader(wav), "utterance.wav", "audio/wav"),
	}
	if ws.lang != "" {
		params.Language = openai.String(ws.lang)
	}

	resp, err := ws.provider.client.Audio.Transcriptions.New(ws.ctx, params)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

func (ws *whisperStream) emit(result *assistant.TranscriptionResult) {
	select {
	case ws.results <- result:
	default:
		ws.logger.Warnln("transcription consumer is behind, dropping result")
	}
}

// normalizeWhisperLang maps BCP-47 tags such as en-US down to the ISO-639-1
// codes Whisper expects.
func normalizeWhisperLang(lang string) string {
	if lang == "" {
		return ""
	}
	if idx := strings.IndexAny(lang, "-_"); idx > 0 {
		lang = lang[:idx]
	}
	return strings.ToLower(lang)
}
