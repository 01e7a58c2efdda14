package assistantservice

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	sdkmedia "github.com/livekit/media-sdk"

	"github.com/ajvoice/aj-server/pkg/assistant"
	"github.com/ajvoice/aj-server/pkg/assistant/media"
	"github.com/ajvoice/aj-server/pkg/config"
	natsservice "github.com/ajvoice/aj-server/pkg/services/nats"
	redisservice "github.com/ajvoice/aj-server/pkg/services/redis"
)

// TranscriptionTask is the listen-only pipeline: it transcribes every
// activated participant and publishes the finals to transcript consumers
// without ever talking back.
type TranscriptionTask struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *logrus.Entry

	roomId    string
	sessionId string

	stt assistant.SpeechToTextProvider

	redisService *redisservice.RedisService
	natsService  *natsservice.NatsService

	language string

	lastActivity atomic.Int64
}

func (s *AssistantService) newTranscriptionTask(serviceConfig *config.ServiceConfig, roomId, sessionId string, logger *logrus.Entry) (*TranscriptionTask, error) {
	ctx, cancel := context.WithCancel(s.ctx)
	log := logger.WithField("task", "transcription")

	stt, err := NewSpeechToTextProvider(ctx, &s.conf.Assistant, serviceConfig, log)
	if err != nil {
		cancel()
		return nil, err
	}

	t := &TranscriptionTask{
		ctx:          ctx,
		cancel:       cancel,
		logger:       log,
		roomId:       roomId,
		sessionId:    sessionId,
		stt:          stt,
		redisService: s.redisService,
		natsService:  s.natsService,
		language:     serviceConfig.StringOption("language", "en-US"),
	}
	t.touch()
	return t, nil
}

func (t *TranscriptionTask) touch() {
	t.lastActivity.Store(time.Now().UnixNano())
}

// LastActivityAt implements Task.
func (t *TranscriptionTask) LastActivityAt() time.Time {
	return time.Unix(0, t.lastActivity.Load())
}

// RunAudioStream implements Task.
func (t *TranscriptionTask) RunAudioStream(ctx context.Context, audio <-chan sdkmedia.PCM16Sample, identity string, options map[string]string) error {
	lang := t.language
	if v := options["language"]; v != "" {
		lang = v
	}
	log := t.logger.WithField("userId", identity)

	stream, err := t.stt.CreateTranscription(ctx, t.roomId, identity, lang)
	if err != nil {
		return fmt.Errorf("failed to open transcription stream: %w", err)
	}
	defer func() {
		_ = stream.Close()
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case sample, ok := <-audio:
				if !ok {
					_ = stream.Close()
					return
				}
				if _, err := stream.Write(media.PCM16ToBytes(sample)); err != nil {
					if !errors.Is(err, assistant.ErrStreamClosed) {
						log.WithError(err).Warnln("failed to write audio to transcription stream")
					}
					return
				}
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res, ok := <-stream.Results():
			if !ok {
				return nil
			}
			t.touch()
			if res.IsPartial || res.Text == "" {
				continue
			}
			t.publishFinal(identity, lang, res.Text)
		}
	}
}

// publishFinal fans a finalized utterance out to the transcript stores.
func (t *TranscriptionTask) publishFinal(identity, lang, text string) {
	if err := t.redisService.AddConversationTurn(t.roomId, identity, identity, assistant.RoleUser, text); err != nil {
		t.logger.WithError(err).Errorln("failed to store conversation turn")
	}
	if err := t.natsService.BroadcastSpeechOutput(&natsservice.SpeechOutputEvent{
		RoomId:     t.roomId,
		FromUserId: identity,
		Name:       identity,
		Role:       assistant.RoleUser,
		Lang:       lang,
		Text:       text,
	}); err != nil {
		t.logger.WithError(err).Warnln("failed to broadcast speech output")
	}
	if err := t.natsService.AddSpeechChunk(t.roomId, identity, identity, assistant.RoleUser, lang, text); err != nil {
		t.logger.WithError(err).Warnln("failed to store speech chunk")
	}
}

// Shutdown implements Task.
func (t *TranscriptionTask) Shutdown() {
	t.cancel()
}
