package assistantservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	lkauth "github.com/livekit/protocol/auth"
	lksdk "github.com/livekit/server-sdk-go/v2"
	sdkmedia "github.com/livekit/media-sdk"

	"github.com/ajvoice/aj-server/pkg/assistant"
	"github.com/ajvoice/aj-server/pkg/assistant/media"
	"github.com/ajvoice/aj-server/pkg/assistant/prompts"
	"github.com/ajvoice/aj-server/pkg/assistant/tools"
	"github.com/ajvoice/aj-server/pkg/config"
	natsservice "github.com/ajvoice/aj-server/pkg/services/nats"
	redisservice "github.com/ajvoice/aj-server/pkg/services/redis"
)

const speakerTrackName = "aj-voice"

type speechJob struct {
	ctx  context.Context
	text string
}

// VoiceSessionTask is the full STT -> LLM -> TTS pipeline for one room. It
// listens to every activated participant, assembles their speech into turns,
// reasons over them with the tool-calling chat provider and speaks replies
// back through its own published audio track.
type VoiceSessionTask struct {
	ctx    context.Context
	cancel context.CancelFunc

	conf    *config.AppConfig
	svcConf *config.ServiceConfig
	logger  *logrus.Entry

	roomId    string
	sessionId string
	e2eeKey   *string

	stt assistant.SpeechToTextProvider
	llm assistant.ChatProvider
	tts assistant.TextToSpeechProvider

	registry *tools.Registry
	executor *tools.Executor
	toolDefs []*assistant.ToolDefinition

	redisService *redisservice.RedisService
	natsService  *natsservice.NatsService

	language    string
	voice       string
	ttsProvider string

	// one reply pipeline at a time, across every listening participant
	turnMu sync.Mutex

	speakQueue chan *speechJob
	speaking   atomic.Bool

	speechMu     sync.Mutex
	speechCancel context.CancelFunc

	speakerMu sync.Mutex
	speaker   *lksdk.Room
	publisher *media.AudioPublisher

	lastActivity atomic.Int64
}

func (s *AssistantService) newVoiceSessionTask(serviceConfig *config.ServiceConfig, roomId, sessionId string, e2eeKey *string, logger *logrus.Entry) (*VoiceSessionTask, error) {
	ctx, cancel := context.WithCancel(s.ctx)
	log := logger.WithField("task", "voice-session")

	stt, err := NewSpeechToTextProvider(ctx, &s.conf.Assistant, serviceConfig, log)
	if err != nil {
		cancel()
		return nil, err
	}
	llm, err := NewChatProvider(ctx, &s.conf.Assistant, serviceConfig, log)
	if err != nil {
		cancel()
		return nil, err
	}
	tts, err := NewTextToSpeechProvider(ctx, &s.conf.Assistant, serviceConfig, log)
	if err != nil {
		cancel()
		return nil, err
	}

	t := &VoiceSessionTask{
		ctx:          ctx,
		cancel:       cancel,
		conf:         s.conf,
		svcConf:      serviceConfig,
		logger:       log,
		roomId:       roomId,
		sessionId:    sessionId,
		e2eeKey:      e2eeKey,
		stt:          stt,
		llm:          llm,
		tts:          tts,
		redisService: s.redisService,
		natsService:  s.natsService,
		language:     serviceConfig.StringOption("language", "en-US"),
		voice:        serviceConfig.StringOption("voice", ""),
		speakQueue:   make(chan *speechJob, s.conf.Assistant.Agent.SpeechQueueSize),
	}
	t.ttsProvider, _ = serviceConfig.StageProvider(config.StageTTS)
	t.touch()

	if t.llm.SupportsTools() {
		if err = t.setupTools(s); err != nil {
			cancel()
			return nil, err
		}
	}

	go t.speakerLoop()

	if *s.conf.Assistant.Agent.GreetingEnabled {
		go t.greet()
	}

	return t, nil
}

// setupTools builds the room's tool registry. Tools listed in the agent's
// disabled_tools config are registered but never advertised to the model.
func (t *VoiceSessionTask) setupTools(s *AssistantService) error {
	t.registry = tools.NewRegistry(t.logger)
	deps := &tools.Deps{
		Logger:   t.logger,
		HTTP:     &http.Client{Timeout: *t.conf.ToolSettings.HttpTimeout},
		Redis:    t.redisService,
		Settings: &t.conf.ToolSettings,
		Chat:     t.llm,
		RoomID:   t.roomId,
	}
	if err := tools.RegisterBuiltins(t.registry, deps); err != nil {
		return err
	}
	t.executor = tools.NewExecutor(t.registry, t.logger)

	disabled := make(map[string]bool, len(t.conf.Assistant.Agent.DisabledTools))
	for _, name := range t.conf.Assistant.Agent.DisabledTools {
		disabled[name] = true
	}
	for _, def := range t.registry.Definitions() {
		if !disabled[def.Name] {
			t.toolDefs = append(t.toolDefs, def)
		}
	}
	return nil
}

func (t *VoiceSessionTask) touch() {
	t.lastActivity.Store(time.Now().UnixNano())
}

// LastActivityAt implements Task.
func (t *VoiceSessionTask) LastActivityAt() time.Time {
	return time.Unix(0, t.lastActivity.Load())
}

// RunAudioStream implements Task: it transcribes one participant's audio
// and feeds completed turns into the reply pipeline.
func (t *VoiceSessionTask) RunAudioStream(ctx context.Context, audio <-chan sdkmedia.PCM16Sample, identity string, options map[string]string) error {
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

	// audio pump: decoded PCM into the provider stream
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

	assembler := newTurnAssembler(*t.conf.Assistant.Agent.TurnSilenceWindow)
	interruption := *t.conf.Assistant.Agent.InterruptionEnabled

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case res, ok := <-stream.Results():
			if !ok {
				if turn := assembler.Flush(); turn != "" {
					go t.completeTurn(ctx, identity, turn, lang)
				}
				return nil
			}
			t.touch()

			if res.IsPartial {
				if interruption && res.Text != "" && t.speaking.Load() {
					log.Debugln("user spoke over the agent, interrupting")
					t.Interrupt()
				}
				continue
			}
			if turn := assembler.AddSegment(res.Text, res.IsEndOfTurn); turn != "" {
				// reply generation must not block the recognizer loop or
				// interruptions would wait for the model
				go t.completeTurn(ctx, identity, turn, lang)
			}

		case <-assembler.Silence():
			if turn := assembler.Flush(); turn != "" {
				go t.completeTurn(ctx, identity, turn, lang)
			}
		}
	}
}

// completeTurn records the user's finished utterance and produces the
// spoken reply.
func (t *VoiceSessionTask) completeTurn(ctx context.Context, identity, text, lang string) {
	log := t.logger.WithField("userId", identity)
	log.Infof("turn completed: %q", text)
	t.touch()

	if err := t.redisService.AddConversationTurn(t.roomId, identity, identity, assistant.RoleUser, text); err != nil {
		log.WithError(err).Errorln("failed to store conversation turn")
	}
	_ = t.natsService.BroadcastSpeechOutput(&natsservice.SpeechOutputEvent{
		RoomId:     t.roomId,
		FromUserId: identity,
		Name:       identity,
		Role:       assistant.RoleUser,
		Lang:       lang,
		Text:       text,
	})
	_ = t.natsService.AddSpeechChunk(t.roomId, identity, identity, assistant.RoleUser, lang, text)
	if err := t.redisService.IncrementTurnCounters(ctx, t.roomId, config.ServiceVoiceSession, 1, 0); err != nil {
		log.WithError(err).Warnln("failed to bump turn counter")
	}

	reply, err := t.generateReply(ctx, identity)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.WithError(err).Errorln("failed to generate reply")
		}
		return
	}
	if reply == "" {
		return
	}

	t.deliverReply(ctx, reply, lang)
}

// generateReply runs the chat completion with the tool-call loop over the
// room's recent history.
func (t *VoiceSessionTask) generateReply(ctx context.Context, identity string) (string, error) {
	t.turnMu.Lock()
	defer t.turnMu.Unlock()

	messages, err := t.recentHistory()
	if err != nil {
		return "", err
	}

	req := &assistant.ChatRequest{
		System:   t.systemPrompt(),
		Messages: messages,
		Tools:    t.toolDefs,
	}

	maxRounds := t.conf.Assistant.Agent.MaxToolRounds
	for round := 0; ; round++ {
		result, err := t.llm.Chat(ctx, req)
		if err != nil {
			return "", err
		}
		if err := t.redisService.UpdateLLMUsage(ctx, t.roomId, config.ServiceVoiceSession, identity, assistant.TaskVoiceSession, result.PromptTokens, result.CompletionTokens, result.TotalTokens); err != nil {
			t.logger.WithError(err).Warnln("failed to update llm usage")
		}

		if len(result.ToolCalls) == 0 || t.executor == nil {
			return strings.TrimSpace(result.Text), nil
		}
		if round >= maxRounds {
			t.logger.Warnf("tool round limit (%d) reached, answering without further calls", maxRounds)
			return strings.TrimSpace(result.Text), nil
		}

		t.logger.Infof("model requested %d tool call(s)", len(result.ToolCalls))
		if err := t.redisService.IncrementTurnCounters(ctx, t.roomId, config.ServiceVoiceSession, 0, len(result.ToolCalls)); err != nil {
			t.logger.WithError(err).Warnln("failed to bump tool call counter")
		}

		req.Messages = append(req.Messages, &assistant.ChatMessage{
			Role:      assistant.RoleAssistant,
			Content:   result.Text,
			ToolCalls: result.ToolCalls,
		})
		for _, res := range t.executor.Execute(ctx, result.ToolCalls) {
			req.Messages = append(req.Messages, res.Message())
		}
	}
}

// deliverReply records the reply, broadcasts it to transcript consumers and
// queues it for synthesis sentence by sentence.
func (t *VoiceSessionTask) deliverReply(ctx context.Context, reply, lang string) {
	t.touch()

	agentId := config.AgentUserIdPrefix + config.ServiceVoiceSession
	if err := t.redisService.AddConversationTurn(t.roomId, agentId, "Aj", assistant.RoleAssistant, reply); err != nil {
		t.logger.WithError(err).Errorln("failed to store agent reply")
	}
	_ = t.natsService.BroadcastSpeechOutput(&natsservice.SpeechOutputEvent{
		RoomId:     t.roomId,
		FromUserId: agentId,
		Name:       "Aj",
		Role:       assistant.RoleAssistant,
		Lang:       lang,
		Text:       reply,
	})
	_ = t.natsService.AddSpeechChunk(t.roomId, agentId, "Aj", assistant.RoleAssistant, lang, reply)

	t.enqueueSpeech(ctx, reply)
}

// enqueueSpeech splits the text into sentences and queues them under a
// cancellable context so an interruption can drop the rest mid-reply.
func (t *VoiceSessionTask) enqueueSpeech(ctx context.Context, text string) {
	speechCtx, cancel := context.WithCancel(t.ctx)
	t.speechMu.Lock()
	t.speechCancel = cancel
	t.speechMu.Unlock()

	for _, sentence := range SplitSentences(text) {
		select {
		case t.speakQueue <- &speechJob{ctx: speechCtx, text: sentence}:
		case <-speechCtx.Done():
			return
		case <-ctx.Done():
			return
		}
	}
}

// Announce implements Announcer; used by reminder delivery.
func (t *VoiceSessionTask) Announce(text string) {
	t.touch()
	t.deliverReply(t.ctx, text, t.language)
}

// Interrupt cuts the current reply off: pending sentences are dropped and
// the published audio queue is flushed.
func (t *VoiceSessionTask) Interrupt() {
	t.speechMu.Lock()
	if t.speechCancel != nil {
		t.speechCancel()
		t.speechCancel = nil
	}
	t.speechMu.Unlock()

	// drop whatever is already queued
	for {
		select {
		case <-t.speakQueue:
		default:
			t.speakerMu.Lock()
			if t.publisher != nil {
				t.publisher.ClearQueue()
			}
			t.speakerMu.Unlock()
			return
		}
	}
}

// greet opens the session the way the persona demands. The session
// instruction is sent as the first user turn so the model voices the
// greeting itself; if the model is unreachable the canned line is used.
func (t *VoiceSessionTask) greet() {
	ctx, cancel := context.WithTimeout(t.ctx, time.Second*20)
	defer cancel()

	req := &assistant.ChatRequest{
		System:   t.systemPrompt(),
		Messages: []*assistant.ChatMessage{{Role: assistant.RoleUser, Content: prompts.SessionInstruction}},
	}

	greeting := prompts.Greeting
	result, err := t.llm.Chat(ctx, req)
	if err != nil {
		t.logger.WithError(err).Warnln("greeting completion failed, using the canned line")
	} else if strings.TrimSpace(result.Text) != "" {
		greeting = strings.TrimSpace(result.Text)
		agentId := config.AgentUserIdPrefix + config.ServiceVoiceSession
		_ = t.redisService.UpdateLLMUsage(ctx, t.roomId, config.ServiceVoiceSession, agentId, assistant.TaskVoiceSession, result.PromptTokens, result.CompletionTokens, result.TotalTokens)
	}

	t.deliverReply(ctx, greeting, t.language)
}

// recentHistory converts the room's stored turns into chat messages.
func (t *VoiceSessionTask) recentHistory() ([]*assistant.ChatMessage, error) {
	window := t.conf.Assistant.Agent.HistoryWindow
	turns, err := t.redisService.GetRecentConversationTurns(t.roomId, window)
	if err != nil {
		return nil, err
	}

	messages := make([]*assistant.ChatMessage, 0, len(turns))
	for _, turn := range turns {
		messages = append(messages, &assistant.ChatMessage{
			Role:    turn.Role,
			Content: turn.Text,
		})
	}
	return messages, nil
}

func (t *VoiceSessionTask) systemPrompt() string {
	names := make([]string, 0, len(t.toolDefs))
	for _, def := range t.toolDefs {
		names = append(names, def.Name)
	}
	return prompts.SystemPrompt(names)
}

// speakerLoop consumes the speech queue, synthesizing and publishing one
// sentence at a time. The room connection and track are created on the
// first job so a silent agent never publishes.
func (t *VoiceSessionTask) speakerLoop() {
	defer t.closeSpeaker()

	for {
		select {
		case <-t.ctx.Done():
			return
		case job := <-t.speakQueue:
			if job.ctx.Err() != nil {
				continue
			}
			t.speakOne(job)
		}
	}
}

func (t *VoiceSessionTask) speakOne(job *speechJob) {
	result, err := t.tts.SynthesizeText(job.ctx, job.text, t.language, t.voice)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			t.logger.WithError(err).Errorln("failed to synthesize speech")
		}
		return
	}
	defer func() {
		_ = result.Audio.Close()
	}()

	publisher, err := t.ensureSpeaker(result.SampleRate)
	if err != nil {
		t.logger.WithError(err).Errorln("failed to prepare speaker track")
		return
	}

	t.speaking.Store(true)
	defer t.speaking.Store(false)
	t.touch()

	if _, err = io.Copy(publisher, result.Audio); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
		t.logger.WithError(err).Errorln("failed to write synthesized audio to track")
	}

	if err := t.redisService.UpdateTTSUsage(t.ctx, t.roomId, config.ServiceVoiceSession, config.AgentUserIdPrefix+config.ServiceVoiceSession, t.ttsProvider, len(job.text)); err != nil {
		t.logger.WithError(err).Warnln("failed to update tts usage")
	}
}

// ensureSpeaker joins the speaker participant and publishes its PCM track.
func (t *VoiceSessionTask) ensureSpeaker(sampleRate int) (*media.AudioPublisher, error) {
	t.speakerMu.Lock()
	defer t.speakerMu.Unlock()

	if t.publisher != nil {
		return t.publisher, nil
	}

	identity := fmt.Sprintf("%s%s", config.TTSAgentUserIdPrefix, uuid.NewString()[:8])
	canPublish := true
	at := lkauth.NewAccessToken(t.conf.LivekitInfo.ApiKey, t.conf.LivekitInfo.Secret)
	at.SetVideoGrant(&lkauth.VideoGrant{
		RoomJoin:   true,
		Room:       t.roomId,
		CanPublish: &canPublish,
	}).
		SetIdentity(identity).
		SetName("Aj").
		SetValidFor(time.Minute * 5)
	token, err := at.ToJWT()
	if err != nil {
		return nil, err
	}

	room := lksdk.NewRoom(&lksdk.RoomCallback{
		OnDisconnected: func() {
			t.logger.Infoln("speaker disconnected from room")
		},
	})
	if err = room.JoinWithToken(t.conf.LivekitInfo.Host, token, lksdk.WithAutoSubscribe(false)); err != nil {
		return nil, fmt.Errorf("speaker failed to join room: %w", err)
	}

	publisher, err := media.NewAudioPublisher(room, speakerTrackName, sampleRate, 1, t.e2eeKey)
	if err != nil {
		room.Disconnect()
		return nil, err
	}

	t.speaker = room
	t.publisher = publisher
	t.logger.Infof("speaker joined as %s publishing %dHz audio", identity, sampleRate)
	return publisher, nil
}

func (t *VoiceSessionTask) closeSpeaker() {
	t.speakerMu.Lock()
	defer t.speakerMu.Unlock()

	if t.publisher != nil {
		t.publisher.Close()
		t.publisher = nil
	}
	if t.speaker != nil {
		t.speaker.Disconnect()
		t.speaker = nil
	}
}

// Shutdown implements Task.
func (t *VoiceSessionTask) Shutdown() {
	t.Interrupt()
	t.cancel()
}

// SplitSentences breaks a reply into speakable chunks at sentence
// boundaries. Short fragments are merged into their neighbor so the TTS
// queue is not flooded with two-word requests.
func SplitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var sentences []string
	var sb strings.Builder
	for _, r := range text {
		sb.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(sb.String()); s != "" {
				sentences = append(sentences, s)
			}
			sb.Reset()
		}
	}
	if s := strings.TrimSpace(sb.String()); s != "" {
		sentences = append(sentences, s)
	}

	// merge fragments shorter than a few words into the previous sentence
	merged := make([]string, 0, len(sentences))
	for _, s := range sentences {
		if len(merged) > 0 && len(s) < 12 {
			merged[len(merged)-1] += " " + s
			continue
		}
		merged = append(merged, s)
	}
	return merged
}
