package assistantservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ajvoice/aj-server/pkg/assistant"
	"github.com/ajvoice/aj-server/pkg/assistant/prompts"
	"github.com/ajvoice/aj-server/pkg/assistant/tools"
	"github.com/ajvoice/aj-server/pkg/config"
	"github.com/ajvoice/aj-server/pkg/dbmodels"
	"github.com/ajvoice/aj-server/pkg/helpers"
)

// maxChatContextMessages bounds the stored text chat context per user.
// Beyond it the older half is folded into the rolling summary.
const maxChatContextMessages = 30

// TextChat answers one text message in the caller's rolling chat context.
// It runs the same persona and toolset as the voice pipeline but keeps no
// in-memory state; everything lives in Redis so any node can serve the
// next message.
func (s *AssistantService) TextChat(ctx context.Context, roomId, userId, text string) (string, error) {
	serviceConfig, err := s.conf.Assistant.GetServiceConfig(config.ServiceChat)
	if err != nil {
		return "", err
	}
	log := s.logger.WithField("roomId", roomId).WithField("userId", userId)

	llm, err := NewChatProvider(ctx, &s.conf.Assistant, serviceConfig, log)
	if err != nil {
		return "", err
	}

	req, executor, err := s.buildChatRequest(ctx, llm, roomId, userId, text, log)
	if err != nil {
		return "", err
	}

	reply, err := s.runToolLoop(ctx, llm, executor, req, roomId, userId, log)
	if err != nil {
		return "", err
	}

	if err = s.storeExchange(ctx, roomId, userId, text, reply, llm, log); err != nil {
		log.WithError(err).Warnln("failed to persist chat exchange")
	}
	return reply, nil
}

// TextChatStream is the SSE variant. Tool calls are not available on the
// streaming path, the reply is plain persona chat over the same context.
func (s *AssistantService) TextChatStream(ctx context.Context, roomId, userId, text string, out chan<- *assistant.ChatStreamResult) error {
	serviceConfig, err := s.conf.Assistant.GetServiceConfig(config.ServiceChat)
	if err != nil {
		return err
	}
	log := s.logger.WithField("roomId", roomId).WithField("userId", userId)

	llm, err := NewChatProvider(ctx, &s.conf.Assistant, serviceConfig, log)
	if err != nil {
		return err
	}

	req, _, err := s.buildChatRequest(ctx, llm, roomId, userId, text, log)
	if err != nil {
		return err
	}
	req.Tools = nil

	var reply strings.Builder
	resultChan := make(chan *assistant.ChatStreamResult, 8)
	done := make(chan error, 1)
	go func() {
		done <- llm.ChatStream(ctx, req, resultChan)
		close(resultChan)
	}()

	for chunk := range resultChan {
		reply.WriteString(chunk.Text)
		if chunk.IsLastChunk {
			if err := s.redisService.UpdateLLMUsage(ctx, roomId, config.ServiceChat, userId, assistant.TaskChat, chunk.PromptTokens, chunk.CompletionTokens, chunk.TotalTokens); err != nil {
				log.WithError(err).Warnln("failed to update llm usage")
			}
		}
		select {
		case out <- chunk:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err = <-done; err != nil {
		return err
	}

	if err = s.storeExchange(ctx, roomId, userId, text, reply.String(), llm, log); err != nil {
		log.WithError(err).Warnln("failed to persist chat exchange")
	}
	return nil
}

// SummarizeConversation condenses the room's spoken history into a short
// paragraph using the summary service's provider.
func (s *AssistantService) SummarizeConversation(ctx context.Context, roomId string) (string, error) {
	serviceConfig, err := s.conf.Assistant.GetServiceConfig(config.ServiceSummary)
	if err != nil {
		// the summary service is optional; fall back to the chat service
		serviceConfig, err = s.conf.Assistant.GetServiceConfig(config.ServiceChat)
		if err != nil {
			return "", fmt.Errorf("neither a summary nor a chat service is configured: %w", err)
		}
	}
	log := s.logger.WithField("roomId", roomId)

	llm, err := NewChatProvider(ctx, &s.conf.Assistant, serviceConfig, log)
	if err != nil {
		return "", err
	}

	turns, err := s.redisService.GetConversationHistory(roomId)
	if err != nil {
		return "", err
	}
	if len(turns) == 0 {
		return "", errors.New("the room has no conversation history to summarize")
	}

	history := make([]*assistant.ChatMessage, 0, len(turns))
	for _, turn := range turns {
		history = append(history, &assistant.ChatMessage{
			Role:    turn.Role,
			Name:    turn.Name,
			Content: turn.Text,
		})
	}

	summary, promptTokens, completionTokens, err := llm.Summarize(ctx, prompts.SummaryInstruction, history)
	if err != nil {
		return "", err
	}
	if err = s.redisService.UpdateLLMUsage(ctx, roomId, config.ServiceChat, "summary", assistant.TaskSummary, promptTokens, completionTokens, promptTokens+completionTokens); err != nil {
		log.WithError(err).Warnln("failed to update llm usage")
	}
	return summary, nil
}

// buildChatRequest assembles persona, rolling summary, stored context and
// the new message into one completion request, along with the executor for
// the advertised tools.
func (s *AssistantService) buildChatRequest(ctx context.Context, llm assistant.ChatProvider, roomId, userId, text string, log *logrus.Entry) (*assistant.ChatRequest, *tools.Executor, error) {
	system := prompts.AgentInstruction
	summary, err := s.redisService.GetTextChatSummary(ctx, roomId, userId)
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, nil, err
	}
	if summary != "" {
		system += "\n\n# Conversation so far\n" + summary
	}

	messages, err := s.redisService.GetTextChatContext(ctx, roomId, userId, 0, -1)
	if err != nil {
		return nil, nil, err
	}
	messages = append(messages, &assistant.ChatMessage{Role: assistant.RoleUser, Content: text})

	req := &assistant.ChatRequest{
		System:   system,
		Messages: messages,
	}
	if !llm.SupportsTools() {
		return req, nil, nil
	}

	registry := tools.NewRegistry(log)
	deps := &tools.Deps{
		Logger:   log,
		HTTP:     &http.Client{Timeout: *s.conf.ToolSettings.HttpTimeout},
		Redis:    s.redisService,
		Settings: &s.conf.ToolSettings,
		Chat:     llm,
		RoomID:   roomId,
		UserID:   userId,
	}
	if err := tools.RegisterBuiltins(registry, deps); err != nil {
		return nil, nil, err
	}
	disabled := make(map[string]bool, len(s.conf.Assistant.Agent.DisabledTools))
	for _, name := range s.conf.Assistant.Agent.DisabledTools {
		disabled[name] = true
	}
	for _, def := range registry.Definitions() {
		if !disabled[def.Name] {
			req.Tools = append(req.Tools, def)
		}
	}
	return req, tools.NewExecutor(registry, log), nil
}

// runToolLoop drives the completion until the model stops requesting
// tools or the round limit is hit.
func (s *AssistantService) runToolLoop(ctx context.Context, llm assistant.ChatProvider, executor *tools.Executor, req *assistant.ChatRequest, roomId, userId string, log *logrus.Entry) (string, error) {
	maxRounds := s.conf.Assistant.Agent.MaxToolRounds
	for round := 0; ; round++ {
		result, err := llm.Chat(ctx, req)
		if err != nil {
			return "", err
		}
		if err := s.redisService.UpdateLLMUsage(ctx, roomId, config.ServiceChat, userId, assistant.TaskChat, result.PromptTokens, result.CompletionTokens, result.TotalTokens); err != nil {
			log.WithError(err).Warnln("failed to update llm usage")
		}

		if len(result.ToolCalls) == 0 || executor == nil || round >= maxRounds {
			return strings.TrimSpace(result.Text), nil
		}

		req.Messages = append(req.Messages, &assistant.ChatMessage{
			Role:      assistant.RoleAssistant,
			Content:   result.Text,
			ToolCalls: result.ToolCalls,
		})
		for _, res := range executor.Execute(ctx, result.ToolCalls) {
			req.Messages = append(req.Messages, res.Message())
		}
	}
}

// storeExchange appends the user/assistant pair to the chat context and
// folds the context into the rolling summary once it grows too long.
func (s *AssistantService) storeExchange(ctx context.Context, roomId, userId, text, reply string, llm assistant.ChatProvider, log *logrus.Entry) error {
	err := s.redisService.AppendToTextChatContext(ctx, roomId, userId,
		&assistant.ChatMessage{Role: assistant.RoleUser, Content: text},
		&assistant.ChatMessage{Role: assistant.RoleAssistant, Content: reply},
	)
	if err != nil {
		return err
	}

	length, err := s.redisService.GetTextChatContextLength(ctx, roomId, userId)
	if err != nil || length <= maxChatContextMessages {
		return err
	}

	history, err := s.redisService.GetTextChatContext(ctx, roomId, userId, 0, -1)
	if err != nil {
		return err
	}
	summary, _, _, err := llm.Summarize(ctx, prompts.SummaryInstruction, history)
	if err != nil {
		return err
	}
	if err = s.redisService.SetTextChatSummary(ctx, roomId, userId, summary); err != nil {
		return err
	}
	s.archiveFoldedContext(roomId, userId, history, log)
	log.Infoln("chat context folded into summary")
	return s.redisService.DeleteTextChatContext(ctx, roomId, userId)
}

// archiveFoldedContext keeps the folded messages around as a chatlog
// artifact, since the fold drops them from Redis for good.
func (s *AssistantService) archiveFoldedContext(roomId, userId string, history []*assistant.ChatMessage, log *logrus.Entry) {
	var sb strings.Builder
	for _, m := range history {
		if m.Content == "" {
			continue
		}
		sb.WriteString(fmt.Sprintf("%s: %s\n", m.Role, m.Content))
	}
	if sb.Len() == 0 {
		return
	}

	artifact := &dbmodels.ConversationArtifact{
		ArtifactId: uuid.NewString(),
		RoomId:     roomId,
		SessionId:  userId,
		Type:       dbmodels.ArtifactTypeChatLog,
	}
	if info, err := s.ds.GetRoomInfoByRoomId(roomId, 0); err == nil && info != nil {
		artifact.RoomTableID = info.ID
	}
	if err := helpers.AttachArtifactPayload(*s.conf.ArtifactSettings.FilesStorePath, artifact, sb.String()); err != nil {
		log.WithError(err).Warnln("failed to archive folded chat context")
		return
	}
	if _, err := s.ds.InsertArtifact(artifact); err != nil {
		if artifact.FilePath != "" {
			_ = os.Remove(artifact.FilePath)
		}
		log.WithError(err).Warnln("failed to archive folded chat context")
	}
}
