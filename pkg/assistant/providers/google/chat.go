package google

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ajvoice/aj-server/pkg/assistant"
	"github.com/google/uuid"
	"google.golang.org/genai"
)

// Chat runs a single non-streaming completion. Tool definitions in the
// request are ignored, see SupportsTools.
func (p *Provider) Chat(ctx context.Context, req *assistant.ChatRequest) (*assistant.ChatResult, error) {
	contents := toGenaiContent(req.Messages)
	if len(contents) == 0 {
		return nil, fmt.Errorf("chat request has no messages")
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, p.generateConfig(req))
	if err != nil {
		return nil, err
	}

	text := collectText(resp.Candidates)
	if text == "" {
		return nil, fmt.Errorf("no content found in gemini response")
	}

	result := &assistant.ChatResult{Text: text}
	if resp.UsageMetadata != nil {
		result.PromptTokens = uint32(resp.UsageMetadata.PromptTokenCount)
		result.CompletionTokens = uint32(resp.UsageMetadata.CandidatesTokenCount)
		result.TotalTokens = uint32(resp.UsageMetadata.TotalTokenCount)
	}
	return result, nil
}

// ChatStream handles the real-time streaming chat with Gemini using a
// stateful chat session seeded with everything but the newest message.
func (p *Provider) ChatStream(ctx context.Context, req *assistant.ChatRequest, resultChan chan<- *assistant.ChatStreamResult) error {
	if len(req.Messages) == 0 {
		return fmt.Errorf("chat request has no messages")
	}

	streamId := uuid.NewString()

	// The last message is the new prompt. Separate it from the initial history.
	lastMessage := req.Messages[len(req.Messages)-1]
	initialHistory := toGenaiContent(req.Messages[:len(req.Messages)-1])

	chat, err := p.client.Chats.Create(ctx, p.model, p.generateConfig(req), initialHistory)
	if err != nil {
		return fmt.Errorf("failed to create gemini chat session: %w", err)
	}

	prompt := genai.Part{Text: lastMessage.Content}
	var streamUsageMetadata *genai.GenerateContentResponseUsageMetadata

	for chunk, err := range chat.SendMessageStream(ctx, prompt) {
		if err != nil {
			return fmt.Errorf("error getting next chunk from gemini stream: %w", err)
		}
		if chunk == nil {
			continue
		}

		// The UsageMetadata is expected to be populated in the stream.
		// We capture the last non-nil one, assuming it's the final, cumulative count.
		if chunk.UsageMetadata != nil {
			streamUsageMetadata = chunk.UsageMetadata
		}

		text := collectText(chunk.Candidates)
		if text == "" {
			continue
		}
		select {
		case resultChan <- &assistant.ChatStreamResult{
			Id:        streamId,
			Text:      text,
			CreatedAt: time.Now().UnixMilli(),
		}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	final := &assistant.ChatStreamResult{
		Id:          streamId,
		IsLastChunk: true,
		CreatedAt:   time.Now().UnixMilli(),
	}
	if streamUsageMetadata != nil {
		final.PromptTokens = uint32(streamUsageMetadata.PromptTokenCount)
		final.CompletionTokens = uint32(streamUsageMetadata.CandidatesTokenCount)
		final.TotalTokens = uint32(streamUsageMetadata.TotalTokenCount)
	}
	resultChan <- final
	return nil
}

// Summarize uses the non-streaming API to get a summary of a conversation.
func (p *Provider) Summarize(ctx context.Context, instruction string, history []*assistant.ChatMessage) (string, uint32, uint32, error) {
	contents := toGenaiContent(history)
	contents = append(contents, genai.NewContentFromText(instruction, genai.RoleUser))

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, nil)
	if err != nil {
		return "", 0, 0, fmt.Errorf("failed to generate summary: %w", err)
	}

	summary := collectText(resp.Candidates)
	if summary == "" {
		return "", 0, 0, fmt.Errorf("no summary content found in response")
	}

	var promptTokens, completionTokens uint32
	if resp.UsageMetadata != nil {
		promptTokens = uint32(resp.UsageMetadata.PromptTokenCount)
		completionTokens = uint32(resp.UsageMetadata.CandidatesTokenCount)
	}
	return summary, promptTokens, completionTokens, nil
}

func (p *Provider) generateConfig(req *assistant.ChatRequest) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{
				genai.NewPartFromText(req.System),
			},
		}
	}
	if req.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	return config
}

func collectText(candidates []*genai.Candidate) string {
	var textContent strings.Builder
	for _, cand := range candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				textContent.WriteString(part.Text)
			}
		}
	}
	return textContent.String()
}
