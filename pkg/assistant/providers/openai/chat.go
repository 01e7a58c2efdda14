package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/ajvoice/aj-server/pkg/assistant"
	"github.com/goccy/go-json"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"
)

// Chat runs a single completion round. Tool calls requested by the model
// are returned to the caller for execution, they are not run here.
func (p *Provider) Chat(ctx context.Context, req *assistant.ChatRequest) (*assistant.ChatResult, error) {
	params := p.buildParams(req)

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	msg := completion.Choices[0].Message
	result := &assistant.ChatResult{
		Text:             msg.Content,
		PromptTokens:     uint32(completion.Usage.PromptTokens),
		CompletionTokens: uint32(completion.Usage.CompletionTokens),
		TotalTokens:      uint32(completion.Usage.TotalTokens),
	}
	for _, tc := range msg.ToolCalls {
		if tc.Type != "function" {
			continue
		}
		result.ToolCalls = append(result.ToolCalls, &assistant.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}

	return result, nil
}

// ChatStream streams a completion as it is generated. The final chunk
// carries the accumulated usage numbers.
func (p *Provider) ChatStream(ctx context.Context, req *assistant.ChatRequest, resultChan chan<- *assistant.ChatStreamResult) error {
	params := p.buildParams(req)
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: openai.Bool(true),
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}
	id := fmt.Sprintf("%d", time.Now().UnixMilli())

	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		select {
		case resultChan <- &assistant.ChatStreamResult{
			Id:        id,
			Text:      delta,
			CreatedAt: time.Now().UnixMilli(),
		}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := stream.Err(); err != nil {
		return err
	}

	resultChan <- &assistant.ChatStreamResult{
		Id:               id,
		IsLastChunk:      true,
		PromptTokens:     uint32(acc.Usage.PromptTokens),
		CompletionTokens: uint32(acc.Usage.CompletionTokens),
		TotalTokens:      uint32(acc.Usage.TotalTokens),
		CreatedAt:        time.Now().UnixMilli(),
	}
	return nil
}

// Summarize condenses a conversation into a short text that can seed the
// context of the next session.
func (p *Provider) Summarize(ctx context.Context, instruction string, history []*assistant.ChatMessage) (string, uint32, uint32, error) {
	req := &assistant.ChatRequest{
		System:   instruction,
		Messages: history,
	}
	result, err := p.Chat(ctx, req)
	if err != nil {
		return "", 0, 0, err
	}
	return result.Text, result.PromptTokens, result.CompletionTokens, nil
}

func (p *Provider) buildParams(req *assistant.ChatRequest) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.chatModel),
		Messages: toMessageParams(req.System, req.Messages),
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(req.MaxTokens)
	}
	if len(req.Tools) > 0 {
		params.Tools = toToolParams(req.Tools)
	}
	return params
}

func toMessageParams(system string, history []*assistant.ChatMessage) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	for _, m := range history {
		switch m.Role {
		case assistant.RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case assistant.RoleAssistant:
			if len(m.ToolCalls) == 0 {
				messages = append(messages, openai.AssistantMessage(m.Content))
				continue
			}
			am := openai.ChatCompletionAssistantMessageParam{}
			if m.Content != "" {
				am.Content.OfString = openai.String(m.Content)
			}
			for _, tc := range m.ToolCalls {
				am.ToolCalls = append(am.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tc.Name,
							Arguments: string(tc.Arguments),
						},
					},
				})
			}
			messages = append(messages, openai.ChatCompletionMessageParamUnion{OfAssistant: &am})
		case assistant.RoleTool:
			messages = append(messages, openai.ToolMessage(m.Content, m.ToolCallID))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}
	return messages
}

func toToolParams(tools []*assistant.ToolDefinition) []openai.ChatCompletionToolUnionParam {
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		def := shared.FunctionDefinitionParam{
			Name: t.Name,
		}
		if t.Description != "" {
			def.Description = openai.String(t.Description)
		}
		if len(t.Parameters) > 0 {
			var params shared.FunctionParameters
			if err := json.Unmarshal(t.Parameters, &params); err == nil {
				def.Parameters = params
			}
		}
		out = append(out, openai.ChatCompletionFunctionTool(def))
	}
	return out
}
