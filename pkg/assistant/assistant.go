package assistant

import (
	"context"
	"errors"
	"io"

	"github.com/goccy/go-json"
)

// ErrStreamClosed is returned when audio or text is written to a stream
// that has already been closed.
var ErrStreamClosed = errors.New("stream is closed")

// TaskType identifies one of the configured assistant services.
type TaskType string

const (
	TaskVoiceSession  TaskType = "voice_session"
	TaskTranscription TaskType = "transcription"
	TaskChat          TaskType = "chat"
	TaskSummary       TaskType = "summary"
)

// Chat roles shared by every provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ChatMessage is the provider-neutral unit of conversation history.
type ChatMessage struct {
	Role       string      `json:"role"`
	Name       string      `json:"name,omitempty"`
	Content    string      `json:"content"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
	ToolCalls  []*ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolDefinition describes a callable tool advertised to the model.
// Parameters holds a JSON Schema object.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ChatRequest is a single completion request against the conversation so far.
type ChatRequest struct {
	System      string
	Messages    []*ChatMessage
	Tools       []*ToolDefinition
	Temperature *float64
	MaxTokens   int64
}

// ChatResult is the model's full reply to a ChatRequest. When ToolCalls is
// non-empty the caller must execute them and ask again with the results
// appended to the history.
type ChatResult struct {
	Text             string
	ToolCalls        []*ToolCall
	PromptTokens     uint32
	CompletionTokens uint32
	TotalTokens      uint32
}

// ChatStreamResult is one chunk of a streamed reply. The final chunk carries
// IsLastChunk plus the cumulative token counts.
type ChatStreamResult struct {
	Id               string `json:"id"`
	Text             string `json:"text"`
	IsLastChunk      bool   `json:"is_last_chunk"`
	PromptTokens     uint32 `json:"prompt_tokens,omitempty"`
	CompletionTokens uint32 `json:"completion_tokens,omitempty"`
	TotalTokens      uint32 `json:"total_tokens,omitempty"`
	CreatedAt        int64  `json:"created_at"`
}

// TranscriptionResult is the standardized struct for a single piece of transcribed text.
type TranscriptionResult struct {
	Text string `json:"text"`
	// True if this is an intermediate, non-final result.
	IsPartial bool `json:"is_partial"`
	// True when the provider signals the speaker has finished the utterance,
	// not just paused. Providers without end-of-turn detection leave it false
	// and the pipeline falls back to its silence window.
	IsEndOfTurn bool `json:"is_end_of_turn"`
}

// TranscriptionStream defines a universal, bidirectional interface for a live transcription.
// It is the contract that all providers must fulfill to offer real-time STT.
// The user of this interface can Write() audio to the stream and will receive
// results by reading from the Results() channel.
type TranscriptionStream interface {
	// Write accepts a chunk of 16kHz 16-bit mono PCM audio.
	io.Writer

	// Closer signals that the audio stream is finished and no more data will be sent.
	io.Closer

	// SetProperty allows setting provider-specific properties on the fly.
	SetProperty(key string, value string) error

	// Results returns a read-only channel where the transcription results will be sent.
	Results() <-chan *TranscriptionResult
}

// SpeechResult carries synthesized audio. Audio is raw little-endian 16-bit
// mono PCM at SampleRate; the caller must Close it.
type SpeechResult struct {
	Audio      io.ReadCloser
	SampleRate int
}

// ChatProvider generates replies, optionally calling registered tools.
type ChatProvider interface {
	// Chat runs a single non-streaming completion. The returned result may
	// request tool calls.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error)

	// ChatStream runs a streaming completion, sending text deltas to
	// resultChan followed by a final chunk with token usage. It returns once
	// the stream is drained. Tool calls are not surfaced on the streaming
	// path.
	ChatStream(ctx context.Context, req *ChatRequest, resultChan chan<- *ChatStreamResult) error

	// Summarize condenses a conversation into a short paragraph and returns
	// prompt and completion token counts.
	Summarize(ctx context.Context, instruction string, history []*ChatMessage) (string, uint32, uint32, error)

	// SupportsTools reports whether Chat honors the Tools field.
	SupportsTools() bool
}

// SpeechToTextProvider opens live transcription streams.
type SpeechToTextProvider interface {
	CreateTranscription(ctx context.Context, roomId, userId, spokenLang string) (TranscriptionStream, error)
}

// TextToSpeechProvider converts text into raw PCM audio.
type TextToSpeechProvider interface {
	SynthesizeText(ctx context.Context, text, language, voice string) (*SpeechResult, error)
}
