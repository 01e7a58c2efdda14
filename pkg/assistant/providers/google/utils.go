package google

import (
	"github.com/ajvoice/aj-server/pkg/assistant"
	"google.golang.org/genai"
)

// toGenaiContent converts neutral history to the genai library's format.
// Gemini only knows user and model turns. System text is handled at the
// request config level, so stray system messages in history become model
// turns, and tool results are folded into user turns so the model still
// sees them.
func toGenaiContent(history []*assistant.ChatMessage) []*genai.Content {
	var content []*genai.Content
	for _, h := range history {
		if h.Content == "" {
			continue
		}
		switch h.Role {
		case assistant.RoleAssistant, assistant.RoleSystem:
			content = append(content, genai.NewContentFromText(h.Content, genai.RoleModel))
		default:
			content = append(content, genai.NewContentFromText(h.Content, genai.RoleUser))
		}
	}
	return content
}
