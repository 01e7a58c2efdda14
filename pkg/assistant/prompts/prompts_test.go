package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionInstructionContainsGreeting(t *testing.T) {
	assert.Contains(t, SessionInstruction, Greeting)
	assert.Contains(t, SessionInstruction, "ask_coding_assistant")
}

func TestSystemPrompt(t *testing.T) {
	t.Run("without tools", func(t *testing.T) {
		assert.Equal(t, AgentInstruction, SystemPrompt(nil))
	})

	t.Run("with tools", func(t *testing.T) {
		out := SystemPrompt([]string{"get_weather", "get_joke"})
		assert.True(t, strings.HasPrefix(out, AgentInstruction))
		assert.Contains(t, out, "- get_weather")
		assert.Contains(t, out, "- get_joke")
		assert.False(t, strings.HasSuffix(out, "\n"))
	})
}

func TestReminderAnnouncement(t *testing.T) {
	assert.Equal(t, "Sir, a gentle reminder: buy milk.", ReminderAnnouncement("buy milk"))
}
