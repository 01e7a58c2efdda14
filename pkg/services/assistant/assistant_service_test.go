package assistantservice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTurnAssembler(t *testing.T) {
	t.Run("end of turn completes immediately", func(t *testing.T) {
		a := newTurnAssembler(time.Second)
		assert.Empty(t, a.AddSegment("hello", false))
		assert.Equal(t, "hello there", a.AddSegment("there", true))
		assert.Empty(t, a.Flush())
	})

	t.Run("silence window completes the turn", func(t *testing.T) {
		a := newTurnAssembler(time.Millisecond * 20)
		assert.Empty(t, a.AddSegment("what is the weather", false))

		select {
		case <-a.Silence():
		case <-time.After(time.Second):
			t.Fatal("silence window never fired")
		}
		assert.Equal(t, "what is the weather", a.Flush())
	})

	t.Run("empty segments never form a turn", func(t *testing.T) {
		a := newTurnAssembler(time.Millisecond * 20)
		assert.Empty(t, a.AddSegment("  ", false))
		assert.Empty(t, a.AddSegment("", true))

		select {
		case <-a.Silence():
			t.Fatal("silence window armed with nothing pending")
		case <-time.After(time.Millisecond * 60):
		}
	})

	t.Run("new segment rearms the window", func(t *testing.T) {
		a := newTurnAssembler(time.Millisecond * 40)
		assert.Empty(t, a.AddSegment("set a reminder", false))
		time.Sleep(time.Millisecond * 25)
		assert.Empty(t, a.AddSegment("for tomorrow", false))
		time.Sleep(time.Millisecond * 25)

		// the first window would have elapsed by now, the rearm keeps it open
		select {
		case <-a.Silence():
			t.Fatal("window fired before the rearmed deadline")
		default:
		}

		select {
		case <-a.Silence():
		case <-time.After(time.Second):
			t.Fatal("rearmed window never fired")
		}
		assert.Equal(t, "set a reminder for tomorrow", a.Flush())
	})
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "plain sentences",
			text: "Of course sir. The weather in Berlin is sunny. Anything else?",
			want: []string{"Of course sir.", "The weather in Berlin is sunny.", "Anything else?"},
		},
		{
			name: "short fragments merge into the neighbor",
			text: "Will do, Sir. Done! Your reminder is set for three o'clock.",
			want: []string{"Will do, Sir. Done!", "Your reminder is set for three o'clock."},
		},
		{
			name: "trailing text without punctuation",
			text: "Roger Boss. sending the email now",
			want: []string{"Roger Boss.", "sending the email now"},
		},
		{
			name: "empty input",
			text: "   ",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitSentences(tt.text))
		})
	}
}

func TestFoldUsageCounters(t *testing.T) {
	t.Run("nil for empty usage", func(t *testing.T) {
		assert.Nil(t, FoldUsageCounters(nil))
		assert.Nil(t, FoldUsageCounters(map[string]int64{}))
	})

	t.Run("sums token counters across tasks", func(t *testing.T) {
		folded := FoldUsageCounters(map[string]int64{
			"total_voice_session_prompt_tokens":     1200,
			"total_voice_session_completion_tokens": 300,
			"total_chat_prompt_tokens":              450,
			"total_chat_completion_tokens":          90,
			"total_turns":                           14,
			"total_tool_calls":                      5,
			"total_tts_characters":                  2100,
		})
		require.NotNil(t, folded)
		assert.EqualValues(t, 1650, folded.PromptTokens)
		assert.EqualValues(t, 390, folded.CompletionTokens)
		assert.EqualValues(t, 14, folded.Turns)
		assert.EqualValues(t, 5, folded.ToolCalls)
		assert.EqualValues(t, 2100, folded.TTSCharacters)
	})
}
