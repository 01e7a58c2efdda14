package models

import (
	"fmt"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	natsservice "github.com/ajvoice/aj-server/pkg/services/nats"
)

func chunkBytes(t *testing.T, name, role, text string) []byte {
	t.Helper()
	data, err := json.Marshal(&natsservice.SpeechChunk{
		FromUserId: name,
		Name:       name,
		Role:       role,
		Text:       text,
	})
	require.NoError(t, err)
	return data
}

func TestFormatTranscript(t *testing.T) {
	base := time.Now().UnixNano()
	chunks := map[string][]byte{
		fmt.Sprintf("%d", base+2): chunkBytes(t, "Aj", "assistant", "Of course, Sir."),
		fmt.Sprintf("%d", base):   chunkBytes(t, "Tony", "user", "Aj, lights on."),
		fmt.Sprintf("%d", base+1): chunkBytes(t, "Tony", "user", "And some music."),
	}

	out := formatTranscript(chunks)
	assert.Equal(t, "Tony: Aj, lights on.\nTony: And some music.\nAj: Of course, Sir.\n", out)
}

func TestFormatTranscriptSkipsMalformed(t *testing.T) {
	chunks := map[string][]byte{
		"1": []byte("{not json"),
		"2": chunkBytes(t, "Tony", "user", "still here"),
	}
	assert.Equal(t, "Tony: still here\n", formatTranscript(chunks))
}

func TestFormatTranscriptEmpty(t *testing.T) {
	assert.Empty(t, formatTranscript(nil))
	assert.Empty(t, formatTranscript(map[string][]byte{}))
}
