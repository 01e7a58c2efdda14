package helpers

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajvoice/aj-server/pkg/config"
	"github.com/ajvoice/aj-server/pkg/dbmodels"
)

func TestAttachArtifactPayload(t *testing.T) {
	t.Run("small payload stays inline", func(t *testing.T) {
		artifact := &dbmodels.ConversationArtifact{
			ArtifactId: "a1",
			RoomId:     "room01",
			Type:       dbmodels.ArtifactTypeChatLog,
		}
		require.NoError(t, AttachArtifactPayload(t.TempDir(), artifact, "user: hello\nassistant: You rang?\n"))

		assert.NotEmpty(t, artifact.Payload)
		assert.Empty(t, artifact.FilePath)
		assert.Zero(t, artifact.FileSize)
	})

	t.Run("oversized payload goes to a file", func(t *testing.T) {
		dir := t.TempDir()
		payload := strings.Repeat("x", int(config.MaxInlineArtifactSize)+1)
		artifact := &dbmodels.ConversationArtifact{
			ArtifactId: "a2",
			RoomId:     "room01",
			Type:       dbmodels.ArtifactTypeChatLog,
		}
		require.NoError(t, AttachArtifactPayload(dir, artifact, payload))

		assert.Empty(t, artifact.Payload)
		assert.Equal(t, int64(len(payload)), artifact.FileSize)
		require.NotEmpty(t, artifact.FilePath)

		data, err := os.ReadFile(artifact.FilePath)
		require.NoError(t, err)
		assert.Equal(t, payload, string(data))
	})

	t.Run("boundary payload stays inline", func(t *testing.T) {
		artifact := &dbmodels.ConversationArtifact{
			ArtifactId: "a3",
			RoomId:     "room01",
			Type:       dbmodels.ArtifactTypeChatLog,
		}
		payload := strings.Repeat("y", int(config.MaxInlineArtifactSize))
		require.NoError(t, AttachArtifactPayload(t.TempDir(), artifact, payload))
		assert.Equal(t, payload, artifact.Payload)
		assert.Empty(t, artifact.FilePath)
	})
}
