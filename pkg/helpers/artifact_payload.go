package helpers

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ajvoice/aj-server/pkg/config"
	"github.com/ajvoice/aj-server/pkg/dbmodels"
)

// AttachArtifactPayload places a payload on an artifact row. Payloads up to
// config.MaxInlineArtifactSize stay inline in the row, larger ones are
// written to a file under filesStorePath/<roomId> with the path and size
// recorded instead.
func AttachArtifactPayload(filesStorePath string, artifact *dbmodels.ConversationArtifact, payload string) error {
	if int64(len(payload)) <= config.MaxInlineArtifactSize {
		artifact.Payload = payload
		return nil
	}

	dir := filepath.Join(filesStorePath, artifact.RoomId)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.txt", artifact.Type, artifact.ArtifactId))
	if err := os.WriteFile(path, []byte(payload), 0644); err != nil {
		return err
	}
	artifact.FilePath = path
	artifact.FileSize = int64(len(payload))
	return nil
}
