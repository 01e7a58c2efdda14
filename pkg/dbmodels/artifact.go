package dbmodels

import (
	"time"

	"github.com/ajvoice/aj-server/pkg/config"
)

const (
	ArtifactTypeTranscript = "transcript"
	ArtifactTypeSummary    = "summary"
	ArtifactTypeChatLog    = "chatlog"
)

// ConversationArtifact is a persisted conversation output. Small payloads are
// stored inline; anything above config.MaxInlineArtifactSize lands in a file
// under the artifacts directory.
type ConversationArtifact struct {
	ID          uint64    `gorm:"primarykey"`
	ArtifactId  string    `gorm:"column:artifact_id;not null;uniqueIndex"`
	RoomTableID int64     `gorm:"column:room_table_id;not null;index"`
	RoomId      string    `gorm:"column:room_id;not null;index"`
	SessionId   string    `gorm:"column:session_id;not null;index"`
	Type        string    `gorm:"column:type;not null;index"`
	Payload     string    `gorm:"column:payload;type:longtext"`
	FilePath    string    `gorm:"column:file_path;not null;default:''"`
	FileSize    int64     `gorm:"column:file_size;default:0;not null"`
	Created     time.Time `gorm:"column:created;not null;autoCreateTime"`
}

func (t *ConversationArtifact) TableName() string {
	return config.FormatDBTable("conversation_artifacts")
}
