package dbmodels

import (
	"time"

	"github.com/ajvoice/aj-server/pkg/config"
)

const (
	AgentSessionStatusStarted = "started"
	AgentSessionStatusEnded   = "ended"
	AgentSessionStatusFailed  = "failed"
)

// AgentSession is one run of an assistant service inside a room, together
// with the usage it accumulated.
type AgentSession struct {
	ID            uint64 `gorm:"primarykey"`
	SessionId     string `gorm:"column:session_id;not null;uniqueIndex"`
	RoomTableID   int64  `gorm:"column:room_table_id;not null;index"`
	RoomId        string `gorm:"column:room_id;not null;index"`
	Service       string `gorm:"column:service;not null;index"`
	AgentIdentity string `gorm:"column:agent_identity;not null"`
	NodeId        string `gorm:"column:node_id;not null"`
	Status        string `gorm:"column:status;not null;index"`

	Turns            int64 `gorm:"column:turns;default:0;not null"`
	ToolCalls        int64 `gorm:"column:tool_calls;default:0;not null"`
	PromptTokens     int64 `gorm:"column:prompt_tokens;default:0;not null"`
	CompletionTokens int64 `gorm:"column:completion_tokens;default:0;not null"`
	TTSCharacters    int64 `gorm:"column:tts_characters;default:0;not null"`

	Started time.Time  `gorm:"column:started;not null;autoCreateTime"`
	Ended   *time.Time `gorm:"column:ended"`
}

func (m *AgentSession) TableName() string {
	return config.FormatDBTable("agent_sessions")
}
