package dbmodels

import (
	"time"

	"github.com/ajvoice/aj-server/pkg/config"
)

type RoomInfo struct {
	ID                 int64     `gorm:"column:id;primaryKey;AUTO_INCREMENT"`
	RoomTitle          string    `gorm:"column:room_title;NOT NULL"`
	RoomId             string    `gorm:"column:roomId;NOT NULL"`
	Sid                string    `gorm:"column:sid;NOT NULL"`
	JoinedParticipants int64     `gorm:"column:joined_participants;default:0;NOT NULL"`
	IsRunning          int       `gorm:"column:is_running;default:0;NOT NULL"`
	WebhookUrl         string    `gorm:"column:webhook_url;NOT NULL"`
	CreationTime       int64     `gorm:"column:creation_time;default:0;NOT NULL"`
	Created            time.Time `gorm:"column:created;default:CURRENT_TIMESTAMP;NOT NULL"`
	Ended              time.Time `gorm:"column:ended;default:0000-00-00 00:00:00;NOT NULL"`
	Modified           time.Time `gorm:"column:modified;default:0000-00-00 00:00:00;NOT NULL"`
}

func (m *RoomInfo) TableName() string {
	return config.FormatDBTable("room_info")
}
