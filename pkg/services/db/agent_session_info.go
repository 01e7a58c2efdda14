package dbservice

import (
	"errors"

	"github.com/ajvoice/aj-server/pkg/dbmodels"
	"gorm.io/gorm"
)

func (s *DatabaseService) GetAgentSessionBySessionId(sessionId string) (*dbmodels.AgentSession, error) {
	session := new(dbmodels.AgentSession)
	cond := &dbmodels.AgentSession{
		SessionId: sessionId,
	}

	result := s.db.Where(cond).Take(session)
	switch {
	case errors.Is(result.Error, gorm.ErrRecordNotFound):
		return nil, nil
	case result.Error != nil:
		return nil, result.Error
	}

	return session, nil
}

func (s *DatabaseService) GetAgentSessionsByRoomId(roomId string, offset, limit uint64) ([]dbmodels.AgentSession, int64, error) {
	var sessions []dbmodels.AgentSession
	var total int64

	d := s.db.Model(&dbmodels.AgentSession{}).Where("room_id = ?", roomId)
	if err := d.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit == 0 {
		limit = 20
	}
	result := d.Offset(int(offset)).Limit(int(limit)).Order("id DESC").Find(&sessions)
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, 0, result.Error
	}

	return sessions, total, nil
}

func (s *DatabaseService) GetActiveAgentSessions(roomId string) ([]dbmodels.AgentSession, error) {
	var sessions []dbmodels.AgentSession
	cond := &dbmodels.AgentSession{
		RoomId: roomId,
		Status: dbmodels.AgentSessionStatusStarted,
	}

	result := s.db.Where(cond).Find(&sessions)
	switch {
	case errors.Is(result.Error, gorm.ErrRecordNotFound):
		return nil, nil
	case result.Error != nil:
		return nil, result.Error
	}

	return sessions, nil
}
