package dbservice

import (
	"errors"

	"github.com/ajvoice/aj-server/pkg/dbmodels"
	"gorm.io/gorm"
)

func (s *DatabaseService) GetRoomInfoByRoomId(roomId string, isRunning int) (*dbmodels.RoomInfo, error) {
	info := new(dbmodels.RoomInfo)
	cond := &dbmodels.RoomInfo{
		RoomId:    roomId,
		IsRunning: isRunning,
	}

	result := s.db.Where(cond).Take(info)
	switch {
	case errors.Is(result.Error, gorm.ErrRecordNotFound):
		return nil, nil
	case result.Error != nil:
		return nil, result.Error
	}

	return info, nil
}

func (s *DatabaseService) GetRoomInfoBySid(sId string, isRunning *int) (*dbmodels.RoomInfo, error) {
	info := new(dbmodels.RoomInfo)
	cond := &dbmodels.RoomInfo{}
	if isRunning != nil {
		cond.IsRunning = *isRunning
	}

	result := s.db.Where("sid = ?", sId).Where(cond).Take(info)
	switch {
	case errors.Is(result.Error, gorm.ErrRecordNotFound):
		return nil, nil
	case result.Error != nil:
		return nil, result.Error
	}

	return info, nil
}

func (s *DatabaseService) GetActiveRoomsInfo() ([]dbmodels.RoomInfo, error) {
	var rooms []dbmodels.RoomInfo
	cond := &dbmodels.RoomInfo{
		IsRunning: 1,
	}

	result := s.db.Where(cond).Find(&rooms)
	switch {
	case errors.Is(result.Error, gorm.ErrRecordNotFound):
		return nil, nil
	case result.Error != nil:
		return nil, result.Error
	}

	return rooms, nil
}
