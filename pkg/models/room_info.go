package models

import (
	"errors"

	"github.com/ajvoice/aj-server/pkg/config"
)

// ActiveRoomInfo is one live room as reported by LiveKit, enriched with
// our DB row where one exists.
type ActiveRoomInfo struct {
	RoomId          string `json:"room_id"`
	Sid             string `json:"sid"`
	RoomTitle       string `json:"room_title"`
	NumParticipants uint32 `json:"num_participants"`
	CreationTime    int64  `json:"creation_time"`
}

// GetActiveRoomsInfo lists the rooms currently running on the LiveKit
// server.
func (m *RoomModel) GetActiveRoomsInfo() ([]*ActiveRoomInfo, error) {
	rooms, err := m.lk.LoadActiveRooms()
	if err != nil {
		return nil, err
	}

	res := make([]*ActiveRoomInfo, 0, len(rooms))
	for _, room := range rooms {
		info := &ActiveRoomInfo{
			RoomId:          room.Name,
			Sid:             room.Sid,
			NumParticipants: room.NumParticipants,
			CreationTime:    room.CreationTime,
		}
		if dbInfo, err := m.ds.GetRoomInfoBySid(room.Sid, nil); err == nil && dbInfo != nil {
			info.RoomTitle = dbInfo.RoomTitle
		}
		res = append(res, info)
	}
	return res, nil
}

type RoomInfoReq struct {
	RoomId string `json:"room_id"`
}

// RoomParticipant is one connected participant as LiveKit sees it.
type RoomParticipant struct {
	UserId   string `json:"user_id"`
	Name     string `json:"name"`
	State    string `json:"state"`
	IsAdmin  bool   `json:"is_admin"`
	JoinedAt int64  `json:"joined_at"`
}

type RoomInfoRes struct {
	Room         *ActiveRoomInfo    `json:"room"`
	Participants []*RoomParticipant `json:"participants"`
}

// GetRoomInfo returns one running room together with the participants
// currently connected to it.
func (m *RoomModel) GetRoomInfo(r *RoomInfoReq) (*RoomInfoRes, error) {
	if r.RoomId == "" {
		return nil, errors.New("room_id is required")
	}

	info, err := m.ds.GetRoomInfoByRoomId(r.RoomId, 1)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, errors.New(config.RoomNotActive)
	}

	res := &RoomInfoRes{
		Room: &ActiveRoomInfo{
			RoomId:       info.RoomId,
			Sid:          info.Sid,
			RoomTitle:    info.RoomTitle,
			CreationTime: info.CreationTime,
		},
		Participants: make([]*RoomParticipant, 0),
	}

	participants, err := m.lk.LoadParticipants(r.RoomId)
	if err != nil {
		// DB says running but livekit is unreachable; the row alone is
		// still useful
		m.logger.WithError(err).Warnln("could not load participants for room:", r.RoomId)
		return res, nil
	}
	for _, p := range participants {
		res.Participants = append(res.Participants, &RoomParticipant{
			UserId:   p.Identity,
			Name:     p.Name,
			State:    p.State.String(),
			IsAdmin:  p.Attributes["is_admin"] == "true",
			JoinedAt: p.JoinedAt,
		})
	}
	res.Room.NumParticipants = uint32(len(res.Participants))
	return res, nil
}
