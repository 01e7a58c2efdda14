package livekitservice

import (
	"context"
	"errors"
	"time"

	"github.com/livekit/protocol/livekit"

	"github.com/ajvoice/aj-server/pkg/config"
)

// CreateRoom will create the room in livekit
func (s *LivekitService) CreateRoom(roomId string, emptyTimeout, maxParticipants *uint32, metadata string) (*livekit.Room, error) {
	req := &livekit.CreateRoomRequest{
		Name: roomId,
	}
	if emptyTimeout != nil && *emptyTimeout > 0 {
		req.EmptyTimeout = *emptyTimeout
	}
	if maxParticipants != nil && *maxParticipants > 0 {
		req.MaxParticipants = *maxParticipants
	}
	if metadata != "" {
		req.Metadata = metadata
	}

	ctx, cancel := context.WithTimeout(s.ctx, time.Second*15)
	defer cancel()

	room, err := s.lkc.CreateRoom(ctx, req)
	if err != nil {
		return nil, err
	}

	return room, nil
}

// LoadRoomInfo will load the room information from livekit
func (s *LivekitService) LoadRoomInfo(roomId string) (*livekit.Room, error) {
	req := livekit.ListRoomsRequest{
		Names: []string{
			roomId,
		},
	}

	res, err := s.lkc.ListRooms(s.ctx, &req)
	if err != nil {
		return nil, err
	}

	if len(res.Rooms) == 0 {
		return nil, errors.New(config.RequestedRoomNotExist)
	}

	return res.Rooms[0], nil
}

// LoadActiveRooms lists every room currently running on the livekit server.
func (s *LivekitService) LoadActiveRooms() ([]*livekit.Room, error) {
	res, err := s.lkc.ListRooms(s.ctx, &livekit.ListRoomsRequest{})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}

	return res.Rooms, nil
}

// EndRoom will send API request to livekit
func (s *LivekitService) EndRoom(roomId string) (string, error) {
	data := livekit.DeleteRoomRequest{
		Room: roomId,
	}
	ctx, cancel := context.WithTimeout(s.ctx, time.Second*15)
	defer cancel()

	res, err := s.lkc.DeleteRoom(ctx, &data)
	if err != nil {
		return "", err
	}
	if res == nil {
		return "no response received", nil
	}

	return res.String(), nil
}
