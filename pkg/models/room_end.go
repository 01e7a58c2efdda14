package models

import (
	"errors"
	"time"

	"github.com/ajvoice/aj-server/pkg/config"
	"github.com/ajvoice/aj-server/pkg/dbmodels"
	natsservice "github.com/ajvoice/aj-server/pkg/services/nats"
)

type EndRoomReq struct {
	RoomId string `json:"room_id"`
}

// EndRoom ends the room everywhere: agents first, then LiveKit, then the
// DB row. The room_finished webhook goes out when LiveKit reports the
// close; here we only deal with rooms LiveKit no longer knows about.
func (m *RoomModel) EndRoom(r *EndRoomReq) error {
	if r.RoomId == "" {
		return errors.New("room_id is required")
	}

	roomDbInfo, err := m.ds.GetRoomInfoByRoomId(r.RoomId, 1)
	if err != nil {
		return err
	}
	if roomDbInfo == nil {
		return errors.New(config.RequestedRoomNotExist)
	}

	// stop every agent in the cluster before the room goes away
	if err = m.natsService.PublishAgentTask(&natsservice.AgentTaskPayload{
		Task:   natsservice.AgentTaskEndAll,
		RoomId: r.RoomId,
	}); err != nil {
		m.logger.WithError(err).Errorln("failed to broadcast agent end-all task")
	}
	time.Sleep(config.WaitBeforeAgentEndOnAfterRoomEnded)

	if _, err = m.lk.EndRoom(r.RoomId); err != nil {
		// the livekit side may already be gone; close our row regardless
		m.logger.WithError(err).Warnln("failed to end livekit room")
	}

	_, err = m.ds.UpdateRoomStatus(&dbmodels.RoomInfo{
		RoomId:    r.RoomId,
		IsRunning: 0,
	})
	if err != nil {
		return err
	}

	m.logger.Infof("room %s ended", r.RoomId)
	return nil
}
