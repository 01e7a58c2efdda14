package models

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ajvoice/aj-server/pkg/dbmodels"
	"github.com/ajvoice/aj-server/pkg/helpers"
)

// CreateRoomReq is the admin request to open a room.
type CreateRoomReq struct {
	RoomId          string  `json:"room_id"`
	RoomTitle       string  `json:"room_title"`
	EmptyTimeout    *uint32 `json:"empty_timeout"`
	MaxParticipants *uint32 `json:"max_participants"`
	WebhookUrl      string  `json:"webhook_url"`
	Metadata        string  `json:"metadata"`
}

// CreateRoomRes describes the freshly created (or already running) room.
type CreateRoomRes struct {
	RoomId     string `json:"room_id"`
	Sid        string `json:"sid"`
	RoomTitle  string `json:"room_title"`
	IsExisting bool   `json:"is_existing"`
	CreatedAt  int64  `json:"created_at"`
}

// CreateRoom creates the LiveKit room and persists its row. Concurrent
// creation requests for the same room are serialized through a Redis
// lock; a room already running is returned as-is.
func (m *RoomModel) CreateRoom(r *CreateRoomReq) (*CreateRoomRes, error) {
	if r.RoomId == "" {
		return nil, errors.New("room_id is required")
	}

	lockValue, err := m.acquireRoomCreationLock(r.RoomId)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := m.rs.UnlockRoomCreation(m.ctx, r.RoomId, lockValue); err != nil {
			m.logger.WithError(err).Errorln("failed to release creation lock for room:", r.RoomId)
		}
	}()

	// a running room is reused, not recreated
	roomDbInfo, err := m.ds.GetRoomInfoByRoomId(r.RoomId, 1)
	if err != nil {
		return nil, err
	}
	if roomDbInfo != nil && roomDbInfo.Sid != "" {
		if lkRoom, err := m.lk.LoadRoomInfo(r.RoomId); err == nil && lkRoom != nil && lkRoom.Sid == roomDbInfo.Sid {
			return &CreateRoomRes{
				RoomId:     roomDbInfo.RoomId,
				Sid:        roomDbInfo.Sid,
				RoomTitle:  roomDbInfo.RoomTitle,
				IsExisting: true,
				CreatedAt:  roomDbInfo.Created.Unix(),
			}, nil
		}
	}

	if r.RoomTitle == "" {
		r.RoomTitle = r.RoomId
	}

	lkRoom, err := m.lk.CreateRoom(r.RoomId, r.EmptyTimeout, r.MaxParticipants, r.Metadata)
	if err != nil {
		return nil, err
	}

	sid := lkRoom.Sid
	if sid == "" {
		sid = uuid.NewString()
	}

	info := roomDbInfo
	if info == nil {
		info = new(dbmodels.RoomInfo)
	}
	info.RoomTitle = r.RoomTitle
	info.RoomId = r.RoomId
	info.Sid = sid
	info.IsRunning = 1
	info.WebhookUrl = r.WebhookUrl
	info.CreationTime = lkRoom.CreationTime
	info.Created = time.Now().UTC()

	if _, err = m.ds.InsertOrUpdateRoomInfo(info); err != nil {
		// the livekit room exists but our row does not; end it so the two
		// sides never drift apart
		_, _ = m.lk.EndRoom(r.RoomId)
		return nil, err
	}

	m.webhookNotifier.RegisterWebhook(r.RoomId, sid)
	go m.webhookNotifier.ForceToPutInQueue(&helpers.WebhookEvent{
		Event:   helpers.WebhookEventRoomStarted,
		RoomId:  r.RoomId,
		RoomSid: sid,
	})

	m.logger.Infof("room %s created with sid %s", r.RoomId, sid)
	return &CreateRoomRes{
		RoomId:    r.RoomId,
		Sid:       sid,
		RoomTitle: r.RoomTitle,
		CreatedAt: time.Now().Unix(),
	}, nil
}
