package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ajvoice/aj-server/pkg/config"
	"github.com/ajvoice/aj-server/pkg/dbmodels"
	"github.com/ajvoice/aj-server/pkg/helpers"
	dbservice "github.com/ajvoice/aj-server/pkg/services/db"
	livekitservice "github.com/ajvoice/aj-server/pkg/services/livekit"
	natsservice "github.com/ajvoice/aj-server/pkg/services/nats"
)

type AgentModel struct {
	app             *config.AppConfig
	ds              *dbservice.DatabaseService
	lk              *livekitservice.LivekitService
	natsService     *natsservice.NatsService
	webhookNotifier *helpers.WebhookNotifier
	logger          *logrus.Entry
}

func NewAgentModel(app *config.AppConfig, ds *dbservice.DatabaseService, lk *livekitservice.LivekitService, natsService *natsservice.NatsService, webhookNotifier *helpers.WebhookNotifier, logger *logrus.Logger) *AgentModel {
	return &AgentModel{
		app:             app,
		ds:              ds,
		lk:              lk,
		natsService:     natsService,
		webhookNotifier: webhookNotifier,
		logger:          logger.WithField("model", "agent"),
	}
}

type StartAgentReq struct {
	RoomId  string            `json:"room_id"`
	Service string            `json:"service"`
	Options map[string]string `json:"options"`
	E2EEKey string            `json:"e2ee_key"`
}

type EndAgentReq struct {
	RoomId  string `json:"room_id"`
	Service string `json:"service"`
}

type AgentStatusReq struct {
	RoomId  string `json:"room_id"`
	Service string `json:"service"`
}

// StartAgent broadcasts a start task for the requested service. The
// actual boot happens on whichever node wins the room's agent lock, so a
// nil error here means accepted, not running. Callers can poll the status
// endpoint for the registry entry.
func (m *AgentModel) StartAgent(r *StartAgentReq) error {
	if !m.app.Assistant.Enabled {
		return errors.New(config.AssistantNotEnabled)
	}
	if r.RoomId == "" {
		return errors.New("room_id is required")
	}
	if r.Service == "" {
		r.Service = config.ServiceVoiceSession
	}
	switch r.Service {
	case config.ServiceVoiceSession, config.ServiceTranscription:
	default:
		return fmt.Errorf("service %s cannot run as a room agent", r.Service)
	}
	if _, err := m.app.Assistant.GetServiceConfig(r.Service); err != nil {
		return err
	}

	room, err := m.lk.LoadRoomInfo(r.RoomId)
	if err != nil || room == nil {
		return errors.New(config.RoomNotActive)
	}

	if state, _ := m.natsService.GetAgentState(r.RoomId, r.Service); state != nil && state.Status != natsservice.AgentStateEnding {
		return fmt.Errorf("%s agent already %s in room %s", r.Service, state.Status, r.RoomId)
	}

	err = m.natsService.PublishAgentTask(&natsservice.AgentTaskPayload{
		Task:        natsservice.AgentTaskStart,
		RoomId:      r.RoomId,
		Service:     r.Service,
		Options:     r.Options,
		RoomE2EEKey: r.E2EEKey,
	})
	if err != nil {
		return err
	}

	m.logger.WithFields(logrus.Fields{
		"roomId":  r.RoomId,
		"service": r.Service,
	}).Infoln("agent start task published")

	go func() {
		_ = m.webhookNotifier.SendWebhookEvent(&helpers.WebhookEvent{
			Event:   helpers.WebhookEventAgentStarted,
			RoomId:  r.RoomId,
			RoomSid: room.Sid,
			Service: r.Service,
			SentAt:  time.Now().UTC().Unix(),
		})
	}()

	return nil
}

// EndAgent ends one service, or every agent in the room when no service
// was named.
func (m *AgentModel) EndAgent(r *EndAgentReq) error {
	if r.RoomId == "" {
		return errors.New("room_id is required")
	}

	task := natsservice.AgentTaskEndAll
	if r.Service != "" {
		task = natsservice.AgentTaskEndService
		if state, _ := m.natsService.GetAgentState(r.RoomId, r.Service); state == nil {
			return errors.New(config.AgentNotActive)
		}
	} else {
		states, _ := m.natsService.GetAgentStatesByRoom(r.RoomId)
		if len(states) == 0 {
			return errors.New(config.AgentNotActive)
		}
	}

	err := m.natsService.PublishAgentTask(&natsservice.AgentTaskPayload{
		Task:    task,
		RoomId:  r.RoomId,
		Service: r.Service,
	})
	if err != nil {
		return err
	}

	m.logger.WithFields(logrus.Fields{
		"roomId":  r.RoomId,
		"service": r.Service,
		"task":    task,
	}).Infoln("agent end task published")

	go func() {
		_ = m.webhookNotifier.SendWebhookEvent(&helpers.WebhookEvent{
			Event:   helpers.WebhookEventAgentEnded,
			RoomId:  r.RoomId,
			Service: r.Service,
			SentAt:  time.Now().UTC().Unix(),
		})
	}()

	return nil
}

// AgentStatus reads the cluster-wide registry. With a service name it
// returns that single entry, otherwise every agent in the room.
func (m *AgentModel) AgentStatus(r *AgentStatusReq) ([]*natsservice.AgentState, error) {
	if r.RoomId == "" {
		return nil, errors.New("room_id is required")
	}
	if r.Service != "" {
		state, err := m.natsService.GetAgentState(r.RoomId, r.Service)
		if err != nil {
			return nil, err
		}
		if state == nil {
			return nil, errors.New(config.AgentNotActive)
		}
		return []*natsservice.AgentState{state}, nil
	}

	states, err := m.natsService.GetAgentStatesByRoom(r.RoomId)
	if err != nil {
		return nil, err
	}
	return states, nil
}

type AgentSessionsReq struct {
	RoomId    string `json:"room_id"`
	SessionId string `json:"session_id"`
	Offset    uint64 `json:"offset"`
	Limit     uint64 `json:"limit"`
}

type AgentSessionsRes struct {
	Total    int64                   `json:"total"`
	Sessions []dbmodels.AgentSession `json:"sessions"`
}

// AgentSessions lists the recorded sessions of a room with their usage
// counters, newest first. With a session_id it returns that row alone.
func (m *AgentModel) AgentSessions(r *AgentSessionsReq) (*AgentSessionsRes, error) {
	if r.SessionId != "" {
		session, err := m.ds.GetAgentSessionBySessionId(r.SessionId)
		if err != nil {
			return nil, err
		}
		if session == nil {
			return nil, errors.New("no session found with the given session_id")
		}
		return &AgentSessionsRes{
			Total:    1,
			Sessions: []dbmodels.AgentSession{*session},
		}, nil
	}

	if r.RoomId == "" {
		return nil, errors.New("room_id or session_id is required")
	}
	if r.Limit == 0 || r.Limit > 100 {
		r.Limit = 20
	}

	sessions, total, err := m.ds.GetAgentSessionsByRoomId(r.RoomId, r.Offset, r.Limit)
	if err != nil {
		return nil, err
	}
	return &AgentSessionsRes{
		Total:    total,
		Sessions: sessions,
	}, nil
}
