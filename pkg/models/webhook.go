package models

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/livekit/protocol/livekit"
	"github.com/sirupsen/logrus"

	"github.com/ajvoice/aj-server/pkg/config"
	"github.com/ajvoice/aj-server/pkg/dbmodels"
	"github.com/ajvoice/aj-server/pkg/helpers"
	dbservice "github.com/ajvoice/aj-server/pkg/services/db"
	natsservice "github.com/ajvoice/aj-server/pkg/services/nats"
	redisservice "github.com/ajvoice/aj-server/pkg/services/redis"
)

// WebhookModel reacts to events the LiveKit server posts back to us.
type WebhookModel struct {
	app             *config.AppConfig
	ds              *dbservice.DatabaseService
	rs              *redisservice.RedisService
	natsService     *natsservice.NatsService
	webhookNotifier *helpers.WebhookNotifier
	artifactModel   *ArtifactModel
	logger          *logrus.Entry
}

func NewWebhookModel(app *config.AppConfig, ds *dbservice.DatabaseService, rs *redisservice.RedisService, natsService *natsservice.NatsService, webhookNotifier *helpers.WebhookNotifier, artifactModel *ArtifactModel, logger *logrus.Logger) *WebhookModel {
	return &WebhookModel{
		app:             app,
		ds:              ds,
		rs:              rs,
		natsService:     natsService,
		webhookNotifier: webhookNotifier,
		artifactModel:   artifactModel,
		logger:          logger.WithField("model", "webhook"),
	}
}

func (m *WebhookModel) HandleWebhookEvents(e *livekit.WebhookEvent) {
	switch e.GetEvent() {
	case "room_started":
		m.roomStarted(e)
	case "room_finished":
		m.roomFinished(e)
	case "participant_joined":
		m.participantJoined(e)
	case "participant_left":
		m.participantLeft(e)
	}
}

func (m *WebhookModel) roomStarted(event *livekit.WebhookEvent) {
	if event.Room == nil {
		m.logger.Errorln("room_started event without room info")
		return
	}
	roomId := event.Room.Name

	info, err := m.ds.GetRoomInfoByRoomId(roomId, 1)
	if err != nil {
		m.logger.WithError(err).Errorln("could not load room:", roomId)
		return
	}
	if info == nil {
		// possibly our API call is still writing the DB row
		if locked, _ := m.rs.IsRoomCreationLock(context.Background(), roomId); locked {
			return
		}
		m.logger.Warnln("room started outside our API, ignoring:", roomId)
		return
	}

	// creation already registered urls and sent room_started; a repeat
	// here only resets the deletion flag after a reconnect
	m.webhookNotifier.RegisterWebhook(roomId, info.Sid)
}

func (m *WebhookModel) roomFinished(event *livekit.WebhookEvent) {
	if event.Room == nil {
		m.logger.Errorln("room_finished event without room info")
		return
	}
	roomId := event.Room.Name
	log := m.logger.WithField("roomId", roomId)

	info, err := m.ds.GetRoomInfoByRoomId(roomId, 1)
	if err != nil {
		log.WithError(err).Errorln("could not load room")
		return
	}
	if info == nil {
		// already ended by the API
		return
	}

	// stop every agent first so usage folding and session rows land
	// before we flush artifacts
	err = m.natsService.PublishAgentTask(&natsservice.AgentTaskPayload{
		Task:   natsservice.AgentTaskEndAll,
		RoomId: roomId,
	})
	if err != nil {
		log.WithError(err).Errorln("could not publish agent end task")
	}
	time.Sleep(config.WaitBeforeAgentEndOnAfterRoomEnded)

	m.flushTranscript(roomId, log)
	m.closeOrphanSessions(roomId, log)

	if _, err = m.ds.UpdateRoomStatus(&dbmodels.RoomInfo{
		RoomId:    roomId,
		IsRunning: 0,
	}); err != nil {
		log.WithError(err).Errorln("could not mark room ended")
	}

	if err = m.webhookNotifier.SendWebhookEvent(&helpers.WebhookEvent{
		Event:   helpers.WebhookEventRoomFinished,
		RoomId:  roomId,
		RoomSid: info.Sid,
		SentAt:  time.Now().UTC().Unix(),
	}); err != nil {
		log.WithError(err).Errorln("could not queue room_finished webhook")
	}

	go func() {
		if err := m.webhookNotifier.DeleteWebhook(roomId); err != nil {
			log.WithError(err).Errorln("webhook cleanup failed")
		}
	}()

	m.rs.DeleteConversationHistory(roomId)
	m.purgePendingReminders(roomId, log)
	m.natsService.DeleteSpeechChunkBucket(roomId)
	if err = m.natsService.DeleteAgentStatesByRoom(roomId); err != nil {
		log.WithError(err).Errorln("could not clear agent states")
	}
}

// purgePendingReminders drops reminders that were still scheduled when the
// room ended. There is nobody left to announce them to.
func (m *WebhookModel) purgePendingReminders(roomId string, log *logrus.Entry) {
	ctx := context.Background()
	reminders, err := m.rs.GetRemindersByRoom(ctx, roomId)
	if err != nil {
		log.WithError(err).Errorln("could not list pending reminders")
		return
	}
	for _, r := range reminders {
		if err = m.rs.RemoveReminder(ctx, r); err != nil {
			log.WithError(err).Errorln("could not remove reminder:", r.ID)
		}
	}
}

// closeOrphanSessions closes session rows the owning node never got to
// fold, e.g. when it died while the room was live. Usage counters are lost
// for those; the row still records that the session ended with the room.
func (m *WebhookModel) closeOrphanSessions(roomId string, log *logrus.Entry) {
	sessions, err := m.ds.GetActiveAgentSessions(roomId)
	if err != nil {
		log.WithError(err).Errorln("could not list open agent sessions")
		return
	}
	for i := range sessions {
		if _, err = m.ds.CloseAgentSession(sessions[i].SessionId, dbmodels.AgentSessionStatusEnded, nil); err != nil {
			log.WithError(err).Errorln("could not close agent session:", sessions[i].SessionId)
		}
	}
}

// flushTranscript folds the room's recorded utterances into a transcript
// artifact before the KV bucket is dropped.
func (m *WebhookModel) flushTranscript(roomId string, log *logrus.Entry) {
	chunks, err := m.natsService.GetSpeechChunks(roomId)
	if err != nil {
		log.WithError(err).Errorln("could not read speech chunks")
		return
	}
	if len(chunks) == 0 {
		return
	}

	transcript := formatTranscript(chunks)
	if transcript == "" {
		return
	}
	if _, err = m.artifactModel.CreateArtifact(roomId, "", dbmodels.ArtifactTypeTranscript, transcript); err != nil {
		log.WithError(err).Errorln("could not store transcript artifact")
	}
}

// formatTranscript renders the KV utterance chunks as plain text, one
// line per utterance in arrival order. Keys are UnixNano timestamps so a
// plain string sort restores the order.
func formatTranscript(chunks map[string][]byte) string {
	keys := make([]string, 0, len(chunks))
	for k := range chunks {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		chunk := new(natsservice.SpeechChunk)
		if err := json.Unmarshal(chunks[k], chunk); err != nil {
			continue
		}
		name := chunk.Name
		if name == "" {
			name = chunk.FromUserId
		}
		sb.WriteString(fmt.Sprintf("%s: %s\n", name, chunk.Text))
	}
	return sb.String()
}

func (m *WebhookModel) participantJoined(event *livekit.WebhookEvent) {
	if event.Room == nil || event.Participant == nil {
		return
	}

	info, err := m.ds.GetRoomInfoByRoomId(event.Room.Name, 1)
	if err != nil || info == nil {
		return
	}
	if _, err = m.ds.IncrementOrDecrementNumParticipants(info.Sid, "+"); err != nil {
		m.logger.WithError(err).Errorln("could not bump participant count for room:", event.Room.Name)
	}
}

func (m *WebhookModel) participantLeft(event *livekit.WebhookEvent) {
	if event.Room == nil || event.Participant == nil {
		return
	}
	roomId := event.Room.Name
	identity := event.Participant.Identity

	info, err := m.ds.GetRoomInfoByRoomId(roomId, 1)
	if err == nil && info != nil {
		if _, err = m.ds.IncrementOrDecrementNumParticipants(info.Sid, "-"); err != nil {
			m.logger.WithError(err).Errorln("could not drop participant count for room:", roomId)
		}
	}

	// tear down any pipeline attached to this participant's audio
	err = m.natsService.PublishAgentTask(&natsservice.AgentTaskPayload{
		Task:   natsservice.AgentTaskEnd,
		RoomId: roomId,
		UserId: identity,
	})
	if err != nil {
		m.logger.WithError(err).Errorln("could not publish participant end task for room:", roomId)
	}
}
