package models

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ajvoice/aj-server/pkg/assistant/prompts"
	"github.com/ajvoice/aj-server/pkg/config"
	"github.com/ajvoice/aj-server/pkg/dbmodels"
	"github.com/ajvoice/aj-server/pkg/helpers"
	dbservice "github.com/ajvoice/aj-server/pkg/services/db"
	livekitservice "github.com/ajvoice/aj-server/pkg/services/livekit"
	natsservice "github.com/ajvoice/aj-server/pkg/services/nats"
	redisservice "github.com/ajvoice/aj-server/pkg/services/redis"
)

const (
	janitorLeaderLockTTL = time.Minute
	janitorLeaderRenewal = 30 * time.Second
	janitorTickInterval  = 15 * time.Second
)

// JanitorModel runs the recurring maintenance work: due reminders, room
// reconciliation against LiveKit, stale agent session rows and artifact
// retention. Only one node in the cluster runs the tasks at a time; the
// node holding the janitor leader lock does the work, everyone else keeps
// retrying for leadership.
type JanitorModel struct {
	ctx             context.Context
	cancel          context.CancelFunc
	app             *config.AppConfig
	ds              *dbservice.DatabaseService
	rs              *redisservice.RedisService
	natsService     *natsservice.NatsService
	lk              *livekitservice.LivekitService
	webhookNotifier *helpers.WebhookNotifier
	logger          *logrus.Entry
}

func NewJanitorModel(mainCtx context.Context, app *config.AppConfig, ds *dbservice.DatabaseService, rs *redisservice.RedisService, natsService *natsservice.NatsService, lk *livekitservice.LivekitService, webhookNotifier *helpers.WebhookNotifier, logger *logrus.Logger) *JanitorModel {
	ctx, cancel := context.WithCancel(mainCtx)
	return &JanitorModel{
		ctx:             ctx,
		cancel:          cancel,
		app:             app,
		ds:              ds,
		rs:              rs,
		natsService:     natsService,
		lk:              lk,
		webhookNotifier: webhookNotifier,
		logger:          logger.WithField("model", "janitor"),
	}
}

// StartJanitor blocks, competing for the leader lock and running the task
// loop while holding it. Call it from a goroutine at boot.
func (m *JanitorModel) StartJanitor() {
	m.logger.Infoln("janitor starting, waiting for leader lock")

	for {
		select {
		case <-m.ctx.Done():
			m.logger.Infoln("janitor shut down")
			return
		default:
		}

		lock := m.rs.NewLock("janitor-leader", janitorLeaderLockTTL)
		acquired, err := lock.TryLock(m.ctx)
		if err != nil {
			m.logger.WithError(err).Errorln("janitor leader lock check failed")
			time.Sleep(janitorLeaderRenewal)
			continue
		}
		if !acquired {
			time.Sleep(janitorLeaderRenewal)
			continue
		}

		m.logger.Infoln("acquired janitor leader lock, starting tasks")
		m.runTasks(lock)
		_ = lock.Unlock(context.Background())
		m.logger.Warnln("stopped being the janitor leader")
	}
}

// Stop cancels the janitor loop.
func (m *JanitorModel) Stop() {
	m.cancel()
}

func (m *JanitorModel) runTasks(lock *redisservice.Lock) {
	renewalTicker := time.NewTicker(janitorLeaderRenewal)
	defer renewalTicker.Stop()

	ticker := time.NewTicker(janitorTickInterval)
	defer ticker.Stop()

	nextRoomCheck := time.Now().Add(5 * time.Minute)
	nextSessionCheck := time.Now().Add(5 * time.Minute)
	nextArtifactCheck := time.Now().Add(time.Hour)

	for {
		select {
		case <-m.ctx.Done():
			return
		case now := <-ticker.C:
			m.dispatchDueReminders()

			if now.After(nextRoomCheck) {
				m.reconcileActiveRooms()
				nextRoomCheck = time.Now().Add(5 * time.Minute)
			}
			if now.After(nextSessionCheck) {
				m.closeStaleAgentSessions()
				nextSessionCheck = time.Now().Add(5 * time.Minute)
			}
			if now.After(nextArtifactCheck) {
				m.enforceArtifactRetention()
				nextArtifactCheck = time.Now().Add(time.Hour)
			}
		case <-renewalTicker.C:
			if err := lock.Refresh(m.ctx); err != nil {
				m.logger.WithError(err).Warnln("lost janitor leader lock")
				return
			}
		}
	}
}

// dispatchDueReminders delivers every reminder whose time has come. Rooms
// with a running voice agent get a spoken announcement, everything else
// falls back to a webhook.
func (m *JanitorModel) dispatchDueReminders() {
	reminders, err := m.rs.GetDueReminders(m.ctx, time.Now())
	if err != nil {
		m.logger.WithError(err).Errorln("could not fetch due reminders")
		return
	}

	for _, r := range reminders {
		log := m.logger.WithField("roomId", r.RoomID).WithField("reminderId", r.ID)

		state, _ := m.natsService.GetAgentState(r.RoomID, config.ServiceVoiceSession)
		if state != nil && state.Status == natsservice.AgentStateRunning {
			err = m.natsService.PublishAgentTask(&natsservice.AgentTaskPayload{
				Task:    natsservice.AgentTaskAnnounce,
				RoomId:  r.RoomID,
				UserId:  r.UserID,
				Options: map[string]string{"text": prompts.ReminderAnnouncement(r.Text)},
			})
			if err != nil {
				log.WithError(err).Errorln("could not publish reminder announcement")
				continue
			}
		} else {
			err = m.webhookNotifier.SendWebhookEvent(&helpers.WebhookEvent{
				Event:   helpers.WebhookEventReminderDue,
				RoomId:  r.RoomID,
				UserId:  r.UserID,
				Details: map[string]string{"text": r.Text},
				SentAt:  time.Now().UTC().Unix(),
			})
			if err != nil {
				log.WithError(err).Errorln("could not queue reminder webhook")
			}
		}

		if err = m.rs.RemoveReminder(m.ctx, r); err != nil {
			log.WithError(err).Errorln("could not remove delivered reminder")
		}
	}
}

// reconcileActiveRooms closes DB rows whose room no longer exists on the
// LiveKit server, for example after a LiveKit restart that skipped the
// room_finished webhook.
func (m *JanitorModel) reconcileActiveRooms() {
	if m.rs.IsJanitorTaskLock("activeRoomChecker") {
		return
	}
	m.rs.LockJanitorTask("activeRoomChecker", time.Minute*10)
	defer m.rs.UnlockJanitorTask("activeRoomChecker")

	activeRooms, err := m.ds.GetActiveRoomsInfo()
	if err != nil || len(activeRooms) == 0 {
		return
	}

	lkRooms, err := m.lk.LoadActiveRooms()
	if err != nil {
		m.logger.WithError(err).Errorln("could not list rooms from livekit")
		return
	}
	live := make(map[string]bool, len(lkRooms))
	for _, room := range lkRooms {
		live[room.Name] = true
	}

	for _, room := range activeRooms {
		if room.Sid == "" || live[room.RoomId] {
			continue
		}

		m.logger.Warnln("closing room missing from livekit:", room.RoomId)
		if _, err = m.ds.UpdateRoomStatus(&dbmodels.RoomInfo{
			RoomId:    room.RoomId,
			IsRunning: 0,
		}); err != nil {
			m.logger.WithError(err).Errorln("could not close room:", room.RoomId)
			continue
		}

		m.rs.DeleteConversationHistory(room.RoomId)
		m.natsService.DeleteSpeechChunkBucket(room.RoomId)
		if err = m.natsService.DeleteAgentStatesByRoom(room.RoomId); err != nil {
			m.logger.WithError(err).Errorln("could not clear agent states for room:", room.RoomId)
		}
	}
}

// closeStaleAgentSessions marks DB session rows still open long after any
// agent could realistically run. Covers nodes that died without folding
// their sessions.
func (m *JanitorModel) closeStaleAgentSessions() {
	if m.rs.IsJanitorTaskLock("staleAgentSessions") {
		return
	}
	m.rs.LockJanitorTask("staleAgentSessions", time.Minute*10)
	defer m.rs.UnlockJanitorTask("staleAgentSessions")

	affected, err := m.ds.MarkStaleAgentSessionsEnded(time.Now().UTC().Add(-24 * time.Hour))
	if err != nil {
		m.logger.WithError(err).Errorln("could not close stale agent sessions")
		return
	}
	if affected > 0 {
		m.logger.Warnf("closed %d stale agent sessions", affected)
	}
}

// enforceArtifactRetention removes artifacts older than the configured
// retention window, files included.
func (m *JanitorModel) enforceArtifactRetention() {
	if m.rs.IsJanitorTaskLock("artifactRetention") {
		return
	}
	m.rs.LockJanitorTask("artifactRetention", time.Minute*30)
	defer m.rs.UnlockJanitorTask("artifactRetention")

	retention := *m.app.ArtifactSettings.RetentionDays
	if retention <= 0 {
		return
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retention)

	for {
		artifacts, err := m.ds.GetArtifactsOlderThan(cutoff, 100)
		if err != nil {
			m.logger.WithError(err).Errorln("could not list expired artifacts")
			return
		}
		if len(artifacts) == 0 {
			return
		}

		ids := make([]uint64, 0, len(artifacts))
		for _, a := range artifacts {
			if a.FilePath != "" {
				if err := os.Remove(a.FilePath); err != nil && !os.IsNotExist(err) {
					m.logger.WithError(err).Warnln("could not remove artifact file:", a.FilePath)
				}
			}
			ids = append(ids, a.ID)
		}

		deleted, err := m.ds.DeleteArtifactsByTableIds(ids)
		if err != nil {
			m.logger.WithError(err).Errorln("could not delete expired artifacts")
			return
		}
		m.logger.Infof("removed %d expired artifacts", deleted)

		if len(artifacts) < 100 {
			return
		}
	}
}
