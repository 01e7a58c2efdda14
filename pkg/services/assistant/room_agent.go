package assistantservice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"

	lkauth "github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	lkmedia "github.com/livekit/server-sdk-go/v2/pkg/media"

	"github.com/ajvoice/aj-server/pkg/assistant/media"
	"github.com/ajvoice/aj-server/pkg/config"
	sdkmedia "github.com/livekit/media-sdk"
)

// Task is one assistant pipeline bound to a room. A RoomAgent runs one task
// per subscribed participant track.
type Task interface {
	// RunAudioStream consumes a participant's decoded audio until the
	// context is cancelled or the channel closes.
	RunAudioStream(ctx context.Context, audio <-chan sdkmedia.PCM16Sample, identity string, options map[string]string) error

	// LastActivityAt reports when the task last saw speech or produced
	// output; the supervisor uses it to reap idle agents.
	LastActivityAt() time.Time

	Shutdown()
}

// Announcer is implemented by tasks that can speak arbitrary text into the
// room outside a conversation turn.
type Announcer interface {
	Announce(text string)
}

type activeParticipant struct {
	transcoder *media.Transcoder
	cancel     context.CancelFunc
	identity   string
}

// RoomAgent is a hidden admin participant driving a single assistant
// service inside one room.
type RoomAgent struct {
	ctx    context.Context
	cancel context.CancelFunc

	conf      *config.AppConfig
	logger    *logrus.Entry
	room      *lksdk.Room
	roomId    string
	service   string
	sessionId string
	identity  string
	e2eeKey   *string

	task Task

	lock         sync.RWMutex
	participants map[string]*activeParticipant
	pendingTasks map[string]map[string]string

	lastActivity atomic.Int64
}

// newRoomAgent creates the agent, its task and the hidden room connection.
func (s *AssistantService) newRoomAgent(roomId, serviceName, sessionId string, e2eeKey *string, logger *logrus.Entry) (*RoomAgent, error) {
	ctx, cancel := context.WithCancel(s.ctx)
	identity := fmt.Sprintf("%s%s-%s", config.AgentUserIdPrefix, serviceName, uuid.NewString()[:8])
	log := logger.WithFields(logrus.Fields{"room": roomId, "agentIdentity": identity})

	task, err := s.newTask(serviceName, roomId, sessionId, e2eeKey, log)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("could not create task for service '%s': %w", serviceName, err)
	}

	agent := &RoomAgent{
		ctx:          ctx,
		cancel:       cancel,
		conf:         s.conf,
		logger:       log,
		roomId:       roomId,
		service:      serviceName,
		sessionId:    sessionId,
		identity:     identity,
		e2eeKey:      e2eeKey,
		task:         task,
		participants: make(map[string]*activeParticipant),
		pendingTasks: make(map[string]map[string]string),
	}
	agent.touch()

	token, err := agent.accessToken()
	if err != nil {
		cancel()
		task.Shutdown()
		return nil, err
	}

	room := lksdk.NewRoom(&lksdk.RoomCallback{
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackPublished:    agent.onTrackPublished,
			OnTrackSubscribed:   agent.onTrackSubscribed,
			OnTrackUnsubscribed: agent.onTrackUnsubscribed,
		},
		OnParticipantDisconnected: agent.onParticipantDisconnected,
		OnDisconnected:            agent.onDisconnected,
	})

	if err = room.JoinWithToken(s.conf.LivekitInfo.Host, token, lksdk.WithAutoSubscribe(false)); err != nil {
		cancel()
		task.Shutdown()
		return nil, err
	}

	agent.room = room
	log.Infoln("room agent joined")
	return agent, nil
}

// accessToken builds a short-lived join token for the hidden agent
// participant.
func (a *RoomAgent) accessToken() (string, error) {
	at := lkauth.NewAccessToken(a.conf.LivekitInfo.ApiKey, a.conf.LivekitInfo.Secret)
	grant := &lkauth.VideoGrant{
		RoomJoin:  true,
		Room:      a.roomId,
		RoomAdmin: true,
		Hidden:    true,
	}
	at.SetVideoGrant(grant).
		SetIdentity(a.identity).
		SetName("Aj").
		SetAttributes(map[string]string{
			"aj-agent":   "true",
			"service":    a.service,
			"session_id": a.sessionId,
		}).
		SetValidFor(time.Minute * 5)
	return at.ToJWT()
}

func (a *RoomAgent) RoomId() string      { return a.roomId }
func (a *RoomAgent) ServiceName() string { return a.service }
func (a *RoomAgent) SessionId() string   { return a.sessionId }
func (a *RoomAgent) Identity() string    { return a.identity }

// Done closes when the agent's context ends.
func (a *RoomAgent) Done() <-chan struct{} {
	return a.ctx.Done()
}

func (a *RoomAgent) touch() {
	a.lastActivity.Store(time.Now().UnixNano())
}

// IdleFor reports how long both the agent and its task have been quiet.
func (a *RoomAgent) IdleFor() time.Duration {
	last := time.Unix(0, a.lastActivity.Load())
	if taskLast := a.task.LastActivityAt(); taskLast.After(last) {
		last = taskLast
	}
	return time.Since(last)
}

// ActivateTaskForUser queues the pipeline for a participant and subscribes
// to their mic track when it is already published.
func (a *RoomAgent) ActivateTaskForUser(userId string, options map[string]string) error {
	a.touch()
	a.lock.Lock()
	if _, ok := a.pendingTasks[userId]; ok {
		a.lock.Unlock()
		a.logger.Infof("task is already pending for participant %s", userId)
		return nil
	}
	if _, ok := a.participants[userId]; ok {
		a.lock.Unlock()
		return nil
	}
	if options == nil {
		options = make(map[string]string)
	}
	a.pendingTasks[userId] = options
	a.lock.Unlock()

	a.logger.Infof("queued task for participant %s", userId)

	for _, p := range a.room.GetRemoteParticipants() {
		if p.Identity() != userId {
			continue
		}
		for _, pub := range p.TrackPublications() {
			if pub.Kind() == lksdk.TrackKindAudio {
				if remote, ok := pub.(*lksdk.RemoteTrackPublication); ok {
					return remote.SetSubscribed(true)
				}
			}
		}
	}
	return nil
}

// EndTasksForUser stops the participant's pipeline.
func (a *RoomAgent) EndTasksForUser(userId string) {
	a.lock.Lock()
	delete(a.pendingTasks, userId)
	participant, ok := a.participants[userId]
	delete(a.participants, userId)
	a.lock.Unlock()

	if ok {
		participant.cancel()
		a.logger.WithField("userId", userId).Infoln("stopped assistant task for participant")
	}
}

// Announce speaks text through the task when it supports it.
func (a *RoomAgent) Announce(text string) {
	if announcer, ok := a.task.(Announcer); ok {
		a.touch()
		announcer.Announce(text)
	}
}

func (a *RoomAgent) onTrackPublished(publication *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
	if publication.Kind() != lksdk.TrackKindAudio {
		return
	}
	a.lock.RLock()
	_, ok := a.pendingTasks[rp.Identity()]
	a.lock.RUnlock()

	if ok {
		_ = publication.SetSubscribed(true)
	}
}

// onTrackSubscribed builds the media pipeline and launches the task for
// the participant.
func (a *RoomAgent) onTrackSubscribed(track *webrtc.TrackRemote, publication *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
	if track.Codec().MimeType != webrtc.MimeTypeOpus {
		return
	}
	a.lock.Lock()
	defer a.lock.Unlock()

	options, ok := a.pendingTasks[rp.Identity()]
	if !ok {
		return
	}

	var decryptor lkmedia.Decryptor
	if publication.TrackInfo().GetEncryption() != livekit.Encryption_NONE {
		if a.e2eeKey == nil || *a.e2eeKey == "" {
			a.logger.Errorln("received an encrypted track but no key was provided, so not continuing")
			return
		}
		key, err := lksdk.DeriveKeyFromString(*a.e2eeKey)
		if err != nil {
			a.logger.WithError(err).Error("failed to derive key")
			return
		}
		decryptor, err = lkmedia.NewGCMDecryptor(key, a.room.SifTrailer())
		if err != nil {
			a.logger.WithError(err).Error("failed to create decryptor")
			return
		}
	}

	ctx, cancel := context.WithCancel(a.ctx)
	transcoder, err := media.NewTranscoder(ctx, track, decryptor)
	if err != nil {
		a.logger.WithError(err).Error("failed to create transcoder")
		cancel()
		return
	}

	a.participants[rp.Identity()] = &activeParticipant{
		transcoder: transcoder,
		cancel:     cancel,
		identity:   rp.Identity(),
	}
	a.touch()

	go func() {
		err := a.task.RunAudioStream(ctx, transcoder.AudioStream(), rp.Identity(), options)
		if err != nil && !errors.Is(err, context.Canceled) {
			a.logger.WithError(err).Errorf("assistant task %s failed", a.service)
		}
	}()

	a.logger.Infof("activated task for participant %s", rp.Identity())
	delete(a.pendingTasks, rp.Identity())
}

func (a *RoomAgent) onTrackUnsubscribed(track *webrtc.TrackRemote, publication *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
	a.EndTasksForUser(rp.Identity())
}

func (a *RoomAgent) onParticipantDisconnected(rp *lksdk.RemoteParticipant) {
	a.EndTasksForUser(rp.Identity())
}

// Shutdown closes the task, the room connection and every participant
// pipeline.
func (a *RoomAgent) Shutdown() {
	a.logger.Infoln("shutting down room agent")
	a.cancel()
	a.task.Shutdown()
	if a.room != nil {
		a.room.Disconnect()
	}
}

func (a *RoomAgent) onDisconnected() {
	a.logger.Infoln("agent disconnected from room")
	a.cancel()
}
