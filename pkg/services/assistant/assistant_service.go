package assistantservice

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ajvoice/aj-server/pkg/assistant"
	"github.com/ajvoice/aj-server/pkg/config"
	"github.com/ajvoice/aj-server/pkg/dbmodels"
	"github.com/ajvoice/aj-server/pkg/helpers"
	dbservice "github.com/ajvoice/aj-server/pkg/services/db"
	natsservice "github.com/ajvoice/aj-server/pkg/services/nats"
	redisservice "github.com/ajvoice/aj-server/pkg/services/redis"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

const (
	agentLockTTL     = 30 * time.Second
	supervisorTick   = 15 * time.Second
	agentLockPrefix  = "agent:"
	agentShutdownTTL = 10 * time.Second
)

// AssistantService owns every room agent running on this node. Agent tasks
// are broadcast over NATS to the whole cluster; the node that wins the
// room's Redis lock boots the agent, everyone else stays passive.
type AssistantService struct {
	ctx          context.Context
	conf         *config.AppConfig
	logger       *logrus.Entry
	nodeId       string
	redisService *redisservice.RedisService
	natsService  *natsservice.NatsService
	ds           *dbservice.DatabaseService

	lock       sync.RWMutex
	roomAgents map[string]*RoomAgent // key roomId_service
	turnSubs   map[string]*nats.Subscription
	sub        *nats.Subscription
}

func New(ctx context.Context, conf *config.AppConfig, redisService *redisservice.RedisService, natsService *natsservice.NatsService, ds *dbservice.DatabaseService, logger *logrus.Logger) *AssistantService {
	return &AssistantService{
		ctx:          ctx,
		conf:         conf,
		logger:       logger.WithField("service", "assistant"),
		nodeId:       fmt.Sprintf("%s-%s", "aj-server", uuid.NewString()[:8]),
		redisService: redisService,
		natsService:  natsService,
		ds:           ds,
		roomAgents:   make(map[string]*RoomAgent),
		turnSubs:     make(map[string]*nats.Subscription),
	}
}

// NodeId identifies this server instance in the agent state registry.
func (s *AssistantService) NodeId() string {
	return s.nodeId
}

// StartSubscription connects the service to the cluster's agent task
// subject. Called once during boot.
func (s *AssistantService) StartSubscription() {
	if !s.conf.Assistant.Enabled {
		s.logger.Infoln("assistant feature is disabled, skipping task subscription")
		return
	}

	sub, err := s.natsService.SubscribeAgentTask(func(payload *natsservice.AgentTaskPayload) {
		s.handleIncomingTask(payload)
	})
	if err != nil {
		s.logger.WithError(err).Fatalln("failed to subscribe to agent task subject")
	}
	s.logger.Infof("successfully connected with %s subject", sub.Subject)
	s.sub = sub
}

func agentKey(roomId, serviceName string) string {
	return fmt.Sprintf("%s_%s", roomId, serviceName)
}

// handleIncomingTask runs on every node for every broadcast task.
func (s *AssistantService) handleIncomingTask(payload *natsservice.AgentTaskPayload) {
	log := s.logger.WithFields(logrus.Fields{
		"task": payload.Task, "roomId": payload.RoomId, "agentService": payload.Service,
	})
	log.Debugln("received agent task")

	switch payload.Task {
	case natsservice.AgentTaskBoot, natsservice.AgentTaskStart:
		s.handleStartTask(payload, log)
	case natsservice.AgentTaskEnd:
		if payload.Service == "" {
			// participant-left teardown carries no service; stop the user
			// everywhere in the room
			s.EndTasksForUserInRoom(payload.RoomId, payload.UserId)
		} else {
			s.endLocalUserTask(payload.Service, payload.RoomId, payload.UserId)
		}
	case natsservice.AgentTaskEndService:
		s.shutdownAndRemoveAgent(agentKey(payload.RoomId, payload.Service))
	case natsservice.AgentTaskEndAll:
		s.removeAgentsForRoom(payload.RoomId)
	case natsservice.AgentTaskAnnounce:
		s.announceLocal(payload)
	default:
		log.Warnln("ignoring unknown agent task")
	}
}

// handleStartTask performs leader election and, on winning, boots or reuses
// the local agent for the room's service.
func (s *AssistantService) handleStartTask(payload *natsservice.AgentTaskPayload, log *logrus.Entry) {
	key := agentKey(payload.RoomId, payload.Service)

	s.lock.RLock()
	agent, exists := s.roomAgents[key]
	s.lock.RUnlock()

	if exists {
		s.activateUser(agent, payload)
		return
	}

	lock := s.redisService.NewLock(agentLockPrefix+key, agentLockTTL)
	isLeader, err := lock.TryLock(s.ctx)
	if err != nil {
		log.WithError(err).Errorln("failed leader election attempt")
		return
	}
	if !isLeader {
		return
	}

	log.Infof("acquired leadership for agent '%s'", key)
	agent, err = s.bootAgent(payload, lock, log)
	if err != nil {
		_ = lock.Unlock(s.ctx)
		log.WithError(err).Errorln("failed to boot room agent")
		return
	}
	s.activateUser(agent, payload)
}

func (s *AssistantService) activateUser(agent *RoomAgent, payload *natsservice.AgentTaskPayload) {
	if payload.UserId == "" {
		return
	}
	if err := agent.ActivateTaskForUser(payload.UserId, payload.Options); err != nil {
		s.logger.WithError(err).Errorln("failed to activate task for user")
	}
}

// bootAgent creates the agent, registers its state and DB session and
// starts its supervisor.
func (s *AssistantService) bootAgent(payload *natsservice.AgentTaskPayload, lock *redisservice.Lock, log *logrus.Entry) (*RoomAgent, error) {
	key := agentKey(payload.RoomId, payload.Service)
	sessionId := uuid.NewString()

	var e2eeKey *string
	if payload.RoomE2EEKey != "" {
		e2eeKey = &payload.RoomE2EEKey
	}

	_ = s.natsService.UpdateAgentState(&natsservice.AgentState{
		RoomId:    payload.RoomId,
		Service:   payload.Service,
		Status:    natsservice.AgentStateBooting,
		NodeId:    s.nodeId,
		SessionId: sessionId,
		StartedAt: time.Now().Unix(),
	})

	agent, err := s.newRoomAgent(payload.RoomId, payload.Service, sessionId, e2eeKey, log)
	if err != nil {
		_ = s.natsService.DeleteAgentState(payload.RoomId, payload.Service)
		return nil, err
	}

	s.lock.Lock()
	if existing, ok := s.roomAgents[key]; ok {
		// lost a race against another task for the same room; keep the
		// first one and throw ours away.
		s.lock.Unlock()
		agent.Shutdown()
		_ = lock.Unlock(s.ctx)
		return existing, nil
	}
	s.roomAgents[key] = agent
	s.lock.Unlock()

	_ = s.natsService.UpdateAgentState(&natsservice.AgentState{
		RoomId:        payload.RoomId,
		Service:       payload.Service,
		Status:        natsservice.AgentStateRunning,
		NodeId:        s.nodeId,
		AgentIdentity: agent.Identity(),
		SessionId:     sessionId,
		StartedAt:     time.Now().Unix(),
	})
	s.recordSessionStart(agent)
	if payload.Service == config.ServiceVoiceSession {
		s.startTurnRelay(payload.RoomId)
	}

	go s.superviseAgent(agent, lock)
	return agent, nil
}

// startTurnRelay forwards the room's finalized assistant replies to its
// webhook urls. Only the voice agent's owner node subscribes, so each turn
// produces exactly one turn_completed post across the cluster.
func (s *AssistantService) startTurnRelay(roomId string) {
	notifier := helpers.GetWebhookNotifier(s.conf, s.logger.Logger)
	sub, err := s.natsService.SubscribeSpeechOutput(roomId, func(ev *natsservice.SpeechOutputEvent) {
		if ev.Role != assistant.RoleAssistant {
			return
		}
		details := map[string]string{"text": ev.Text}
		if ev.Lang != "" {
			details["lang"] = ev.Lang
		}
		if err := notifier.SendWebhookEvent(&helpers.WebhookEvent{
			Event:   helpers.WebhookEventTurnCompleted,
			RoomId:  roomId,
			UserId:  ev.FromUserId,
			Service: config.ServiceVoiceSession,
			Details: details,
		}); err != nil {
			s.logger.WithError(err).Errorln("failed to queue turn_completed webhook")
		}
	})
	if err != nil {
		s.logger.WithError(err).Errorln("failed to subscribe to speech output for room:", roomId)
		return
	}

	s.lock.Lock()
	s.turnSubs[roomId] = sub
	s.lock.Unlock()
}

func (s *AssistantService) stopTurnRelay(roomId string) {
	s.lock.Lock()
	sub, ok := s.turnSubs[roomId]
	if ok {
		delete(s.turnSubs, roomId)
	}
	s.lock.Unlock()

	if ok {
		_ = sub.Unsubscribe()
	}
}

// superviseAgent keeps refreshing the agent's leadership lock and reaps the
// agent when it idles out or loses the lock.
func (s *AssistantService) superviseAgent(agent *RoomAgent, lock *redisservice.Lock) {
	ticker := time.NewTicker(supervisorTick)
	defer ticker.Stop()

	key := agentKey(agent.RoomId(), agent.ServiceName())
	idleTimeout := *s.conf.Assistant.Agent.IdleTimeout

	for {
		select {
		case <-ticker.C:
			if err := lock.Refresh(s.ctx); err != nil {
				s.logger.Warnf("lost leadership for agent '%s', shutting down", key)
				s.shutdownAndRemoveAgent(key)
				return
			}
			if agent.IdleFor() > idleTimeout {
				s.logger.Infof("agent '%s' idle for more than %s, shutting down", key, idleTimeout)
				s.shutdownAndRemoveAgent(key)
				_ = lock.Unlock(s.ctx)
				return
			}
		case <-agent.Done():
			s.logger.Infof("agent '%s' has shut down, releasing leadership", key)
			s.shutdownAndRemoveAgent(key)
			_ = lock.Unlock(s.ctx)
			return
		}
	}
}

// endLocalUserTask stops the user's pipeline if this node owns the agent.
func (s *AssistantService) endLocalUserTask(serviceName, roomId, userId string) {
	s.lock.RLock()
	agent, ok := s.roomAgents[agentKey(roomId, serviceName)]
	s.lock.RUnlock()

	if ok {
		agent.EndTasksForUser(userId)
	}
}

// EndTasksForUserInRoom stops the user's pipelines in every local agent of
// the room. Used when a participant leaves.
func (s *AssistantService) EndTasksForUserInRoom(roomId, userId string) {
	s.lock.RLock()
	agents := make([]*RoomAgent, 0)
	for key, agent := range s.roomAgents {
		if strings.HasPrefix(key, roomId+"_") {
			agents = append(agents, agent)
		}
	}
	s.lock.RUnlock()

	for _, agent := range agents {
		agent.EndTasksForUser(userId)
	}
}

// announceLocal speaks a text through the room's voice agent when this node
// owns it. Reminder delivery uses this path.
func (s *AssistantService) announceLocal(payload *natsservice.AgentTaskPayload) {
	text := payload.Options["text"]
	if text == "" {
		return
	}

	s.lock.RLock()
	agent, ok := s.roomAgents[agentKey(payload.RoomId, config.ServiceVoiceSession)]
	s.lock.RUnlock()

	if ok {
		agent.Announce(text)
	}
}

func (s *AssistantService) shutdownAndRemoveAgent(key string) {
	s.lock.Lock()
	agent, ok := s.roomAgents[key]
	if ok {
		delete(s.roomAgents, key)
	}
	s.lock.Unlock()

	if !ok {
		return
	}

	agent.Shutdown()
	if agent.ServiceName() == config.ServiceVoiceSession {
		s.stopTurnRelay(agent.RoomId())
	}
	_ = s.natsService.DeleteAgentState(agent.RoomId(), agent.ServiceName())
	s.recordSessionEnd(agent)
	s.logger.Infof("removed and shut down agent for key %s", key)
}

// removeAgentsForRoom shuts down every local agent belonging to the room.
func (s *AssistantService) removeAgentsForRoom(roomId string) {
	s.lock.RLock()
	keys := make([]string, 0)
	for key := range s.roomAgents {
		if strings.HasPrefix(key, roomId+"_") {
			keys = append(keys, key)
		}
	}
	s.lock.RUnlock()

	for _, key := range keys {
		s.shutdownAndRemoveAgent(key)
	}
	if len(keys) > 0 {
		s.logger.Infof("removed %d agents for room %s", len(keys), roomId)
	}
}

// recordSessionStart writes the DB row for a freshly booted agent.
func (s *AssistantService) recordSessionStart(agent *RoomAgent) {
	var roomTableId int64
	if roomInfo, err := s.ds.GetRoomInfoByRoomId(agent.RoomId(), 1); err == nil && roomInfo != nil {
		roomTableId = roomInfo.ID
	}

	_, err := s.ds.InsertAgentSession(&dbmodels.AgentSession{
		SessionId:     agent.SessionId(),
		RoomTableID:   roomTableId,
		RoomId:        agent.RoomId(),
		Service:       agent.ServiceName(),
		AgentIdentity: agent.Identity(),
		NodeId:        s.nodeId,
		Status:        dbmodels.AgentSessionStatusStarted,
	})
	if err != nil {
		s.logger.WithError(err).Errorln("failed to insert agent session row")
	}
}

// recordSessionEnd closes the DB row and moves the accumulated Redis usage
// counters onto it.
func (s *AssistantService) recordSessionEnd(agent *RoomAgent) {
	ctx, cancel := context.WithTimeout(context.Background(), agentShutdownTTL)
	defer cancel()

	usage, err := s.redisService.GetAgentRoomUsage(ctx, agent.RoomId(), agent.ServiceName(), true)
	if err != nil {
		s.logger.WithError(err).Errorln("failed to collect agent usage from redis")
	}

	_, err = s.ds.CloseAgentSession(agent.SessionId(), dbmodels.AgentSessionStatusEnded, FoldUsageCounters(usage))
	if err != nil {
		s.logger.WithError(err).Errorln("failed to close agent session row")
	}
}

// FoldUsageCounters condenses the raw Redis usage hash into the counters
// the session row carries. Token counters are summed over every task type.
func FoldUsageCounters(usage map[string]int64) *dbmodels.AgentSession {
	if len(usage) == 0 {
		return nil
	}

	folded := &dbmodels.AgentSession{
		Turns:         usage["total_turns"],
		ToolCalls:     usage["total_tool_calls"],
		TTSCharacters: usage["total_tts_characters"],
	}
	for key, val := range usage {
		if strings.HasPrefix(key, "total_") && strings.HasSuffix(key, "_prompt_tokens") {
			folded.PromptTokens += val
		}
		if strings.HasPrefix(key, "total_") && strings.HasSuffix(key, "_completion_tokens") {
			folded.CompletionTokens += val
		}
	}
	return folded
}

// Shutdown unsubscribes from the task subject and stops every local agent.
func (s *AssistantService) Shutdown() {
	if s.sub != nil {
		if err := s.sub.Unsubscribe(); err != nil {
			s.logger.WithError(err).Errorln("failed to unsubscribe from agent task subject")
		}
	}

	s.lock.RLock()
	keys := make([]string, 0, len(s.roomAgents))
	for key := range s.roomAgents {
		keys = append(keys, key)
	}
	s.lock.RUnlock()

	for _, key := range keys {
		s.shutdownAndRemoveAgent(key)
	}
	s.logger.Infoln("assistant service shutdown complete")
}
