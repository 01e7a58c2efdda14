package natsservice

import (
	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
)

// Agent task actions understood by every node in the cluster.
const (
	AgentTaskBoot       = "boot"
	AgentTaskStart      = "start"
	AgentTaskEnd        = "end"
	AgentTaskEndService = "end-service"
	AgentTaskEndAll     = "end-all"
	// AgentTaskAnnounce asks the node owning the room's voice agent to
	// speak Options["text"] into the room.
	AgentTaskAnnounce = "announce"
)

// AgentTaskPayload is broadcast on the agent task subject. Every node
// receives it; the node holding the room's agent lock acts on it.
type AgentTaskPayload struct {
	Task        string            `json:"task"`
	RoomId      string            `json:"room_id"`
	UserId      string            `json:"user_id,omitempty"`
	Service     string            `json:"service,omitempty"`
	Options     map[string]string `json:"options,omitempty"`
	RoomE2EEKey string            `json:"room_e2ee_key,omitempty"`
}

func (s *NatsService) PublishAgentTask(payload *AgentTaskPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.nc.Publish(s.app.NatsInfo.Subjects.AgentTask, data)
}

// SubscribeAgentTask registers handler for every broadcast task. The
// subscription is deliberately queue-less so each node can decide for
// itself whether it owns the room's agent.
func (s *NatsService) SubscribeAgentTask(handler func(payload *AgentTaskPayload)) (*nats.Subscription, error) {
	return s.nc.Subscribe(s.app.NatsInfo.Subjects.AgentTask, func(m *nats.Msg) {
		payload := new(AgentTaskPayload)
		if err := json.Unmarshal(m.Data, payload); err != nil {
			s.logger.WithError(err).Errorln("received invalid agent task payload")
			return
		}
		handler(payload)
	})
}
