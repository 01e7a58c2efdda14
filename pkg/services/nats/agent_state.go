package natsservice

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go/jetstream"
)

const AgentStateBucket = Prefix + "agent-state"

// Agent lifecycle states as stored in the registry.
const (
	AgentStateBooting = "booting"
	AgentStateRunning = "running"
	AgentStateEnding  = "ending"
)

// AgentState describes one live room agent, registered by the node that
// runs it so any node can answer status queries for the whole cluster.
type AgentState struct {
	RoomId        string `json:"room_id"`
	Service       string `json:"service"`
	Status        string `json:"status"`
	NodeId        string `json:"node_id"`
	AgentIdentity string `json:"agent_identity"`
	SessionId     string `json:"session_id"`
	StartedAt     int64  `json:"started_at"`
}

func agentStateKey(roomId, service string) string {
	return fmt.Sprintf("%s-%s", roomId, service)
}

// UpdateAgentState writes or overwrites the registry entry for the agent.
func (s *NatsService) UpdateAgentState(state *AgentState) error {
	kv, err := s.js.CreateOrUpdateKeyValue(s.ctx, jetstream.KeyValueConfig{
		Replicas: s.app.NatsInfo.NumReplicas,
		Bucket:   AgentStateBucket,
		TTL:      DefaultTTL,
	})
	if err != nil {
		return err
	}

	data, err := json.Marshal(state)
	if err != nil {
		return err
	}

	_, err = kv.Put(s.ctx, agentStateKey(state.RoomId, state.Service), data)
	return err
}

func (s *NatsService) GetAgentState(roomId, service string) (*AgentState, error) {
	kv, err := s.getKV(AgentStateBucket)
	if err != nil || kv == nil {
		return nil, err
	}

	entry, err := kv.Get(s.ctx, agentStateKey(roomId, service))
	switch {
	case errors.Is(err, jetstream.ErrKeyNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}

	state := new(AgentState)
	if err := json.Unmarshal(entry.Value(), state); err != nil {
		return nil, err
	}

	return state, nil
}

// GetAgentStatesByRoom returns the registry entries of every agent
// currently attached to the room.
func (s *NatsService) GetAgentStatesByRoom(roomId string) ([]*AgentState, error) {
	states, err := s.GetAllAgentStates()
	if err != nil {
		return nil, err
	}

	var out []*AgentState
	for _, st := range states {
		if st.RoomId == roomId {
			out = append(out, st)
		}
	}
	return out, nil
}

// GetAllAgentStates lists every registered agent in the cluster.
func (s *NatsService) GetAllAgentStates() ([]*AgentState, error) {
	kv, err := s.getKV(AgentStateBucket)
	if err != nil || kv == nil {
		return nil, err
	}

	keys, err := kv.ListKeys(s.ctx)
	if err != nil {
		return nil, err
	}

	var states []*AgentState
	for k := range keys.Keys() {
		entry, err := kv.Get(s.ctx, k)
		if err != nil || entry == nil {
			continue
		}
		state := new(AgentState)
		if err := json.Unmarshal(entry.Value(), state); err != nil {
			s.logger.WithError(err).Warnln("skipping malformed agent state entry:", k)
			continue
		}
		states = append(states, state)
	}

	return states, nil
}

func (s *NatsService) DeleteAgentState(roomId, service string) error {
	kv, err := s.getKV(AgentStateBucket)
	if err != nil || kv == nil {
		return err
	}

	return kv.Purge(s.ctx, agentStateKey(roomId, service))
}

// DeleteAgentStatesByRoom removes every registry entry for the room,
// typically after the room itself has ended.
func (s *NatsService) DeleteAgentStatesByRoom(roomId string) error {
	states, err := s.GetAgentStatesByRoom(roomId)
	if err != nil {
		return err
	}

	kv, err := s.getKV(AgentStateBucket)
	if err != nil || kv == nil {
		return err
	}

	for _, st := range states {
		_ = kv.Purge(s.ctx, agentStateKey(st.RoomId, st.Service))
	}

	return nil
}
