package natsservice

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const speechChunkBucket = Prefix + "speech_chunks-%s"

// SpeechOutputEvent carries one finalized utterance, either a human
// turn from the recognizer or an agent reply, to transcript consumers.
type SpeechOutputEvent struct {
	RoomId     string `json:"room_id"`
	FromUserId string `json:"from_user_id"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	Lang       string `json:"lang,omitempty"`
	Text       string `json:"text"`
	SentAt     int64  `json:"sent_at"`
}

// SpeechChunk is the KV representation of one utterance. Chunks are keyed
// by their UnixNano timestamp so lexicographic key order is arrival order.
type SpeechChunk struct {
	FromUserId string `json:"from_user_id"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	Lang       string `json:"lang,omitempty"`
	Text       string `json:"text"`
}

func (s *NatsService) speechOutputSubject(roomId string) string {
	return fmt.Sprintf("%s.%s", s.app.NatsInfo.Subjects.SpeechOutput, roomId)
}

// BroadcastSpeechOutput publishes the event on the room's speech output
// subject. Delivery is best effort; the KV chunk store is the durable copy.
func (s *NatsService) BroadcastSpeechOutput(ev *SpeechOutputEvent) error {
	if ev.SentAt == 0 {
		ev.SentAt = time.Now().UnixMilli()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	return s.nc.Publish(s.speechOutputSubject(ev.RoomId), data)
}

// SubscribeSpeechOutput registers handler for the room's speech output
// events. Pass "*" as roomId to receive events for every room.
func (s *NatsService) SubscribeSpeechOutput(roomId string, handler func(ev *SpeechOutputEvent)) (*nats.Subscription, error) {
	return s.nc.Subscribe(s.speechOutputSubject(roomId), func(m *nats.Msg) {
		ev := new(SpeechOutputEvent)
		if err := json.Unmarshal(m.Data, ev); err != nil {
			s.logger.WithError(err).Errorln("received invalid speech output event")
			return
		}
		handler(ev)
	})
}

// AddSpeechChunk appends one utterance to the room's KV bucket.
func (s *NatsService) AddSpeechChunk(roomId, userId, name, role, lang, text string) error {
	kv, err := s.js.CreateOrUpdateKeyValue(s.ctx, jetstream.KeyValueConfig{
		Replicas: s.app.NatsInfo.NumReplicas,
		Bucket:   fmt.Sprintf(speechChunkBucket, roomId),
		TTL:      DefaultTTL,
	})
	if err != nil {
		return err
	}

	chunk := SpeechChunk{
		FromUserId: userId,
		Name:       name,
		Role:       role,
		Lang:       lang,
		Text:       text,
	}
	jsonData, err := json.Marshal(chunk)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("%d", time.Now().UnixNano())
	_, err = kv.Put(s.ctx, key, jsonData)
	return err
}

// GetSpeechChunks retrieves all utterances recorded for the room, keyed
// by their UnixNano arrival timestamp.
func (s *NatsService) GetSpeechChunks(roomId string) (map[string][]byte, error) {
	kv, err := s.getKV(fmt.Sprintf(speechChunkBucket, roomId))
	if err != nil || kv == nil {
		return nil, err
	}

	keys, err := kv.ListKeys(s.ctx)
	if err != nil {
		return nil, err
	}

	chunks := make(map[string][]byte)
	for k := range keys.Keys() {
		if entry, err := kv.Get(s.ctx, k); err == nil && entry != nil {
			chunks[k] = entry.Value()
		}
	}

	return chunks, nil
}

// DeleteSpeechChunkBucket deletes the room's entire utterance bucket.
func (s *NatsService) DeleteSpeechChunkBucket(roomId string) {
	_ = s.js.DeleteKeyValue(s.ctx, fmt.Sprintf(speechChunkBucket, roomId))
}
