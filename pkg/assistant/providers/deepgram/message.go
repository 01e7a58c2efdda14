package deepgram

import (
	"github.com/ajvoice/aj-server/pkg/assistant"
	"github.com/goccy/go-json"
)

// listenMessage is the subset of Deepgram's live response we care about.
type listenMessage struct {
	Type        string `json:"type"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`
	Channel     struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// parseListenMessage maps one websocket text frame to a transcription
// result. Frames that carry no transcript (metadata, empty interim results)
// map to nil.
//
// Deepgram distinguishes two levels of finality: is_final means this
// segment's text will not change anymore, speech_final means the speaker
// also stopped, so only speech_final ends the turn.
func parseListenMessage(data []byte) (*assistant.TranscriptionResult, error) {
	var msg listenMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type != "Results" {
		return nil, nil
	}
	if len(msg.Channel.Alternatives) == 0 {
		return nil, nil
	}

	transcript := msg.Channel.Alternatives[0].Transcript
	if transcript == "" && !msg.SpeechFinal {
		return nil, nil
	}

	return &assistant.TranscriptionResult{
		Text:        transcript,
		IsPartial:   !msg.IsFinal,
		IsEndOfTurn: msg.SpeechFinal,
	}, nil
}
