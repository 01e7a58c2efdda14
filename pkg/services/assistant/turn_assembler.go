package assistantservice

import (
	"strings"
	"time"
)

// turnAssembler collects final transcription segments into one user turn.
// A turn completes when the recognizer signals end of turn or when the
// silence window elapses with no new segment. Not safe for concurrent use;
// the transcription loop owns it.
type turnAssembler struct {
	window   time.Duration
	timer    *time.Timer
	armed    bool
	segments []string
}

func newTurnAssembler(window time.Duration) *turnAssembler {
	timer := time.NewTimer(window)
	if !timer.Stop() {
		<-timer.C
	}
	return &turnAssembler{
		window: window,
		timer:  timer,
	}
}

// AddSegment feeds one final segment in. It returns the completed turn
// when the segment carried an end-of-turn signal, otherwise "" while the
// silence window restarts.
func (a *turnAssembler) AddSegment(text string, endOfTurn bool) string {
	if text = strings.TrimSpace(text); text != "" {
		a.segments = append(a.segments, text)
	}
	if endOfTurn {
		return a.Flush()
	}
	if len(a.segments) > 0 {
		a.arm()
	}
	return ""
}

// Flush completes the pending turn, returning "" when nothing accumulated.
func (a *turnAssembler) Flush() string {
	a.disarm()
	if len(a.segments) == 0 {
		return ""
	}
	turn := strings.Join(a.segments, " ")
	a.segments = nil
	return turn
}

// Silence fires when the window elapses after the last segment. Callers
// must respond with Flush.
func (a *turnAssembler) Silence() <-chan time.Time {
	return a.timer.C
}

func (a *turnAssembler) arm() {
	a.disarm()
	a.timer.Reset(a.window)
	a.armed = true
}

func (a *turnAssembler) disarm() {
	if !a.armed {
		return
	}
	if !a.timer.Stop() {
		select {
		case <-a.timer.C:
		default:
		}
	}
	a.armed = false
}
