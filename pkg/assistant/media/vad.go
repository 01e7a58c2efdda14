package media

import (
	"math"
	"time"
)

const (
	// fluxRatio is how much louder than the rolling baseline a frame must be
	// to count as the start of speech, and how much quieter to count as quiet.
	fluxRatio = 1.75

	// minSpeechRMS keeps near-silent ratio jumps (noise floor wobble) from
	// triggering speech detection. 16-bit full scale is 32767.
	minSpeechRMS = 500.0

	// preRollDuration of audio kept before speech is detected, so the first
	// syllable is not clipped off the utterance.
	preRollDuration = 300 * time.Millisecond

	// minUtteranceDuration drops clicks and coughs.
	minUtteranceDuration = 250 * time.Millisecond
)

// ringBuffer keeps the most recent PCM samples for pre-roll.
type ringBuffer struct {
	buffer []int16
	head   int
	filled bool
}

func newRingBuffer(size int) *ringBuffer {
	return &ringBuffer{buffer: make([]int16, size)}
}

func (r *ringBuffer) Add(samples []int16) {
	for _, s := range samples {
		r.buffer[r.head] = s
		r.head = (r.head + 1) % len(r.buffer)
		if r.head == 0 {
			r.filled = true
		}
	}
}

func (r *ringBuffer) Read() []int16 {
	if !r.filled {
		out := make([]int16, r.head)
		copy(out, r.buffer[:r.head])
		return out
	}
	out := make([]int16, len(r.buffer))
	for i := 0; i < len(r.buffer); i++ {
		out[i] = r.buffer[(r.head+i)%len(r.buffer)]
	}
	return out
}

func (r *ringBuffer) Clear() {
	r.head = 0
	r.filled = false
	for i := range r.buffer {
		r.buffer[i] = 0
	}
}

// UtteranceDetector segments a continuous PCM stream into spoken utterances
// using frame energy against a rolling baseline. Quiet time is measured in
// samples rather than wall clock so behavior does not depend on delivery
// timing.
type UtteranceDetector struct {
	sampleRate   int
	quietSamples int
	minSamples   int

	preRoll *ringBuffer
	current []int16

	heard      bool
	prerollLen int
	quietCount int
	lastFlux   float64
}

// NewUtteranceDetector creates a detector. quietWindow is how much silence
// ends an utterance.
func NewUtteranceDetector(sampleRate int, quietWindow time.Duration) *UtteranceDetector {
	if quietWindow <= 0 {
		quietWindow = 800 * time.Millisecond
	}
	return &UtteranceDetector{
		sampleRate:   sampleRate,
		quietSamples: int(float64(sampleRate) * quietWindow.Seconds()),
		minSamples:   int(float64(sampleRate) * minUtteranceDuration.Seconds()),
		preRoll:      newRingBuffer(int(float64(sampleRate) * preRollDuration.Seconds())),
	}
}

// Feed consumes one frame of samples and returns a completed utterance, or
// nil while one is still in progress (or nothing is being spoken).
func (d *UtteranceDetector) Feed(frame []int16) []int16 {
	if len(frame) == 0 {
		return nil
	}

	flux := rms(frame)

	if d.lastFlux == 0 {
		d.lastFlux = flux
		d.preRoll.Add(frame)
		return nil
	}

	if !d.heard {
		if flux >= d.lastFlux*fluxRatio && flux >= minSpeechRMS {
			d.heard = true
			d.quietCount = 0
			// Prepend buffered audio so the first words are not lost.
			pre := d.preRoll.Read()
			d.prerollLen = len(pre)
			d.current = append(d.current, pre...)
			d.current = append(d.current, frame...)
		} else {
			d.lastFlux = flux
			d.preRoll.Add(frame)
		}
		return nil
	}

	d.current = append(d.current, frame...)

	if flux*fluxRatio <= d.lastFlux || flux < minSpeechRMS {
		d.quietCount += len(frame)
		if d.quietCount >= d.quietSamples {
			return d.finish()
		}
	} else {
		d.quietCount = 0
		d.lastFlux = flux
	}

	return nil
}

// Speaking reports whether an utterance is currently in progress.
func (d *UtteranceDetector) Speaking() bool {
	return d.heard
}

// Flush force-closes and returns any in-progress utterance.
func (d *UtteranceDetector) Flush() []int16 {
	if !d.heard {
		return nil
	}
	return d.finish()
}

func (d *UtteranceDetector) finish() []int16 {
	utterance := d.current
	// Only the spoken part counts toward the minimum, not the pre-roll or
	// the trailing quiet window.
	speechLen := len(utterance) - d.prerollLen - d.quietCount

	d.current = nil
	d.heard = false
	d.prerollLen = 0
	d.quietCount = 0
	d.preRoll.Clear()

	if speechLen < d.minSamples {
		return nil
	}
	return utterance
}

func rms(frame []int16) float64 {
	var sum float64
	for _, s := range frame {
		f := float64(s)
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(frame)))
}
