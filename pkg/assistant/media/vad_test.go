package media

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const testSampleRate = 16000

// tone produces a frame of the given duration filled with a sine wave at the
// requested amplitude.
func tone(dur time.Duration, amplitude float64) []int16 {
	n := int(float64(testSampleRate) * dur.Seconds())
	frame := make([]int16, n)
	for i := range frame {
		frame[i] = int16(amplitude * math.Sin(2*math.Pi*440*float64(i)/float64(testSampleRate)))
	}
	return frame
}

func silence(dur time.Duration) []int16 {
	n := int(float64(testSampleRate) * dur.Seconds())
	return make([]int16, n)
}

func feedAll(d *UtteranceDetector, samples []int16, frameSize int) []int16 {
	for i := 0; i < len(samples); i += frameSize {
		end := i + frameSize
		if end > len(samples) {
			end = len(samples)
		}
		if out := d.Feed(samples[i:end]); out != nil {
			return out
		}
	}
	return nil
}

func TestUtteranceDetector(t *testing.T) {
	t.Run("speech_then_silence_completes_utterance", func(t *testing.T) {
		d := NewUtteranceDetector(testSampleRate, 500*time.Millisecond)

		// establish the noise floor first
		assert.Nil(t, feedAll(d, tone(200*time.Millisecond, 50), 320))
		assert.False(t, d.Speaking())

		utterance := feedAll(d, tone(600*time.Millisecond, 8000), 320)
		assert.Nil(t, utterance)
		assert.True(t, d.Speaking())

		utterance = feedAll(d, silence(700*time.Millisecond), 320)
		assert.NotNil(t, utterance)
		assert.False(t, d.Speaking())

		// the utterance should contain roughly the speech plus the quiet window
		assert.GreaterOrEqual(t, len(utterance), d.minSamples)
	})

	t.Run("quiet_audio_never_triggers", func(t *testing.T) {
		d := NewUtteranceDetector(testSampleRate, 500*time.Millisecond)

		out := feedAll(d, tone(2*time.Second, 60), 320)
		assert.Nil(t, out)
		assert.False(t, d.Speaking())
	})

	t.Run("short_blip_is_dropped", func(t *testing.T) {
		d := NewUtteranceDetector(testSampleRate, 200*time.Millisecond)

		assert.Nil(t, feedAll(d, tone(200*time.Millisecond, 50), 320))
		// 100ms of loud audio is below the minimum utterance length
		assert.Nil(t, feedAll(d, tone(100*time.Millisecond, 8000), 320))
		out := feedAll(d, silence(400*time.Millisecond), 320)
		assert.Nil(t, out)
		assert.False(t, d.Speaking())
	})

	t.Run("flush_returns_in_progress_utterance", func(t *testing.T) {
		d := NewUtteranceDetector(testSampleRate, time.Second)

		assert.Nil(t, feedAll(d, tone(200*time.Millisecond, 50), 320))
		assert.Nil(t, feedAll(d, tone(600*time.Millisecond, 8000), 320))
		assert.True(t, d.Speaking())

		out := d.Flush()
		assert.NotNil(t, out)
		assert.False(t, d.Speaking())
		assert.Nil(t, d.Flush())
	})
}

func TestRingBufferPreRoll(t *testing.T) {
	rb := newRingBuffer(4)
	rb.Add([]int16{1, 2})
	assert.Equal(t, []int16{1, 2}, rb.Read())

	rb.Add([]int16{3, 4, 5})
	assert.Equal(t, []int16{2, 3, 4, 5}, rb.Read())

	rb.Clear()
	assert.Empty(t, rb.Read())
}

func TestPCMByteConversion(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768}
	data := PCM16ToBytes(samples)
	assert.Len(t, data, len(samples)*2)
	assert.Equal(t, samples, BytesToPCM16(data))

	// odd trailing byte is ignored
	assert.Equal(t, []int16{256}, BytesToPCM16([]byte{0x00, 0x01, 0xff}))
	assert.Nil(t, BytesToPCM16([]byte{0x7f}))
}

func TestEncodeWAV(t *testing.T) {
	samples := []int16{100, -100, 200, -200}
	wav := EncodeWAV(samples, 16000, 1)

	assert.Len(t, wav, 44+len(samples)*2)
	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, "fmt ", string(wav[12:16]))
	assert.Equal(t, "data", string(wav[36:40]))

	// sample rate little-endian at offset 24
	rate := uint32(wav[24]) | uint32(wav[25])<<8 | uint32(wav[26])<<16 | uint32(wav[27])<<24
	assert.Equal(t, uint32(16000), rate)

	// data size at offset 40
	dataSize := uint32(wav[40]) | uint32(wav[41])<<8 | uint32(wav[42])<<16 | uint32(wav[43])<<24
	assert.Equal(t, uint32(len(samples)*2), dataSize)
}
