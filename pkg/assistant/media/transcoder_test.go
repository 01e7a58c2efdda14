package media

import (
	"io"
	"testing"
	"time"

	"github.com/livekit/media-sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleSink(t *testing.T) {
	t.Run("delivers to an active reader", func(t *testing.T) {
		s := newSampleSink()
		got := make(chan media.PCM16Sample, 1)
		go func() { got <- <-s.out }()

		// non-blocking writes drop until the reader is parked on the channel
		deadline := time.After(time.Second)
		for {
			require.NoError(t, s.WriteSample(media.PCM16Sample{1, 2, 3}))
			select {
			case sample := <-got:
				assert.Equal(t, media.PCM16Sample{1, 2, 3}, sample)
				return
			case <-deadline:
				t.Fatal("sample never reached the reader")
			default:
				time.Sleep(time.Millisecond)
			}
		}
	})

	t.Run("drops samples when nobody reads", func(t *testing.T) {
		s := newSampleSink()
		assert.NoError(t, s.WriteSample(media.PCM16Sample{1}))
		assert.NoError(t, s.WriteSample(media.PCM16Sample{2}))
	})

	t.Run("close ends the stream and rejects writes", func(t *testing.T) {
		s := newSampleSink()
		require.NoError(t, s.Close())
		require.NoError(t, s.Close())

		_, open := <-s.out
		assert.False(t, open)
		assert.ErrorIs(t, s.WriteSample(media.PCM16Sample{1}), io.EOF)
	})
}
