package assistantservice

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdleVoiceTask(t *testing.T) *VoiceSessionTask {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return &VoiceSessionTask{
		ctx:        ctx,
		cancel:     cancel,
		speakQueue: make(chan *speechJob, 16),
	}
}

func TestVoiceSessionInterrupt(t *testing.T) {
	t.Run("drops queued sentences and cancels in-flight speech", func(t *testing.T) {
		task := newIdleVoiceTask(t)
		task.enqueueSpeech(task.ctx, "First sentence here. Second sentence here. Third sentence here.")
		require.Equal(t, 3, len(task.speakQueue))

		// the job a speaker would currently be synthesizing
		inFlight := <-task.speakQueue
		require.NoError(t, inFlight.ctx.Err())

		task.Interrupt()

		assert.Zero(t, len(task.speakQueue))
		assert.ErrorIs(t, inFlight.ctx.Err(), context.Canceled)
	})

	t.Run("speech after an interruption runs under a fresh context", func(t *testing.T) {
		task := newIdleVoiceTask(t)
		task.enqueueSpeech(task.ctx, "You rang? How tiresome.")
		task.Interrupt()

		task.enqueueSpeech(task.ctx, "As you wish, sir. Another reply entirely.")
		require.Equal(t, 2, len(task.speakQueue))
		job := <-task.speakQueue
		assert.NoError(t, job.ctx.Err())
	})

	t.Run("interrupt with nothing queued is a no-op", func(t *testing.T) {
		task := newIdleVoiceTask(t)
		task.Interrupt()
		task.Interrupt()
		assert.Zero(t, len(task.speakQueue))
	})

	t.Run("queued jobs share one cancellable context", func(t *testing.T) {
		task := newIdleVoiceTask(t)
		task.enqueueSpeech(task.ctx, "One whole sentence. And then another whole one.")
		first := <-task.speakQueue
		second := <-task.speakQueue
		assert.Same(t, first.ctx, second.ctx)
	})
}
