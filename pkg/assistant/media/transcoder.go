package media

import (
	"context"
	"io"
	"sync"

	"github.com/livekit/media-sdk"
	lkmedia "github.com/livekit/server-sdk-go/v2/pkg/media"
	"github.com/pion/webrtc/v4"
)

const (
	// TargetSampleRate is what the STT providers expect.
	TargetSampleRate = 16000
)

// sampleSink bridges a PCMRemoteTrack into a channel. Writes never block
// the media pipeline: when the consumer lags, the sample is dropped. The
// mutex serializes sends against Close so the channel never sees a send
// after it is closed.
type sampleSink struct {
	mu     sync.Mutex
	out    chan media.PCM16Sample
	closed bool
}

func newSampleSink() *sampleSink {
	return &sampleSink{out: make(chan media.PCM16Sample)}
}

func (s *sampleSink) WriteSample(sample media.PCM16Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return io.EOF
	}
	select {
	case s.out <- sample:
	default:
	}
	return nil
}

// Close stops accepting samples and ends the stream for consumers. A
// ranged read on the output channel exits when Close runs.
func (s *sampleSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.out)
	}
	return nil
}

// Transcoder turns a remote Opus track into a channel of 16kHz mono PCM
// samples. The heavy lifting, decoding and resampling, happens inside
// lkmedia's PCMRemoteTrack; this type only shapes the output into a
// stream the speech pipeline can range over.
type Transcoder struct {
	sink     *sampleSink
	pcmTrack *lkmedia.PCMRemoteTrack
}

// NewTranscoder starts decoding the given track. When ctx ends the track
// and the output stream are torn down together. decryptor may be nil for
// rooms without end-to-end encryption.
func NewTranscoder(ctx context.Context, track *webrtc.TrackRemote, decryptor lkmedia.Decryptor) (*Transcoder, error) {
	sink := newSampleSink()

	opts := []lkmedia.PCMRemoteTrackOption{
		lkmedia.WithTargetSampleRate(TargetSampleRate),
	}
	if decryptor != nil {
		opts = append(opts, lkmedia.WithDecryptor(decryptor))
	}

	pcmTrack, err := lkmedia.NewPCMRemoteTrack(track, sink, opts...)
	if err != nil {
		_ = sink.Close()
		return nil, err
	}

	t := &Transcoder{sink: sink, pcmTrack: pcmTrack}
	go func() {
		<-ctx.Done()
		t.Close()
	}()
	return t, nil
}

// AudioStream returns the read-only channel of transcoded audio. It is
// closed once the transcoder shuts down.
func (t *Transcoder) AudioStream() <-chan media.PCM16Sample {
	return t.sink.out
}

// Close stops the track first so no more samples arrive, then ends the
// output stream.
func (t *Transcoder) Close() {
	t.pcmTrack.Close()
	_ = t.sink.Close()
}

// BytesToPCM16 reinterprets little-endian 16-bit PCM bytes as samples.
func BytesToPCM16(data []byte) []int16 {
	numSamples := len(data) / 2
	if numSamples == 0 {
		return nil
	}
	samples := make([]int16, numSamples)
	for i := 0; i < numSamples; i++ {
		samples[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return samples
}

// PCM16ToBytes is the inverse of BytesToPCM16.
func PCM16ToBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		data[i*2] = byte(s)
		data[i*2+1] = byte(s >> 8)
	}
	return data
}
