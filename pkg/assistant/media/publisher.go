package media

import (
	"errors"
	"fmt"
	"sync"

	"github.com/livekit/media-sdk"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	lkmedia "github.com/livekit/server-sdk-go/v2/pkg/media"
)

// AudioPublisher wraps a local PCM track published into a room. It accepts
// raw little-endian PCM bytes via Write, so a provider's synthesized audio
// stream can be piped straight into the room with io.Copy.
type AudioPublisher struct {
	track     *lkmedia.PCMLocalTrack
	closeOnce sync.Once
}

// NewAudioPublisher creates and publishes a new local audio track to the
// room. sampleRate must match the PCM the caller intends to Write. A
// non-empty e2eeKey turns on GCM encryption with a key derived from it.
func NewAudioPublisher(room *lksdk.Room, trackName string, sampleRate int, numChannels int, e2eeKey *string) (*AudioPublisher, error) {
	var trackOpts []lkmedia.PCMLocalTrackOption
	pubOpts := &lksdk.TrackPublicationOptions{
		Name:   trackName,
		Source: livekit.TrackSource_MICROPHONE,
	}
	if e2eeKey != nil && *e2eeKey != "" {
		key, err := lksdk.DeriveKeyFromString(*e2eeKey)
		if err != nil {
			return nil, fmt.Errorf("failed to derive key for speech encryptor: %w", err)
		}
		// key id 0 per the GCM scheme
		encryptor, err := lkmedia.NewGCMEncryptor(key, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to create speech encryptor: %w", err)
		}
		trackOpts = append(trackOpts, lkmedia.WithEncryptor(encryptor))
		pubOpts.Encryption = livekit.Encryption_GCM
	}

	localTrack, err := lkmedia.NewPCMLocalTrack(sampleRate, numChannels, nil, trackOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create local PCM track: %w", err)
	}
	if _, err = room.LocalParticipant.PublishTrack(localTrack, pubOpts); err != nil {
		localTrack.Close()
		return nil, fmt.Errorf("failed to publish track: %w", err)
	}

	return &AudioPublisher{track: localTrack}, nil
}

// Write converts the raw PCM byte slice and writes it to the track.
func (p *AudioPublisher) Write(data []byte) (n int, err error) {
	samples := BytesToPCM16(data)
	if len(samples) == 0 {
		return len(data), nil
	}
	if err = p.track.WriteSample(media.PCM16Sample(samples)); err != nil {
		return 0, err
	}
	return len(data), nil
}

// WriteSample writes a PCM sample to the published track.
func (p *AudioPublisher) WriteSample(sample media.PCM16Sample) error {
	if p.track == nil {
		return errors.New("publisher is not initialized")
	}
	return p.track.WriteSample(sample)
}

// ClearQueue drops any audio that was written but not yet sent to the room.
// Used to cut the assistant off mid-sentence when the user interrupts.
func (p *AudioPublisher) ClearQueue() {
	if p.track != nil {
		p.track.ClearQueue()
	}
}

// Close unpublishes and closes the local track. Safe to call more than once.
func (p *AudioPublisher) Close() {
	p.closeOnce.Do(func() {
		if p.track != nil {
			_ = p.track.Close()
		}
	})
}
