package azure

import (
	"io"
	"sync"

	"github.com/Microsoft/cognitive-services-speech-sdk-go/audio"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/speech"
	"github.com/ajvoice/aj-server/pkg/assistant"
)

// azureTranscribeStream adapts the Azure-specific PushAudioInputStream and
// recognizer onto the TranscriptionStream interface.
type azureTranscribeStream struct {
	pushStream *audio.PushAudioInputStream
	recognizer *speech.SpeechRecognizer
	results    chan *assistant.TranscriptionResult

	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool
}

// Write implements the io.Writer interface by calling the underlying push
// stream's Write method.
func (s *azureTranscribeStream) Write(p []byte) (n int, err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, assistant.ErrStreamClosed
	}
	s.mu.Unlock()

	if err = s.pushStream.Write(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close stops the recognizer, which triggers SessionStopped and drains the
// results channel, then closes the underlying audio stream.
func (s *azureTranscribeStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := <-s.recognizer.StopContinuousRecognitionAsync()
	s.pushStream.Close()
	s.closeResults()
	return err
}

// SetProperty passes provider-specific properties through to the push stream.
func (s *azureTranscribeStream) SetProperty(key string, value string) error {
	return s.pushStream.SetPropertyByName(key, value)
}

func (s *azureTranscribeStream) Results() <-chan *assistant.TranscriptionResult {
	return s.results
}

// emit drops results instead of blocking the SDK callback thread when the
// consumer is behind.
func (s *azureTranscribeStream) emit(result *assistant.TranscriptionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.results <- result:
	default:
	}
}

// closeResults may be reached from SessionStopped, Canceled and Close, it
// must only run once.
func (s *azureTranscribeStream) closeResults() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.results)
	})
}

// azureTTSStream wraps the SDK's AudioDataStream together with the synthesis
// outcome so both are released when the consumer is done reading.
type azureTTSStream struct {
	stream  *speech.AudioDataStream
	outcome *speech.SpeechSynthesisOutcome
}

// Read implements io.Reader. The SDK signals exhaustion with a zero-length
// read, which we translate to io.EOF.
func (s *azureTTSStream) Read(p []byte) (int, error) {
	n, err := s.stream.Read(p)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Close releases the audio stream and the synthesis outcome.
func (s *azureTTSStream) Close() error {
	s.stream.Close()
	s.outcome.Close()
	return nil
}
