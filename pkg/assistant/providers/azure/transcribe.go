package azure

import (
	"context"
	"fmt"

	"github.com/Microsoft/cognitive-services-speech-sdk-go/audio"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/speech"
	"github.com/ajvoice/aj-server/pkg/assistant"
	"github.com/ajvoice/aj-server/pkg/config"
	"github.com/sirupsen/logrus"
)

// transcribeClient holds the actual Azure SDK configuration and objects.
type transcribeClient struct {
	config *speech.SpeechConfig
	log    *logrus.Entry
}

// newTranscribeClient creates a new client.
func newTranscribeClient(creds config.CredentialsConfig, log *logrus.Entry) (*transcribeClient, error) {
	if creds.APIKey == "" || creds.Region == "" {
		return nil, fmt.Errorf("azure provider requires api_key (subscription key) and region")
	}

	cnf, err := speech.NewSpeechConfigFromSubscription(creds.APIKey, creds.Region)
	if err != nil {
		return nil, err
	}

	return &transcribeClient{
		config: cnf,
		log:    log,
	}, nil
}

// CreateTranscription opens a push-stream recognizer and adapts its event
// callbacks onto the results channel. Recognizing events surface as partial
// results, Recognized events fire after Azure's own endpoint detection and
// therefore mark the end of a turn.
func (c *transcribeClient) CreateTranscription(ctx context.Context, roomId, userId, spokenLang string) (assistant.TranscriptionStream, error) {
	log := c.log.WithFields(logrus.Fields{
		"method": "CreateTranscription",
		"roomId": roomId,
		"userId": userId,
	})
	log.Infoln("starting transcription")

	if spokenLang == "" {
		spokenLang = "en-US"
	}
	// The language has to be set before the recognizer is created, it is
	// read once at construction time.
	if err := c.config.SetSpeechRecognitionLanguage(spokenLang); err != nil {
		return nil, err
	}

	audioFormat, err := audio.GetWaveFormatPCM(16000, 16, 1)
	if err != nil {
		return nil, fmt.Errorf("could not create audio format: %v", err)
	}

	inputStream, err := audio.CreatePushAudioInputStreamFromFormat(audioFormat)
	if err != nil {
		return nil, fmt.Errorf("could not create audio config from custom inputStream: %v", err)
	}

	audioConfig, err := audio.NewAudioConfigFromStreamInput(inputStream)
	if err != nil {
		return nil, err
	}

	recognizer, err := speech.NewSpeechRecognizerFromConfig(c.config, audioConfig)
	if err != nil {
		return nil, err
	}

	stream := &azureTranscribeStream{
		pushStream: inputStream,
		recognizer: recognizer,
		results:    make(chan *assistant.TranscriptionResult, 16),
	}

	recognizer.SessionStarted(func(e speech.SessionEventArgs) {
		log.Infoln("azure transcription started")
	})
	recognizer.SessionStopped(func(e speech.SessionEventArgs) {
		stream.closeResults()
		log.Infoln("azure transcription stopped")
	})

	recognizer.Recognizing(func(e speech.SpeechRecognitionEventArgs) {
		stream.emit(&assistant.TranscriptionResult{
			Text:      e.Result.Text,
			IsPartial: true,
		})
	})

	recognizer.Recognized(func(e speech.SpeechRecognitionEventArgs) {
		if e.Result.Text == "" {
			return
		}
		stream.emit(&assistant.TranscriptionResult{
			Text:        e.Result.Text,
			IsEndOfTurn: true,
		})
	})

	recognizer.Canceled(func(e speech.SpeechRecognitionCanceledEventArgs) {
		log.Infof("azure transcription canceled: %v", e.ErrorDetails)
		stream.closeResults()
	})

	go func() {
		// StartContinuousRecognitionAsync returns a channel that provides the
		// result of the async operation. We must wait for and check the error
		// from this channel.
		err := <-recognizer.StartContinuousRecognitionAsync()
		if err != nil {
			log.WithError(err).Errorln("error starting azure recognition")
			stream.closeResults()
		}
	}()

	go func() {
		<-ctx.Done()
		recognizer.StopContinuousRecognitionAsync()
	}()

	return stream, nil
}
