package deepgram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ajvoice/aj-server/pkg/assistant"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// keepAliveInterval keeps the websocket open during long silences, Deepgram
// drops connections that stay quiet for more than ~10 seconds.
const keepAliveInterval = 5 * time.Second

// liveStream adapts Deepgram's listen websocket onto the
// TranscriptionStream interface. Audio goes out as binary frames, results
// come back as JSON text frames.
type liveStream struct {
	conn    *websocket.Conn
	results chan *assistant.TranscriptionResult
	logger  *logrus.Entry

	writeMu   sync.Mutex
	closed    bool
	closeOnce sync.Once
	done      chan struct{}
}

func newLiveStream(ctx context.Context, p *Provider, spokenLang string, log *logrus.Entry) (*liveStream, error) {
	u, err := listenURL(p, spokenLang)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Authorization", "Token "+p.apiKey)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("deepgram dial failed with status %s: %w", resp.Status, err)
		}
		return nil, fmt.Errorf("deepgram dial failed: %w", err)
	}

	s := &liveStream{
		conn:    conn,
		results: make(chan *assistant.TranscriptionResult, 16),
		logger:  log,
		done:    make(chan struct{}),
	}

	go s.readLoop()
	go s.keepAliveLoop()
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()

	return s, nil
}

// listenURL builds the /v1/listen query for 16kHz mono linear PCM.
func listenURL(p *Provider, spokenLang string) (string, error) {
	base, err := url.Parse(p.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid deepgram endpoint: %w", err)
	}
	base.Path = "/v1/listen"

	q := url.Values{}
	q.Set("encoding", "linear16")
	q.Set("sample_rate", "16000")
	q.Set("channels", "1")
	q.Set("model", p.model)
	q.Set("interim_results", "true")
	q.Set("endpointing", strconv.Itoa(p.endpointing))
	q.Set("smart_format", strconv.FormatBool(p.smartFormat))
	if spokenLang != "" {
		q.Set("language", normalizeLang(spokenLang))
	}
	base.RawQuery = q.Encode()

	return base.String(), nil
}

// Write sends one chunk of PCM as a binary frame.
func (s *liveStream) Write(p []byte) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return 0, assistant.ErrStreamClosed
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// SetProperty is accepted for interface compatibility. Deepgram fixes its
// options at dial time, so changes are ignored.
func (s *liveStream) SetProperty(key, value string) error {
	s.logger.WithField(key, value).Debugln("ignoring property change on live deepgram stream")
	return nil
}

func (s *liveStream) Results() <-chan *assistant.TranscriptionResult {
	return s.results
}

// Close tells Deepgram to flush any buffered audio and tears the connection
// down once the final results arrived.
func (s *liveStream) Close() error {
	s.writeMu.Lock()
	if !s.closed {
		s.closed = true
		// CloseStream makes the server transcribe whatever is buffered and
		// then close from its side, which ends the read loop cleanly.
		_ = s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
	}
	s.writeMu.Unlock()

	select {
	case <-s.done:
	case <-time.After(3 * time.Second):
	}
	s.shutdown()
	return nil
}

func (s *liveStream) shutdown() {
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		s.closed = true
		s.writeMu.Unlock()
		_ = s.conn.Close()
		close(s.results)
	})
}

func (s *liveStream) readLoop() {
	defer close(s.done)
	defer s.shutdown()

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.WithError(err).Debugln("deepgram read loop ended")
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		result, err := parseListenMessage(data)
		if err != nil {
			s.logger.WithError(err).Warnln("failed to parse deepgram message")
			continue
		}
		if result == nil {
			continue
		}
		select {
		case s.results <- result:
		default:
			s.logger.Warnln("transcription consumer is behind, dropping result")
		}
	}
}

func (s *liveStream) keepAliveLoop() {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			if s.closed {
				s.writeMu.Unlock()
				return
			}
			err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"KeepAlive"}`))
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// normalizeLang trims region variants Deepgram does not know, en-US stays
// while pt_BR becomes pt-BR.
func normalizeLang(lang string) string {
	return strings.ReplaceAll(lang, "_", "-")
}
