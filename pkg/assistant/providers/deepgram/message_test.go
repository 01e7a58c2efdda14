package deepgram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseListenMessage(t *testing.T) {
	t.Run("interim result is partial", func(t *testing.T) {
		data := []byte(`{"type":"Results","is_final":false,"speech_final":false,"channel":{"alternatives":[{"transcript":"hello th","confidence":0.82}]}}`)
		res, err := parseListenMessage(data)
		require.NoError(t, err)
		require.NotNil(t, res)
		assert.Equal(t, "hello th", res.Text)
		assert.True(t, res.IsPartial)
		assert.False(t, res.IsEndOfTurn)
	})

	t.Run("final segment without endpoint keeps turn open", func(t *testing.T) {
		data := []byte(`{"type":"Results","is_final":true,"speech_final":false,"channel":{"alternatives":[{"transcript":"hello there,","confidence":0.97}]}}`)
		res, err := parseListenMessage(data)
		require.NoError(t, err)
		require.NotNil(t, res)
		assert.Equal(t, "hello there,", res.Text)
		assert.False(t, res.IsPartial)
		assert.False(t, res.IsEndOfTurn)
	})

	t.Run("speech_final ends the turn", func(t *testing.T) {
		data := []byte(`{"type":"Results","is_final":true,"speech_final":true,"channel":{"alternatives":[{"transcript":"how are you?","confidence":0.99}]}}`)
		res, err := parseListenMessage(data)
		require.NoError(t, err)
		require.NotNil(t, res)
		assert.Equal(t, "how are you?", res.Text)
		assert.False(t, res.IsPartial)
		assert.True(t, res.IsEndOfTurn)
	})

	t.Run("empty speech_final still signals end of turn", func(t *testing.T) {
		data := []byte(`{"type":"Results","is_final":true,"speech_final":true,"channel":{"alternatives":[{"transcript":"","confidence":0}]}}`)
		res, err := parseListenMessage(data)
		require.NoError(t, err)
		require.NotNil(t, res)
		assert.Empty(t, res.Text)
		assert.True(t, res.IsEndOfTurn)
	})

	t.Run("metadata frames are skipped", func(t *testing.T) {
		data := []byte(`{"type":"Metadata","request_id":"abc","duration":12.5}`)
		res, err := parseListenMessage(data)
		require.NoError(t, err)
		assert.Nil(t, res)
	})

	t.Run("empty interim frames are skipped", func(t *testing.T) {
		data := []byte(`{"type":"Results","is_final":false,"speech_final":false,"channel":{"alternatives":[{"transcript":"","confidence":0}]}}`)
		res, err := parseListenMessage(data)
		require.NoError(t, err)
		assert.Nil(t, res)
	})

	t.Run("invalid json returns error", func(t *testing.T) {
		res, err := parseListenMessage([]byte(`{not json`))
		assert.Error(t, err)
		assert.Nil(t, res)
	})
}

func TestListenURL(t *testing.T) {
	p := &Provider{
		apiKey:      "key",
		endpoint:    defaultEndpoint,
		model:       defaultModel,
		endpointing: defaultEndpointingMs,
		smartFormat: true,
	}

	u, err := listenURL(p, "en-US")
	require.NoError(t, err)
	assert.Contains(t, u, "wss://api.deepgram.com/v1/listen?")
	assert.Contains(t, u, "encoding=linear16")
	assert.Contains(t, u, "sample_rate=16000")
	assert.Contains(t, u, "channels=1")
	assert.Contains(t, u, "model=nova-2")
	assert.Contains(t, u, "interim_results=true")
	assert.Contains(t, u, "endpointing=800")
	assert.Contains(t, u, "language=en-US")

	t.Run("underscore language tags are normalized", func(t *testing.T) {
		u, err := listenURL(p, "pt_BR")
		require.NoError(t, err)
		assert.Contains(t, u, "language=pt-BR")
	})

	t.Run("invalid endpoint fails", func(t *testing.T) {
		bad := &Provider{endpoint: "://nope"}
		_, err := listenURL(bad, "")
		assert.Error(t, err)
	})
}
