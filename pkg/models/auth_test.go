package models

import (
	"crypto/sha256"
	"encoding/base64"
	"io"
	"testing"
	"time"

	"github.com/livekit/protocol/auth"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajvoice/aj-server/pkg/config"
)

func testAuthModel() *AuthModel {
	validity := time.Minute * 10
	app := &config.AppConfig{
		Client: config.ClientInfo{
			ApiKey:        "AJTESTKEY",
			Secret:        "a-very-long-test-secret-value",
			TokenValidity: &validity,
		},
		LivekitInfo: config.LivekitInfo{
			ApiKey: "LKTESTKEY",
			Secret: "a-livekit-test-secret-value00",
		},
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewAuthModel(app, nil, logger)
}

// signWebhookBody signs a body the way the LiveKit server does before
// posting a webhook: a JWT whose claims carry the body's sha256.
func signWebhookBody(t *testing.T, body []byte, apiKey, secret string) string {
	t.Helper()
	sum := sha256.Sum256(body)
	token, err := auth.NewAccessToken(apiKey, secret).
		SetValidFor(time.Minute).
		SetSha256(base64.StdEncoding.EncodeToString(sum[:])).
		ToJWT()
	require.NoError(t, err)
	return token
}

func TestAuthTokenRoundTrip(t *testing.T) {
	m := testAuthModel()

	token, err := m.GenerateToken(&TokenClaims{
		Name:    "Tony",
		RoomId:  "workshop",
		UserId:  "tony-01",
		IsAdmin: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := m.VerifyToken(token, 0)
	require.NoError(t, err)
	assert.Equal(t, "Tony", claims.Name)
	assert.Equal(t, "workshop", claims.RoomId)
	assert.Equal(t, "tony-01", claims.UserId)
	assert.True(t, claims.IsAdmin)
}

func TestAuthTokenWrongSecret(t *testing.T) {
	m := testAuthModel()
	token, err := m.GenerateToken(&TokenClaims{RoomId: "workshop", UserId: "u1"})
	require.NoError(t, err)

	other := testAuthModel()
	other.app.Client.Secret = "a-different-secret-value-here"
	_, err = other.VerifyToken(token, 0)
	assert.Error(t, err)
}

func TestAuthTokenRequiresRoom(t *testing.T) {
	m := testAuthModel()
	token, err := m.GenerateToken(&TokenClaims{UserId: "u1"})
	require.NoError(t, err)

	_, err = m.VerifyToken(token, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no room")
}

func TestVerifyLivekitWebhookRequest(t *testing.T) {
	m := testAuthModel()
	body := []byte(`{"event":"room_finished","room":{"name":"workshop"}}`)

	t.Run("valid signature returns the body", func(t *testing.T) {
		token := signWebhookBody(t, body, "LKTESTKEY", "a-livekit-test-secret-value00")
		verified, err := m.VerifyLivekitWebhookRequest(body, token)
		require.NoError(t, err)
		assert.Equal(t, body, verified)
	})

	t.Run("tampered body is rejected", func(t *testing.T) {
		token := signWebhookBody(t, body, "LKTESTKEY", "a-livekit-test-secret-value00")
		tampered := []byte(`{"event":"room_finished","room":{"name":"another"}}`)
		_, err := m.VerifyLivekitWebhookRequest(tampered, token)
		assert.Error(t, err)
	})

	t.Run("token from another key pair is rejected", func(t *testing.T) {
		token := signWebhookBody(t, body, "OTHERKEY", "a-different-livekit-secret-00")
		_, err := m.VerifyLivekitWebhookRequest(body, token)
		assert.Error(t, err)
	})
}

func TestAuthTokenRenew(t *testing.T) {
	m := testAuthModel()
	token, err := m.GenerateToken(&TokenClaims{RoomId: "workshop", UserId: "u1"})
	require.NoError(t, err)

	renewed, err := m.RenewToken(token, time.Minute*5)
	require.NoError(t, err)
	require.NotEmpty(t, renewed)

	claims, err := m.VerifyToken(renewed, 0)
	require.NoError(t, err)
	assert.Equal(t, "workshop", claims.RoomId)
}
