package models

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/webhook"
	"github.com/sirupsen/logrus"

	"github.com/ajvoice/aj-server/pkg/config"
	natsservice "github.com/ajvoice/aj-server/pkg/services/nats"
)

// TokenClaims are the private claims carried by every client token this
// server issues. The subject is the user id.
type TokenClaims struct {
	Name    string `json:"name"`
	RoomId  string `json:"room_id"`
	UserId  string `json:"user_id"`
	IsAdmin bool   `json:"is_admin"`
	IsHidden bool   `json:"is_hidden,omitempty"`
}

type AuthModel struct {
	app         *config.AppConfig
	natsService *natsservice.NatsService
	logger      *logrus.Entry
}

func NewAuthModel(app *config.AppConfig, natsService *natsservice.NatsService, logger *logrus.Logger) *AuthModel {
	return &AuthModel{
		app:         app,
		natsService: natsService,
		logger:      logger.WithField("model", "auth"),
	}
}

// GenerateToken signs the claims with the server's client secret. Valid for
// the configured token validity.
func (m *AuthModel) GenerateToken(c *TokenClaims) (string, error) {
	sig, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: []byte(m.app.Client.Secret)},
		(&jose.SignerOptions{}).WithType("JWT"))
	if err != nil {
		return "", err
	}

	cl := jwt.Claims{
		Issuer:    m.app.Client.ApiKey,
		NotBefore: jwt.NewNumericDate(time.Now().UTC()),
		Expiry:    jwt.NewNumericDate(time.Now().UTC().Add(*m.app.Client.TokenValidity)),
		Subject:   c.UserId,
	}
	return jwt.Signed(sig).Claims(cl).Claims(c).Serialize()
}

// VerifyToken validates the signature and expiry and returns the claims.
// gracefulPeriod extends the accepted expiry, used by token renewal.
func (m *AuthModel) VerifyToken(token string, gracefulPeriod time.Duration) (*TokenClaims, error) {
	tk, err := jwt.ParseSigned(token, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, err
	}

	out := jwt.Claims{}
	claims := new(TokenClaims)
	if err = tk.Claims([]byte(m.app.Client.Secret), &out, claims); err != nil {
		return nil, err
	}

	if err = out.ValidateWithLeeway(jwt.Expected{
		Issuer: m.app.Client.ApiKey,
		Time:   time.Now().UTC(),
	}, gracefulPeriod); err != nil {
		return nil, err
	}

	if claims.UserId == "" {
		claims.UserId = out.Subject
	}
	if claims.RoomId == "" {
		return nil, errors.New("token carries no room")
	}
	return claims, nil
}

// RenewToken re-issues a token for claims that are still valid within the
// graceful period.
func (m *AuthModel) RenewToken(token string, gracefulPeriod time.Duration) (string, error) {
	claims, err := m.VerifyToken(token, gracefulPeriod)
	if err != nil {
		return "", err
	}
	return m.GenerateToken(claims)
}

// VerifyLivekitWebhookRequest checks the Authorization token LiveKit sends
// with webhook requests against our LiveKit credentials and returns the
// verified body. The token is a JWT signed with the LiveKit secret whose
// claims carry the body's sha256.
func (m *AuthModel) VerifyLivekitWebhookRequest(body []byte, token string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodPost, "/webhook/livekit", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", token)

	provider := auth.NewSimpleKeyProvider(m.app.LivekitInfo.ApiKey, m.app.LivekitInfo.Secret)
	return webhook.Receive(req, provider)
}
