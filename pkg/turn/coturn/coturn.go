package coturn

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/ajvoice/aj-server/pkg/config"
	"github.com/ajvoice/aj-server/pkg/turn"
)

const defaultTTL = 86400 // 24 hours

type CoturnProvider struct{}

func NewCoturnProvider() turn.Provider {
	return &CoturnProvider{}
}

// GetTURNServerCredentials generates time-limited credentials using the
// coturn REST API convention: username is "<expiry>:<user>", password is
// base64(HMAC-SHA1(shared_secret, username)).
func (p *CoturnProvider) GetTURNServerCredentials(ctx context.Context, c *config.TurnProvider, roomId, userId string) (*turn.Credentials, error) {
	secret := c.Credentials.APIKey
	if s, ok := c.Options["shared_secret"].(string); ok && s != "" {
		secret = s
	}
	if secret == "" {
		return nil, fmt.Errorf("coturn shared_secret is not configured")
	}

	uris, ok := c.Options["uris"].([]interface{})
	if !ok || len(uris) == 0 {
		return nil, fmt.Errorf("coturn uris are not configured")
	}

	ttl := defaultTTL
	if v, ok := c.Options["ttl"].(int); ok && v > 0 {
		ttl = v
	}

	user := userId
	if user == "" {
		user = roomId
	}
	expiry := time.Now().Add(time.Duration(ttl) * time.Second).Unix()
	username := fmt.Sprintf("%d:%s", expiry, user)

	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(username))
	password := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	strURIs := make([]string, len(uris))
	for i, v := range uris {
		strURIs[i], _ = v.(string)
	}

	return &turn.Credentials{
		Username: username,
		Password: password,
		URIs:     strURIs,
		TTL:      ttl,
	}, nil
}

// RevokeTURNServerCredentials is a no-op for coturn; the credentials carry
// their expiry in the username and cannot be recalled earlier.
func (p *CoturnProvider) RevokeTURNServerCredentials(ctx context.Context, c *config.TurnProvider, creds *turn.Credentials) error {
	return nil
}
