package models

import (
	"errors"
	"strconv"
	"time"

	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	"github.com/sirupsen/logrus"

	"github.com/ajvoice/aj-server/pkg/config"
	dbservice "github.com/ajvoice/aj-server/pkg/services/db"
	livekitservice "github.com/ajvoice/aj-server/pkg/services/livekit"
)

type AuthTokenModel struct {
	app       *config.AppConfig
	ds        *dbservice.DatabaseService
	lk        *livekitservice.LivekitService
	authModel *AuthModel
	logger    *logrus.Entry
}

func NewAuthTokenModel(app *config.AppConfig, ds *dbservice.DatabaseService, lk *livekitservice.LivekitService, authModel *AuthModel, logger *logrus.Logger) *AuthTokenModel {
	return &AuthTokenModel{
		app:       app,
		ds:        ds,
		lk:        lk,
		authModel: authModel,
		logger:    logger.WithField("model", "authToken"),
	}
}

// GenerateTokenReq is the admin request to admit a participant.
type GenerateTokenReq struct {
	RoomId   string `json:"room_id"`
	UserId   string `json:"user_id"`
	Name     string `json:"name"`
	IsAdmin  bool   `json:"is_admin"`
	IsHidden bool   `json:"is_hidden"`
}

// GenerateTokenRes carries both tokens a client needs: the LiveKit token to
// join the room and this server's token for the /api surface.
type GenerateTokenRes struct {
	Token        string `json:"token"`
	LivekitToken string `json:"livekit_token"`
}

// GenerateJoinTokens validates the room and issues the token pair.
func (m *AuthTokenModel) GenerateJoinTokens(req *GenerateTokenReq) (*GenerateTokenRes, error) {
	if req.RoomId == "" || req.UserId == "" {
		return nil, errors.New("room_id and user_id are required")
	}
	if req.Name == "" {
		req.Name = req.UserId
	}

	roomInfo, err := m.ds.GetRoomInfoByRoomId(req.RoomId, 1)
	if err != nil {
		return nil, err
	}
	if roomInfo == nil {
		return nil, errors.New(config.RoomNotActive)
	}

	// a second join with the same identity would kick the first connection
	// off the LiveKit room
	if p, err := m.lk.LoadParticipantInfo(req.RoomId, req.UserId); err == nil && p != nil && p.State == livekit.ParticipantInfo_ACTIVE {
		return nil, errors.New("a participant with this user_id is already connected")
	}

	claims := &TokenClaims{
		Name:     req.Name,
		RoomId:   req.RoomId,
		UserId:   req.UserId,
		IsAdmin:  req.IsAdmin,
		IsHidden: req.IsHidden,
	}

	token, err := m.authModel.GenerateToken(claims)
	if err != nil {
		return nil, err
	}

	lkToken, err := m.GenerateLivekitToken(claims)
	if err != nil {
		return nil, err
	}

	return &GenerateTokenRes{
		Token:        token,
		LivekitToken: lkToken,
	}, nil
}

// GenerateLivekitToken issues the room join token against the LiveKit
// server. The admin flag travels in the participant attributes so room
// agents can tell moderators apart.
func (m *AuthTokenModel) GenerateLivekitToken(c *TokenClaims) (string, error) {
	at := auth.NewAccessToken(m.app.LivekitInfo.ApiKey, m.app.LivekitInfo.Secret)
	grant := &auth.VideoGrant{
		RoomJoin:  true,
		Room:      c.RoomId,
		RoomAdmin: c.IsAdmin,
		Hidden:    c.IsHidden,
	}

	at.SetVideoGrant(grant).
		SetIdentity(c.UserId).
		SetName(c.Name).
		SetAttributes(map[string]string{
			"is_admin": strconv.FormatBool(c.IsAdmin),
		}).
		SetValidFor(*m.app.Client.TokenValidity)

	return at.ToJWT()
}

// RenewTokens re-issues both tokens for a still-valid session.
func (m *AuthTokenModel) RenewTokens(token string) (*GenerateTokenRes, error) {
	claims, err := m.authModel.VerifyToken(token, time.Minute*5)
	if err != nil {
		return nil, err
	}

	newToken, err := m.authModel.GenerateToken(claims)
	if err != nil {
		return nil, err
	}
	lkToken, err := m.GenerateLivekitToken(claims)
	if err != nil {
		return nil, err
	}

	return &GenerateTokenRes{
		Token:        newToken,
		LivekitToken: lkToken,
	}, nil
}
