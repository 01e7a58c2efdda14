package models

import (
	"errors"
	"os"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ajvoice/aj-server/pkg/config"
	"github.com/ajvoice/aj-server/pkg/dbmodels"
	"github.com/ajvoice/aj-server/pkg/helpers"
	dbservice "github.com/ajvoice/aj-server/pkg/services/db"
)

type ArtifactModel struct {
	app    *config.AppConfig
	ds     *dbservice.DatabaseService
	logger *logrus.Entry
}

func NewArtifactModel(app *config.AppConfig, ds *dbservice.DatabaseService, logger *logrus.Logger) *ArtifactModel {
	return &ArtifactModel{
		app:    app,
		ds:     ds,
		logger: logger.WithField("model", "artifact"),
	}
}

type ArtifactListReq struct {
	RoomId string `json:"room_id"`
	Type   string `json:"type"`
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
}

type ArtifactListRes struct {
	Total     int64                           `json:"total"`
	Artifacts []dbmodels.ConversationArtifact `json:"artifacts"`
}

type DeleteArtifactReq struct {
	ArtifactId string `json:"artifact_id"`
}

type DownloadTokenReq struct {
	ArtifactId string `json:"artifact_id"`
}

type DownloadTokenRes struct {
	Token      string `json:"token"`
	ValidUntil int64  `json:"valid_until"`
}

// CreateArtifact persists a conversation output. Payloads above
// config.MaxInlineArtifactSize go to a file under the artifacts store,
// smaller ones stay inline in the DB row.
func (m *ArtifactModel) CreateArtifact(roomId, sessionId, artifactType, payload string) (*dbmodels.ConversationArtifact, error) {
	if roomId == "" || artifactType == "" {
		return nil, errors.New("room_id and type are required")
	}

	artifact := &dbmodels.ConversationArtifact{
		ArtifactId: uuid.NewString(),
		RoomId:     roomId,
		SessionId:  sessionId,
		Type:       artifactType,
	}
	if info, err := m.ds.GetRoomInfoByRoomId(roomId, 0); err == nil && info != nil {
		artifact.RoomTableID = info.ID
	}

	if err := helpers.AttachArtifactPayload(*m.app.ArtifactSettings.FilesStorePath, artifact, payload); err != nil {
		return nil, err
	}

	if _, err := m.ds.InsertArtifact(artifact); err != nil {
		if artifact.FilePath != "" {
			_ = os.Remove(artifact.FilePath)
		}
		return nil, err
	}

	m.logger.WithFields(logrus.Fields{
		"roomId":     roomId,
		"type":       artifactType,
		"artifactId": artifact.ArtifactId,
	}).Infoln("artifact stored")

	return artifact, nil
}

func (m *ArtifactModel) ListArtifacts(r *ArtifactListReq) (*ArtifactListRes, error) {
	if r.RoomId == "" {
		return nil, errors.New("room_id is required")
	}
	artifacts, total, err := m.ds.GetArtifactsByRoomId(r.RoomId, r.Type, r.Offset, r.Limit)
	if err != nil {
		return nil, err
	}
	return &ArtifactListRes{Total: total, Artifacts: artifacts}, nil
}

// DeleteArtifact removes the DB row and, for file-backed artifacts, the
// file on disk.
func (m *ArtifactModel) DeleteArtifact(r *DeleteArtifactReq) error {
	artifact, err := m.ds.GetArtifactByArtifactId(r.ArtifactId)
	if err != nil {
		return err
	}
	if artifact == nil {
		return errors.New("artifact not found")
	}

	if _, err := m.ds.DeleteArtifact(r.ArtifactId); err != nil {
		return err
	}
	if artifact.FilePath != "" {
		if err := os.Remove(artifact.FilePath); err != nil && !os.IsNotExist(err) {
			m.logger.WithError(err).Warnln("could not remove artifact file:", artifact.FilePath)
		}
	}
	return nil
}

// GenerateDownloadToken returns a short-lived token for the public
// download route. The artifact id travels as the JWT subject.
func (m *ArtifactModel) GenerateDownloadToken(r *DownloadTokenReq) (*DownloadTokenRes, error) {
	artifact, err := m.ds.GetArtifactByArtifactId(r.ArtifactId)
	if err != nil {
		return nil, err
	}
	if artifact == nil {
		return nil, errors.New("artifact not found")
	}

	sig, err := jose.NewSigner(jose.SigningKey{
		Algorithm: jose.HS256,
		Key:       []byte(m.app.Client.Secret),
	}, (&jose.SignerOptions{}).WithType("JWT"))
	if err != nil {
		return nil, err
	}

	validUntil := time.Now().UTC().Add(*m.app.ArtifactSettings.TokenValidity)
	cl := jwt.Claims{
		Issuer:    m.app.Client.ApiKey,
		Subject:   artifact.ArtifactId,
		IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
		NotBefore: jwt.NewNumericDate(time.Now().UTC()),
		Expiry:    jwt.NewNumericDate(validUntil),
	}

	token, err := jwt.Signed(sig).Claims(cl).Serialize()
	if err != nil {
		return nil, err
	}

	return &DownloadTokenRes{Token: token, ValidUntil: validUntil.Unix()}, nil
}

// VerifyDownloadToken validates a download token and resolves its
// artifact row. File-backed artifacts carry their path in FilePath,
// inline ones serve Payload directly.
func (m *ArtifactModel) VerifyDownloadToken(token string) (*dbmodels.ConversationArtifact, error) {
	tok, err := jwt.ParseSigned(token, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, errors.New(config.VerificationFailed)
	}

	out := jwt.Claims{}
	if err = tok.Claims([]byte(m.app.Client.Secret), &out); err != nil {
		return nil, errors.New(config.VerificationFailed)
	}

	if err = out.Validate(jwt.Expected{Issuer: m.app.Client.ApiKey, Time: time.Now().UTC()}); err != nil {
		return nil, errors.New(config.VerificationFailed)
	}

	artifact, err := m.ds.GetArtifactByArtifactId(out.Subject)
	if err != nil {
		return nil, err
	}
	if artifact == nil {
		return nil, errors.New("artifact not found")
	}
	return artifact, nil
}
