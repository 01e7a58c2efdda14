package models

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/ajvoice/aj-server/pkg/assistant"
	"github.com/ajvoice/aj-server/pkg/config"
	"github.com/ajvoice/aj-server/pkg/dbmodels"
	assistantservice "github.com/ajvoice/aj-server/pkg/services/assistant"
	redisservice "github.com/ajvoice/aj-server/pkg/services/redis"
)

type ConversationModel struct {
	app              *config.AppConfig
	rs               *redisservice.RedisService
	assistantService *assistantservice.AssistantService
	artifactModel    *ArtifactModel
	logger           *logrus.Entry
}

func NewConversationModel(app *config.AppConfig, rs *redisservice.RedisService, assistantService *assistantservice.AssistantService, artifactModel *ArtifactModel, logger *logrus.Logger) *ConversationModel {
	return &ConversationModel{
		app:              app,
		rs:               rs,
		assistantService: assistantService,
		artifactModel:    artifactModel,
		logger:           logger.WithField("model", "conversation"),
	}
}

type ConversationHistoryReq struct {
	RoomId string `json:"room_id"`
	Limit  int    `json:"limit"`
}

type ConversationHistoryRes struct {
	RoomId string                           `json:"room_id"`
	Turns  []*redisservice.ConversationTurn `json:"turns"`
}

type ConversationSummaryReq struct {
	RoomId string `json:"room_id"`
	// Store controls whether the summary is also kept as an artifact.
	// Defaults to true; the admin API can pass false for one-off reads.
	Store *bool `json:"store"`
}

type ConversationSummaryRes struct {
	RoomId     string `json:"room_id"`
	Summary    string `json:"summary"`
	ArtifactId string `json:"artifact_id,omitempty"`
}

type AssistantChatReq struct {
	RoomId string `json:"room_id"`
	UserId string `json:"user_id"`
	Text   string `json:"text"`
	Stream bool   `json:"stream"`
}

type AssistantChatRes struct {
	RoomId string `json:"room_id"`
	Reply  string `json:"reply"`
}

// GetHistory returns the most recent turns of the room's rolling
// conversation history.
func (m *ConversationModel) GetHistory(r *ConversationHistoryReq) (*ConversationHistoryRes, error) {
	if r.RoomId == "" {
		return nil, errors.New("room_id is required")
	}
	if r.Limit <= 0 {
		r.Limit = m.app.Assistant.Agent.HistoryWindow
	}

	turns, err := m.rs.GetRecentConversationTurns(r.RoomId, r.Limit)
	if err != nil {
		return nil, err
	}
	return &ConversationHistoryRes{RoomId: r.RoomId, Turns: turns}, nil
}

// Summarize asks the LLM for a summary of the stored conversation and,
// unless disabled, keeps it as a summary artifact.
func (m *ConversationModel) Summarize(ctx context.Context, r *ConversationSummaryReq) (*ConversationSummaryRes, error) {
	if r.RoomId == "" {
		return nil, errors.New("room_id is required")
	}

	summary, err := m.assistantService.SummarizeConversation(ctx, r.RoomId)
	if err != nil {
		return nil, err
	}

	res := &ConversationSummaryRes{RoomId: r.RoomId, Summary: summary}
	if r.Store == nil || *r.Store {
		artifact, err := m.artifactModel.CreateArtifact(r.RoomId, "", dbmodels.ArtifactTypeSummary, summary)
		if err != nil {
			// the summary itself is still worth returning
			m.logger.WithError(err).Errorln("could not store summary artifact for room:", r.RoomId)
		} else {
			res.ArtifactId = artifact.ArtifactId
		}
	}
	return res, nil
}

// Chat runs one server-side text exchange with the assistant.
func (m *ConversationModel) Chat(ctx context.Context, r *AssistantChatReq) (*AssistantChatRes, error) {
	if err := m.validateChatReq(r); err != nil {
		return nil, err
	}

	reply, err := m.assistantService.TextChat(ctx, r.RoomId, r.UserId, r.Text)
	if err != nil {
		return nil, err
	}
	return &AssistantChatRes{RoomId: r.RoomId, Reply: reply}, nil
}

// ChatStream is the streaming variant, forwarding chunks to out until
// the reply completes. The caller owns and closes the channel.
func (m *ConversationModel) ChatStream(ctx context.Context, r *AssistantChatReq, out chan<- *assistant.ChatStreamResult) error {
	if err := m.validateChatReq(r); err != nil {
		return err
	}
	return m.assistantService.TextChatStream(ctx, r.RoomId, r.UserId, r.Text, out)
}

func (m *ConversationModel) validateChatReq(r *AssistantChatReq) error {
	if !m.app.Assistant.Enabled {
		return errors.New(config.AssistantNotEnabled)
	}
	if r.RoomId == "" || r.Text == "" {
		return errors.New("room_id and text are required")
	}
	if r.UserId == "" {
		r.UserId = "admin"
	}
	return nil
}
