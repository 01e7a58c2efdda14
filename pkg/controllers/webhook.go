package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/livekit/protocol/livekit"
	"github.com/sirupsen/logrus"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/ajvoice/aj-server/pkg/models"
)

type WebhookController struct {
	authModel    *models.AuthModel
	webhookModel *models.WebhookModel
	logger       *logrus.Entry
}

func NewWebhookController(authModel *models.AuthModel, webhookModel *models.WebhookModel, logger *logrus.Logger) *WebhookController {
	return &WebhookController{
		authModel:    authModel,
		webhookModel: webhookModel,
		logger:       logger.WithField("controller", "webhook"),
	}
}

// HandleWebhook receives event callbacks from the LiveKit server. The
// request is signed with our LiveKit credentials, not the client API key.
func (wc *WebhookController) HandleWebhook(c *fiber.Ctx) error {
	token := c.Get("Authorization")
	if token == "" {
		return c.SendStatus(fiber.StatusForbidden)
	}

	data, err := wc.authModel.VerifyLivekitWebhookRequest(c.Body(), token)
	if err != nil {
		wc.logger.WithError(err).Warnln("rejected livekit webhook")
		return c.SendStatus(fiber.StatusForbidden)
	}

	op := protojson.UnmarshalOptions{DiscardUnknown: true}
	event := new(livekit.WebhookEvent)
	if err := op.Unmarshal(data, event); err != nil {
		return c.SendStatus(fiber.StatusForbidden)
	}

	go wc.webhookModel.HandleWebhookEvents(event)

	return c.SendStatus(fiber.StatusOK)
}
