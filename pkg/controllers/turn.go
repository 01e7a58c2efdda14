package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	turnservice "github.com/ajvoice/aj-server/pkg/services/turn"
)

type TurnController struct {
	turnService *turnservice.TurnService
	logger      *logrus.Entry
}

func NewTurnController(turnService *turnservice.TurnService, logger *logrus.Logger) *TurnController {
	return &TurnController{
		turnService: turnService,
		logger:      logger.WithField("controller", "turn"),
	}
}

// HandleGetCredentials hands out time-limited TURN credentials. Room and
// user ids come as query params so providers can scope or audit them.
func (tc *TurnController) HandleGetCredentials(c *fiber.Ctx) error {
	roomId := c.Query("room_id")
	userId := c.Query("user_id")

	creds, err := tc.turnService.GetCredentials(c.UserContext(), roomId, userId)
	if err != nil {
		return sendCommonResponse(c, false, err.Error())
	}
	if creds == nil {
		return sendCommonResponse(c, false, "turn server is not configured")
	}

	return c.JSON(fiber.Map{
		"status": true,
		"msg":    "success",
		"result": creds,
	})
}
