package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/ajvoice/aj-server/pkg/models"
)

type AgentController struct {
	agentModel *models.AgentModel
	logger     *logrus.Entry
}

func NewAgentController(agentModel *models.AgentModel, logger *logrus.Logger) *AgentController {
	return &AgentController{
		agentModel: agentModel,
		logger:     logger.WithField("controller", "agent"),
	}
}

func (ac *AgentController) HandleAgentStart(c *fiber.Ctx) error {
	req := new(models.StartAgentReq)
	if err := parseRequest(c.Body(), req); err != nil {
		return sendCommonResponse(c, false, err.Error())
	}

	if err := ac.agentModel.StartAgent(req); err != nil {
		return sendCommonResponse(c, false, err.Error())
	}
	return sendCommonResponse(c, true, "agent start requested")
}

func (ac *AgentController) HandleAgentEnd(c *fiber.Ctx) error {
	req := new(models.EndAgentReq)
	if err := parseRequest(c.Body(), req); err != nil {
		return sendCommonResponse(c, false, err.Error())
	}

	if err := ac.agentModel.EndAgent(req); err != nil {
		return sendCommonResponse(c, false, err.Error())
	}
	return sendCommonResponse(c, true, "agent end requested")
}

func (ac *AgentController) HandleAgentStatus(c *fiber.Ctx) error {
	req := new(models.AgentStatusReq)
	if err := parseRequest(c.Body(), req); err != nil {
		return sendCommonResponse(c, false, err.Error())
	}

	states, err := ac.agentModel.AgentStatus(req)
	if err != nil {
		return sendCommonResponse(c, false, err.Error())
	}

	return c.JSON(fiber.Map{
		"status": true,
		"msg":    "success",
		"result": states,
	})
}

// HandleAgentSessions lists recorded sessions with their usage counters.
func (ac *AgentController) HandleAgentSessions(c *fiber.Ctx) error {
	req := new(models.AgentSessionsReq)
	if err := parseRequest(c.Body(), req); err != nil {
		return sendCommonResponse(c, false, err.Error())
	}

	res, err := ac.agentModel.AgentSessions(req)
	if err != nil {
		return sendCommonResponse(c, false, err.Error())
	}

	return c.JSON(fiber.Map{
		"status": true,
		"msg":    "success",
		"result": res,
	})
}

// HandleAgentStatusForAPI answers the client surface; the room comes
// from the verified token, not the request.
func (ac *AgentController) HandleAgentStatusForAPI(c *fiber.Ctx) error {
	roomId := c.Locals("roomId").(string)

	states, err := ac.agentModel.AgentStatus(&models.AgentStatusReq{RoomId: roomId})
	if err != nil {
		return sendCommonResponse(c, false, err.Error())
	}

	return c.JSON(fiber.Map{
		"status": true,
		"msg":    "success",
		"result": states,
	})
}
