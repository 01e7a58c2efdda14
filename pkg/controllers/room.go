package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/ajvoice/aj-server/pkg/models"
)

type RoomController struct {
	roomModel *models.RoomModel
	logger    *logrus.Entry
}

func NewRoomController(roomModel *models.RoomModel, logger *logrus.Logger) *RoomController {
	return &RoomController{
		roomModel: roomModel,
		logger:    logger.WithField("controller", "room"),
	}
}

func (rc *RoomController) HandleRoomCreate(c *fiber.Ctx) error {
	req := new(models.CreateRoomReq)
	if err := parseRequest(c.Body(), req); err != nil {
		return sendCommonResponse(c, false, err.Error())
	}
	if req.RoomId == "" {
		return sendCommonResponse(c, false, "room_id is required")
	}

	room, err := rc.roomModel.CreateRoom(req)
	if err != nil {
		return sendCommonResponse(c, false, err.Error())
	}

	return c.JSON(fiber.Map{
		"status": true,
		"msg":    "success",
		"result": room,
	})
}

func (rc *RoomController) HandleEndRoom(c *fiber.Ctx) error {
	req := new(models.EndRoomReq)
	if err := parseRequest(c.Body(), req); err != nil {
		return sendCommonResponse(c, false, err.Error())
	}
	if req.RoomId == "" {
		return sendCommonResponse(c, false, "room_id is required")
	}

	if err := rc.roomModel.EndRoom(req); err != nil {
		return sendCommonResponse(c, false, err.Error())
	}
	return sendCommonResponse(c, true, "success")
}

func (rc *RoomController) HandleRoomInfo(c *fiber.Ctx) error {
	req := new(models.RoomInfoReq)
	if err := parseRequest(c.Body(), req); err != nil {
		return sendCommonResponse(c, false, err.Error())
	}

	info, err := rc.roomModel.GetRoomInfo(req)
	if err != nil {
		return sendCommonResponse(c, false, err.Error())
	}

	return c.JSON(fiber.Map{
		"status": true,
		"msg":    "success",
		"result": info,
	})
}

func (rc *RoomController) HandleActiveRoomList(c *fiber.Ctx) error {
	rooms, err := rc.roomModel.GetActiveRoomsInfo()
	if err != nil {
		return sendCommonResponse(c, false, err.Error())
	}

	return c.JSON(fiber.Map{
		"status": true,
		"msg":    "success",
		"result": rooms,
	})
}
