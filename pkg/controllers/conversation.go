package controllers

import (
	"bufio"
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"

	"github.com/ajvoice/aj-server/pkg/assistant"
	"github.com/ajvoice/aj-server/pkg/models"
)

const chatStreamTimeout = 2 * time.Minute

type ConversationController struct {
	conversationModel *models.ConversationModel
	logger            *logrus.Entry
}

func NewConversationController(conversationModel *models.ConversationModel, logger *logrus.Logger) *ConversationController {
	return &ConversationController{
		conversationModel: conversationModel,
		logger:            logger.WithField("controller", "conversation"),
	}
}

func (cc *ConversationController) HandleConversationHistory(c *fiber.Ctx) error {
	req := new(models.ConversationHistoryReq)
	if err := parseRequest(c.Body(), req); err != nil {
		return sendCommonResponse(c, false, err.Error())
	}

	res, err := cc.conversationModel.GetHistory(req)
	if err != nil {
		return sendCommonResponse(c, false, err.Error())
	}

	return c.JSON(fiber.Map{
		"status": true,
		"msg":    "success",
		"result": res,
	})
}

// HandleConversationHistoryForAPI serves the client surface; the room is
// always the caller's own.
func (cc *ConversationController) HandleConversationHistoryForAPI(c *fiber.Ctx) error {
	req := new(models.ConversationHistoryReq)
	if err := parseRequest(c.Body(), req); err != nil {
		return sendCommonResponse(c, false, err.Error())
	}
	req.RoomId = c.Locals("roomId").(string)

	res, err := cc.conversationModel.GetHistory(req)
	if err != nil {
		return sendCommonResponse(c, false, err.Error())
	}

	return c.JSON(fiber.Map{
		"status": true,
		"msg":    "success",
		"result": res,
	})
}

func (cc *ConversationController) HandleConversationSummary(c *fiber.Ctx) error {
	req := new(models.ConversationSummaryReq)
	if err := parseRequest(c.Body(), req); err != nil {
		return sendCommonResponse(c, false, err.Error())
	}

	res, err := cc.conversationModel.Summarize(c.UserContext(), req)
	if err != nil {
		return sendCommonResponse(c, false, err.Error())
	}

	return c.JSON(fiber.Map{
		"status": true,
		"msg":    "success",
		"result": res,
	})
}

// HandleAssistantChat serves the admin chat route. With stream:true the
// reply goes out as SSE deltas, otherwise as one JSON response.
func (cc *ConversationController) HandleAssistantChat(c *fiber.Ctx) error {
	req := new(models.AssistantChatReq)
	if err := parseRequest(c.Body(), req); err != nil {
		return sendCommonResponse(c, false, err.Error())
	}
	return cc.runChat(c, req)
}

// HandleAssistantChatForAPI is the client variant; identity and room come
// from the verified token.
func (cc *ConversationController) HandleAssistantChatForAPI(c *fiber.Ctx) error {
	req := new(models.AssistantChatReq)
	if err := parseRequest(c.Body(), req); err != nil {
		return sendCommonResponse(c, false, err.Error())
	}
	req.RoomId = c.Locals("roomId").(string)
	req.UserId = c.Locals("requestedUserId").(string)
	return cc.runChat(c, req)
}

func (cc *ConversationController) runChat(c *fiber.Ctx, req *models.AssistantChatReq) error {
	if !req.Stream {
		res, err := cc.conversationModel.Chat(c.UserContext(), req)
		if err != nil {
			return sendCommonResponse(c, false, err.Error())
		}
		return c.JSON(fiber.Map{
			"status": true,
			"msg":    "success",
			"result": res,
		})
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	log := cc.logger.WithField("roomId", req.RoomId)
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithTimeout(context.Background(), chatStreamTimeout)
		defer cancel()

		out := make(chan *assistant.ChatStreamResult, 8)
		done := make(chan error, 1)
		go func() {
			done <- cc.conversationModel.ChatStream(ctx, req, out)
			close(out)
		}()

		for chunk := range out {
			data, err := json.Marshal(chunk)
			if err != nil {
				continue
			}
			if _, err = fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				// client went away, drain so the producer can finish
				cancel()
				for range out {
				}
				break
			}
			_ = w.Flush()
		}

		if err := <-done; err != nil {
			log.WithError(err).Errorln("chat stream failed")
			_, _ = fmt.Fprintf(w, "event: error\ndata: %q\n\n", err.Error())
		} else {
			_, _ = fmt.Fprint(w, "event: done\ndata: {}\n\n")
		}
		_ = w.Flush()
	}))

	return nil
}
