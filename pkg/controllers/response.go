package controllers

import (
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

// CommonResponse is the envelope every API handler answers with when it
// has nothing richer to return.
type CommonResponse struct {
	Status bool   `json:"status"`
	Msg    string `json:"msg"`
}

func sendCommonResponse(c *fiber.Ctx, status bool, msg string) error {
	return c.JSON(&CommonResponse{Status: status, Msg: msg})
}

// parseRequest decodes the JSON body into req, tolerating unknown fields.
func parseRequest(body []byte, req interface{}) error {
	return json.Unmarshal(body, req)
}
