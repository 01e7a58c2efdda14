package controllers

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"

	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/ajvoice/aj-server/pkg/config"
	"github.com/ajvoice/aj-server/pkg/models"
)

// AuthController owns both API gates: the HMAC header check for the
// admin surface and the JWT check for the client surface, plus the token
// endpoints themselves.
type AuthController struct {
	app            *config.AppConfig
	authModel      *models.AuthModel
	authTokenModel *models.AuthTokenModel
	logger         *logrus.Entry
}

func NewAuthController(app *config.AppConfig, authModel *models.AuthModel, authTokenModel *models.AuthTokenModel, logger *logrus.Logger) *AuthController {
	return &AuthController{
		app:            app,
		authModel:      authModel,
		authTokenModel: authTokenModel,
		logger:         logger.WithField("controller", "auth"),
	}
}

// HandleAuthHeaderCheck guards the admin API. Requests must carry the
// API-KEY header plus a HASH-SIGNATURE, the hex HMAC-SHA256 of the raw
// body under the shared secret.
func (ac *AuthController) HandleAuthHeaderCheck(c *fiber.Ctx) error {
	apiKey := c.Get("API-KEY", "")
	signature := c.Get("HASH-SIGNATURE", "")

	if apiKey != ac.app.Client.ApiKey {
		c.Status(fiber.StatusUnauthorized)
		return sendCommonResponse(c, false, "invalid API key")
	}
	if signature == "" {
		c.Status(fiber.StatusUnauthorized)
		return sendCommonResponse(c, false, "hash signature value required")
	}

	mac := hmac.New(sha256.New, []byte(ac.app.Client.Secret))
	mac.Write(c.Body())
	expected := hex.EncodeToString(mac.Sum(nil))
	if subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) != 1 {
		c.Status(fiber.StatusUnauthorized)
		return sendCommonResponse(c, false, config.VerificationFailed)
	}

	return c.Next()
}

// HandleVerifyHeaderToken guards the client API. The Authorization
// header carries the join token issued by this server.
func (ac *AuthController) HandleVerifyHeaderToken(c *fiber.Ctx) error {
	authToken := c.Get("Authorization")
	if authToken == "" {
		c.Status(fiber.StatusUnauthorized)
		return sendCommonResponse(c, false, "authorization header missing")
	}

	claims, err := ac.authModel.VerifyToken(authToken, 0)
	if err != nil {
		c.Status(fiber.StatusUnauthorized)
		msg := "invalid token"
		if errors.Is(err, jwt.ErrExpired) {
			msg = "token expired"
		}
		return sendCommonResponse(c, false, msg)
	}

	c.Locals("isAdmin", claims.IsAdmin)
	c.Locals("roomId", claims.RoomId)
	c.Locals("requestedUserId", claims.UserId)
	c.Locals("name", claims.Name)

	return c.Next()
}

// HandleGenerateToken issues the join token pair for a participant.
func (ac *AuthController) HandleGenerateToken(c *fiber.Ctx) error {
	req := new(models.GenerateTokenReq)
	if err := parseRequest(c.Body(), req); err != nil {
		return sendCommonResponse(c, false, err.Error())
	}

	res, err := ac.authTokenModel.GenerateJoinTokens(req)
	if err != nil {
		return sendCommonResponse(c, false, err.Error())
	}

	return c.JSON(fiber.Map{
		"status": true,
		"msg":    "success",
		"result": res,
	})
}

// HandleRenewToken re-issues both tokens from a still-valid (or recently
// expired) join token.
func (ac *AuthController) HandleRenewToken(c *fiber.Ctx) error {
	req := new(struct {
		Token string `json:"token"`
	})
	if err := parseRequest(c.Body(), req); err != nil {
		return sendCommonResponse(c, false, err.Error())
	}
	if req.Token == "" {
		return sendCommonResponse(c, false, "token is required")
	}

	res, err := ac.authTokenModel.RenewTokens(req.Token)
	if err != nil {
		return sendCommonResponse(c, false, err.Error())
	}

	return c.JSON(fiber.Map{
		"status": true,
		"msg":    "success",
		"result": res,
	})
}
