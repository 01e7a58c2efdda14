package controllers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajvoice/aj-server/pkg/config"
	"github.com/ajvoice/aj-server/pkg/models"
)

func testApp() (*fiber.App, *AuthController) {
	validity := time.Minute * 10
	appConf := &config.AppConfig{
		Client: config.ClientInfo{
			ApiKey:        "AJTESTKEY",
			Secret:        "a-very-long-test-secret-value",
			TokenValidity: &validity,
		},
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	authModel := models.NewAuthModel(appConf, nil, logger)
	ac := NewAuthController(appConf, authModel, nil, logger)

	app := fiber.New()
	admin := app.Group("/auth", ac.HandleAuthHeaderCheck)
	admin.Post("/ping", func(c *fiber.Ctx) error {
		return sendCommonResponse(c, true, "pong")
	})
	api := app.Group("/api", ac.HandleVerifyHeaderToken)
	api.Post("/ping", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": true,
			"roomId": c.Locals("roomId"),
		})
	})
	return app, ac
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestAuthHeaderCheck(t *testing.T) {
	app, ac := testApp()
	body := []byte(`{"room_id":"workshop"}`)

	t.Run("valid signature passes", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/auth/ping", bytes.NewReader(body))
		req.Header.Set("API-KEY", ac.app.Client.ApiKey)
		req.Header.Set("HASH-SIGNATURE", signBody(ac.app.Client.Secret, body))

		res, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, res.StatusCode)
	})

	t.Run("wrong api key rejected", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/auth/ping", bytes.NewReader(body))
		req.Header.Set("API-KEY", "WRONG")
		req.Header.Set("HASH-SIGNATURE", signBody(ac.app.Client.Secret, body))

		res, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)
	})

	t.Run("missing signature rejected", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/auth/ping", bytes.NewReader(body))
		req.Header.Set("API-KEY", ac.app.Client.ApiKey)

		res, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)
	})

	t.Run("tampered body rejected", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/auth/ping", bytes.NewReader([]byte(`{"room_id":"other"}`)))
		req.Header.Set("API-KEY", ac.app.Client.ApiKey)
		req.Header.Set("HASH-SIGNATURE", signBody(ac.app.Client.Secret, body))

		res, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)
	})
}

func TestVerifyHeaderToken(t *testing.T) {
	app, ac := testApp()

	t.Run("valid token passes", func(t *testing.T) {
		token, err := ac.authModel.GenerateToken(&models.TokenClaims{
			RoomId: "workshop",
			UserId: "tony-01",
		})
		require.NoError(t, err)

		req := httptest.NewRequest("POST", "/api/ping", nil)
		req.Header.Set("Authorization", token)

		res, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, res.StatusCode)

		data, err := io.ReadAll(res.Body)
		require.NoError(t, err)
		assert.Contains(t, string(data), "workshop")
	})

	t.Run("missing header rejected", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/ping", nil)
		res, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)
	})

	t.Run("garbage token rejected", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/ping", nil)
		req.Header.Set("Authorization", "not-a-jwt")

		res, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)
	})
}
