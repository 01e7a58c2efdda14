package controllers

import (
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/ajvoice/aj-server/pkg/models"
)

type ArtifactController struct {
	artifactModel *models.ArtifactModel
	logger        *logrus.Entry
}

func NewArtifactController(artifactModel *models.ArtifactModel, logger *logrus.Logger) *ArtifactController {
	return &ArtifactController{
		artifactModel: artifactModel,
		logger:        logger.WithField("controller", "artifact"),
	}
}

func (ac *ArtifactController) HandleListArtifacts(c *fiber.Ctx) error {
	req := new(models.ArtifactListReq)
	if err := parseRequest(c.Body(), req); err != nil {
		return sendCommonResponse(c, false, err.Error())
	}

	res, err := ac.artifactModel.ListArtifacts(req)
	if err != nil {
		return sendCommonResponse(c, false, err.Error())
	}

	return c.JSON(fiber.Map{
		"status": true,
		"msg":    "success",
		"result": res,
	})
}

func (ac *ArtifactController) HandleDeleteArtifact(c *fiber.Ctx) error {
	req := new(models.DeleteArtifactReq)
	if err := parseRequest(c.Body(), req); err != nil {
		return sendCommonResponse(c, false, err.Error())
	}
	if req.ArtifactId == "" {
		return sendCommonResponse(c, false, "artifact_id is required")
	}

	if err := ac.artifactModel.DeleteArtifact(req); err != nil {
		return sendCommonResponse(c, false, err.Error())
	}
	return sendCommonResponse(c, true, "success")
}

func (ac *ArtifactController) HandleGetDownloadToken(c *fiber.Ctx) error {
	req := new(models.DownloadTokenReq)
	if err := parseRequest(c.Body(), req); err != nil {
		return sendCommonResponse(c, false, err.Error())
	}
	if req.ArtifactId == "" {
		return sendCommonResponse(c, false, "artifact_id is required")
	}

	res, err := ac.artifactModel.GenerateDownloadToken(req)
	if err != nil {
		return sendCommonResponse(c, false, err.Error())
	}

	return c.JSON(fiber.Map{
		"status": true,
		"msg":    "success",
		"result": res,
	})
}

// HandleDownloadArtifact serves the artifact behind a download token.
// Inline payloads stream as text, file-backed ones as attachments.
func (ac *ArtifactController) HandleDownloadArtifact(c *fiber.Ctx) error {
	token := c.Params("token")
	if token == "" {
		return c.Status(fiber.StatusUnauthorized).SendString("token required or invalid url")
	}

	artifact, err := ac.artifactModel.VerifyDownloadToken(token)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString(err.Error())
	}

	if artifact.FilePath != "" {
		c.Attachment(filepath.Base(artifact.FilePath))
		return c.SendFile(artifact.FilePath, false)
	}

	c.Attachment(artifact.Type + "-" + artifact.ArtifactId + ".txt")
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendString(artifact.Payload)
}
