package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ajvoice/aj-server/pkg/assistant"
	"github.com/ajvoice/aj-server/pkg/config"
	redisservice "github.com/ajvoice/aj-server/pkg/services/redis"
	"github.com/sirupsen/logrus"
)

// maxToolBodyBytes caps how much of an HTTP response a tool will read.
const maxToolBodyBytes = 2 << 20

// Deps carries everything the builtin tools close over. A voice session
// builds one per room so set_reminder and friends know who asked.
type Deps struct {
	Logger   *logrus.Entry
	HTTP     *http.Client
	Redis    *redisservice.RedisService
	Settings *config.ToolSettings

	// Chat answers ask_coding_assistant. It may be nil, the tool then
	// reports that no chat provider is configured.
	Chat assistant.ChatProvider

	RoomID string
	UserID string
}

// RegisterBuiltins adds the full builtin toolset to the registry.
func RegisterBuiltins(reg *Registry, deps *Deps) error {
	if deps.Logger == nil {
		deps.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if deps.HTTP == nil {
		deps.HTTP = &http.Client{Timeout: 15 * time.Second}
	}
	if deps.Settings == nil {
		deps.Settings = config.DefaultToolSettings()
	}

	builtins := []*Tool{
		deps.weatherTool(),
		deps.searchWebTool(),
		deps.newsTool(),
		deps.stockPriceTool(),
		deps.timeTool(),
		deps.reminderTool(),
		deps.currencyTool(),
		deps.passwordTool(),
		deps.jokeTool(),
		deps.qrCodeTool(),
		deps.gitRepoURLTool(),
		deps.codeSnippetTool(),
		deps.codingAssistantTool(),
		deps.agendaTool(),
		deps.roiTool(),
		deps.sendEmailTool(),
		deps.sendEmailWithAttachmentTool(),
		deps.searchFilesTool(),
	}

	for _, tool := range builtins {
		if err := reg.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

// httpGetText fetches a URL and returns the body capped at
// maxToolBodyBytes.
func (d *Deps) httpGetText(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", "aj-server")

	resp, err := d.HTTP.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxToolBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// formatFileSize renders byte counts the way people say them.
func formatFileSize(size int64) string {
	switch {
	case size < 1024:
		return fmt.Sprintf("%d B", size)
	case size < 1024*1024:
		return fmt.Sprintf("%.2f KB", float64(size)/1024)
	default:
		return fmt.Sprintf("%.2f MB", float64(size)/(1024*1024))
	}
}
