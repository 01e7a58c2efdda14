package tools

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
	randv2 "math/rand/v2"
	"strings"
	"time"

	"github.com/ajvoice/aj-server/pkg/assistant"
	"github.com/goccy/go-json"
	"github.com/skip2/go-qrcode"
)

func (d *Deps) timeTool() *Tool {
	return &Tool{
		Definition: &assistant.ToolDefinition{
			Name:        "get_time",
			Description: "Get the current time in a specific timezone.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"timezone": {"type": "string", "description": "IANA timezone name, e.g. America/New_York, Europe/London, Asia/Tokyo"}
				}
			}`),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			in := struct {
				Timezone string `json:"timezone"`
			}{Timezone: "UTC"}
			if len(args) > 0 {
				if err := json.Unmarshal(args, &in); err != nil {
					return "", err
				}
			}

			loc, resolved, note := resolveTimezone(in.Timezone)
			formatted := time.Now().In(loc).Format("2006-01-02 15:04:05 MST")

			result := fmt.Sprintf("Current time in %s: %s", resolved, formatted)
			if note != "" {
				result += fmt.Sprintf(" (Note: %s)", note)
			}
			return result, nil
		},
	}
}

// resolveTimezone loads an IANA zone, falling back to a substring match
// over the curated list and finally to UTC.
func resolveTimezone(name string) (*time.Location, string, string) {
	if name == "" {
		name = "UTC"
	}
	if loc, err := time.LoadLocation(name); err == nil {
		return loc, name, ""
	}

	lower := strings.ToLower(name)
	for _, tz := range majorTimezones {
		if strings.Contains(strings.ToLower(tz), lower) {
			if loc, err := time.LoadLocation(tz); err == nil {
				return loc, tz, fmt.Sprintf("Using closest match: %s", tz)
			}
		}
	}
	return time.UTC, "UTC", "Invalid timezone. Using UTC instead."
}

func (d *Deps) reminderTool() *Tool {
	return &Tool{
		Definition: &assistant.ToolDefinition{
			Name:        "set_reminder",
			Description: "Create a reminder for a task. The assistant announces it when it is due.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"task": {"type": "string", "description": "The task to be reminded about"},
					"time_minutes": {"type": "integer", "description": "Minutes from now, default 5"}
				},
				"required": ["task"]
			}`),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			in := struct {
				Task        string `json:"task"`
				TimeMinutes int    `json:"time_minutes"`
			}{TimeMinutes: 5}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", err
			}
			if strings.TrimSpace(in.Task) == "" {
				return "Please provide a task to be reminded about.", nil
			}
			if in.TimeMinutes <= 0 {
				in.TimeMinutes = 5
			}
			if d.Redis == nil {
				return "Reminders are not available right now.", nil
			}

			dueAt := time.Now().Add(time.Duration(in.TimeMinutes) * time.Minute)
			if _, err := d.Redis.AddReminder(ctx, d.RoomID, d.UserID, in.Task, dueAt); err != nil {
				return "", fmt.Errorf("could not store the reminder: %w", err)
			}

			return fmt.Sprintf("Reminder set for '%s' at %s (%d minutes from now)",
				in.Task, dueAt.Format("15:04:05"), in.TimeMinutes), nil
		},
	}
}

func (d *Deps) currencyTool() *Tool {
	return &Tool{
		Definition: &assistant.ToolDefinition{
			Name:        "currency_converter",
			Description: "Convert currency using the latest exchange rates.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"amount": {"type": "number", "description": "Amount to convert"},
					"from_currency": {"type": "string", "description": "Source currency code, e.g. USD"},
					"to_currency": {"type": "string", "description": "Target currency code, e.g. EUR"}
				},
				"required": ["amount", "from_currency", "to_currency"]
			}`),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			var in struct {
				Amount float64 `json:"amount"`
				From   string  `json:"from_currency"`
				To     string  `json:"to_currency"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", err
			}
			from := strings.ToUpper(strings.TrimSpace(in.From))
			to := strings.ToUpper(strings.TrimSpace(in.To))

			u := fmt.Sprintf("https://api.exchangerate.host/convert?from=%s&to=%s&amount=%v", from, to, in.Amount)
			body, status, err := d.httpGetText(ctx, u)
			if err != nil {
				return "", fmt.Errorf("error converting currency: %w", err)
			}
			if status != 200 {
				return fmt.Sprintf("Currency conversion failed: API error (status code %d)", status), nil
			}

			var res struct {
				Success *bool `json:"success"`
				Info    struct {
					Rate float64 `json:"rate"`
				} `json:"info"`
				Result *float64        `json:"result"`
				Error  json.RawMessage `json:"error"`
			}
			if err := json.Unmarshal(body, &res); err != nil {
				return "", fmt.Errorf("unexpected conversion response: %w", err)
			}
			if res.Success != nil && !*res.Success {
				reason := "Unknown error"
				if len(res.Error) > 0 {
					reason = string(res.Error)
				}
				return fmt.Sprintf("Currency conversion failed: %s", reason), nil
			}
			if res.Result == nil || res.Info.Rate == 0 {
				return "Currency conversion failed: Invalid response data", nil
			}

			return fmt.Sprintf("%v %s = %.2f %s (Rate: %.4f)", in.Amount, from, *res.Result, to, res.Info.Rate), nil
		},
	}
}

const (
	passwordLowercase = "abcdefghijklmnopqrstuvwxyz"
	passwordUppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	passwordDigits    = "0123456789"
	passwordSpecial   = "!@#$%^&*()-_=+[]{}|;:,.<>?/"
)

func (d *Deps) passwordTool() *Tool {
	return &Tool{
		Definition: &assistant.ToolDefinition{
			Name:        "generate_password",
			Description: "Generate a secure random password.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"length": {"type": "integer", "description": "Password length, default 16"},
					"include_special_chars": {"type": "boolean", "description": "Whether to include special characters, default true"}
				}
			}`),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			in := struct {
				Length              int   `json:"length"`
				IncludeSpecialChars *bool `json:"include_special_chars"`
			}{Length: 16}
			if len(args) > 0 {
				if err := json.Unmarshal(args, &in); err != nil {
					return "", err
				}
			}
			includeSpecial := in.IncludeSpecialChars == nil || *in.IncludeSpecialChars

			password, err := generatePassword(in.Length, includeSpecial)
			if err != nil {
				return "", err
			}
			if password == "" {
				if in.Length < 8 {
					return "Password length must be at least 8 characters for security", nil
				}
				return "Password length must not exceed 128 characters", nil
			}
			return "Generated password: " + password, nil
		},
	}
}

// generatePassword guarantees at least one character of every enabled class
// and shuffles so the guaranteed ones are not always in front. An empty
// string means the length was out of range.
func generatePassword(length int, includeSpecial bool) (string, error) {
	if length < 8 || length > 128 {
		return "", nil
	}

	chars := passwordLowercase + passwordUppercase + passwordDigits
	if includeSpecial {
		chars += passwordSpecial
	}

	password := make([]byte, 0, length)
	for _, set := range []string{passwordLowercase, passwordUppercase, passwordDigits} {
		c, err := randomChar(set)
		if err != nil {
			return "", err
		}
		password = append(password, c)
	}
	if includeSpecial {
		c, err := randomChar(passwordSpecial)
		if err != nil {
			return "", err
		}
		password = append(password, c)
	}

	for len(password) < length {
		c, err := randomChar(chars)
		if err != nil {
			return "", err
		}
		password = append(password, c)
	}

	// Fisher-Yates with crypto randomness.
	for i := len(password) - 1; i > 0; i-- {
		j, err := randomIndex(i + 1)
		if err != nil {
			return "", err
		}
		password[i], password[j] = password[j], password[i]
	}

	return string(password), nil
}

func randomChar(set string) (byte, error) {
	idx, err := randomIndex(len(set))
	if err != nil {
		return 0, err
	}
	return set[idx], nil
}

func randomIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

func (d *Deps) jokeTool() *Tool {
	return &Tool{
		Definition: &assistant.ToolDefinition{
			Name:        "get_joke",
			Description: "Get a random joke.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"category": {"type": "string", "description": "Joke category: neutral, chuck, all, twister or programming"}
				}
			}`),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			in := struct {
				Category string `json:"category"`
			}{Category: "neutral"}
			if len(args) > 0 {
				if err := json.Unmarshal(args, &in); err != nil {
					return "", err
				}
			}

			jokes := jokesForCategory(in.Category)
			return jokes[randv2.IntN(len(jokes))], nil
		},
	}
}

func (d *Deps) qrCodeTool() *Tool {
	return &Tool{
		Definition: &assistant.ToolDefinition{
			Name:        "generate_qr_code",
			Description: "Generate a QR code for the given data.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"data": {"type": "string", "description": "Text or URL to encode in the QR code"},
					"size": {"type": "integer", "description": "Pixel scale of the QR code image, default 10"}
				},
				"required": ["data"]
			}`),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			in := struct {
				Data string `json:"data"`
				Size int    `json:"size"`
			}{Size: 10}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", err
			}
			if in.Data == "" {
				return "QR code generation failed: No data provided", nil
			}
			if in.Size < 1 || in.Size > 40 {
				return "QR code generation failed: Size must be between 1 and 40", nil
			}

			// A version 1 code is 21 modules plus a 4 module border on each
			// side, the size parameter scales each module to pixels.
			png, err := qrcode.Encode(in.Data, qrcode.Low, in.Size*29)
			if err != nil {
				return "", fmt.Errorf("error generating QR code: %w", err)
			}

			encoded := base64.StdEncoding.EncodeToString(png)
			return fmt.Sprintf("QR Code generated for: %s\nBase64 encoded image: %s", in.Data, encoded), nil
		},
	}
}
