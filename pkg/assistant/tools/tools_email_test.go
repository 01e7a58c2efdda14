package tools

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTextEmail(t *testing.T) {
	msg := buildTextEmail("aj@example.com", "you@example.com", "boss@example.com", "Hello", "Just checking in.")

	parsed, err := mail.ReadMessage(bytes.NewReader(msg))
	require.NoError(t, err)
	assert.Equal(t, "aj@example.com", parsed.Header.Get("From"))
	assert.Equal(t, "you@example.com", parsed.Header.Get("To"))
	assert.Equal(t, "boss@example.com", parsed.Header.Get("Cc"))
	assert.Equal(t, "Hello", parsed.Header.Get("Subject"))

	body, err := io.ReadAll(parsed.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Just checking in.")
}

func TestBuildEmailWithAttachment(t *testing.T) {
	payload := []byte("%PDF-1.4 fake pdf content")
	msg, err := buildEmailWithAttachment("aj@example.com", "you@example.com", "", "Report", "See attached.", "report.pdf", payload)
	require.NoError(t, err)

	parsed, err := mail.ReadMessage(bytes.NewReader(msg))
	require.NoError(t, err)

	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/mixed", mediaType)
	require.NotEmpty(t, params["boundary"])

	mr := multipart.NewReader(parsed.Body, params["boundary"])

	textPart, err := mr.NextPart()
	require.NoError(t, err)
	textBody, err := io.ReadAll(textPart)
	require.NoError(t, err)
	assert.Contains(t, string(textBody), "See attached.")

	attachPart, err := mr.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", attachPart.Header.Get("Content-Type"))
	assert.Contains(t, attachPart.Header.Get("Content-Disposition"), `filename="report.pdf"`)

	raw, err := io.ReadAll(attachPart)
	require.NoError(t, err)
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(string(raw), "\r\n", ""))
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}
