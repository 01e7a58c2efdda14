package tools

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ajvoice/aj-server/pkg/assistant"
	"github.com/gabriel-vasile/mimetype"
	"github.com/goccy/go-json"
)

func (d *Deps) sendEmailTool() *Tool {
	return &Tool{
		Definition: &assistant.ToolDefinition{
			Name:        "send_email",
			Description: "Send an email through Gmail.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"to_email": {"type": "string", "description": "Recipient email address"},
					"subject": {"type": "string", "description": "Email subject line"},
					"message": {"type": "string", "description": "Email body content"},
					"cc_email": {"type": "string", "description": "Optional CC email address"}
				},
				"required": ["to_email", "subject", "message"]
			}`),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			in := struct {
				ToEmail string `json:"to_email"`
				Subject string `json:"subject"`
				Message string `json:"message"`
				CcEmail string `json:"cc_email"`
			}{}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", err
			}

			gmail := d.Settings.Gmail
			if gmail.User == "" || gmail.AppPassword == "" {
				return "Email sending failed: Gmail credentials not configured.", nil
			}

			recipients := []string{in.ToEmail}
			if in.CcEmail != "" {
				recipients = append(recipients, in.CcEmail)
			}

			msg := buildTextEmail(gmail.User, in.ToEmail, in.CcEmail, in.Subject, in.Message)
			if err := d.sendViaSMTP(ctx, recipients, msg); err != nil {
				d.Logger.WithError(err).Errorln("send_email failed")
				return emailFailureMessage(err), nil
			}

			return fmt.Sprintf("Email sent successfully to %s", in.ToEmail), nil
		},
	}
}

func (d *Deps) sendEmailWithAttachmentTool() *Tool {
	return &Tool{
		Definition: &assistant.ToolDefinition{
			Name:        "send_email_with_attachment",
			Description: "Send an email with an attachment through Gmail.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"to_email": {"type": "string", "description": "Recipient email address"},
					"subject": {"type": "string", "description": "Email subject line"},
					"message": {"type": "string", "description": "Email body content"},
					"attachment_path": {"type": "string", "description": "Full path to the file to attach"},
					"cc_email": {"type": "string", "description": "Optional CC email address"}
				},
				"required": ["to_email", "subject", "message", "attachment_path"]
			}`),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			in := struct {
				ToEmail        string `json:"to_email"`
				Subject        string `json:"subject"`
				Message        string `json:"message"`
				AttachmentPath string `json:"attachment_path"`
				CcEmail        string `json:"cc_email"`
			}{}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", err
			}

			gmail := d.Settings.Gmail
			if gmail.User == "" || gmail.AppPassword == "" {
				return "Email sending failed: Gmail credentials not configured.", nil
			}

			data, err := os.ReadFile(in.AttachmentPath)
			if err != nil {
				if os.IsNotExist(err) {
					return fmt.Sprintf("Email sending failed: Attachment file not found at %s", in.AttachmentPath), nil
				}
				return fmt.Sprintf("An error occurred while sending email: %s", err), nil
			}

			recipients := []string{in.ToEmail}
			if in.CcEmail != "" {
				recipients = append(recipients, in.CcEmail)
			}

			filename := filepath.Base(in.AttachmentPath)
			msg, err := buildEmailWithAttachment(gmail.User, in.ToEmail, in.CcEmail, in.Subject, in.Message, filename, data)
			if err != nil {
				return "", err
			}
			if err := d.sendViaSMTP(ctx, recipients, msg); err != nil {
				d.Logger.WithError(err).Errorln("send_email_with_attachment failed")
				return emailFailureMessage(err), nil
			}

			return fmt.Sprintf("Email with attachment '%s' (%s) sent successfully to %s", filename, formatFileSize(int64(len(data))), in.ToEmail), nil
		},
	}
}

// sendViaSMTP performs the SMTP conversation by hand instead of using
// smtp.SendMail so the context deadline applies to the whole exchange.
func (d *Deps) sendViaSMTP(ctx context.Context, recipients []string, msg []byte) error {
	gmail := d.Settings.Gmail
	host := gmail.SmtpHost
	if host == "" {
		host = "smtp.gmail.com"
	}
	port := gmail.SmtpPort
	if port == 0 {
		port = 587
	}

	conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if err := client.Auth(smtp.PlainAuth("", gmail.User, gmail.AppPassword, host)); err != nil {
		return err
	}
	if err := client.Mail(gmail.User); err != nil {
		return err
	}
	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func emailFailureMessage(err error) string {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		// 534 and 535 are the auth rejections Gmail actually sends.
		if tpErr.Code == 534 || tpErr.Code == 535 {
			return "Email sending failed: Authentication error. Please check your Gmail credentials."
		}
		return fmt.Sprintf("Email sending failed: SMTP error - %d %s", tpErr.Code, tpErr.Msg)
	}
	return fmt.Sprintf("An error occurred while sending email: %s", err)
}

func buildTextEmail(from, to, cc, subject, body string) []byte {
	var buf bytes.Buffer
	writeEmailHeaders(&buf, from, to, cc, subject)
	buf.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(body)
	buf.WriteString("\r\n")
	return buf.Bytes()
}

func buildEmailWithAttachment(from, to, cc, subject, body, filename string, attachment []byte) ([]byte, error) {
	var buf bytes.Buffer
	writeEmailHeaders(&buf, from, to, cc, subject)

	mw := multipart.NewWriter(&buf)
	buf.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=%q\r\n", mw.Boundary()))
	buf.WriteString("\r\n")

	textHeader := textproto.MIMEHeader{}
	textHeader.Set("Content-Type", "text/plain; charset=\"utf-8\"")
	part, err := mw.CreatePart(textHeader)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write([]byte(body)); err != nil {
		return nil, err
	}

	attachHeader := textproto.MIMEHeader{}
	attachHeader.Set("Content-Type", mimetype.Detect(attachment).String())
	attachHeader.Set("Content-Transfer-Encoding", "base64")
	attachHeader.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	part, err = mw.CreatePart(attachHeader)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(wrapBase64(attachment)); err != nil {
		return nil, err
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeEmailHeaders(buf *bytes.Buffer, from, to, cc, subject string) {
	buf.WriteString(fmt.Sprintf("From: %s\r\n", from))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", to))
	if cc != "" {
		buf.WriteString(fmt.Sprintf("Cc: %s\r\n", cc))
	}
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject)))
	buf.WriteString("MIME-Version: 1.0\r\n")
}

// wrapBase64 encodes data and folds the output at 76 characters per RFC 2045.
func wrapBase64(data []byte) []byte {
	encoded := base64.StdEncoding.EncodeToString(data)
	var out bytes.Buffer
	for len(encoded) > 0 {
		n := 76
		if len(encoded) < n {
			n = len(encoded)
		}
		out.WriteString(encoded[:n])
		out.WriteString("\r\n")
		encoded = encoded[n:]
	}
	return out.Bytes()
}

func (d *Deps) searchFilesTool() *Tool {
	return &Tool{
		Definition: &assistant.ToolDefinition{
			Name:        "search_files",
			Description: "Search for files on the local system by name or extension, useful for finding files to attach to emails.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"search_term": {"type": "string", "description": "The term to search for in file names"},
					"file_types": {"type": "string", "description": "Optional comma-separated list of file extensions to filter by (e.g., \"pdf,docx,txt\")"},
					"start_path": {"type": "string", "description": "Optional starting directory path for the search"},
					"max_results": {"type": "integer", "description": "Maximum number of results to return, default 20"}
				},
				"required": ["search_term"]
			}`),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			in := struct {
				SearchTerm string `json:"search_term"`
				FileTypes  string `json:"file_types"`
				StartPath  string `json:"start_path"`
				MaxResults int    `json:"max_results"`
			}{MaxResults: 20}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", err
			}

			startPath := in.StartPath
			if startPath == "" {
				startPath = d.Settings.SearchFiles.RootPath
			}
			if startPath == "" {
				home, err := os.UserHomeDir()
				if err != nil {
					return fmt.Sprintf("An error occurred while searching for files: %s", err), nil
				}
				startPath = home
			}

			maxResults := in.MaxResults
			if maxResults <= 0 {
				maxResults = 20
			}
			if cap := d.Settings.SearchFiles.MaxResults; cap > 0 && maxResults > cap {
				maxResults = cap
			}

			return searchFiles(startPath, in.SearchTerm, in.FileTypes, maxResults), nil
		},
	}
}

type foundFile struct {
	name     string
	path     string
	size     string
	modified string
}

func searchFiles(startPath, searchTerm, fileTypes string, maxResults int) string {
	if _, err := os.Stat(startPath); err != nil {
		return fmt.Sprintf("Error: The specified path '%s' does not exist.", startPath)
	}

	var extensions []string
	for _, ext := range strings.Split(fileTypes, ",") {
		ext = strings.ToLower(strings.Trim(strings.TrimSpace(ext), "."))
		if ext != "" {
			extensions = append(extensions, "."+ext)
		}
	}

	term := strings.ToLower(searchTerm)
	var found []foundFile

	_ = filepath.WalkDir(startPath, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped rather than aborting the scan.
			return nil
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") && path != startPath {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			return nil
		}

		lower := strings.ToLower(name)
		if !strings.Contains(lower, term) {
			return nil
		}
		if len(extensions) > 0 {
			matched := false
			for _, ext := range extensions {
				if strings.HasSuffix(lower, ext) {
					matched = true
					break
				}
			}
			if !matched {
				return nil
			}
		}

		info, err := entry.Info()
		if err != nil {
			return nil
		}
		found = append(found, foundFile{
			name:     name,
			path:     path,
			size:     formatFileSize(info.Size()),
			modified: info.ModTime().Format("2006-01-02 15:04:05"),
		})
		if len(found) >= maxResults {
			return filepath.SkipAll
		}
		return nil
	})

	if len(found) == 0 {
		result := fmt.Sprintf("No files found matching '%s'", searchTerm)
		if len(extensions) > 0 {
			result += fmt.Sprintf(" with extension(s): %s", strings.Join(extensions, ", "))
		}
		return result + fmt.Sprintf(" in '%s'.", startPath)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d file(s) matching '%s':\n\n", len(found), searchTerm))
	for i, f := range found {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, f.name))
		sb.WriteString(fmt.Sprintf("   Path: %s\n", f.path))
		sb.WriteString(fmt.Sprintf("   Size: %s\n", f.size))
		sb.WriteString(fmt.Sprintf("   Modified: %s\n\n", f.modified))
	}
	if len(found) == maxResults {
		sb.WriteString(fmt.Sprintf("Note: Results limited to %d files. Refine your search to see more specific results.", maxResults))
	}
	return sb.String()
}
