package config

import "time"

// ToolSettings configures the assistant's built-in function tools.
type ToolSettings struct {
	Gmail       GmailSettings       `yaml:"gmail"`
	SearchFiles SearchFilesSettings `yaml:"search_files"`
	// NewsFeeds overrides the built-in topic feeds. The key is the topic
	// ("technology", "business", ...), the value the RSS url.
	NewsFeeds   map[string]string `yaml:"news_feeds"`
	HttpTimeout *time.Duration    `yaml:"http_timeout"`
}

// GmailSettings carries the SMTP account the email tools send through.
// User and AppPassword normally arrive via GMAIL_USER / GMAIL_APP_PASSWORD.
type GmailSettings struct {
	User        string `yaml:"user"`
	AppPassword string `yaml:"app_password"`
	SmtpHost    string `yaml:"smtp_host"`
	SmtpPort    int    `yaml:"smtp_port"`
}

type SearchFilesSettings struct {
	RootPath   string `yaml:"root_path"`
	MaxResults int    `yaml:"max_results"`
}

// DefaultToolSettings returns the settings the tools run with when the
// config file does not customize them.
func DefaultToolSettings() *ToolSettings {
	t := new(ToolSettings)
	t.applyDefaults()
	return t
}

func (t *ToolSettings) applyDefaults() {
	if t.Gmail.SmtpHost == "" {
		t.Gmail.SmtpHost = "smtp.gmail.com"
	}
	if t.Gmail.SmtpPort == 0 {
		t.Gmail.SmtpPort = 587
	}
	// RootPath stays empty by default; the search tool then starts from the
	// user's home directory.
	if t.SearchFiles.MaxResults <= 0 {
		t.SearchFiles.MaxResults = 20
	}
	if t.HttpTimeout == nil || *t.HttpTimeout <= 0 {
		d := time.Second * 15
		t.HttpTimeout = &d
	}
}
