package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ajvoice/aj-server/pkg/logging"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var appCnf *AppConfig

var dbTablePrefix string

type AppConfig struct {
	RDS       *redis.Client
	DB        *gorm.DB
	Logger    *logrus.Logger
	NatsConn  *nats.Conn
	JetStream jetstream.JetStream

	RootWorkingDir string

	Client           ClientInfo           `yaml:"client"`
	LogSettings      logging.LogSettings  `yaml:"log_settings"`
	LivekitInfo      LivekitInfo          `yaml:"livekit_info"`
	RedisInfo        RedisInfo            `yaml:"redis_info"`
	DatabaseInfo     DatabaseInfo         `yaml:"database_info"`
	NatsInfo         NatsInfo             `yaml:"nats_info"`
	TurnServer       *TurnConfig          `yaml:"turn_server"`
	Assistant        AssistantConfig      `yaml:"assistant"`
	ToolSettings     ToolSettings         `yaml:"tool_settings"`
	ArtifactSettings *ArtifactSettings    `yaml:"artifact_settings"`
	ConsoleDownload  *AutoConsoleDownload `yaml:"auto_console_download"`
}

type ClientInfo struct {
	Port           int            `yaml:"port"`
	Debug          bool           `yaml:"debug"`
	Path           string         `yaml:"path"`
	ApiKey         string         `yaml:"api_key"`
	Secret         string         `yaml:"secret"`
	TokenValidity  *time.Duration `yaml:"token_validity"`
	WebhookConf    WebhookConf    `yaml:"webhook_conf"`
	PrometheusConf PrometheusConf `yaml:"prometheus"`
	ProxyHeader    string         `yaml:"proxy_header"`
}

type WebhookConf struct {
	Enable           bool   `yaml:"enable"`
	Url              string `yaml:"url,omitempty"`
	EnableForPerRoom bool   `yaml:"enable_for_per_room"`
}

type PrometheusConf struct {
	Enable      bool   `yaml:"enable"`
	MetricsPath string `yaml:"metrics_path"`
}

type LivekitInfo struct {
	Host   string `yaml:"host"`
	ApiKey string `yaml:"api_key"`
	Secret string `yaml:"secret"`
}

type ArtifactSettings struct {
	FilesStorePath *string        `yaml:"files_store_path"`
	RetentionDays  *int           `yaml:"retention_days"`
	TokenValidity  *time.Duration `yaml:"token_validity"`
}

type DatabaseInfo struct {
	DriverName      string          `yaml:"driver_name"`
	Host            string          `yaml:"host"`
	Port            int32           `yaml:"port"`
	Username        string          `yaml:"username"`
	Password        string          `yaml:"password"`
	DBName          string          `yaml:"db"`
	Prefix          string          `yaml:"prefix"`
	Charset         *string         `yaml:"charset"`
	Loc             *string         `yaml:"loc"`
	ConnMaxLifetime *time.Duration  `yaml:"conn_max_lifetime"`
	MaxOpenConns    *int            `yaml:"max_open_conns"`
	Replicas        []ReplicaDBInfo `yaml:"replicas"`
}

// ReplicaDBInfo holds connection details for a read replica database.
type ReplicaDBInfo struct {
	Host     string `yaml:"host"`
	Port     int32  `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type RedisInfo struct {
	Host              string   `yaml:"host"`
	Username          string   `yaml:"username"`
	Password          string   `yaml:"password"`
	DBName            int      `yaml:"db"`
	UseTLS            bool     `yaml:"use_tls"`
	MasterName        string   `yaml:"sentinel_master_name"`
	SentinelUsername  string   `yaml:"sentinel_username"`
	SentinelPassword  string   `yaml:"sentinel_password"`
	SentinelAddresses []string `yaml:"sentinel_addresses"`
}

type NatsInfo struct {
	NatsUrls    []string     `yaml:"nats_urls"`
	Account     string       `yaml:"account"`
	User        string       `yaml:"user"`
	Password    string       `yaml:"password"`
	Nkey        *string      `yaml:"nkey"`
	NumReplicas int          `yaml:"num_replicas"`
	Subjects    NatsSubjects `yaml:"subjects"`
}

type NatsSubjects struct {
	AgentTask      string `yaml:"agent_task"`
	SpeechOutput   string `yaml:"speech_output"`
	WebhookCleanup string `yaml:"webhook_cleanup"`
}

// New applies defaults and the container runtime env overrides, validates the
// result and stores it as the global config.
func New(a *AppConfig) (*AppConfig, error) {
	applyEnvOverrides(a)

	// default validation of token is 10 minutes
	if a.Client.TokenValidity == nil || *a.Client.TokenValidity < 0 {
		validity := time.Minute * 10
		a.Client.TokenValidity = &validity
	}
	if a.Client.Port == 0 {
		a.Client.Port = DefaultHttpPort
	}
	if a.Client.Path == "" {
		a.Client.Path = "./client"
	}

	if a.NatsInfo.Subjects.AgentTask == "" {
		a.NatsInfo.Subjects.AgentTask = DefaultAgentTaskSubject
	}
	if a.NatsInfo.Subjects.SpeechOutput == "" {
		a.NatsInfo.Subjects.SpeechOutput = DefaultSpeechOutputSubject
	}
	if a.NatsInfo.Subjects.WebhookCleanup == "" {
		a.NatsInfo.Subjects.WebhookCleanup = DefaultWebhookCleanupSubject
	}

	if a.ArtifactSettings == nil {
		a.ArtifactSettings = new(ArtifactSettings)
	}
	if a.ArtifactSettings.FilesStorePath == nil {
		p := "./artifacts"
		a.ArtifactSettings.FilesStorePath = &p
	}
	if a.ArtifactSettings.RetentionDays == nil {
		d := 30
		a.ArtifactSettings.RetentionDays = &d
	}
	if a.ArtifactSettings.TokenValidity == nil {
		d := time.Minute * 30
		a.ArtifactSettings.TokenValidity = &d
	}

	p := *a.ArtifactSettings.FilesStorePath
	if strings.HasPrefix(p, "./") {
		p = filepath.Join(a.RootWorkingDir, p)
	}
	if _, err := os.Stat(p); os.IsNotExist(err) {
		err = os.MkdirAll(p, os.ModePerm)
		if err != nil {
			return nil, fmt.Errorf("failed to create artifacts directory %s: %w", p, err)
		}
	}

	a.Assistant.applyDefaults()
	a.ToolSettings.applyDefaults()

	if a.DatabaseInfo.Prefix != "" {
		dbTablePrefix = a.DatabaseInfo.Prefix
	}

	if err := a.validate(); err != nil {
		return nil, err
	}

	appCnf = a
	return a, nil
}

// GetConfig returns the global config set by New.
func GetConfig() *AppConfig {
	return appCnf
}

// applyEnvOverrides maps the documented runtime env vars onto the parsed
// config. Secrets are expected to arrive this way in container deployments,
// never baked into the image.
func applyEnvOverrides(a *AppConfig) {
	if v := os.Getenv("LIVEKIT_URL"); v != "" {
		a.LivekitInfo.Host = v
	}
	if v := os.Getenv("LIVEKIT_API_KEY"); v != "" {
		a.LivekitInfo.ApiKey = v
	}
	if v := os.Getenv("LIVEKIT_API_SECRET"); v != "" {
		a.LivekitInfo.Secret = v
	}

	a.Assistant.setAccountCredentials(ProviderOpenAI, os.Getenv("OPENAI_API_KEY"), "")
	a.Assistant.setAccountCredentials(ProviderDeepgram, os.Getenv("DEEPGRAM_API_KEY"), "")
	a.Assistant.setAccountCredentials(ProviderGoogle, os.Getenv("GOOGLE_API_KEY"), "")
	a.Assistant.setAccountCredentials(ProviderAzure, os.Getenv("AZURE_SPEECH_KEY"), os.Getenv("AZURE_SPEECH_REGION"))

	if v := os.Getenv("GMAIL_USER"); v != "" {
		a.ToolSettings.Gmail.User = v
	}
	if v := os.Getenv("GMAIL_APP_PASSWORD"); v != "" {
		a.ToolSettings.Gmail.AppPassword = v
	}
}

// validate reports the first missing required value. The message names both
// the yaml field and the env var that can supply it so a container started
// without its runtime secrets fails loudly and clearly.
func (a *AppConfig) validate() error {
	if a.LivekitInfo.Host == "" {
		return fmt.Errorf("livekit_info.host is empty; set it in the config file or via LIVEKIT_URL")
	}
	if a.LivekitInfo.ApiKey == "" {
		return fmt.Errorf("livekit_info.api_key is empty; set it in the config file or via LIVEKIT_API_KEY")
	}
	if a.LivekitInfo.Secret == "" {
		return fmt.Errorf("livekit_info.secret is empty; set it in the config file or via LIVEKIT_API_SECRET")
	}
	if a.Client.ApiKey == "" || a.Client.Secret == "" {
		return fmt.Errorf("client.api_key and client.secret are required")
	}
	if a.Assistant.Enabled {
		if err := a.Assistant.validate(); err != nil {
			return err
		}
	}
	return nil
}

func FormatDBTable(table string) string {
	if dbTablePrefix != "" {
		return dbTablePrefix + table
	}
	return table
}
