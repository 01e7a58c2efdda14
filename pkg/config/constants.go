package config

import "time"

const (
	DefaultHttpPort = 8000

	// identity prefixes for this server's hidden room participants
	AgentUserIdPrefix    = "aj-agent-"
	TTSAgentUserIdPrefix = "aj-tts-agent-"

	DefaultAgentTaskSubject      = "aj-agent-task"
	DefaultSpeechOutputSubject   = "aj-speech-output"
	DefaultWebhookCleanupSubject = "aj-webhook-cleanup"

	// all the time.Sleep() values
	WaitBeforeTriggerOnAfterRoomEnded     = 5 * time.Second
	WaitBeforeAgentEndOnAfterRoomEnded    = 3 * time.Second
	MaxDurationWaitBeforeCleanRoomWebhook = 1 * time.Minute

	DefaultWebhookQueueSize = 200

	// conversation payloads above this land in a file instead of the DB row
	MaxInlineArtifactSize int64 = 64 * 1024
)
