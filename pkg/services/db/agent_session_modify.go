package dbservice

import (
	"time"

	"github.com/ajvoice/aj-server/pkg/dbmodels"
)

func (s *DatabaseService) InsertAgentSession(session *dbmodels.AgentSession) (int64, error) {
	result := s.db.Create(session)
	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}

// CloseAgentSession marks the session ended and stamps the final usage
// counters in one update.
func (s *DatabaseService) CloseAgentSession(sessionId, status string, usage *dbmodels.AgentSession) (int64, error) {
	update := map[string]interface{}{
		"status": status,
		"ended":  time.Now(),
	}
	if usage != nil {
		update["turns"] = usage.Turns
		update["tool_calls"] = usage.ToolCalls
		update["prompt_tokens"] = usage.PromptTokens
		update["completion_tokens"] = usage.CompletionTokens
		update["tts_characters"] = usage.TTSCharacters
	}

	cond := &dbmodels.AgentSession{
		SessionId: sessionId,
	}

	result := s.db.Model(&dbmodels.AgentSession{}).Where(cond).Where("status = ?", dbmodels.AgentSessionStatusStarted).Updates(update)
	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}

// MarkStaleAgentSessionsEnded flips sessions of rooms that no longer run.
// The janitor calls this to recover from crashed nodes.
func (s *DatabaseService) MarkStaleAgentSessionsEnded(before time.Time) (int64, error) {
	update := map[string]interface{}{
		"status": dbmodels.AgentSessionStatusEnded,
		"ended":  time.Now(),
	}

	result := s.db.Model(&dbmodels.AgentSession{}).
		Where("status = ?", dbmodels.AgentSessionStatusStarted).
		Where("started < ?", before).
		Updates(update)
	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}
