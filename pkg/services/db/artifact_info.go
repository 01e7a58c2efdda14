package dbservice

import (
	"errors"
	"time"

	"github.com/ajvoice/aj-server/pkg/dbmodels"
	"gorm.io/gorm"
)

func (s *DatabaseService) GetArtifactByArtifactId(artifactId string) (*dbmodels.ConversationArtifact, error) {
	artifact := new(dbmodels.ConversationArtifact)
	cond := &dbmodels.ConversationArtifact{
		ArtifactId: artifactId,
	}

	result := s.db.Where(cond).Take(artifact)
	switch {
	case errors.Is(result.Error, gorm.ErrRecordNotFound):
		return nil, nil
	case result.Error != nil:
		return nil, result.Error
	}

	return artifact, nil
}

func (s *DatabaseService) GetArtifactsByRoomId(roomId string, artifactType string, offset, limit uint64) ([]dbmodels.ConversationArtifact, int64, error) {
	var artifacts []dbmodels.ConversationArtifact
	var total int64

	d := s.db.Model(&dbmodels.ConversationArtifact{}).Where("room_id = ?", roomId)
	if artifactType != "" {
		d.Where("type = ?", artifactType)
	}

	if err := d.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit == 0 {
		limit = 20
	}
	result := d.Offset(int(offset)).Limit(int(limit)).Order("id DESC").Find(&artifacts)
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, 0, result.Error
	}

	return artifacts, total, nil
}

// GetArtifactsOlderThan returns artifacts past the retention cutoff so the
// janitor can remove their files before deleting the rows.
func (s *DatabaseService) GetArtifactsOlderThan(cutoff time.Time, limit int) ([]dbmodels.ConversationArtifact, error) {
	var artifacts []dbmodels.ConversationArtifact
	if limit == 0 {
		limit = 100
	}

	result := s.db.Where("created < ?", cutoff).Limit(limit).Find(&artifacts)
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, result.Error
	}

	return artifacts, nil
}
