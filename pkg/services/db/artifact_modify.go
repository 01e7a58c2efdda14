package dbservice

import (
	"github.com/ajvoice/aj-server/pkg/dbmodels"
)

func (s *DatabaseService) InsertArtifact(artifact *dbmodels.ConversationArtifact) (int64, error) {
	result := s.db.Create(artifact)
	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}

func (s *DatabaseService) DeleteArtifact(artifactId string) (int64, error) {
	cond := &dbmodels.ConversationArtifact{
		ArtifactId: artifactId,
	}

	result := s.db.Where(cond).Delete(&dbmodels.ConversationArtifact{})
	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}

func (s *DatabaseService) DeleteArtifactsByTableIds(ids []uint64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result := s.db.Where("id IN ?", ids).Delete(&dbmodels.ConversationArtifact{})
	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}
