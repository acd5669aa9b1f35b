package infrastructure

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cv-shortlist/domain"
)

// DatabaseBlobStore keeps PDF files in the candidate_cv_blobs table.
type DatabaseBlobStore struct {
	db *gorm.DB
}

func NewDatabaseBlobStore(db *gorm.DB) *DatabaseBlobStore {
	return &DatabaseBlobStore{db: db}
}

func (s *DatabaseBlobStore) GetBlob(ctx context.Context, ownerKey, blobKey string) ([]byte, error) {
	var blob domain.CandidateCvBlob
	err := s.db.WithContext(ctx).
		Where("candidate_cv_id = ? AND job_opening_id = ?", blobKey, ownerKey).
		First(&blob).Error
	if err != nil {
		return nil, notFound(err, "blob %s/%s", ownerKey, blobKey)
	}
	return blob.Data, nil
}

func (s *DatabaseBlobStore) PutBlob(ctx context.Context, ownerKey, blobKey string, data []byte) error {
	blob := domain.CandidateCvBlob{CandidateCvID: blobKey, JobOpeningID: ownerKey, Data: data}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&blob).Error
	if err != nil {
		return fmt.Errorf("put blob %s/%s: %w", ownerKey, blobKey, err)
	}
	return nil
}

func (s *DatabaseBlobStore) DeleteBlob(ctx context.Context, ownerKey, blobKey string) error {
	res := s.db.WithContext(ctx).
		Where("candidate_cv_id = ? AND job_opening_id = ?", blobKey, ownerKey).
		Delete(&domain.CandidateCvBlob{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("blob %s/%s: %w", ownerKey, blobKey, domain.ErrNotFound)
	}
	return nil
}
