package infrastructure

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cv-shortlist/domain"
)

// JobOpeningRepository stores job openings and candidate cvs with gorm.
type JobOpeningRepository struct {
	db *gorm.DB
}

func NewJobOpeningRepository(db *gorm.DB) *JobOpeningRepository {
	return &JobOpeningRepository{db: db}
}

// QueryJobOpeningsByStatus returns the job openings in status with all of their candidates,
// oldest first.
func (r *JobOpeningRepository) QueryJobOpeningsByStatus(ctx context.Context, status domain.JobOpeningStatus) ([]domain.JobOpening, error) {
	var jobOpenings []domain.JobOpening
	err := r.db.WithContext(ctx).
		Preload("CandidateCvs", func(db *gorm.DB) *gorm.DB {
			return db.Order("date_created, id")
		}).
		Where("status = ?", status).
		Order("date_last_modified, id").
		Find(&jobOpenings).Error
	if err != nil {
		return nil, fmt.Errorf("query job openings by status: %w", err)
	}
	return jobOpenings, nil
}

// CommitJobOpeningAndCandidates writes the new status of a job opening that is still in
// analysis together with the candidate results, all or nothing.
func (r *JobOpeningRepository) CommitJobOpeningAndCandidates(ctx context.Context, jobOpening *domain.JobOpening, candidates []domain.CandidateCv) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.JobOpening{}).
			Where("id = ? AND status = ?", jobOpening.ID, domain.StatusInAnalysis).
			Updates(map[string]any{
				"status":             jobOpening.Status,
				"date_last_modified": jobOpening.DateLastModified,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("job opening is no longer in analysis: %w", domain.ErrStatusConflict)
		}
		return saveCandidateResults(tx, jobOpening.ID, candidates)
	})
	if err != nil {
		return &domain.PersistenceError{JobOpeningID: jobOpening.ID, Err: err}
	}
	return nil
}

func (r *JobOpeningRepository) CommitCandidates(ctx context.Context, jobOpeningID string, candidates []domain.CandidateCv) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return saveCandidateResults(tx, jobOpeningID, candidates)
	})
	if err != nil {
		return &domain.PersistenceError{JobOpeningID: jobOpeningID, Err: err}
	}
	return nil
}

// saveCandidateResults writes analysis and rating of every processed candidate.
// Rows are not counted: MySQL reports unchanged rows as unaffected.
func saveCandidateResults(tx *gorm.DB, jobOpeningID string, candidates []domain.CandidateCv) error {
	for _, c := range candidates {
		if c.ToProcess() {
			continue
		}
		err := tx.Model(&domain.CandidateCv{}).
			Where("id = ? AND job_opening_id = ?", c.ID, jobOpeningID).
			Updates(map[string]any{
				"analysis": *c.Analysis,
				"rating":   *c.Rating,
			}).Error
		if err != nil {
			return fmt.Errorf("update candidate cv %s: %w", c.ID, err)
		}
	}
	return nil
}

func (r *JobOpeningRepository) CreateJobOpening(ctx context.Context, jobOpening *domain.JobOpening) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(jobOpening).Error
}

// ListJobOpenings returns every job opening, most recently modified first, with its
// candidate count.
func (r *JobOpeningRepository) ListJobOpenings(ctx context.Context) ([]domain.JobOpening, error) {
	db := r.db.WithContext(ctx)

	var jobOpenings []domain.JobOpening
	if err := db.Order("date_last_modified desc, id").Find(&jobOpenings).Error; err != nil {
		return nil, fmt.Errorf("list job openings: %w", err)
	}

	var counts []struct {
		JobOpeningID string
		Count        int
	}
	err := db.Model(&domain.CandidateCv{}).
		Select("job_opening_id, count(*) as count").
		Group("job_opening_id").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("count candidate cvs: %w", err)
	}

	byID := make(map[string]int, len(counts))
	for _, c := range counts {
		byID[c.JobOpeningID] = c.Count
	}
	for i := range jobOpenings {
		jobOpenings[i].TotalCandidateCvsCount = byID[jobOpenings[i].ID]
	}
	return jobOpenings, nil
}

func (r *JobOpeningRepository) GetJobOpening(ctx context.Context, id string, page, pageSize int) (*domain.JobOpening, error) {
	db := r.db.WithContext(ctx)

	var jobOpening domain.JobOpening
	if err := db.First(&jobOpening, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "job opening %s", id)
	}

	var total int64
	if err := db.Model(&domain.CandidateCv{}).Where("job_opening_id = ?", id).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count candidate cvs: %w", err)
	}
	jobOpening.TotalCandidateCvsCount = int(total)

	if page < 1 || pageSize < 1 {
		return &jobOpening, nil
	}

	order := "date_created desc, id"
	if jobOpening.Status == domain.StatusAnalysisCompleted {
		order = "rating desc, date_created desc, id"
	}
	err := db.Where("job_opening_id = ?", id).
		Order(order).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&jobOpening.CandidateCvs).Error
	if err != nil {
		return nil, fmt.Errorf("load candidate cvs: %w", err)
	}
	return &jobOpening, nil
}

// UpdateJobOpening saves the editable fields of a job opening that is open for editing.
func (r *JobOpeningRepository) UpdateJobOpening(ctx context.Context, jobOpening *domain.JobOpening) error {
	res := r.db.WithContext(ctx).Model(&domain.JobOpening{}).
		Where("id = ? AND status = ?", jobOpening.ID, domain.StatusOpenForEditing).
		Updates(map[string]any{
			"name":               jobOpening.Name,
			"description":        jobOpening.Description,
			"analysis_language":  jobOpening.AnalysisLanguage,
			"date_last_modified": jobOpening.DateLastModified,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.missingOrConflict(ctx, jobOpening.ID)
	}
	return nil
}

func (r *JobOpeningRepository) TransitionStatus(ctx context.Context, id string, from, to domain.JobOpeningStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("cannot move job opening from %s to %s: %w", from, to, domain.ErrStatusConflict)
	}
	res := r.db.WithContext(ctx).Model(&domain.JobOpening{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":             to,
			"date_last_modified": r.db.NowFunc(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.missingOrConflict(ctx, id)
	}
	return nil
}

// DeleteJobOpening removes a job opening and its candidates. Blobs are left to the blob store.
func (r *JobOpeningRepository) DeleteJobOpening(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("job_opening_id = ?", id).Delete(&domain.CandidateCv{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&domain.JobOpening{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("job opening %s: %w", id, domain.ErrNotFound)
		}
		return nil
	})
}

func (r *JobOpeningRepository) CandidateHashes(ctx context.Context, jobOpeningID string) (map[string]struct{}, error) {
	var hashes []string
	err := r.db.WithContext(ctx).Model(&domain.CandidateCv{}).
		Where("job_opening_id = ?", jobOpeningID).
		Pluck("sha256_file_hash", &hashes).Error
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(hashes))
	for _, h := range hashes {
		set[h] = struct{}{}
	}
	return set, nil
}

// CountCandidates fails with domain.ErrNotFound for an unknown job opening.
func (r *JobOpeningRepository) CountCandidates(ctx context.Context, jobOpeningID string) (int, error) {
	db := r.db.WithContext(ctx)
	if err := r.exists(ctx, jobOpeningID); err != nil {
		return 0, err
	}
	var n int64
	if err := db.Model(&domain.CandidateCv{}).Where("job_opening_id = ?", jobOpeningID).Count(&n).Error; err != nil {
		return 0, err
	}
	return int(n), nil
}

// AddCandidateCv inserts candidate while its job opening is still open for editing.
// The job opening row stays locked until the insert commits, so an analysis
// cannot start in between and miss the new candidate.
func (r *JobOpeningRepository) AddCandidateCv(ctx context.Context, candidate *domain.CandidateCv) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var jobOpening domain.JobOpening
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ? AND status = ?", candidate.JobOpeningID, domain.StatusOpenForEditing).
			Take(&jobOpening).Error
		if err != nil {
			return err
		}
		return tx.Create(candidate).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.missingOrConflict(ctx, candidate.JobOpeningID)
	}
	return err
}

func (r *JobOpeningRepository) ListCandidateIDs(ctx context.Context, jobOpeningID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&domain.CandidateCv{}).
		Where("job_opening_id = ?", jobOpeningID).
		Order("id").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *JobOpeningRepository) DeleteCandidateCvs(ctx context.Context, jobOpeningID string, ids []string) error {
	return r.db.WithContext(ctx).
		Where("job_opening_id = ? AND id IN ?", jobOpeningID, ids).
		Delete(&domain.CandidateCv{}).Error
}

func (r *JobOpeningRepository) exists(ctx context.Context, id string) error {
	var n int64
	if err := r.db.WithContext(ctx).Model(&domain.JobOpening{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("job opening %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *JobOpeningRepository) missingOrConflict(ctx context.Context, id string) error {
	if err := r.exists(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("job opening %s: %w", id, domain.ErrStatusConflict)
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf(format+": %w", append(args, domain.ErrNotFound)...)
	}
	return err
}
