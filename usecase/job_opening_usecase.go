package usecase

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"cv-shortlist/domain"
)

// JobOpeningSettings are the knobs of the recruiter facing operations.
type JobOpeningSettings struct {
	CandidateCvsPageSize int
	PdfMaxPages          int
	PollInterval         time.Duration
	MaxParallelism       int
}

type JobOpeningInput struct {
	Name             string `json:"name" validate:"required,max=255"`
	Description      string `json:"description" validate:"max=20000"`
	AnalysisLanguage string `json:"analysis_language" validate:"max=25"`
}

type UploadFile struct {
	FileName string
	Data     []byte
}

type UploadOutcome struct {
	FileName    string              `json:"file_name"`
	Result      domain.UploadResult `json:"result"`
	CandidateID string              `json:"candidate_id,omitempty"`
}

type CandidateView struct {
	ID          string                  `json:"id"`
	FileName    string                  `json:"file_name"`
	DateCreated time.Time               `json:"date_created"`
	Rating      *uint8                  `json:"rating"`
	Analysis    *domain.AnalysisVerdict `json:"analysis"`
}

type JobOpeningDetails struct {
	ID                       string                  `json:"id"`
	Name                     string                  `json:"name"`
	Description              string                  `json:"description"`
	AnalysisLanguage         string                  `json:"analysis_language"`
	Status                   domain.JobOpeningStatus `json:"status"`
	StatusDescription        string                  `json:"status_description"`
	DateCreated              time.Time               `json:"date_created"`
	DateLastModified         time.Time               `json:"date_last_modified"`
	Candidates               []CandidateView         `json:"candidates"`
	TotalCandidateCvsCount   int                     `json:"total_candidate_cvs_count"`
	Page                     int                     `json:"page"`
	PageSize                 int                     `json:"page_size"`
	EstimatedAnalysisMinutes int                     `json:"estimated_analysis_minutes"`
}

type JobOpeningUsecase struct {
	store    JobOpeningStore
	blobs    BlobStore
	pages    PageCounter
	events   EventPublisher
	progress ProgressTracker
	settings JobOpeningSettings
	validate *validator.Validate
	now      func() time.Time
	log      logrus.FieldLogger
}

func NewJobOpeningUsecase(store JobOpeningStore, blobs BlobStore, pages PageCounter, events EventPublisher, progress ProgressTracker, settings JobOpeningSettings, log logrus.FieldLogger) *JobOpeningUsecase {
	if events == nil {
		events = nopPublisher{}
	}
	if progress == nil {
		progress = NopProgressTracker{}
	}
	if settings.CandidateCvsPageSize < 1 {
		settings.CandidateCvsPageSize = 25
	}
	if settings.PdfMaxPages < 1 {
		settings.PdfMaxPages = 5
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &JobOpeningUsecase{
		store:    store,
		blobs:    blobs,
		pages:    pages,
		events:   events,
		progress: progress,
		settings: settings,
		validate: validate,
		now:      time.Now,
		log:      log.WithField("component", "job_openings"),
	}
}

func (u *JobOpeningUsecase) Languages() []string {
	return domain.SupportedLanguages()
}

func (u *JobOpeningUsecase) Create(ctx context.Context, in JobOpeningInput) (*domain.JobOpening, error) {
	lang, err := u.validateInput(&in)
	if err != nil {
		return nil, err
	}

	jobOpening := domain.NewJobOpening(strings.TrimSpace(in.Name), in.Description, lang, u.now())
	if err := u.store.CreateJobOpening(ctx, jobOpening); err != nil {
		return nil, fmt.Errorf("create job opening: %w", err)
	}
	u.log.WithField("job_opening_id", jobOpening.ID).Info("job opening created")
	return jobOpening, nil
}

func (u *JobOpeningUsecase) List(ctx context.Context) ([]domain.JobOpening, error) {
	return u.store.ListJobOpenings(ctx)
}

func (u *JobOpeningUsecase) Get(ctx context.Context, id string, page int) (*JobOpeningDetails, error) {
	if page < 1 {
		page = 1
	}
	pageSize := u.settings.CandidateCvsPageSize

	jobOpening, err := u.store.GetJobOpening(ctx, id, page, pageSize)
	if err != nil {
		return nil, err
	}
	if page > 1 && (page-1)*pageSize >= jobOpening.TotalCandidateCvsCount {
		return nil, &domain.ValidationError{Field: "page", Message: fmt.Sprintf("page %d is out of range", page)}
	}

	estimate := jobOpening.EstimatedAnalysisMinutes(u.settings.PollInterval, u.settings.MaxParallelism)
	details := &JobOpeningDetails{
		ID:                       jobOpening.ID,
		Name:                     jobOpening.Name,
		Description:              jobOpening.Description,
		AnalysisLanguage:         jobOpening.AnalysisLanguage,
		Status:                   jobOpening.Status,
		StatusDescription:        jobOpening.Status.Description(),
		DateCreated:              jobOpening.DateCreated,
		DateLastModified:         jobOpening.DateLastModified,
		Candidates:               []CandidateView{},
		TotalCandidateCvsCount:   jobOpening.TotalCandidateCvsCount,
		Page:                     page,
		PageSize:                 pageSize,
		EstimatedAnalysisMinutes: estimate,
	}

	// Candidates are hidden while the pipeline owns them.
	if jobOpening.Status == domain.StatusInAnalysis {
		return details, nil
	}

	for _, c := range jobOpening.CandidateCvs {
		view := CandidateView{
			ID:          c.ID,
			FileName:    c.FileName,
			DateCreated: c.DateCreated,
			Rating:      c.Rating,
		}
		if c.Analysis != nil {
			verdict, err := domain.ParseVerdict(*c.Analysis)
			if err != nil {
				u.log.WithError(err).WithField("candidate_id", c.ID).Warn("stored analysis is unreadable")
				verdict, _ = domain.ParseVerdict(domain.FailedAnalysis)
			}
			view.Analysis = verdict
		}
		details.Candidates = append(details.Candidates, view)
	}
	return details, nil
}

func (u *JobOpeningUsecase) Update(ctx context.Context, id string, in JobOpeningInput) (*domain.JobOpening, error) {
	lang, err := u.validateInput(&in)
	if err != nil {
		return nil, err
	}

	jobOpening, err := u.editable(ctx, id)
	if err != nil {
		return nil, err
	}

	jobOpening.Name = strings.TrimSpace(in.Name)
	jobOpening.Description = in.Description
	jobOpening.AnalysisLanguage = lang
	jobOpening.DateLastModified = u.now().UTC()

	if err := u.store.UpdateJobOpening(ctx, jobOpening); err != nil {
		return nil, fmt.Errorf("update job opening: %w", err)
	}
	return jobOpening, nil
}

func (u *JobOpeningUsecase) Delete(ctx context.Context, id string) error {
	ids, err := u.store.ListCandidateIDs(ctx, id)
	if err != nil {
		return err
	}
	if err := u.store.DeleteJobOpening(ctx, id); err != nil {
		return err
	}
	u.deleteBlobs(ctx, id, ids)
	u.log.WithField("job_opening_id", id).Info("job opening deleted")
	return nil
}

// UploadCandidateCvs stores every valid, not yet uploaded PDF as a new candidate.
// Each file gets its own result. The call aborts on store level failures and when
// the job opening leaves open for editing while files are still being added.
func (u *JobOpeningUsecase) UploadCandidateCvs(ctx context.Context, id string, files []UploadFile) ([]UploadOutcome, error) {
	jobOpening, err := u.editable(ctx, id)
	if err != nil {
		return nil, err
	}

	hashes, err := u.store.CandidateHashes(ctx, jobOpening.ID)
	if err != nil {
		return nil, fmt.Errorf("load candidate hashes: %w", err)
	}

	outcomes := make([]UploadOutcome, 0, len(files))
	for _, f := range files {
		out := UploadOutcome{FileName: f.FileName}
		out.Result, out.CandidateID, err = u.upload(ctx, jobOpening.ID, f, hashes)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

func (u *JobOpeningUsecase) upload(ctx context.Context, jobOpeningID string, f UploadFile, hashes map[string]struct{}) (domain.UploadResult, string, error) {
	logger := u.log.WithFields(logrus.Fields{
		"job_opening_id": jobOpeningID,
		"file_name":      f.FileName,
	})

	pages, err := u.pages.CountPages(f.Data)
	if err != nil {
		logger.WithError(err).Debug("rejected invalid pdf")
		return domain.UploadInvalidPdfFormat, "", nil
	}
	if pages > u.settings.PdfMaxPages {
		return domain.UploadPdfFileHasTooManyPages, "", nil
	}

	candidate := domain.NewCandidateCv(jobOpeningID, f.FileName, f.Data, u.now())
	if _, ok := hashes[candidate.Sha256FileHash]; ok {
		return domain.UploadAlreadyUploaded, "", nil
	}

	if err := u.blobs.PutBlob(ctx, jobOpeningID, candidate.ID, f.Data); err != nil {
		logger.WithError(err).Error("candidate cv pdf upload failed")
		return domain.UploadFailed, "", nil
	}
	if err := u.store.AddCandidateCv(ctx, candidate); err != nil {
		logger.WithError(err).Error("candidate cv pdf upload failed")
		if err := u.blobs.DeleteBlob(ctx, jobOpeningID, candidate.ID); err != nil {
			logger.WithError(err).Warn("failed to remove orphaned blob")
		}
		if errors.Is(err, domain.ErrStatusConflict) || errors.Is(err, domain.ErrNotFound) {
			return "", "", err
		}
		return domain.UploadFailed, "", nil
	}

	hashes[candidate.Sha256FileHash] = struct{}{}
	return domain.UploadSuccessful, candidate.ID, nil
}

func (u *JobOpeningUsecase) DeleteCandidateCvs(ctx context.Context, id string, candidateIDs []string) error {
	if len(candidateIDs) == 0 {
		return nil
	}
	if _, err := u.editable(ctx, id); err != nil {
		return err
	}
	if err := u.store.DeleteCandidateCvs(ctx, id, candidateIDs); err != nil {
		return fmt.Errorf("delete candidate cvs: %w", err)
	}
	u.deleteBlobs(ctx, id, candidateIDs)
	return nil
}

// SubmitForAnalysis hands the job opening over to the analysis pipeline.
func (u *JobOpeningUsecase) SubmitForAnalysis(ctx context.Context, id string) error {
	count, err := u.store.CountCandidates(ctx, id)
	if err != nil {
		return err
	}
	if count == 0 {
		return &domain.ValidationError{Field: "candidate_cvs", Message: "upload at least one candidate cv"}
	}

	if err := u.store.TransitionStatus(ctx, id, domain.StatusOpenForEditing, domain.StatusInAnalysis); err != nil {
		return err
	}

	event := domain.JobOpeningEvent{
		Type:         domain.EventAnalysisRequested,
		JobOpeningID: id,
		OccurredAt:   u.now().UTC(),
	}
	if err := u.events.Publish(ctx, event); err != nil {
		// The scheduler still finds the job opening on its next poll.
		u.log.WithError(err).WithField("job_opening_id", id).Warn("failed to publish analysis requested event")
	}
	u.log.WithField("job_opening_id", id).Info("job opening submitted for analysis")
	return nil
}

func (u *JobOpeningUsecase) Progress(ctx context.Context, id string) (domain.AnalysisProgress, error) {
	if _, err := u.store.GetJobOpening(ctx, id, 0, 0); err != nil {
		return domain.AnalysisProgress{}, err
	}
	return u.progress.Get(ctx, id)
}

func (u *JobOpeningUsecase) editable(ctx context.Context, id string) (*domain.JobOpening, error) {
	jobOpening, err := u.store.GetJobOpening(ctx, id, 0, 0)
	if err != nil {
		return nil, err
	}
	if jobOpening.Status != domain.StatusOpenForEditing {
		return nil, fmt.Errorf("job opening is %s: %w", jobOpening.Status.Description(), domain.ErrStatusConflict)
	}
	return jobOpening, nil
}

func (u *JobOpeningUsecase) validateInput(in *JobOpeningInput) (string, error) {
	if err := u.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return "", &domain.ValidationError{Field: verrs[0].Field(), Message: "failed on " + verrs[0].Tag()}
		}
		return "", err
	}
	return domain.ValidateAnalysisLanguage(in.AnalysisLanguage)
}

func (u *JobOpeningUsecase) deleteBlobs(ctx context.Context, jobOpeningID string, ids []string) {
	for _, candidateID := range ids {
		if err := u.blobs.DeleteBlob(ctx, jobOpeningID, candidateID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			u.log.WithError(err).WithFields(logrus.Fields{
				"job_opening_id": jobOpeningID,
				"candidate_id":   candidateID,
			}).Warn("failed to delete candidate cv blob")
		}
	}
}
