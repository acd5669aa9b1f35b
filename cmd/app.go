package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"cv-shortlist/config"
	"cv-shortlist/infrastructure"
	"cv-shortlist/interfaces"
	"cv-shortlist/usecase"
)

// app holds the infrastructure shared by every command.
type app struct {
	cfg      *config.Config
	log      *logrus.Logger
	db       *gorm.DB
	repo     *infrastructure.JobOpeningRepository
	blobs    usecase.BlobStore
	pdf      *infrastructure.PdfExtractor
	rabbit   *infrastructure.RabbitMQ
	events   usecase.EventPublisher
	progress usecase.ProgressTracker
	closers  []func() error
}

func newApp(ctx context.Context, cfg *config.Config, log *logrus.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.db, err = infrastructure.NewDatabase(cfg.DBDriver, cfg.DBDSN, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error {
		sqlDB, err := a.db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	if err = infrastructure.Migrate(a.db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	a.repo = infrastructure.NewJobOpeningRepository(a.db)

	switch cfg.BlobBackend {
	case "s3":
		a.blobs, err = infrastructure.NewS3BlobStore(ctx, infrastructure.S3Config{
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Bucket:          cfg.S3Bucket,
			UseSSL:          cfg.S3UseSSL,
		})
		if err != nil {
			return nil, err
		}
	default:
		a.blobs = infrastructure.NewDatabaseBlobStore(a.db)
	}

	a.pdf, err = infrastructure.NewPdfExtractor(cfg.UnidocLicenseKey, log)
	if err != nil {
		return nil, err
	}

	if cfg.EventBusEnabled() {
		a.rabbit, err = infrastructure.NewRabbitMQ(cfg.RabbitMQURL, cfg.RabbitMQExchange, log)
		if err != nil {
			return nil, err
		}
		a.events = a.rabbit
		a.closers = append(a.closers, a.rabbit.Close)
	}

	if cfg.ProgressEnabled() {
		client, err := infrastructure.NewRedisClient(ctx, infrastructure.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		a.progress = infrastructure.NewRedisProgressTracker(client)
		a.closers = append(a.closers, client.Close)
	}

	log.WithFields(logrus.Fields{
		"db_driver":    cfg.DBDriver,
		"blob_backend": cfg.BlobBackend,
		"event_bus":    cfg.EventBusEnabled(),
		"progress":     cfg.ProgressEnabled(),
	}).Info("infrastructure ready")
	return a, nil
}

func (a *app) jobOpenings() *usecase.JobOpeningUsecase {
	return usecase.NewJobOpeningUsecase(a.repo, a.blobs, a.pdf, a.events, a.progress, usecase.JobOpeningSettings{
		CandidateCvsPageSize: a.cfg.CandidateCvsPageSize,
		PdfMaxPages:          a.cfg.PdfMaxPages,
		PollInterval:         a.cfg.AnalysisPollInterval,
		MaxParallelism:       a.cfg.AnalysisMaxParallelism,
	}, a.log)
}

func (a *app) router() *gin.Engine {
	if a.log.IsLevelEnabled(logrus.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := interfaces.NewRouter(a.log)
	interfaces.NewHTTPHandler(router, a.jobOpenings(), a.log)
	return router
}

func (a *app) scheduler(ctx context.Context) (*usecase.Scheduler, error) {
	extractor, err := a.textExtractor(ctx)
	if err != nil {
		return nil, err
	}
	scorer, err := a.scorer(ctx)
	if err != nil {
		return nil, err
	}

	processor := usecase.NewCandidateProcessor(a.blobs, extractor, scorer, a.log)
	batch := usecase.NewBatchProcessor(processor, a.progress, a.cfg.AnalysisMaxParallelism, a.log)
	return usecase.NewScheduler(a.repo, batch, a.cfg.AnalysisPollInterval, a.log,
		usecase.WithEventPublisher(a.events),
		usecase.WithProgressTracker(a.progress),
	), nil
}

func (a *app) textExtractor(ctx context.Context) (usecase.TextExtractor, error) {
	switch a.cfg.ExtractorProvider {
	case "gemini":
		return infrastructure.NewGeminiClient(ctx, a.cfg.GeminiAPIKey, a.cfg.DocumentModel)
	default:
		return a.pdf, nil
	}
}

func (a *app) scorer(ctx context.Context) (usecase.Scorer, error) {
	switch a.cfg.ScoringProvider {
	case "gemini":
		return infrastructure.NewGeminiClient(ctx, a.cfg.GeminiAPIKey, a.cfg.ScoringModel)
	case "vertex":
		s, err := infrastructure.NewVertexScorer(ctx, a.cfg.VertexProject, a.cfg.VertexLocation, a.cfg.ScoringModel)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	default:
		return infrastructure.NewOpenAIScorer(infrastructure.OpenAIConfig{
			APIKey:     a.cfg.OpenAIAPIKey,
			BaseURL:    a.cfg.OpenAIBaseURL,
			Azure:      a.cfg.OpenAIAzure,
			APIVersion: a.cfg.OpenAIAPIVersion,
			Model:      a.cfg.ScoringModel,
		})
	}
}

// Close releases everything in reverse order of creation.
func (a *app) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.log.WithError(err).Warn("failed to release resources")
	}
}
