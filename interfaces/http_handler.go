package interfaces

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"cv-shortlist/domain"
	"cv-shortlist/usecase"
)

// maxUploadFileBytes caps a single uploaded CV.
const maxUploadFileBytes = 10 << 20

// JobOpeningService is what the HTTP layer needs from the job opening use cases.
type JobOpeningService interface {
	Languages() []string
	Create(ctx context.Context, in usecase.JobOpeningInput) (*domain.JobOpening, error)
	List(ctx context.Context) ([]domain.JobOpening, error)
	Get(ctx context.Context, id string, page int) (*usecase.JobOpeningDetails, error)
	Update(ctx context.Context, id string, in usecase.JobOpeningInput) (*domain.JobOpening, error)
	Delete(ctx context.Context, id string) error
	UploadCandidateCvs(ctx context.Context, id string, files []usecase.UploadFile) ([]usecase.UploadOutcome, error)
	DeleteCandidateCvs(ctx context.Context, id string, candidateIDs []string) error
	SubmitForAnalysis(ctx context.Context, id string) error
	Progress(ctx context.Context, id string) (domain.AnalysisProgress, error)
}

type HTTPHandler struct {
	svc JobOpeningService
	log logrus.FieldLogger
}

type deleteCandidatesRequest struct {
	IDs []string `json:"ids" binding:"required,min=1,dive,required"`
}

func NewHTTPHandler(router *gin.Engine, svc JobOpeningService, log logrus.FieldLogger) {
	h := &HTTPHandler{svc: svc, log: log.WithField("component", "http")}

	router.GET("/languages", h.Languages)

	jobOpenings := router.Group("/job-openings")
	jobOpenings.POST("", h.CreateJobOpening)
	jobOpenings.GET("", h.ListJobOpenings)
	jobOpenings.GET("/:id", h.GetJobOpening)
	jobOpenings.PUT("/:id", h.UpdateJobOpening)
	jobOpenings.DELETE("/:id", h.DeleteJobOpening)
	jobOpenings.POST("/:id/candidates", h.UploadCandidateCvs)
	jobOpenings.DELETE("/:id/candidates", h.DeleteCandidateCvs)
	jobOpenings.POST("/:id/submit", h.SubmitForAnalysis)
	jobOpenings.GET("/:id/progress", h.GetProgress)
}

func (h *HTTPHandler) Languages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"languages": h.svc.Languages()})
}

func (h *HTTPHandler) CreateJobOpening(c *gin.Context) {
	var in usecase.JobOpeningInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	jobOpening, err := h.svc.Create(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, jobOpening)
}

func (h *HTTPHandler) ListJobOpenings(c *gin.Context) {
	jobOpenings, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if jobOpenings == nil {
		jobOpenings = []domain.JobOpening{}
	}
	c.JSON(http.StatusOK, gin.H{"job_openings": jobOpenings})
}

func (h *HTTPHandler) GetJobOpening(c *gin.Context) {
	page := 1
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a positive integer"})
			return
		}
		page = n
	}

	details, err := h.svc.Get(c.Request.Context(), c.Param("id"), page)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

func (h *HTTPHandler) UpdateJobOpening(c *gin.Context) {
	var in usecase.JobOpeningInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	jobOpening, err := h.svc.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, jobOpening)
}

func (h *HTTPHandler) DeleteJobOpening(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadCandidateCvs accepts one or more PDFs in the multipart field "files".
func (h *HTTPHandler) UploadCandidateCvs(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form with files is required"})
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "files is required"})
		return
	}

	files := make([]usecase.UploadFile, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > maxUploadFileBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fh.Filename + " is larger than 10 MB"})
			return
		}
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open " + fh.Filename})
			return
		}
		data, err := io.ReadAll(io.LimitReader(f, maxUploadFileBytes+1))
		f.Close()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read " + fh.Filename})
			return
		}
		files = append(files, usecase.UploadFile{FileName: fh.Filename, Data: data})
	}

	outcomes, err := h.svc.UploadCandidateCvs(c.Request.Context(), c.Param("id"), files)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": outcomes})
}

func (h *HTTPHandler) DeleteCandidateCvs(c *gin.Context) {
	var req deleteCandidatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	if err := h.svc.DeleteCandidateCvs(c.Request.Context(), c.Param("id"), req.IDs); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) SubmitForAnalysis(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.SubmitForAnalysis(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"id":     id,
		"status": domain.StatusInAnalysis,
	})
}

func (h *HTTPHandler) GetProgress(c *gin.Context) {
	progress, err := h.svc.Progress(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

// fail maps domain errors to status codes. Anything unexpected is logged and hidden.
func (h *HTTPHandler) fail(c *gin.Context, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, domain.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "job opening not found"})
	case errors.Is(err, domain.ErrStatusConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.log.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
