package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/atelierhq/design-api/internal/api/shared"
	"github.com/atelierhq/design-api/internal/domain"
	"github.com/atelierhq/design-api/internal/service"
)

// multipartOverhead is slack on top of the image size limit for the
// other form fields and multipart framing.
const multipartOverhead = 512 * 1024

// SubmitJobResponse is the body returned for an accepted submission.
type SubmitJobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// JobResponse represents the full state of a job for polling clients.
// Spec is present only for completed jobs, FailureReason only for
// failed ones.
type JobResponse struct {
	JobID         string          `json:"job_id"`
	Status        string          `json:"status"`
	Category      string          `json:"category"`
	Description   string          `json:"description"`
	Spec          json.RawMessage `json:"spec,omitempty"`
	FailureReason string          `json:"failure_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// JobSummary is the listing row shape.
type JobSummary struct {
	JobID       string    `json:"job_id"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	HasResult   bool      `json:"has_result"`
}

// ListJobsResponse is the paginated listing body.
type ListJobsResponse struct {
	Items    []JobSummary `json:"items"`
	Total    int          `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}

// JobHandler handles design job HTTP requests.
type JobHandler struct {
	jobs           *service.JobService
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(jobs *service.JobService, maxUploadBytes int64, logger *slog.Logger) *JobHandler {
	return &JobHandler{
		jobs:           jobs,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With(slog.String("component", "job_handler")),
	}
}

// SubmitJob handles POST /api/designs requests. The body is
// multipart/form-data with description and category fields plus an
// image file. Accepted submissions return 202 with the job id; the
// client polls GetJob for the outcome.
func (h *JobHandler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)

	if err := r.ParseMultipartForm(h.maxUploadBytes + multipartOverhead); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			shared.RespondWithError(w, r, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "A reference image is required")
		return
	}
	defer func() { _ = file.Close() }()

	imageData, err := io.ReadAll(file)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Failed to read uploaded image")
		return
	}

	job, err := h.jobs.Submit(r.Context(), service.SubmitRequest{
		Description:      r.FormValue("description"),
		Category:         r.FormValue("category"),
		ImageData:        imageData,
		ImageContentType: header.Header.Get("Content-Type"),
	})
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, SubmitJobResponse{
		JobID:  job.ID.String(),
		Status: string(job.Status),
	})
}

// GetJob handles GET /api/designs/{id} requests. Polling is idempotent:
// the same terminal job always produces the same body.
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseJobID(w, r)
	if !ok {
		return
	}

	job, err := h.jobs.GetJob(r.Context(), id)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, jobToResponse(job))
}

// ListJobs handles GET /api/designs requests with page and page_size
// query parameters.
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	page := shared.QueryInt(r, "page", 1)
	pageSize := shared.QueryInt(r, "page_size", 0)

	result, err := h.jobs.ListJobs(r.Context(), page, pageSize)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	items := make([]JobSummary, 0, len(result.Jobs))
	for _, job := range result.Jobs {
		items = append(items, JobSummary{
			JobID:       job.ID.String(),
			Category:    job.Category,
			Description: job.Description,
			Status:      string(job.Status),
			CreatedAt:   job.CreatedAt,
			HasResult:   len(job.Spec) > 0,
		})
	}

	shared.RespondWithJSON(w, r, http.StatusOK, ListJobsResponse{
		Items:    items,
		Total:    result.Total,
		Page:     result.Page,
		PageSize: result.PageSize,
	})
}

// GetJobImage handles GET /api/designs/{id}/image requests, serving the
// normalized reference image.
func (h *JobHandler) GetJobImage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseJobID(w, r)
	if !ok {
		return
	}

	data, contentType, err := h.jobs.GetJobImage(r.Context(), id)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Error("failed to write image response", slog.String("error", err.Error()))
	}
}

func (h *JobHandler) parseJobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid job ID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *JobHandler) respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := MapErrorToStatusCode(err)
	if status >= 500 {
		h.logger.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
	}
	shared.RespondWithError(w, r, status, GetSafeErrorMessage(err))
}

func jobToResponse(job *domain.Job) JobResponse {
	return JobResponse{
		JobID:         job.ID.String(),
		Status:        string(job.Status),
		Category:      job.Category,
		Description:   job.Description,
		Spec:          job.Spec,
		FailureReason: job.FailureReason,
		CreatedAt:     job.CreatedAt,
		UpdatedAt:     job.UpdatedAt,
	}
}
