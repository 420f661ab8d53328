// Scan HTTP handlers.
//
// This file exposes REST endpoints for scan resources:
//   - POST  /analyze-image  (upload a capture, run inference, persist the scan)
//   - GET   /scans          (list, paginated, ETag support)
//   - GET   /scans/{id}     (fetch one scan)
//   - PATCH /scans/{id}     (annotate/correct a stored scan)
//
// Handlers are transport-thin: they validate and decode multipart/JSON input,
// delegate to the application services (ScanService), and translate results
// into HTTP responses (including conditional responses).
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// result exists for (user, scanType, key), the handler returns the recorded
// scan and sets `Idempotency-Replayed: true` instead of running inference
// again.
package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/healthscan/go-healthscan-backend/internal/domain"
	"github.com/healthscan/go-healthscan-backend/internal/http/middleware"
	"github.com/healthscan/go-healthscan-backend/internal/narration"
	"github.com/healthscan/go-healthscan-backend/internal/repo"
	"github.com/healthscan/go-healthscan-backend/internal/services"
	"github.com/healthscan/go-healthscan-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// ScanService defines the scan pipeline operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ScanService interface {
	// Analyze runs inference on a capture and persists the resulting scan.
	Analyze(ctx context.Context, userID string, kind domain.ScanKind, image []byte, encoded string, hint *services.AnalysisHint) (*domain.Scan, string, error)
	// Get fetches one scan by id.
	Get(ctx context.Context, id string) (*domain.Scan, error)
	// ListPage returns a page of the user's scans and the total count.
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Scan, int64, error)
	// Update applies an annotation/correction patch to a stored scan.
	Update(ctx context.Context, id string, patch services.ScanPatch) (*domain.Scan, error)
	// RecentRecommendations returns the latest derived advice across scans.
	RecentRecommendations(ctx context.Context, limit int) ([]domain.Recommendation, error)
}

// SpeechService converts narration text into audio.
type SpeechService interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// VoiceRouter maps a voice transcript onto a client action.
type VoiceRouter interface {
	Route(transcript string) narration.Command
}

// Publisher receives narration scripts for asynchronous speech delivery.
type Publisher interface {
	Publish(script string)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for scans, recommendations, speech, and
// voice commands. It depends on abstract service interfaces to keep transport
// concerns separate from business logic.
type Handlers struct {
	scanSvc   ScanService
	speechSvc SpeechService
	voice     VoiceRouter
	publisher Publisher

	// DefaultUser owns requests that carry no user identity (single-user
	// demo flow). Empty means "demo-user".
	DefaultUser string
	// FeedLimit is the default size of the recommendations feed. Zero means
	// defaultRecommendLimit.
	FeedLimit int
	// IdempotencyTTL bounds how long a recorded Idempotency-Key replays.
	// Zero means 24h.
	IdempotencyTTL time.Duration
}

// New constructs and returns a Handlers instance bound to the given services.
// speechSvc and publisher may be nil when the corresponding feature is
// disabled.
func New(scanSvc ScanService, speechSvc SpeechService, voice VoiceRouter, publisher Publisher) *Handlers {
	return &Handlers{scanSvc: scanSvc, speechSvc: speechSvc, voice: voice, publisher: publisher}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to the configured demo owner. It never touches c.Request if
// it's nil.
func (h *Handlers) userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if hdr := strings.TrimSpace(c.GetHeader("X-User-ID")); hdr != "" {
			return hdr
		}
	}
	if h.DefaultUser != "" {
		return h.DefaultUser
	}
	return "demo-user"
}

//
// DTOs
//

// AnalyzeResponse is the JSON envelope returned for a processed capture.
type AnalyzeResponse struct {
	// ScanID identifies the stored scan for later retrieval.
	ScanID string `json:"scanId" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	// Analysis is the normalized verdict for the capture.
	Analysis domain.AnalysisResult `json:"analysis"`
	// Confidence mirrors the analysis risk score (0-100).
	Confidence int `json:"confidence" example:"72"`
	// Narration is the spoken-report script for the scan.
	Narration string `json:"narration"`
}

// UpdateScanRequest is the JSON payload for the PATCH endpoint. All fields
// are optional; absent fields are left untouched.
type UpdateScanRequest struct {
	// Status moves the scan between processing/completed/failed.
	Status *string `json:"status" example:"completed"`
	// Confidence overrides the stored risk score (0-100).
	Confidence *int `json:"confidence" example:"55"`
	// Name corrects the detected condition label.
	Name *string `json:"name" example:"Contact Dermatitis"`
	// Message replaces the analysis summary.
	Message *string `json:"message"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListScansResponse wraps a page of scans and pagination information.
type ListScansResponse struct {
	Scans      []domain.Scan `json:"scans"`
	Pagination Pagination    `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// readImagePart pulls the uploaded capture out of the multipart form and
// returns both the raw bytes and the base64 form stored on the scan row.
func readImagePart(c *gin.Context) (raw []byte, encoded string, err error) {
	fh, err := c.FormFile("image")
	if err != nil {
		return nil, "", err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	raw, err = io.ReadAll(f)
	if err != nil {
		return nil, "", err
	}
	return raw, base64.StdEncoding.EncodeToString(raw), nil
}

// idempotencyKey returns the key the validator middleware stashed in the
// context, falling back to the raw header when the route is mounted without
// the validator (tests, stripped-down routers).
func idempotencyKey(c *gin.Context) string {
	if key, ok := middleware.GetIdempotencyKey(c); ok {
		return key
	}
	return strings.TrimSpace(c.GetHeader(middleware.HeaderIdempotencyKey))
}

//
// Handlers
//

// AnalyzeImage godoc
// @ID          analyzeImage
// @Summary     Analyze an uploaded capture
// @Description Runs the inference pipeline on a camera capture and persists the scan.
// @Description Supports idempotency via the Idempotency-Key header (same key → same result).
// @Tags        Scans
// @Accept      multipart/form-data
// @Produce     json
//
// @Param       X-User-ID        header    string  false "User ID (demo header)"  example(user123)
// @Param       Idempotency-Key  header    string  false "Idempotency key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       image            formData  file    true  "Capture (JPEG/PNG, max 10 MiB)"
// @Param       scanType         formData  string  true  "Scan kind"  Enums(nutrition, acne, general)
// @Param       aiMetadata       formData  string  false "Client-side analysis hint (JSON)"
//
// @Success     200  {object}  handlers.AnalyzeResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     413  {object}  handlers.ErrorResponse  "Image too large"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /analyze-image [post]
func (h *Handlers) AnalyzeImage(c *gin.Context) {
	ctx := c.Request.Context()
	currentUser := h.userID(c)

	kind, okKind := domain.ParseScanKind(c.PostForm("scanType"))
	if !okKind {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "scanType must be one of: nutrition, acne, general")
		return
	}

	image, encoded, err := readImagePart(c)
	if err != nil || len(image) == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "image file required")
		return
	}

	var hint *services.AnalysisHint
	if raw := strings.TrimSpace(c.PostForm("aiMetadata")); raw != "" {
		var parsed services.AnalysisHint
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "aiMetadata must be valid JSON")
			return
		}
		hint = &parsed
	}

	// Idempotency (replay path) – read validated key if present.
	idemKey := idempotencyKey(c)
	if idemKey != "" {
		if svc, okSvc := h.scanSvc.(*services.ScanService); okSvc && svc.DB != nil {
			if rec, err := repo.GetIdempotency(ctx, svc.DB, currentUser, string(kind), idemKey, time.Now().UTC()); err == nil && rec != nil {
				if prev, err2 := repo.GetScan(ctx, svc.DB, rec.ScanID); err2 == nil {
					c.Header("Idempotency-Replayed", "true")
					ok(c, http.StatusOK, AnalyzeResponse{
						ScanID:     prev.ID,
						Analysis:   prev.Analysis,
						Confidence: prev.Confidence,
						Narration:  narration.BuildReport(prev.Analysis, nil),
					})
					return
				}
			}
		}
	}

	scan, script, err := h.scanSvc.Analyze(ctx, currentUser, kind, image, encoded, hint)
	if err != nil {
		switch err {
		case services.ErrMissingImage:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "image file required")
		case services.ErrInvalidScanKind:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "scanType must be one of: nutrition, acne, general")
		case services.ErrImageTooLarge:
			fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "image exceeds the upload limit")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeAnalysisFailed, err.Error())
		}
		return
	}

	// Idempotency (store path) – best effort.
	if idemKey != "" {
		if svc, okSvc := h.scanSvc.(*services.ScanService); okSvc && svc.DB != nil {
			ttl := h.IdempotencyTTL
			if ttl <= 0 {
				ttl = 24 * time.Hour
			}
			_, _ = repo.CreateIdempotency(ctx, svc.DB, currentUser, string(kind), idemKey, scan.ID, http.StatusOK, ttl)
		}
	}

	// Hand the narration to the speech consumer; latest script wins.
	if h.publisher != nil {
		h.publisher.Publish(script)
	}

	ok(c, http.StatusOK, AnalyzeResponse{
		ScanID:     scan.ID,
		Analysis:   scan.Analysis,
		Confidence: scan.Confidence,
		Narration:  script,
	})
}

// ListScans godoc
// @ID          listScans
// @Summary     List scans (paginated)
// @Description Returns a page of the user's scans, newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Scans
// @Produce     json
//
// @Param       X-User-ID      header  string  false "User ID (demo header)"       example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListScansResponse
// @Header      200  {string} ETag           "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /scans [get]
func (h *Handlers) ListScans(c *gin.Context) {
	ctx := c.Request.Context()
	uid := h.userID(c)
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, okSvc := h.scanSvc.(*services.ScanService); okSvc {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.ScansStats(ctx, db, uid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"scans:%s:%d:%d"`, uid, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.scanSvc.ListPage(ctx, uid, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListScansResponse{
		Scans: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetScan godoc
// @ID          getScan
// @Summary     Fetch one scan
// @Description Returns a stored scan with its analysis payload.
// @Tags        Scans
// @Produce     json
//
// @Param       id   path    string  true  "Scan ID (UUID)"  format(uuid)
//
// @Success     200  {object} domain.Scan
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Scan not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /scans/{id} [get]
func (h *Handlers) GetScan(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "scan id must be a UUID")
		return
	}

	scan, err := h.scanSvc.Get(c.Request.Context(), id)
	if err != nil {
		switch err {
		case services.ErrScanNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "scan not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, scan)
}

// UpdateScan godoc
// @ID          updateScan
// @Summary     Annotate or correct a scan
// @Description Applies a partial update to a stored scan. ID and creation time never change.
// @Tags        Scans
// @Accept      json
// @Produce     json
//
// @Param       id    path  string  true  "Scan ID (UUID)"  format(uuid)
// @Param       body  body  handlers.UpdateScanRequest  true  "Patch payload"
//
// @Success     200  {object} domain.Scan
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Scan not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /scans/{id} [patch]
func (h *Handlers) UpdateScan(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "scan id must be a UUID")
		return
	}

	var req UpdateScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	patch := services.ScanPatch{
		Confidence: req.Confidence,
		Label:      req.Name,
		Summary:    req.Message,
	}
	if req.Status != nil {
		st := domain.ScanStatus(strings.TrimSpace(*req.Status))
		patch.Status = &st
	}

	scan, err := h.scanSvc.Update(c.Request.Context(), id, patch)
	if err != nil {
		switch err {
		case services.ErrScanNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "scan not found")
		case services.ErrInvalidUpdate:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid update payload")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeUpdateFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, scan)
}
