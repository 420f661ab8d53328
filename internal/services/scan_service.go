// Package services – ScanService
//
// This file implements ScanService, the application-level component that owns
// the scan pipeline: validate the capture, dispatch the inference gateway,
// normalize the verdict against any client-supplied hint, persist the scan
// with its derived recommendations atomically, and render the narration
// script for the voice report.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include scan/user identifiers and pagination parameters where applicable.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/healthscan/go-healthscan-backend/internal/domain"
	"github.com/healthscan/go-healthscan-backend/internal/inference"
	"github.com/healthscan/go-healthscan-backend/internal/narration"
	"github.com/healthscan/go-healthscan-backend/internal/repo"
	"github.com/healthscan/go-healthscan-backend/internal/storage"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Fallback analysis constants. The healthy default mirrors what the camera
// client asserts when its on-device pass finds nothing; the inconclusive
// values are the neutral verdict when neither inference nor hint produced
// anything usable.
const (
	defaultHealthyLabel      = "Healthy Surface"
	defaultHealthyConfidence = 85

	inconclusiveLabel      = "Inconclusive"
	inconclusiveConfidence = 50
	inconclusiveSummary    = "The analysis was inconclusive. Please retake the scan in good lighting."
)

var scansTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "scans_total",
		Help: "Total number of processed scans by kind and status.",
	},
	[]string{"kind", "status"},
)

func init() {
	prometheus.MustRegister(scansTotal)
}

// AnalysisHint is the optional client-side metadata accompanying an upload
// (the aiMetadata form field). It enriches measured results and substitutes
// for them when every inference provider fails.
type AnalysisHint struct {
	Name        string `json:"name"`
	Message     string `json:"message"`
	Medicine    string `json:"medicine"`
	Food        string `json:"food"`
	Precautions string `json:"precautions"`
	RiskFactor  int    `json:"riskFactor"`
}

// ScanPatch is the partial-update surface of a stored scan. Nil fields are
// left untouched.
type ScanPatch struct {
	Status     *domain.ScanStatus
	Confidence *int
	Label      *string
	Summary    *string
}

// ScanService coordinates the capture-to-narration pipeline.
type ScanService struct {
	DB        *gorm.DB
	Gateway   inference.Classifier
	Artifacts storage.ArtifactStore // nil disables offload
	Log       zerolog.Logger

	MaxImageBytes   int64
	DefaultPageSize int
	MaxPageSize     int
}

// Analyze runs the full pipeline for one capture and returns the stored scan
// together with its narration script. No partial state survives a failure:
// scan and recommendations are written in one transaction.
func (s *ScanService) Analyze(ctx context.Context, userID string, kind domain.ScanKind, image []byte, encoded string, hint *AnalysisHint) (*domain.Scan, string, error) {
	tr := otel.Tracer("services/ScanService")
	ctx, span := tr.Start(ctx, "Analyze",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("scan.kind", string(kind)),
			attribute.Int("image.bytes", len(image)),
		),
	)
	defer span.End()

	if len(image) == 0 {
		return nil, "", ErrMissingImage
	}
	if s.MaxImageBytes > 0 && int64(len(image)) > s.MaxImageBytes {
		return nil, "", ErrImageTooLarge
	}
	if _, ok := domain.ParseScanKind(string(kind)); !ok {
		return nil, "", ErrInvalidScanKind
	}

	verdict := s.Gateway.Classify(ctx, image, kind)
	analysis := normalize(verdict, kind, hint)

	// Previous reading for the same condition feeds the narration trend.
	prev, err := repo.LatestConfidence(ctx, s.DB, userID, analysis.Label)
	if err != nil {
		s.Log.Warn().Err(err).Msg("trend lookup failed; narrating as baseline")
		prev = nil
	}

	scan := &domain.Scan{
		UserID:     userID,
		Kind:       kind,
		ImageData:  encoded,
		Analysis:   analysis,
		Label:      analysis.Label,
		Confidence: analysis.Confidence,
		Status:     domain.ScanStatusCompleted,
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.CreateScan(ctx, tx, scan); err != nil {
			return err
		}
		_, err := repo.CreateRecommendations(ctx, tx, scan.ID, "care-plan", analysis.Items)
		return err
	})
	if err != nil {
		scansTotal.WithLabelValues(string(kind), "error").Inc()
		return nil, "", err
	}
	scansTotal.WithLabelValues(string(kind), string(scan.Status)).Inc()

	// Best-effort artifact offload; the base64 column stays authoritative.
	if s.Artifacts != nil {
		key := time.Now().UTC().Format("2006/01/02") + "/" + scan.ID + ".jpg"
		if url, err := s.Artifacts.Upload(ctx, key, image, "image/jpeg"); err != nil {
			s.Log.Warn().Err(err).Str("scan_id", scan.ID).Msg("artifact offload failed")
		} else if err := repo.UpdateScanFields(ctx, s.DB, scan.ID, map[string]any{"image_url": url}); err == nil {
			scan.ImageURL = url
		}
	}

	return scan, narration.BuildReport(analysis, prev), nil
}

// Get fetches one scan by id.
func (s *ScanService) Get(ctx context.Context, id string) (*domain.Scan, error) {
	tr := otel.Tracer("services/ScanService")
	ctx, span := tr.Start(ctx, "Get",
		trace.WithAttributes(attribute.String("scan.id", id)),
	)
	defer span.End()

	scan, err := repo.GetScan(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrScanNotFound
	}
	return scan, err
}

// ListPage returns paginated scans for a user, newest first.
func (s *ScanService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Scan, int64, error) {
	tr := otel.Tracer("services/ScanService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = s.defaultPage()
	}
	if max := s.maxPage(); pageSize > max {
		pageSize = max
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountScans(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Scan{}, 0, nil
	}

	items, err := repo.ListScansPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}

// Update applies an annotation/correction patch and returns the new state.
// ID and CreatedAt never change.
func (s *ScanService) Update(ctx context.Context, id string, patch ScanPatch) (*domain.Scan, error) {
	tr := otel.Tracer("services/ScanService")
	ctx, span := tr.Start(ctx, "Update",
		trace.WithAttributes(attribute.String("scan.id", id)),
	)
	defer span.End()

	if patch.Status != nil {
		switch *patch.Status {
		case domain.ScanStatusProcessing, domain.ScanStatusCompleted, domain.ScanStatusFailed:
		default:
			return nil, ErrInvalidUpdate
		}
	}
	if patch.Confidence != nil && (*patch.Confidence < 0 || *patch.Confidence > 100) {
		return nil, ErrInvalidUpdate
	}
	if patch.Label != nil && strings.TrimSpace(*patch.Label) == "" {
		return nil, ErrInvalidUpdate
	}

	scan, err := repo.GetScan(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrScanNotFound
	}
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if patch.Status != nil {
		scan.Status = *patch.Status
		fields["status"] = string(*patch.Status)
	}
	if patch.Confidence != nil {
		scan.Confidence = *patch.Confidence
		scan.Analysis.Confidence = *patch.Confidence
	}
	if patch.Label != nil {
		scan.Analysis.Label = strings.TrimSpace(*patch.Label)
		scan.Label = scan.Analysis.Label
		fields["label"] = scan.Label
	}
	if patch.Summary != nil {
		scan.Analysis.Summary = strings.TrimSpace(*patch.Summary)
	}
	if patch.Confidence != nil || patch.Label != nil || patch.Summary != nil {
		fields["analysis"] = scan.Analysis
		if patch.Confidence != nil {
			fields["confidence"] = *patch.Confidence
		}
	}
	if len(fields) == 0 {
		return scan, nil
	}

	if err := repo.UpdateScanFields(ctx, s.DB, id, fields); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrScanNotFound
		}
		return nil, err
	}
	return scan, nil
}

// RecentRecommendations returns the latest derived advice across all scans.
func (s *ScanService) RecentRecommendations(ctx context.Context, limit int) ([]domain.Recommendation, error) {
	tr := otel.Tracer("services/ScanService")
	ctx, span := tr.Start(ctx, "RecentRecommendations",
		trace.WithAttributes(attribute.Int("limit", limit)),
	)
	defer span.End()

	if limit < 1 {
		limit = 10
	}
	return repo.ListRecentRecommendations(ctx, s.DB, limit)
}

func (s *ScanService) defaultPage() int {
	if s.DefaultPageSize > 0 {
		return s.DefaultPageSize
	}
	return 20
}

func (s *ScanService) maxPage() int {
	if s.MaxPageSize > 0 {
		return s.MaxPageSize
	}
	return 100
}

// normalize merges the gateway verdict with the client hint into the stored
// analysis. Provenance records which side won:
//
//   - measured:        a provider produced the label and confidence
//   - client-asserted: inference failed and the hint substituted
//   - inconclusive:    inference failed with no hint; neutral verdict
func normalize(verdict inference.Result, kind domain.ScanKind, hint *AnalysisHint) domain.AnalysisResult {
	a := domain.AnalysisResult{}

	switch {
	case verdict.Succeeded:
		a.Label = verdict.Label
		a.Confidence = verdict.Confidence
		a.Provenance = domain.ProvenanceMeasured
	case hint != nil:
		a.Label = strings.TrimSpace(hint.Name)
		if a.Label == "" {
			a.Label = defaultHealthyLabel
		}
		a.Confidence = hint.RiskFactor
		if a.Confidence < 1 || a.Confidence > 100 {
			a.Confidence = defaultHealthyConfidence
		}
		a.Provenance = domain.ProvenanceClientAsserted
	default:
		a.Label = inconclusiveLabel
		a.Confidence = inconclusiveConfidence
		a.Summary = inconclusiveSummary
		a.Provenance = domain.ProvenanceInconclusive
	}

	// Hints enrich the result even when the verdict was measured.
	if hint != nil {
		if a.Summary == "" {
			a.Summary = strings.TrimSpace(hint.Message)
		}
		a.Medicine = strings.TrimSpace(hint.Medicine)
		a.Diet = strings.TrimSpace(hint.Food)
	}
	if a.Summary == "" && a.Provenance != domain.ProvenanceInconclusive {
		a.Summary = "Condition assessment for " + a.Label + "."
	}
	if kind == domain.ScanKindAcne && a.Provenance == domain.ProvenanceMeasured {
		a.Severity = severityBand(a.Confidence)
	}

	a.Items = buildItems(kind, hint)
	return a
}

// severityBand maps a risk score onto the coarse severity shown in the UI.
func severityBand(confidence int) string {
	switch {
	case confidence >= 75:
		return "moderate to severe"
	case confidence >= 40:
		return "mild to moderate"
	default:
		return "minimal"
	}
}

// buildItems derives the denormalized recommendation rows: a personalized
// precaution (from the hint when present) and the standing follow-up.
func buildItems(kind domain.ScanKind, hint *AnalysisHint) []domain.RecommendationItem {
	precaution := ""
	if hint != nil {
		precaution = strings.TrimSpace(hint.Precautions)
	}
	if precaution == "" {
		switch kind {
		case domain.ScanKindNutrition:
			precaution = "Maintain a balanced diet and stay hydrated."
		case domain.ScanKindAcne:
			precaution = "Keep the affected area clean and avoid touching it."
		default:
			precaution = "Protect your skin from excessive sun exposure."
		}
	}
	return []domain.RecommendationItem{
		{Title: "Personalized Precautions", Description: precaution, Priority: domain.PriorityHigh},
		{Title: "Next Step", Description: "Repeat the scan weekly to track your progress.", Priority: domain.PriorityMedium},
	}
}
