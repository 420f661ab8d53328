package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/healthscan/go-healthscan-backend/internal/domain"
	"github.com/healthscan/go-healthscan-backend/internal/inference"
	"github.com/healthscan/go-healthscan-backend/internal/repo"
)

// stubClassifier returns a fixed verdict regardless of input.
type stubClassifier struct {
	result inference.Result
}

func (s stubClassifier) Classify(_ context.Context, _ []byte, _ domain.ScanKind) inference.Result {
	return s.result
}

func newScanService(t *testing.T, verdict inference.Result) *ScanService {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:scan_service_"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Scan{}, &domain.Recommendation{}, &domain.Idempotency{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return &ScanService{
		DB:            db,
		Gateway:       stubClassifier{result: verdict},
		MaxImageBytes: 1 << 20,
	}
}

func TestAnalyze_MeasuredVerdict(t *testing.T) {
	svc := newScanService(t, inference.Result{Label: "Eczema", Confidence: 72, Succeeded: true})
	ctx := context.Background()

	scan, script, err := svc.Analyze(ctx, "user-1", domain.ScanKindGeneral, []byte("jpegbytes"), "ZGF0YQ==", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if scan.ID == "" {
		t.Fatalf("expected assigned scan ID")
	}
	if scan.Analysis.Label != "Eczema" || scan.Confidence != 72 {
		t.Fatalf("unexpected analysis: %+v", scan.Analysis)
	}
	if scan.Analysis.Provenance != domain.ProvenanceMeasured {
		t.Fatalf("expected measured provenance, got %q", scan.Analysis.Provenance)
	}
	if scan.Status != domain.ScanStatusCompleted {
		t.Fatalf("expected completed status, got %q", scan.Status)
	}
	if !strings.Contains(script, "Eczema") {
		t.Fatalf("narration should mention the condition: %q", script)
	}
	if !strings.Contains(script, "baseline") {
		t.Fatalf("first reading should narrate as baseline: %q", script)
	}

	recs, err := repo.ListRecommendationsByScan(ctx, svc.DB, scan.ID)
	if err != nil {
		t.Fatalf("list recommendations: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 derived recommendations, got %d", len(recs))
	}
	if recs[0].Title != "Personalized Precautions" || recs[0].Priority != domain.PriorityHigh {
		t.Fatalf("unexpected first recommendation: %+v", recs[0])
	}
}

func TestAnalyze_HintSubstitutesOnFailure(t *testing.T) {
	svc := newScanService(t, inference.Result{})
	hint := &AnalysisHint{
		Name:        "Mild Acne",
		Message:     "A few comedones detected on the left cheek.",
		Medicine:    "Adapalene gel 0.1%",
		Food:        "Reduce dairy and sugar intake.",
		Precautions: "Do not pop the lesions.",
		RiskFactor:  34,
	}

	scan, script, err := svc.Analyze(context.Background(), "user-1", domain.ScanKindAcne, []byte("img"), "aW1n", hint)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	a := scan.Analysis
	if a.Provenance != domain.ProvenanceClientAsserted {
		t.Fatalf("expected client-asserted provenance, got %q", a.Provenance)
	}
	if a.Label != "Mild Acne" || a.Confidence != 34 {
		t.Fatalf("hint fields not carried: %+v", a)
	}
	if a.Medicine != "Adapalene gel 0.1%" || a.Diet != "Reduce dairy and sugar intake." {
		t.Fatalf("medicine/diet not carried: %+v", a)
	}
	if !strings.Contains(script, "Adapalene") || !strings.Contains(script, "Do not pop the lesions") {
		t.Fatalf("narration missing hint details: %q", script)
	}
}

func TestAnalyze_HintOutOfRangeRiskDefaults(t *testing.T) {
	svc := newScanService(t, inference.Result{})
	scan, _, err := svc.Analyze(context.Background(), "user-1", domain.ScanKindGeneral, []byte("img"), "aW1n",
		&AnalysisHint{Name: "Something", RiskFactor: 400})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if scan.Confidence != defaultHealthyConfidence {
		t.Fatalf("expected default confidence %d, got %d", defaultHealthyConfidence, scan.Confidence)
	}
}

func TestAnalyze_InconclusiveWithoutHint(t *testing.T) {
	svc := newScanService(t, inference.Result{})
	scan, _, err := svc.Analyze(context.Background(), "user-1", domain.ScanKindNutrition, []byte("img"), "aW1n", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	a := scan.Analysis
	if a.Label != inconclusiveLabel || a.Confidence != inconclusiveConfidence {
		t.Fatalf("expected neutral verdict, got %+v", a)
	}
	if a.Provenance != domain.ProvenanceInconclusive {
		t.Fatalf("expected inconclusive provenance, got %q", a.Provenance)
	}
}

func TestAnalyze_Validation(t *testing.T) {
	svc := newScanService(t, inference.Result{})
	ctx := context.Background()

	if _, _, err := svc.Analyze(ctx, "u", domain.ScanKindGeneral, nil, "", nil); !errors.Is(err, ErrMissingImage) {
		t.Fatalf("expected ErrMissingImage, got %v", err)
	}
	if _, _, err := svc.Analyze(ctx, "u", domain.ScanKind("xray"), []byte("x"), "eA==", nil); !errors.Is(err, ErrInvalidScanKind) {
		t.Fatalf("expected ErrInvalidScanKind, got %v", err)
	}
	svc.MaxImageBytes = 4
	if _, _, err := svc.Analyze(ctx, "u", domain.ScanKindGeneral, []byte("too big"), "dG9vIGJpZw==", nil); !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("expected ErrImageTooLarge, got %v", err)
	}
}

func TestAnalyze_TrendAgainstPreviousReading(t *testing.T) {
	svc := newScanService(t, inference.Result{Label: "Psoriasis", Confidence: 60, Succeeded: true})
	ctx := context.Background()

	if _, _, err := svc.Analyze(ctx, "user-1", domain.ScanKindGeneral, []byte("one"), "b25l", nil); err != nil {
		t.Fatalf("first Analyze: %v", err)
	}

	svc.Gateway = stubClassifier{result: inference.Result{Label: "Psoriasis", Confidence: 45, Succeeded: true}}
	_, script, err := svc.Analyze(ctx, "user-1", domain.ScanKindGeneral, []byte("two"), "dHdv", nil)
	if err != nil {
		t.Fatalf("second Analyze: %v", err)
	}
	if !strings.Contains(script, "improved by 15 points") {
		t.Fatalf("expected improvement trend in narration: %q", script)
	}
}

func TestAnalyze_TrendSurvivesPunctuatedLabel(t *testing.T) {
	// Real dermatology classes carry characters that JSON escapes when the
	// analysis blob is stored; the trend must still find the prior reading.
	svc := newScanService(t, inference.Result{Label: "Acne & Rosacea", Confidence: 60, Succeeded: true})
	ctx := context.Background()

	if _, script, err := svc.Analyze(ctx, "user-1", domain.ScanKindAcne, []byte("one"), "b25l", nil); err != nil {
		t.Fatalf("first Analyze: %v", err)
	} else if !strings.Contains(script, "baseline") {
		t.Fatalf("first scan should narrate as baseline: %q", script)
	}

	svc.Gateway = stubClassifier{result: inference.Result{Label: "Acne & Rosacea", Confidence: 45, Succeeded: true}}
	_, script, err := svc.Analyze(ctx, "user-1", domain.ScanKindAcne, []byte("two"), "dHdv", nil)
	if err != nil {
		t.Fatalf("second Analyze: %v", err)
	}
	if strings.Contains(script, "baseline") {
		t.Fatalf("repeat scan must not narrate as baseline: %q", script)
	}
	if !strings.Contains(script, "improved by 15 points") {
		t.Fatalf("expected improvement trend in narration: %q", script)
	}
}

func TestGet_NotFound(t *testing.T) {
	svc := newScanService(t, inference.Result{})
	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, ErrScanNotFound) {
		t.Fatalf("expected ErrScanNotFound, got %v", err)
	}
}

func TestListPage_ClampsAndCounts(t *testing.T) {
	svc := newScanService(t, inference.Result{Label: "Spot", Confidence: 50, Succeeded: true})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, _, err := svc.Analyze(ctx, "user-1", domain.ScanKindGeneral, []byte{byte(i + 1)}, "AQ==", nil); err != nil {
			t.Fatalf("seed Analyze: %v", err)
		}
	}

	items, total, err := svc.ListPage(ctx, "user-1", 0, -5)
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if total != 3 || len(items) != 3 {
		t.Fatalf("expected 3/3, got total=%d len=%d", total, len(items))
	}

	items, total, err = svc.ListPage(ctx, "user-1", 2, 2)
	if err != nil {
		t.Fatalf("ListPage page 2: %v", err)
	}
	if total != 3 || len(items) != 1 {
		t.Fatalf("expected 1 item on page 2, got %d", len(items))
	}

	items, total, err = svc.ListPage(ctx, "nobody", 1, 10)
	if err != nil {
		t.Fatalf("ListPage empty: %v", err)
	}
	if total != 0 || len(items) != 0 {
		t.Fatalf("expected empty page, got total=%d len=%d", total, len(items))
	}
}

func TestUpdate_PatchAndValidation(t *testing.T) {
	svc := newScanService(t, inference.Result{Label: "Rash", Confidence: 40, Succeeded: true})
	ctx := context.Background()

	scan, _, err := svc.Analyze(ctx, "user-1", domain.ScanKindGeneral, []byte("img"), "aW1n", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	status := domain.ScanStatusFailed
	conf := 55
	label := "Contact Dermatitis"
	updated, err := svc.Update(ctx, scan.ID, ScanPatch{Status: &status, Confidence: &conf, Label: &label})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Status != domain.ScanStatusFailed || updated.Confidence != 55 {
		t.Fatalf("patch not applied: %+v", updated)
	}
	if updated.Analysis.Label != "Contact Dermatitis" || updated.Analysis.Confidence != 55 {
		t.Fatalf("analysis not patched: %+v", updated.Analysis)
	}

	stored, err := repo.GetScan(ctx, svc.DB, scan.ID)
	if err != nil {
		t.Fatalf("GetScan: %v", err)
	}
	if stored.Analysis.Label != "Contact Dermatitis" || stored.Status != domain.ScanStatusFailed {
		t.Fatalf("patch not persisted: %+v", stored)
	}
	if !stored.CreatedAt.Equal(scan.CreatedAt) {
		t.Fatalf("CreatedAt must not change on update")
	}

	bad := domain.ScanStatus("archived")
	if _, err := svc.Update(ctx, scan.ID, ScanPatch{Status: &bad}); !errors.Is(err, ErrInvalidUpdate) {
		t.Fatalf("expected ErrInvalidUpdate for bad status, got %v", err)
	}
	over := 150
	if _, err := svc.Update(ctx, scan.ID, ScanPatch{Confidence: &over}); !errors.Is(err, ErrInvalidUpdate) {
		t.Fatalf("expected ErrInvalidUpdate for out-of-range confidence, got %v", err)
	}
	if _, err := svc.Update(ctx, "missing", ScanPatch{Confidence: &conf}); !errors.Is(err, ErrScanNotFound) {
		t.Fatalf("expected ErrScanNotFound, got %v", err)
	}
}

func TestRecentRecommendations_DefaultLimit(t *testing.T) {
	svc := newScanService(t, inference.Result{Label: "Spot", Confidence: 50, Succeeded: true})
	ctx := context.Background()
	if _, _, err := svc.Analyze(ctx, "user-1", domain.ScanKindGeneral, []byte("img"), "aW1n", nil); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	recs, err := svc.RecentRecommendations(ctx, 0)
	if err != nil {
		t.Fatalf("RecentRecommendations: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 recommendations, got %d", len(recs))
	}
}
