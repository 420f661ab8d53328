package domain

import (
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:domain_models?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Enforce FKs so cascades actually execute.
	db.Exec("PRAGMA foreign_keys=ON;")
	return db
}

func TestParseScanKind(t *testing.T) {
	for _, ok := range []string{"nutrition", "acne", "general"} {
		if k, valid := ParseScanKind(ok); !valid || string(k) != ok {
			t.Fatalf("ParseScanKind(%q) = (%q, %v); want valid", ok, k, valid)
		}
	}
	for _, bad := range []string{"", "Nutrition", "xray", "skin "} {
		if _, valid := ParseScanKind(bad); valid {
			t.Fatalf("ParseScanKind(%q) accepted; want rejection", bad)
		}
	}
}

func TestTableNames(t *testing.T) {
	if (Scan{}).TableName() != "scans" {
		t.Fatalf("Scan.TableName() = %q; want %q", (Scan{}).TableName(), "scans")
	}
	if (Recommendation{}).TableName() != "recommendations" {
		t.Fatalf("Recommendation.TableName() = %q; want %q", (Recommendation{}).TableName(), "recommendations")
	}
}

func TestMigrations_Indexes_AndCascades(t *testing.T) {
	db := newDomainDB(t)

	if err := db.AutoMigrate(&Scan{}, &Recommendation{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()

	for _, tbl := range []any{&Scan{}, &Recommendation{}} {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}

	if !m.HasIndex(&Scan{}, "idx_user_scans") {
		t.Fatalf("expected index idx_user_scans on scans")
	}
	if !m.HasIndex(&Recommendation{}, "idx_scan_recs") {
		t.Fatalf("expected index idx_scan_recs on recommendations")
	}

	now := time.Now().UTC()

	sc := &Scan{
		ID:         "s1",
		UserID:     "u1",
		Kind:       ScanKindAcne,
		ImageData:  "aGVsbG8=",
		Analysis:   AnalysisResult{Label: "Mild Acne", Confidence: 72, Provenance: ProvenanceMeasured},
		Confidence: 72,
		Status:     ScanStatusCompleted,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := db.Create(sc).Error; err != nil {
		t.Fatalf("insert scan: %v", err)
	}

	rec := &Recommendation{
		ID:          "r1",
		ScanID:      "s1",
		Category:    "precaution",
		Title:       "Personalized Precautions",
		Description: "Avoid harsh cleansers",
		Priority:    PriorityHigh,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("insert recommendation: %v", err)
	}

	// Analysis JSON column survives the round trip through SQLite.
	var got Scan
	if err := db.First(&got, "id = ?", "s1").Error; err != nil {
		t.Fatalf("reload scan: %v", err)
	}
	if got.Analysis.Label != "Mild Acne" || got.Analysis.Confidence != 72 {
		t.Fatalf("analysis column mangled: %+v", got.Analysis)
	}
	if got.Analysis.Provenance != ProvenanceMeasured {
		t.Fatalf("provenance = %q; want measured", got.Analysis.Provenance)
	}

	// CASCADE: deleting a scan should delete its recommendations.
	if err := db.Unscoped().Delete(&Scan{}, "id = ?", "s1").Error; err != nil {
		t.Fatalf("delete scan: %v", err)
	}
	var cnt int64
	if err := db.Model(&Recommendation{}).Where("scan_id = ?", "s1").Count(&cnt).Error; err != nil {
		t.Fatalf("count recommendations after scan delete: %v", err)
	}
	if cnt != 0 {
		t.Fatalf("expected recommendations to cascade-delete when scan deleted, got count=%d", cnt)
	}
}

func TestAnalysisResult_ScanSources(t *testing.T) {
	var a AnalysisResult
	if err := a.Scan([]byte(`{"name":"Healthy Surface","riskFactor":85}`)); err != nil {
		t.Fatalf("scan bytes: %v", err)
	}
	if a.Label != "Healthy Surface" || a.Confidence != 85 {
		t.Fatalf("unexpected result: %+v", a)
	}
	if err := a.Scan(nil); err != nil {
		t.Fatalf("scan nil: %v", err)
	}
	if a.Label != "" {
		t.Fatalf("expected zeroed result after nil scan, got %+v", a)
	}
	if err := a.Scan(42); err == nil {
		t.Fatalf("expected error for unsupported source type")
	}
}
