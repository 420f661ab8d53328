// Package domain defines the persistence models for scans and their derived
// recommendations. These types are mapped with GORM and form the core data
// layer of the health-scan backend.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// ScanKind is the category of a capture as requested by the camera client.
type ScanKind string

// Supported scan kinds.
const (
	ScanKindNutrition ScanKind = "nutrition"
	ScanKindAcne      ScanKind = "acne"
	ScanKindGeneral   ScanKind = "general"
)

// ParseScanKind normalizes a client-supplied scan type. Unknown values are
// rejected rather than silently coerced.
func ParseScanKind(s string) (ScanKind, bool) {
	switch ScanKind(s) {
	case ScanKindNutrition, ScanKindAcne, ScanKindGeneral:
		return ScanKind(s), true
	default:
		return "", false
	}
}

// ScanStatus tracks the lifecycle of a scan record.
type ScanStatus string

// Scan lifecycle states. Analysis is synchronous, so rows are written as
// "completed"; the other states exist for annotation via PATCH.
const (
	ScanStatusProcessing ScanStatus = "processing"
	ScanStatusCompleted  ScanStatus = "completed"
	ScanStatusFailed     ScanStatus = "failed"
)

// Priority ranks a recommendation for the client UI.
type Priority string

// Recommendation priorities.
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Scan represents one analyzed capture owned by a user. The raw image is
// retained as base64 text (write-once); when an artifact store is configured
// the object URL is recorded alongside it.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - UserID: identifier of the scan owner; indexed for history retrieval.
//   - Kind: capture category (nutrition, acne, general).
//   - ImageData: base64-encoded capture, exactly as received.
//   - ImageURL: optional object-storage location of the raw capture.
//   - Analysis: normalized analysis result, serialized as JSON text.
//   - Label: denormalized condition label from the analysis. The trend
//     lookup matches on this column; labels contain free text ("Acne &
//     Rosacea"), so matching inside the JSON blob is not an option.
//   - Confidence: clamped 0-100 score surfaced to the client.
//   - Status: lifecycle state; defaults to completed.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type Scan struct {
	ID         string         `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID     string         `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_user_scans,priority:1;index:idx_user_label,priority:1"`
	Kind       ScanKind       `json:"type"       gorm:"column:kind;type:varchar(16);not null;check:kind IN ('nutrition','acne','general')"`
	ImageData  string         `json:"image_data,omitempty" gorm:"type:text;not null"`
	ImageURL   string         `json:"image_url,omitempty"  gorm:"type:varchar(512)"`
	Analysis   AnalysisResult `json:"analysis"   gorm:"type:text;not null"`
	Label      string         `json:"label,omitempty" gorm:"type:varchar(255);index:idx_user_label,priority:2"`
	Confidence int            `json:"confidence" gorm:"not null;check:confidence BETWEEN 0 AND 100"`
	Status     ScanStatus     `json:"status"     gorm:"type:varchar(16);not null;default:'completed'"`
	CreatedAt  time.Time      `json:"created_at" gorm:"index:idx_user_scans,priority:2"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for Scan.
func (Scan) TableName() string { return "scans" }

// Recommendation is a single actionable item derived from a scan. Rows are
// denormalized from the analysis payload so the client can query recent
// advice across scans without unpacking every analysis blob.
type Recommendation struct {
	ID          string         `json:"id"          gorm:"type:char(36);primaryKey"`
	ScanID      string         `json:"scan_id"     gorm:"type:char(36);not null;index:idx_scan_recs,priority:1"`
	Category    string         `json:"type"        gorm:"type:varchar(32);not null"`
	Title       string         `json:"title"       gorm:"type:varchar(255);not null"`
	Description string         `json:"description" gorm:"type:text;not null"`
	Priority    Priority       `json:"priority"    gorm:"type:varchar(8);not null;default:'medium';check:priority IN ('low','medium','high')"`
	CreatedAt   time.Time      `json:"created_at"  gorm:"index:idx_scan_recs,priority:2"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"           gorm:"index"`

	// Scan is the parent capture. Recommendations are cascade-deleted
	// if their scan is removed.
	Scan Scan `json:"-" gorm:"foreignKey:ScanID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Recommendation.
func (Recommendation) TableName() string { return "recommendations" }
