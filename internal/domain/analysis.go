package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// Provenance records where an analysis verdict came from: measured by the
// inference pipeline, asserted by the client when inference was unavailable,
// or inconclusive when neither produced a verdict.
type Provenance string

// Provenance values.
const (
	ProvenanceMeasured       Provenance = "measured"
	ProvenanceClientAsserted Provenance = "client-asserted"
	ProvenanceInconclusive   Provenance = "inconclusive"
)

// RecommendationItem is the embedded form of a recommendation inside an
// analysis payload. The same items are also denormalized into the
// recommendations table at persistence time.
type RecommendationItem struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
}

// AnalysisResult is the normalized outcome of a scan, stored as JSON text on
// the scan row. Field names mirror the payload the camera client exchanges
// (name, food, riskFactor), so the stored blob round-trips unchanged.
type AnalysisResult struct {
	Label         string               `json:"name"`
	Summary       string               `json:"summary"`
	Medicine      string               `json:"medicine,omitempty"`
	Diet          string               `json:"food,omitempty"`
	Confidence    int                  `json:"riskFactor"`
	Provenance    Provenance           `json:"provenance,omitempty"`
	Severity      string               `json:"severity,omitempty"`
	AcneType      string               `json:"acneType,omitempty"`
	AffectedAreas []string             `json:"affectedAreas,omitempty"`
	Deficiencies  []string             `json:"deficiencies,omitempty"`
	Items         []RecommendationItem `json:"recommendations,omitempty"`
}

// Value implements driver.Valuer so GORM stores the result as a JSON string.
func (a AnalysisResult) Value() (driver.Value, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner for reading the JSON column back.
func (a *AnalysisResult) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = AnalysisResult{}
		return nil
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return errors.New("analysis column: unsupported source type")
	}
}
