package repo

import (
	"context"
	"testing"
	"time"

	"github.com/healthscan/go-healthscan-backend/internal/domain"
)

func TestCreateRecommendations_EmptyIsNoop(t *testing.T) {
	db := newScanRepoDB(t, &domain.Scan{}, &domain.Recommendation{})

	rows, err := CreateRecommendations(context.Background(), db, "s1", "precaution", nil)
	if err != nil || rows != nil {
		t.Fatalf("expected (nil, nil) for empty items, got (%v, %v)", rows, err)
	}
}

func TestCreateRecommendations_AssignsIDs_DefaultsPriority(t *testing.T) {
	db := newScanRepoDB(t, &domain.Scan{}, &domain.Recommendation{})
	seedScan(t, db, "s1", "u1", "x", 50, time.Now().UTC())

	items := []domain.RecommendationItem{
		{Title: "Personalized Precautions", Description: "Avoid oily food", Priority: domain.PriorityHigh},
		{Title: "Next Step", Description: "Repeat the scan weekly"}, // no priority -> medium
	}
	rows, err := CreateRecommendations(context.Background(), db, "s1", "care-plan", items)
	if err != nil {
		t.Fatalf("CreateRecommendations: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	for _, r := range rows {
		if r.ID == "" || r.ScanID != "s1" || r.Category != "care-plan" {
			t.Fatalf("unexpected row: %+v", r)
		}
	}
	if rows[0].Priority != domain.PriorityHigh || rows[1].Priority != domain.PriorityMedium {
		t.Fatalf("priority handling wrong: %+v", rows)
	}

	// Round trip by scan.
	got, err := ListRecommendationsByScan(context.Background(), db, "s1")
	if err != nil {
		t.Fatalf("ListRecommendationsByScan: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 persisted rows, got %d", len(got))
	}
}

func TestListRecentRecommendations_OrderAndLimit(t *testing.T) {
	db := newScanRepoDB(t, &domain.Scan{}, &domain.Recommendation{})

	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	ids := []string{"r1", "r2", "r3", "r4"}
	for i, id := range ids {
		ts := base.Add(time.Duration(i) * time.Minute)
		r := &domain.Recommendation{
			ID: id, ScanID: "s1", Category: "next-step", Title: "t", Description: "d",
			Priority: domain.PriorityLow, CreatedAt: ts, UpdatedAt: ts,
		}
		if err := db.Create(r).Error; err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}

	got, err := ListRecentRecommendations(context.Background(), db, 3)
	if err != nil {
		t.Fatalf("ListRecentRecommendations: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(got))
	}
	// Newest first: r4, r3, r2
	if got[0].ID != "r4" || got[1].ID != "r3" || got[2].ID != "r2" {
		t.Fatalf("unexpected order: %+v", got)
	}
}
