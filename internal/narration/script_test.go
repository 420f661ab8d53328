package narration

import (
	"strings"
	"testing"

	"github.com/healthscan/go-healthscan-backend/internal/domain"
)

func TestBuildReport_FullTemplate(t *testing.T) {
	a := domain.AnalysisResult{
		Label:      "mild acne",
		Medicine:   "Benzoyl peroxide 2.5%",
		Diet:       "Reduce sugar and dairy",
		Confidence: 55,
		Items: []domain.RecommendationItem{
			{Title: "Next Step", Description: "Repeat the scan weekly", Priority: domain.PriorityMedium},
			{Title: "Personalized Precautions", Description: "Avoid harsh cleansers", Priority: domain.PriorityHigh},
		},
	}
	prev := 70
	got := BuildReport(a, &prev)

	for _, want := range []string{
		"Scan complete.",
		"Condition detected: Mild Acne.",
		"Recommended medicine: Benzoyl peroxide 2.5%.",
		"Diet advice: Reduce sugar and dairy.",
		"Precaution: Avoid harsh cleansers.", // high priority wins over medium
		"improved by 15 points",              // 70 -> 55
		"Remember to repeat the scan weekly. Thank you.",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("report missing %q:\n%s", want, got)
		}
	}
}

func TestBuildReport_TrendDirections(t *testing.T) {
	a := domain.AnalysisResult{Label: "Dry Skin", Confidence: 85}

	t.Run("baseline without previous reading", func(t *testing.T) {
		got := BuildReport(a, nil)
		if !strings.Contains(got, "baseline reading") {
			t.Fatalf("expected baseline line, got:\n%s", got)
		}
	})
	t.Run("worsened when risk rose", func(t *testing.T) {
		prev := 70
		got := BuildReport(a, &prev) // 70 -> 85
		if !strings.Contains(got, "worsened by 15 points") {
			t.Fatalf("expected worsened line, got:\n%s", got)
		}
	})
	t.Run("unchanged on equal score", func(t *testing.T) {
		prev := 85
		got := BuildReport(a, &prev)
		if !strings.Contains(got, "unchanged") {
			t.Fatalf("expected unchanged line, got:\n%s", got)
		}
	})
}

func TestBuildReport_SparseAnalysis(t *testing.T) {
	got := BuildReport(domain.AnalysisResult{Confidence: 50}, nil)

	if !strings.Contains(got, "Unknown Condition") {
		t.Fatalf("expected unknown-condition fallback, got:\n%s", got)
	}
	// No medicine/diet/precaution sentences for empty fields.
	for _, absent := range []string{"Recommended medicine", "Diet advice", "Precaution:"} {
		if strings.Contains(got, absent) {
			t.Fatalf("unexpected %q in sparse report:\n%s", absent, got)
		}
	}
}

func TestBuildReport_SentenceTermination(t *testing.T) {
	a := domain.AnalysisResult{
		Label:      "Sun Damage",
		Medicine:   "Zinc oxide sunscreen.",
		Diet:       "Drink more water.",
		Confidence: 40,
		Items: []domain.RecommendationItem{
			{Title: "Personalized Precautions", Description: "Avoid excessive sun exposure.", Priority: domain.PriorityHigh},
		},
	}
	got := BuildReport(a, nil)

	if strings.Contains(got, "..") {
		t.Fatalf("doubled period in report:\n%s", got)
	}
	for _, want := range []string{
		"Recommended medicine: Zinc oxide sunscreen.",
		"Diet advice: Drink more water.",
		"Precaution: Avoid excessive sun exposure.",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("report missing %q:\n%s", want, got)
		}
	}
}

func TestBuildReport_PrecautionFallsBackToFirstItem(t *testing.T) {
	a := domain.AnalysisResult{
		Label:      "Iron Deficiency",
		Confidence: 60,
		Items: []domain.RecommendationItem{
			{Title: "Next Step", Description: "Add leafy greens", Priority: domain.PriorityLow},
			{Title: "Follow Up", Description: "See a dietician", Priority: domain.PriorityMedium},
		},
	}
	got := BuildReport(a, nil)
	if !strings.Contains(got, "Precaution: Add leafy greens.") {
		t.Fatalf("expected first-item fallback, got:\n%s", got)
	}
}
