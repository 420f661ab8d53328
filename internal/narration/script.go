// Package narration turns analysis results into spoken-report scripts and
// routes voice-command transcripts to client actions. It also hosts the
// in-process scan-complete channel that feeds a speech consumer with
// latest-wins semantics.
package narration

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/healthscan/go-healthscan-backend/internal/domain"
)

var titler = cases.Title(language.English)

// BuildReport renders the fixed narration template for a completed scan:
// condition, medicine, diet, precaution, trend against the previous reading,
// and a closing remark. previous is the confidence of the user's last scan
// for the same condition, or nil for a first reading.
func BuildReport(a domain.AnalysisResult, previous *int) string {
	var b strings.Builder

	label := strings.TrimSpace(a.Label)
	if label == "" {
		label = "Unknown Condition"
	}
	fmt.Fprintf(&b, "Scan complete. Condition detected: %s.", titler.String(label))

	if m := clause(a.Medicine); m != "" {
		fmt.Fprintf(&b, " Recommended medicine: %s.", m)
	}
	if d := clause(a.Diet); d != "" {
		fmt.Fprintf(&b, " Diet advice: %s.", d)
	}
	if p := clause(precaution(a)); p != "" {
		fmt.Fprintf(&b, " Precaution: %s.", p)
	}

	b.WriteString(" " + trendLine(a.Confidence, previous))
	b.WriteString(" Remember to repeat the scan weekly. Thank you.")
	return b.String()
}

// clause trims whitespace and any trailing period so the template's own
// punctuation never doubles up.
func clause(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), ".")
}

// precaution picks the highest-priority recommendation description, if any.
func precaution(a domain.AnalysisResult) string {
	var fallback string
	for _, it := range a.Items {
		d := strings.TrimSpace(it.Description)
		if d == "" {
			continue
		}
		if it.Priority == domain.PriorityHigh {
			return d
		}
		if fallback == "" {
			fallback = d
		}
	}
	return fallback
}

// trendLine compares the current risk score against the previous reading.
// A positive delta (previous higher) reads as improvement.
func trendLine(current int, previous *int) string {
	if previous == nil {
		return "This is your baseline reading."
	}
	delta := *previous - current
	switch {
	case delta > 0:
		return fmt.Sprintf("Good news: your risk score improved by %d points since the last scan.", delta)
	case delta < 0:
		return fmt.Sprintf("Caution: your risk score worsened by %d points since the last scan.", -delta)
	default:
		return "Your risk score is unchanged since the last scan."
	}
}
