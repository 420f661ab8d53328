// Package inference implements the image-classification gateway: an ordered
// list of hosted model candidates tried sequentially under a hard per-attempt
// timeout, with an optional LLM vision fallback. All provider failures are
// logged and swallowed; callers decide what to do with an unsuccessful
// result.
package inference

import (
	"context"

	"github.com/healthscan/go-healthscan-backend/internal/domain"
)

// Result is the normalized outcome of a classification attempt.
// Succeeded=false means every provider failed; Label and Confidence are then
// zero values and the caller substitutes its own default.
type Result struct {
	Label      string
	Confidence int // 0..100
	Succeeded  bool
}

// Provider is a single classification backend (one hosted model, or the
// vision fallback). Implementations return an error for any failure mode:
// transport, non-2xx status, unparsable payload, or timeout.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string
	// Classify sends the raw image bytes and returns the top verdict.
	Classify(ctx context.Context, image []byte, kind domain.ScanKind) (Result, error)
}

// Classifier is the gateway surface consumed by the scan service.
type Classifier interface {
	Classify(ctx context.Context, image []byte, kind domain.ScanKind) Result
}

// clamp bounds a confidence score to the 0..100 contract.
func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
