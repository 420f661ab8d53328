package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"

	"github.com/healthscan/go-healthscan-backend/internal/domain"
)

// HostedModel classifies images against one hosted inference endpoint
// (Hugging Face router style): POST {BaseURL}/{Model} with the raw image
// bytes as application/octet-stream and an optional bearer token.
//
// The endpoint responds with a score-ordered array:
//
//	[{"label": "acne", "score": 0.83}, ...]
//
// The top entry wins; its score is scaled to a 0..100 confidence.
type HostedModel struct {
	BaseURL string
	Model   string
	Token   string
	Client  *http.Client // nil means http.DefaultClient
}

type hostedScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Name implements Provider.
func (h *HostedModel) Name() string { return h.Model }

// Classify implements Provider. The caller bounds the attempt with a context
// deadline; no internal timeout is applied here.
func (h *HostedModel) Classify(ctx context.Context, image []byte, _ domain.ScanKind) (Result, error) {
	url := strings.TrimRight(h.BaseURL, "/") + "/" + h.Model
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(image))
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if h.Token != "" {
		req.Header.Set("Authorization", "Bearer "+h.Token)
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("model %s: status %d: %s", h.Model, resp.StatusCode, truncate(string(body), 200))
	}

	var scores []hostedScore
	if err := json.Unmarshal(body, &scores); err != nil {
		return Result{}, fmt.Errorf("parse scores: %w", err)
	}
	if len(scores) == 0 || strings.TrimSpace(scores[0].Label) == "" {
		return Result{}, fmt.Errorf("model %s: empty score list", h.Model)
	}

	top := scores[0]
	return Result{
		Label:      top.Label,
		Confidence: clamp(int(math.Round(top.Score * 100))),
		Succeeded:  true,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
