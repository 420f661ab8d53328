package inference

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/healthscan/go-healthscan-backend/internal/domain"
)

// ErrNoCredentials marks a provider that is configured without an API key.
// The gateway logs and skips it; startup never fails for a missing key.
var ErrNoCredentials = errors.New("inference: no credentials configured")

// visionAPI is the subset of the OpenAI client the fallback needs; narrowed
// for substitution in tests.
type visionAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Vision is the LLM fallback provider. It submits the capture as a base64
// data URL to a multimodal chat model and asks for a strict JSON verdict.
type Vision struct {
	Model  string
	client visionAPI
}

// NewVision builds the fallback provider. An empty apiKey yields a provider
// that fails every attempt with ErrNoCredentials.
func NewVision(apiKey, model string) *Vision {
	v := &Vision{Model: model}
	if apiKey != "" {
		v.client = openai.NewClient(apiKey)
	}
	return v
}

type visionVerdict struct {
	Label      string `json:"label"`
	Confidence int    `json:"confidence"`
}

// Name implements Provider.
func (v *Vision) Name() string { return "vision:" + v.Model }

// Classify implements Provider.
func (v *Vision) Classify(ctx context.Context, image []byte, kind domain.ScanKind) (Result, error) {
	if v.client == nil {
		return Result{}, ErrNoCredentials
	}

	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)
	resp, err := v.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     v.Model,
		MaxTokens: 200,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: visionPrompt(kind)},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailLow,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("vision completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, errors.New("vision completion: no choices")
	}

	var verdict visionVerdict
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &verdict); err != nil {
		return Result{}, fmt.Errorf("parse verdict: %w", err)
	}
	if strings.TrimSpace(verdict.Label) == "" {
		return Result{}, errors.New("vision verdict: empty label")
	}
	return Result{
		Label:      verdict.Label,
		Confidence: clamp(verdict.Confidence),
		Succeeded:  true,
	}, nil
}

func visionPrompt(kind domain.ScanKind) string {
	var focus string
	switch kind {
	case domain.ScanKindNutrition:
		focus = "visible signs of nutritional deficiency (pallor, brittle features, skin texture)"
	case domain.ScanKindAcne:
		focus = "acne type and severity"
	default:
		focus = "general skin health"
	}
	return "You are a screening assistant for a wellness demo. Assess the image for " + focus + ". " +
		`Respond with JSON only: {"label": "<short condition name>", "confidence": <integer 0-100>}. ` +
		"This is not a medical diagnosis."
}
