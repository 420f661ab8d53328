package inference

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/healthscan/go-healthscan-backend/internal/config"
	"github.com/healthscan/go-healthscan-backend/internal/domain"
)

var (
	// attempts counts provider attempts by provider name and outcome
	// (success, failure). Cardinality is bounded by the configured
	// candidate list.
	attempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inference_attempts_total",
			Help: "Total number of inference provider attempts.",
		},
		[]string{"provider", "outcome"},
	)

	// attemptLat records per-attempt latency in seconds by provider.
	attemptLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inference_attempt_duration_seconds",
			Help:    "Duration of inference provider attempts in seconds.",
			Buckets: []float64{.1, .25, .5, 1, 2, 4, 8, 16},
		},
		[]string{"provider"},
	)
)

func init() {
	prometheus.MustRegister(attempts, attemptLat)
}

// Gateway tries each Provider in order and returns the first success. Every
// attempt runs under its own deadline so one slow model cannot starve the
// rest of the chain.
type Gateway struct {
	Providers      []Provider
	AttemptTimeout time.Duration
	Log            zerolog.Logger
}

// NewGateway assembles the provider chain from configuration: the hosted
// candidates in configured order, then the vision fallback (which degrades
// itself when no API key is set).
func NewGateway(inf config.InferenceConfig, ai config.OpenAIConfig, log zerolog.Logger) *Gateway {
	providers := make([]Provider, 0, len(inf.Models)+1)
	for _, m := range inf.Models {
		providers = append(providers, &HostedModel{
			BaseURL: inf.BaseURL,
			Model:   m,
			Token:   inf.Token,
		})
	}
	providers = append(providers, NewVision(ai.APIKey, ai.VisionModel))
	return &Gateway{
		Providers:      providers,
		AttemptTimeout: inf.AttemptTimeout,
		Log:            log,
	}
}

// Classify implements Classifier. Provider errors are logged at warn level
// and never propagated; an all-failed chain yields Result{Succeeded: false}.
func (g *Gateway) Classify(ctx context.Context, image []byte, kind domain.ScanKind) Result {
	for _, p := range g.Providers {
		if ctx.Err() != nil {
			break
		}
		res, err := g.attempt(ctx, p, image, kind)
		if err != nil {
			g.Log.Warn().
				Str("provider", p.Name()).
				Str("kind", string(kind)).
				Err(err).
				Msg("inference attempt failed")
			attempts.WithLabelValues(p.Name(), "failure").Inc()
			continue
		}
		attempts.WithLabelValues(p.Name(), "success").Inc()
		return res
	}
	return Result{}
}

func (g *Gateway) attempt(ctx context.Context, p Provider, image []byte, kind domain.ScanKind) (Result, error) {
	actx := ctx
	if g.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, g.AttemptTimeout)
		defer cancel()
	}
	start := time.Now()
	res, err := p.Classify(actx, image, kind)
	attemptLat.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())
	return res, err
}
