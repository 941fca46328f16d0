// Package probe exercises a running prediction service end to end: health,
// concurrent predictions over the bundled dataset, and the validation contract.
package probe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/clinic/internal/adapters/artifact"
	"github.com/okian/clinic/internal/adapters/dataset"
	"github.com/okian/clinic/internal/domain/features"
	"github.com/okian/clinic/pkg/logger"
)

// Run executes a complete probe and returns its statistics.
// Requests and Workers below one are raised to one.
func Run(ctx context.Context, in *Config) (*Stats, error) {
	if in == nil {
		in = &Config{}
	}
	c := in.normalized()
	cfg := &c
	log := logger.Named("probe")
	stats := &Stats{StartTime: time.Now()}
	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)

	log.Info(ctx, "starting probe",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("requests", cfg.Requests),
		logger.Int("workers", cfg.Workers))

	version, err := checkHealth(ctx, client)
	if err != nil {
		return stats, err
	}
	log.Info(ctx, "service is healthy", logger.String("model_version", version))

	var ref reference
	if cfg.ArtifactPath != "" {
		p, err := artifact.Load(cfg.ArtifactPath)
		if err != nil {
			return stats, fmt.Errorf("load reference artifact: %w", err)
		}
		ref = p
	}

	vectors, err := generateVectors(cfg.Requests)
	if err != nil {
		return stats, err
	}
	submitPredictions(ctx, cfg, client, vectors, ref, stats)

	if err := verifyContract(ctx, client); err != nil {
		return stats, err
	}

	stats.Duration = time.Since(stats.StartTime)
	log.Info(ctx, "final statistics",
		logger.Int("submitted", stats.Submitted),
		logger.Int("successful", stats.Successful),
		logger.Int("failed", stats.Failed),
		logger.Int("mismatched", stats.Mismatched),
		logger.String("duration", stats.Duration.String()))

	if stats.Failed > 0 || stats.Mismatched > 0 {
		return stats, fmt.Errorf("%w: %d failed, %d mismatched", ErrFailures, stats.Failed, stats.Mismatched)
	}
	return stats, nil
}

func checkHealth(ctx context.Context, client *HTTPClient) (string, error) {
	var h healthResponse
	status, err := client.Get(ctx, "/health", &h)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	if status != http.StatusOK || h.Status != "ok" || h.ModelVersion == "" {
		return "", fmt.Errorf("%w: status %d body %+v", ErrUnhealthy, status, h)
	}
	return h.ModelVersion, nil
}

// generateVectors cycles through the bundled dataset rows.
func generateVectors(n int) ([]features.Vector, error) {
	table, err := dataset.LoadDiabetes()
	if err != nil {
		return nil, err
	}
	out := make([]features.Vector, n)
	for i := range out {
		v, err := features.FromRow(table.Rows[i%table.Len()])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// verifyContract checks that a malformed body is a 422 validation error.
func verifyContract(ctx context.Context, client *HTTPClient) error {
	var e errorResponse
	status, err := client.Post(ctx, "/predict", []byte(`{"age":"oops"}`), &e)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrContract, err)
	}
	if status != http.StatusUnprocessableEntity || e.Error != "validation_error" || len(e.Detail) == 0 {
		return fmt.Errorf("%w: got status %d error %q with %d details", ErrContract, status, e.Error, len(e.Detail))
	}
	return nil
}
