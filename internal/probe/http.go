package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/clinic/internal/domain/features"
	"github.com/okian/clinic/pkg/logger"
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

func newHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}, baseURL: baseURL}
}

// Get performs a GET request and decodes a JSON body into out.
func (c *HTTPClient) Get(ctx context.Context, path string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

// Post sends body as JSON and decodes the response into out.
func (c *HTTPClient) Post(ctx context.Context, path string, body []byte, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *HTTPClient) do(req *http.Request, out any) (int, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// reference scores rows locally for parity checks.
type reference interface {
	PredictRow(row []float64) (float64, error)
}

// submitPredictions posts every vector with a bounded worker pool.
func submitPredictions(ctx context.Context, cfg *Config, client *HTTPClient, vectors []features.Vector, ref reference, stats *Stats) {
	log := logger.Named("probe")
	var submitted, successful, failed, mismatched int64

	jobs := make(chan features.Vector, cfg.Workers*2)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for v := range jobs {
				atomic.AddInt64(&submitted, 1)
				got, err := predictOnce(ctx, client, v)
				if err != nil {
					atomic.AddInt64(&failed, 1)
					log.Warn(ctx, "prediction failed", logger.Error(err))
					continue
				}
				atomic.AddInt64(&successful, 1)
				if cfg.Verbose {
					log.Debug(ctx, "prediction", logger.Float64("value", got))
				}
				if ref == nil {
					continue
				}
				want, err := ref.PredictRow(v.Row())
				if err != nil || math.Abs(want-got) > cfg.Tolerance {
					atomic.AddInt64(&mismatched, 1)
					log.Warn(ctx, "served prediction differs from local artifact",
						logger.Float64("served", got), logger.Float64("local", want))
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, v := range vectors {
			select {
			case <-ctx.Done():
				return
			case jobs <- v:
			}
		}
	}()
	wg.Wait()

	stats.Submitted = int(atomic.LoadInt64(&submitted))
	stats.Successful = int(atomic.LoadInt64(&successful))
	stats.Failed = int(atomic.LoadInt64(&failed))
	stats.Mismatched = int(atomic.LoadInt64(&mismatched))
}

func predictOnce(ctx context.Context, client *HTTPClient, v features.Vector) (float64, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	var resp predictResponse
	status, err := client.Post(ctx, "/predict", body, &resp)
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK || resp.Prediction == nil {
		return 0, fmt.Errorf("unexpected status %d", status)
	}
	if math.IsNaN(*resp.Prediction) || math.IsInf(*resp.Prediction, 0) {
		return 0, fmt.Errorf("non-finite prediction %v", *resp.Prediction)
	}
	return *resp.Prediction, nil
}
