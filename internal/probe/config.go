package probe

import "time"

// Config holds configuration for a probe run
type Config struct {
	BaseURL      string        // Base URL of the service
	Requests     int           // Number of /predict calls
	Workers      int           // Number of concurrent workers
	Timeout      time.Duration // HTTP request timeout
	ArtifactPath string        // Optional local artifact to compare predictions against
	Tolerance    float64       // Allowed absolute difference from the local artifact
	Verbose      bool          // Log every response
}

// normalized returns a copy with counts clamped to at least one.
func (c Config) normalized() Config {
	c.Requests = max(c.Requests, 1)
	c.Workers = max(c.Workers, 1)
	c.Tolerance = max(c.Tolerance, 0)
	return c
}

// Stats holds probe statistics
type Stats struct {
	Submitted  int
	Successful int
	Failed     int
	Mismatched int
	StartTime  time.Time
	Duration   time.Duration
}

type healthResponse struct {
	Status       string `json:"status"`
	ModelVersion string `json:"model_version"`
}

type predictResponse struct {
	Prediction *float64 `json:"prediction"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail []any  `json:"detail"`
}
