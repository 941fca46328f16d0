package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/clinic/internal/probe"
	"github.com/okian/clinic/pkg/logger"
)

// Default configuration constants.
const (
	defaultRequests  = 1000
	defaultWorkers   = 2 // multiplier for runtime.NumCPU()
	defaultTimeout   = 10 * time.Second
	defaultTolerance = 1e-6
	defaultRunLimit  = 5 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:8000", "Base URL of the service")
		requests  = flag.Int("requests", defaultRequests, "Number of /predict calls")
		workers   = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		model     = flag.String("artifact", "", "Local artifact to compare served predictions against")
		tolerance = flag.Float64("tolerance", defaultTolerance, "Allowed absolute prediction difference")
		verbose   = flag.Bool("verbose", false, "Log every prediction")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunLimit)
	defer cancel()

	cfg := &probe.Config{
		BaseURL:      *baseURL,
		Requests:     max(*requests, 1),
		Workers:      max(*workers, 1),
		Timeout:      *timeout,
		ArtifactPath: *model,
		Tolerance:    *tolerance,
		Verbose:      *verbose,
	}
	if _, err := probe.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "probe failed", logger.Error(err))
		os.Exit(1)
	}
}
