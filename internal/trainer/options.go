package trainer

import (
	"io"
	"time"

	"github.com/okian/clinic/internal/adapters/dataset"
	"github.com/okian/clinic/pkg/logger"
)

// Option configures a Trainer.
type Option func(*Trainer)

// WithVariant selects the candidate set.
func WithVariant(v Variant) Option {
	return func(t *Trainer) {
		if v != "" {
			t.variant = v
		}
	}
}

// WithSeed overrides the random seed.
func WithSeed(seed int64) Option {
	return func(t *Trainer) {
		t.seed = seed
	}
}

// WithTestSize sets the held-out fraction.
func WithTestSize(fraction float64) Option {
	return func(t *Trainer) {
		if fraction > 0 {
			t.testSize = fraction
		}
	}
}

// WithOutputDir sets where the artifact and metrics are written.
func WithOutputDir(dir string) Option {
	return func(t *Trainer) {
		if dir != "" {
			t.outputDir = dir
		}
	}
}

// WithDataset trains on table instead of the bundled data.
func WithDataset(table *dataset.Table) Option {
	return func(t *Trainer) {
		if table != nil {
			t.data = table
		}
	}
}

// WithClock replaces time.Now for train_time_utc.
func WithClock(now func() time.Time) Option {
	return func(t *Trainer) {
		if now != nil {
			t.now = now
		}
	}
}

// WithLogger sets the progress logger.
func WithLogger(l logger.Logger) Option {
	return func(t *Trainer) {
		if l != nil {
			t.log = l
		}
	}
}

// WithStdout sets where the summary line is printed.
func WithStdout(w io.Writer) Option {
	return func(t *Trainer) {
		if w != nil {
			t.stdout = w
		}
	}
}

// WithCompressedArtifact writes model.json.xz instead of model.json.
func WithCompressedArtifact(enabled bool) Option {
	return func(t *Trainer) {
		t.compress = enabled
	}
}
