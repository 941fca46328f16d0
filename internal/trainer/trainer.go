// Package trainer fits the candidate pipelines on the diabetes data, keeps the one
// with the lowest held-out RMSE, and writes the model artifact and metrics record.
package trainer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/okian/clinic/internal/adapters/artifact"
	"github.com/okian/clinic/internal/adapters/dataset"
	"github.com/okian/clinic/internal/domain/evaluation"
	"github.com/okian/clinic/internal/domain/pipeline"
	"github.com/okian/clinic/pkg/logger"
)

// Variant selects which candidates are trained.
type Variant string

// Supported variants.
const (
	Basic    Variant = "basic"
	Extended Variant = "extended"
)

// Defaults.
const (
	DefaultSeed     int64 = 42
	DefaultTestSize       = 0.2

	ArtifactName = "model.json"
	MetricsName  = "metrics.json"

	ridgeAlpha        = 1.0
	riskQuantile      = 0.75
	timeLayout        = "2006-01-02T15:04:05.000000Z"
	basicVersion      = "v0.1"
	extendedVersion   = "v0.2"
	datasetCanonical  = "diabetes"
	datasetBundled    = "synthetic"
	datasetExternal   = "external"
	metricsFileMode   = 0o644
	outputDirFileMode = 0o755
)

// ParseVariant validates a variant name.
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(s); v {
	case Basic, Extended:
		return v, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrVariant, s)
	}
}

// Candidate is one model's score on the held-out split.
type Candidate struct {
	ModelType string  `json:"model_type"`
	RMSE      float64 `json:"rmse"`
}

// Record is the metrics document written next to the artifact.
type Record struct {
	Version      string  `json:"version"`
	ModelType    string  `json:"model_type"`
	RandomState  int64   `json:"random_state"`
	TrainTimeUTC string  `json:"train_time_utc"`
	Runtime      string  `json:"runtime"`
	RMSE         float64 `json:"rmse"`
	Dataset      string  `json:"dataset"`

	Candidates                []Candidate                `json:"candidates,omitempty"`
	Best                      *Candidate                 `json:"best,omitempty"`
	RiskThreshold             *float64                   `json:"risk_threshold,omitempty"`
	ClassificationAtThreshold *evaluation.Classification `json:"classification_at_threshold,omitempty"`
}

// Result describes a finished run.
type Result struct {
	ArtifactPath string
	MetricsPath  string
	Record       Record
	Pipeline     *pipeline.Pipeline
}

// Trainer runs one training job.
type Trainer struct {
	variant   Variant
	seed      int64
	testSize  float64
	outputDir string
	data      *dataset.Table
	now       func() time.Time
	log       logger.Logger
	stdout    io.Writer
	compress  bool
}

// New returns a Trainer with the basic variant, seed 42 and an 80/20 split.
func New(opts ...Option) *Trainer {
	t := &Trainer{
		variant:   Basic,
		seed:      DefaultSeed,
		testSize:  DefaultTestSize,
		outputDir: ".",
		now:       time.Now,
		stdout:    os.Stdout,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type fitted struct {
	pipeline *pipeline.Pipeline
	preds    []float64
	rmse     float64
}

// Run trains, selects, persists and prints the summary line.
func (t *Trainer) Run(ctx context.Context) (*Result, error) {
	if _, err := ParseVariant(string(t.variant)); err != nil {
		return nil, err
	}
	log := t.log
	if log == nil {
		log = logger.Named("trainer")
	}

	table, source := t.data, datasetExternal
	if table == nil {
		var err error
		if table, err = dataset.LoadDiabetes(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDataset, err)
		}
		source = datasetBundled
	}
	if table.Canonical() {
		source = datasetCanonical
	} else {
		log.Warn(ctx, "training data is not the published diabetes table",
			logger.String("dataset", source),
			logger.Int("samples", table.Len()))
	}

	rng := rand.New(rand.NewSource(t.seed)) //nolint:gosec // reproducible split
	train, test, err := table.Split(t.testSize, rng)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDataset, err)
	}
	log.Info(ctx, "dataset split",
		logger.String("variant", string(t.variant)),
		logger.Int("train", train.Len()),
		logger.Int("test", test.Len()))

	xTrain, xTest := train.Matrix(), test.Matrix()
	var (
		results    []fitted
		candidates []Candidate
	)
	for _, model := range t.candidates(rng) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		started := time.Now()
		p := pipeline.New(model)
		if err := p.Fit(xTrain, train.Target); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrFit, model.Name(), err)
		}
		preds, err := p.Predict(xTest)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrEvaluate, model.Name(), err)
		}
		rmse, err := evaluation.RMSE(test.Target, preds)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrEvaluate, model.Name(), err)
		}
		log.Info(ctx, "candidate evaluated",
			logger.String("model_type", p.Name()),
			logger.Float64("rmse", rmse),
			logger.Any("took", time.Since(started)))

		candidates = append(candidates, Candidate{ModelType: p.Name(), RMSE: rmse})
		results = append(results, fitted{pipeline: p, preds: preds, rmse: rmse})
	}
	best := selectBest(results)

	rec := Record{
		Version:      basicVersion,
		ModelType:    best.pipeline.Name(),
		RandomState:  t.seed,
		TrainTimeUTC: t.now().UTC().Format(timeLayout),
		Runtime:      runtime.Version(),
		RMSE:         best.rmse,
		Dataset:      source,
	}
	if t.variant == Extended {
		if err := t.extend(&rec, candidates, best, train, test); err != nil {
			return nil, err
		}
	}

	res := &Result{
		ArtifactPath: filepath.Join(t.outputDir, t.artifactName()),
		MetricsPath:  filepath.Join(t.outputDir, MetricsName),
		Record:       rec,
		Pipeline:     best.pipeline,
	}
	if err := t.persist(res); err != nil {
		return nil, err
	}
	log.Info(ctx, "training finished",
		logger.String("artifact", res.ArtifactPath),
		logger.String("metrics", res.MetricsPath))

	if t.variant == Extended {
		fmt.Fprintf(t.stdout, "Saved %s, best=%s, RMSE=%.4f\n", res.ArtifactPath, rec.ModelType, rec.RMSE)
	} else {
		fmt.Fprintf(t.stdout, "Saved %s, RMSE=%.4f\n", res.ArtifactPath, rec.RMSE)
	}
	return res, nil
}

// selectBest returns the candidate with the strictly lowest RMSE; on a tie the
// earlier one stays. It returns nil for an empty slice.
func selectBest(results []fitted) *fitted {
	var best *fitted
	for i := range results {
		if best == nil || results[i].rmse < best.rmse {
			best = &results[i]
		}
	}
	return best
}

func (t *Trainer) artifactName() string {
	if t.compress {
		return ArtifactName + artifact.CompressedSuffix
	}
	return ArtifactName
}

// candidates returns the models to try, in tie-break order. The forest seed is
// drawn from rng after the split so the whole run hangs off one seed.
func (t *Trainer) candidates(rng *rand.Rand) []pipeline.Regressor {
	if t.variant == Basic {
		return []pipeline.Regressor{pipeline.NewLinearRegression()}
	}
	return []pipeline.Regressor{
		pipeline.NewRidge(ridgeAlpha),
		pipeline.NewRandomForest(pipeline.DefaultEstimators, rng.Int63()),
	}
}

func (t *Trainer) extend(rec *Record, candidates []Candidate, best *fitted, train, test *dataset.Table) error {
	threshold, err := evaluation.Quantile(train.Target, riskQuantile)
	if err != nil {
		return fmt.Errorf("%w: risk threshold: %w", ErrEvaluate, err)
	}
	cls, err := evaluation.PrecisionRecall(
		evaluation.Binarize(test.Target, threshold),
		evaluation.Binarize(best.preds, threshold),
	)
	if err != nil {
		return fmt.Errorf("%w: classification: %w", ErrEvaluate, err)
	}

	rec.Version = extendedVersion
	rec.Candidates = candidates
	rec.Best = &Candidate{ModelType: rec.ModelType, RMSE: best.rmse}
	rec.RiskThreshold = &threshold
	rec.ClassificationAtThreshold = &cls
	return nil
}

// persist overwrites the artifact and the metrics file. Neither write is atomic.
func (t *Trainer) persist(res *Result) error {
	if err := os.MkdirAll(t.outputDir, outputDirFileMode); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	if err := artifact.Save(res.ArtifactPath, res.Pipeline); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	data, err := json.MarshalIndent(res.Record, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode metrics: %w", ErrPersist, err)
	}
	if err := os.WriteFile(res.MetricsPath, append(data, '\n'), metricsFileMode); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}
