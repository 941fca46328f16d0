package pipeline

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/okian/clinic/internal/domain/features"
)

// Pipeline standardizes inputs and feeds them to a regressor. Fitted pipelines
// are read-only and safe for concurrent Predict calls.
type Pipeline struct {
	Scaler *StandardScaler
	Model  Regressor
}

// New wraps model behind a fresh StandardScaler.
func New(model Regressor) *Pipeline {
	return &Pipeline{Scaler: &StandardScaler{}, Model: model}
}

// Name returns the model type.
func (p *Pipeline) Name() string {
	if p == nil || p.Model == nil {
		return ""
	}
	return p.Model.Name()
}

// NumFeatures is the input width the pipeline was fitted on.
func (p *Pipeline) NumFeatures() int {
	if p == nil || !p.Scaler.Fitted() {
		return 0
	}
	return len(p.Scaler.Mean)
}

// Fit learns the scaler on x and then fits the model on the standardized x.
func (p *Pipeline) Fit(x mat.Matrix, y []float64) error {
	if p.Model == nil {
		return fmt.Errorf("pipeline: %w: no model", ErrNotFitted)
	}
	if p.Scaler == nil {
		p.Scaler = &StandardScaler{}
	}
	if _, _, err := checkTraining(x, y); err != nil {
		return err
	}
	if err := p.Scaler.Fit(x); err != nil {
		return err
	}
	scaled, err := p.Scaler.Transform(x)
	if err != nil {
		return err
	}
	return p.Model.Fit(scaled, y)
}

// Predict returns one estimate per row of x.
func (p *Pipeline) Predict(x mat.Matrix) ([]float64, error) {
	if p.Model == nil {
		return nil, fmt.Errorf("pipeline: %w: no model", ErrNotFitted)
	}
	scaled, err := p.Scaler.Transform(x)
	if err != nil {
		return nil, err
	}
	return p.Model.Predict(scaled)
}

// PredictRow scores a single feature row and rejects non-finite inputs or outputs.
func (p *Pipeline) PredictRow(row []float64) (float64, error) {
	if want := p.NumFeatures(); len(row) != want {
		return 0, fmt.Errorf("%w: got %d features, want %d", ErrDimension, len(row), want)
	}
	if !features.Finite(row) {
		return 0, fmt.Errorf("%w: input contains NaN or Inf", ErrNonFinite)
	}
	out, err := p.Predict(mat.NewDense(1, len(row), row))
	if err != nil {
		return 0, err
	}
	if math.IsNaN(out[0]) || math.IsInf(out[0], 0) {
		return 0, fmt.Errorf("%w: prediction overflowed", ErrNonFinite)
	}
	return out[0], nil
}
