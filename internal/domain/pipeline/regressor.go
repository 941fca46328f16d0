// Package pipeline implements the fitted preprocessing + regression pipelines
// produced by the trainer and scored by the prediction service.
package pipeline

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Regressor is a model that maps a design matrix to one continuous output per row.
type Regressor interface {
	// Name is the model type recorded in metrics and artifacts.
	Name() string
	Fit(x mat.Matrix, y []float64) error
	Predict(x mat.Matrix) ([]float64, error)
}

func checkTraining(x mat.Matrix, y []float64) (rows, cols int, err error) {
	rows, cols = x.Dims()
	if rows == 0 || cols == 0 {
		return 0, 0, ErrEmpty
	}
	if len(y) != rows {
		return 0, 0, fmt.Errorf("%w: %d rows, %d targets", ErrDimension, rows, len(y))
	}
	return rows, cols, nil
}

// rowsOf copies x into row-major slices.
func rowsOf(x mat.Matrix) [][]float64 {
	r, _ := x.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = mat.Row(nil, i, x)
	}
	return out
}
