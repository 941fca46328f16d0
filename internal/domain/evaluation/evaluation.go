// Package evaluation scores held-out predictions: regression error plus the
// thresholded high-risk classification report.
package evaluation

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Sentinel kinds for evaluation errors.
var (
	ErrEmpty    = errors.New("no values to evaluate")
	ErrLength   = errors.New("length mismatch")
	ErrQuantile = errors.New("quantile out of range")
)

// RMSE returns the root mean squared error between truth and predictions.
func RMSE(truth, predicted []float64) (float64, error) {
	if len(truth) == 0 {
		return 0, ErrEmpty
	}
	if len(truth) != len(predicted) {
		return 0, fmt.Errorf("%w: %d truths, %d predictions", ErrLength, len(truth), len(predicted))
	}
	return floats.Distance(truth, predicted, 2) / math.Sqrt(float64(len(truth))), nil
}

// Quantile returns the q-th quantile (0..1) using linear interpolation between
// the closest ranks: position (n-1)*q of the sorted values.
func Quantile(values []float64, q float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrEmpty
	}
	if q < 0 || q > 1 || math.IsNaN(q) {
		return 0, fmt.Errorf("%w: %v", ErrQuantile, q)
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	pos := float64(len(sorted)-1) * q
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac, nil
}

// Binarize flags every value at or above threshold.
func Binarize(values []float64, threshold float64) []bool {
	out := make([]bool, len(values))
	for i, v := range values {
		out[i] = v >= threshold
	}
	return out
}

// Classification is a precision/recall pair for the positive class.
type Classification struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
}

// PrecisionRecall compares predicted flags with true flags. A zero denominator
// yields 0 for that ratio.
func PrecisionRecall(truth, predicted []bool) (Classification, error) {
	if len(truth) != len(predicted) {
		return Classification{}, fmt.Errorf("%w: %d truths, %d predictions", ErrLength, len(truth), len(predicted))
	}
	var tp, fp, fn int
	for i, want := range truth {
		switch got := predicted[i]; {
		case got && want:
			tp++
		case got && !want:
			fp++
		case !got && want:
			fn++
		}
	}
	return Classification{
		Precision: ratio(tp, tp+fp),
		Recall:    ratio(tp, tp+fn),
	}, nil
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
