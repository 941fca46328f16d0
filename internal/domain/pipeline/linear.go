package pipeline

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Model type names recorded in metrics and artifacts.
const (
	LinearRegressionName = "LinearRegression"
	RidgeName            = "Ridge"
	RandomForestName     = "RandomForestRegressor"
)

// LinearRegression is an intercept + coefficients model. Alpha > 0 adds an L2
// penalty on the coefficients (ridge); the intercept is never penalized.
type LinearRegression struct {
	Alpha     float64   `json:"alpha"`
	Intercept float64   `json:"intercept"`
	Coef      []float64 `json:"coef"`
}

// NewLinearRegression returns an ordinary least squares model.
func NewLinearRegression() *LinearRegression {
	return &LinearRegression{}
}

// NewRidge returns an L2-regularized linear model.
func NewRidge(alpha float64) *LinearRegression {
	return &LinearRegression{Alpha: alpha}
}

// Name implements Regressor.
func (m *LinearRegression) Name() string {
	if m.Alpha > 0 {
		return RidgeName
	}
	return LinearRegressionName
}

// Fit centers x and y, solves for the coefficients, then recovers the intercept.
func (m *LinearRegression) Fit(x mat.Matrix, y []float64) error {
	rows, cols, err := checkTraining(x, y)
	if err != nil {
		return err
	}

	xMean := make([]float64, cols)
	col := make([]float64, rows)
	for j := range xMean {
		mat.Col(col, j, x)
		xMean[j] = stat.Mean(col, nil)
	}
	yMean := stat.Mean(y, nil)

	xc := mat.NewDense(rows, cols, nil)
	xc.Apply(func(_, j int, v float64) float64 { return v - xMean[j] }, x)
	yc := make([]float64, rows)
	for i, v := range y {
		yc[i] = v - yMean
	}

	var w mat.VecDense
	if m.Alpha > 0 {
		err = solveRidge(&w, xc, yc, m.Alpha)
	} else {
		err = w.SolveVec(xc, mat.NewVecDense(rows, yc))
	}
	if err != nil {
		return fmt.Errorf("%s: %w: %w", m.Name(), ErrSingular, err)
	}

	m.Coef = make([]float64, cols)
	copy(m.Coef, w.RawVector().Data)
	m.Intercept = yMean - floats.Dot(xMean, m.Coef)
	return nil
}

// solveRidge solves (XᵀX + αI) w = Xᵀy through a Cholesky factorization.
func solveRidge(dst *mat.VecDense, xc *mat.Dense, yc []float64, alpha float64) error {
	rows, cols := xc.Dims()
	gram := mat.NewSymDense(cols, nil)
	gram.SymOuterK(1, xc.T())
	for j := 0; j < cols; j++ {
		gram.SetSym(j, j, gram.At(j, j)+alpha)
	}

	var rhs mat.VecDense
	rhs.MulVec(xc.T(), mat.NewVecDense(rows, yc))

	var chol mat.Cholesky
	if ok := chol.Factorize(gram); !ok {
		return ErrSingular
	}
	return chol.SolveVecTo(dst, &rhs)
}

// Predict implements Regressor.
func (m *LinearRegression) Predict(x mat.Matrix) ([]float64, error) {
	if len(m.Coef) == 0 {
		return nil, fmt.Errorf("%s: %w", m.Name(), ErrNotFitted)
	}
	rows, cols := x.Dims()
	if cols != len(m.Coef) {
		return nil, fmt.Errorf("%s: %w: got %d columns, want %d", m.Name(), ErrDimension, cols, len(m.Coef))
	}
	out := make([]float64, rows)
	row := make([]float64, cols)
	for i := range out {
		mat.Row(row, i, x)
		out[i] = m.Intercept + floats.Dot(row, m.Coef)
	}
	return out, nil
}
