// Package dataset loads the tabular diabetes progression data and splits it
// into train and test partitions.
//
// The embedded data/diabetes.csv is a synthetic stand-in with the schema of
// the Efron et al. (2004) diabetes table: 442 rows, ten mean-centered columns
// scaled to unit sum of squares, integer targets. Its rows are not patient
// records. Drop the real table into data/diabetes.csv (same header) or pass
// an external file to LoadCSV; Canonical reports which one a Table came from.
package dataset

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/okian/clinic/internal/domain/features"
)

// TargetColumn is the name of the response column.
const TargetColumn = "target"

// Sentinel kinds for dataset errors.
var (
	ErrHeader   = errors.New("unexpected header")
	ErrRecord   = errors.New("malformed record")
	ErrEmpty    = errors.New("dataset is empty")
	ErrTestSize = errors.New("test size must be in (0, 1)")
)

// diabetesCSV is the bundled table. See the package doc for its provenance.
//
//go:embed data/diabetes.csv
var diabetesCSV []byte

// Fingerprint of the published diabetes table: its size, first record and
// target total. A table matching all three is treated as the real data.
const (
	CanonicalSamples   = 442
	CanonicalTargetSum = 67243
)

var canonicalFirstRow = [features.Count + 1]float64{ //nolint:gochecknoglobals // fixed fingerprint
	0.03807591, 0.05068012, 0.06169621, 0.02187235, -0.0442235,
	-0.03482076, -0.04340085, -0.00259226, 0.01990842, -0.01764613,
	151,
}

const fingerprintTolerance = 1e-6

// Table holds feature rows (in features.Names order) and their targets.
type Table struct {
	Rows   [][]float64
	Target []float64
}

// Len is the number of samples.
func (t *Table) Len() int { return len(t.Target) }

// Matrix returns the feature rows as a dense matrix.
func (t *Table) Matrix() *mat.Dense {
	m := mat.NewDense(len(t.Rows), features.Count, nil)
	for i, row := range t.Rows {
		m.SetRow(i, row)
	}
	return m
}

// TargetSum is the total of all targets.
func (t *Table) TargetSum() float64 {
	var s float64
	for _, y := range t.Target {
		s += y
	}
	return s
}

// Canonical reports whether t is the published diabetes table, judged by its
// sample count, first record and target total.
func (t *Table) Canonical() bool {
	if t.Len() != CanonicalSamples || len(t.Rows) == 0 || len(t.Rows[0]) != features.Count {
		return false
	}
	for j, want := range canonicalFirstRow[:features.Count] {
		if math.Abs(t.Rows[0][j]-want) > fingerprintTolerance {
			return false
		}
	}
	if t.Target[0] != canonicalFirstRow[features.Count] {
		return false
	}
	return math.Abs(t.TargetSum()-CanonicalTargetSum) < fingerprintTolerance
}

// LoadDiabetes parses the bundled table.
func LoadDiabetes() (*Table, error) {
	return Parse(bytes.NewReader(diabetesCSV))
}

// LoadCSV parses a table with the same header from disk.
func LoadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a CSV whose header is the ten feature names followed by target.
func Parse(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = features.Count + 1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, name := range features.Names {
		if got := strings.TrimSpace(strings.ToLower(header[i])); got != name {
			return nil, fmt.Errorf("%w: column %d is %q, want %q", ErrHeader, i, got, name)
		}
	}
	if got := strings.TrimSpace(strings.ToLower(header[features.Count])); got != TargetColumn {
		return nil, fmt.Errorf("%w: last column is %q, want %q", ErrHeader, got, TargetColumn)
	}

	t := &Table{}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRecord, err)
		}
		values := make([]float64, len(rec))
		for j, field := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: line %d column %d: %q", ErrRecord, line, j+1, field)
			}
			values[j] = v
		}
		t.Rows = append(t.Rows, values[:features.Count])
		t.Target = append(t.Target, values[features.Count])
	}
	if t.Len() == 0 {
		return nil, ErrEmpty
	}
	return t, nil
}

// Split shuffles the samples with rng and holds out ceil(testSize*n) of them.
func (t *Table) Split(testSize float64, rng *rand.Rand) (train, test *Table, err error) {
	if !(testSize > 0 && testSize < 1) {
		return nil, nil, fmt.Errorf("%w: %v", ErrTestSize, testSize)
	}
	n := t.Len()
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest < 1 || nTest >= n {
		return nil, nil, fmt.Errorf("%w: %d samples cannot hold out %d", ErrTestSize, n, nTest)
	}

	perm := rng.Perm(n)
	return t.subset(perm[nTest:]), t.subset(perm[:nTest]), nil
}

func (t *Table) subset(idx []int) *Table {
	out := &Table{Rows: make([][]float64, len(idx)), Target: make([]float64, len(idx))}
	for k, i := range idx {
		out.Rows[k] = t.Rows[i]
		out.Target[k] = t.Target[i]
	}
	return out
}
