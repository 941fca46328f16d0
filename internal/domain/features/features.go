// Package features defines the ten-field input schema shared by the trainer and the service.
package features

import (
	"errors"
	"fmt"
	"math"
)

// Count is the number of model inputs.
const Count = 10

// Names lists the inputs in the column order every fitted pipeline expects.
var Names = [Count]string{"age", "sex", "bmi", "bp", "s1", "s2", "s3", "s4", "s5", "s6"}

// ErrRowShape reports a row whose length does not match Count.
var ErrRowShape = errors.New("feature row has wrong length")

// Vector is one patient's baseline measurements.
type Vector struct {
	Age float64 `json:"age"`
	Sex float64 `json:"sex"`
	BMI float64 `json:"bmi"`
	BP  float64 `json:"bp"`
	S1  float64 `json:"s1"`
	S2  float64 `json:"s2"`
	S3  float64 `json:"s3"`
	S4  float64 `json:"s4"`
	S5  float64 `json:"s5"`
	S6  float64 `json:"s6"`
}

// Row returns the values in Names order.
func (v Vector) Row() []float64 {
	return []float64{v.Age, v.Sex, v.BMI, v.BP, v.S1, v.S2, v.S3, v.S4, v.S5, v.S6}
}

// FromRow builds a Vector from values in Names order.
func FromRow(row []float64) (Vector, error) {
	if len(row) != Count {
		return Vector{}, fmt.Errorf("%w: got %d, want %d", ErrRowShape, len(row), Count)
	}
	return Vector{
		Age: row[0], Sex: row[1], BMI: row[2], BP: row[3],
		S1: row[4], S2: row[5], S3: row[6], S4: row[7], S5: row[8], S6: row[9],
	}, nil
}

// Index returns the column position of name, or -1.
func Index(name string) int {
	for i, n := range Names {
		if n == name {
			return i
		}
	}
	return -1
}

// Finite reports whether every value is a real number.
func Finite(row []float64) bool {
	for _, x := range row {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
