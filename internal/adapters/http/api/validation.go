package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/okian/clinic/internal/domain/features"
)

// Per-field error types and messages reported in validation details.
const (
	typeMissing      = "missing"
	typeFloatParsing = "float_parsing"
	typeFloatType    = "float_type"
	typeFiniteNumber = "finite_number"
	typeJSONInvalid  = "json_invalid"
	typeObject       = "model_attributes_type"

	msgMissing      = "Field required"
	msgFloatParsing = "Input should be a valid number, unable to parse string as a number"
	msgFloatType    = "Input should be a valid number"
	msgFiniteNumber = "Input should be a finite number"
	msgJSONInvalid  = "JSON decode error"
	msgObject       = "Input should be a valid dictionary or object to extract fields from"

	locBody = "body"
)

// FieldError is one entry of a 422 detail list.
type FieldError struct {
	Type  string `json:"type"`
	Loc   []any  `json:"loc"`
	Msg   string `json:"msg"`
	Input any    `json:"input,omitempty"`
}

// field returns the offending field name, or "body" for whole-body errors.
func (e FieldError) field() string {
	if len(e.Loc) > 1 {
		if s, ok := e.Loc[1].(string); ok {
			return s
		}
	}
	return locBody
}

// predictRequest mirrors the /predict body. Pointers distinguish a missing
// field from an explicit zero.
type predictRequest struct {
	Age *float64 `json:"age" validate:"required"`
	Sex *float64 `json:"sex" validate:"required"`
	BMI *float64 `json:"bmi" validate:"required"`
	BP  *float64 `json:"bp" validate:"required"`
	S1  *float64 `json:"s1" validate:"required"`
	S2  *float64 `json:"s2" validate:"required"`
	S3  *float64 `json:"s3" validate:"required"`
	S4  *float64 `json:"s4" validate:"required"`
	S5  *float64 `json:"s5" validate:"required"`
	S6  *float64 `json:"s6" validate:"required"`
}

// slots returns the field pointers in features.Names order.
func (r *predictRequest) slots() [features.Count]**float64 {
	return [features.Count]**float64{&r.Age, &r.Sex, &r.BMI, &r.BP, &r.S1, &r.S2, &r.S3, &r.S4, &r.S5, &r.S6}
}

func (r *predictRequest) vector() features.Vector {
	return features.Vector{
		Age: *r.Age, Sex: *r.Sex, BMI: *r.BMI, BP: *r.BP,
		S1: *r.S1, S2: *r.S2, S3: *r.S3, S4: *r.S4, S5: *r.S5, S6: *r.S6,
	}
}

var validate = newValidator() //nolint:gochecknoglobals // validator caches struct metadata

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeFeatures turns a raw body into a Vector or a list of field errors in
// feature order. Numbers and numeric strings are accepted; values must be finite.
func decodeFeatures(body []byte) (features.Vector, []FieldError) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return features.Vector{}, []FieldError{jsonInvalid(err, dec.InputOffset())}
	}
	if dec.More() {
		return features.Vector{}, []FieldError{jsonInvalid(errors.New("trailing data"), dec.InputOffset())}
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return features.Vector{}, []FieldError{{Type: typeObject, Loc: []any{locBody}, Msg: msgObject, Input: raw}}
	}

	var (
		req    predictRequest
		byName [features.Count]*FieldError
	)
	slots := req.slots()
	for i, name := range features.Names {
		v, present := obj[name]
		if !present {
			continue
		}
		f, fe := coerceFloat(name, v)
		if fe != nil {
			byName[i] = fe
			continue
		}
		*slots[i] = &f
	}

	if err := validate.Struct(&req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return features.Vector{}, []FieldError{{Type: typeObject, Loc: []any{locBody}, Msg: err.Error()}}
		}
		for _, fe := range verrs {
			i := features.Index(fe.Field())
			if i < 0 || byName[i] != nil {
				continue
			}
			byName[i] = &FieldError{Type: typeMissing, Loc: []any{locBody, fe.Field()}, Msg: msgMissing, Input: obj}
		}
	}

	var details []FieldError
	for _, fe := range byName {
		if fe != nil {
			details = append(details, *fe)
		}
	}
	if len(details) > 0 {
		return features.Vector{}, details
	}
	return req.vector(), nil
}

func coerceFloat(name string, v any) (float64, *FieldError) {
	loc := []any{locBody, name}
	var (
		f   float64
		err error
	)
	switch t := v.(type) {
	case json.Number:
		f, err = strconv.ParseFloat(t.String(), 64)
		// Out-of-range literals parse to ±Inf and are caught below.
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return 0, &FieldError{Type: typeFloatParsing, Loc: loc, Msg: msgFloatParsing, Input: t}
		}
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return 0, &FieldError{Type: typeFloatParsing, Loc: loc, Msg: msgFloatParsing, Input: t}
		}
	default:
		return 0, &FieldError{Type: typeFloatType, Loc: loc, Msg: msgFloatType, Input: v}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &FieldError{Type: typeFiniteNumber, Loc: loc, Msg: msgFiniteNumber, Input: v}
	}
	return f, nil
}

func jsonInvalid(err error, offset int64) FieldError {
	return FieldError{Type: typeJSONInvalid, Loc: []any{locBody, offset}, Msg: msgJSONInvalid + ": " + err.Error()}
}
