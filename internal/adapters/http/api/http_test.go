package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/clinic/internal/adapters/http/api"
	"github.com/okian/clinic/internal/domain/features"
	"github.com/okian/clinic/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

// Mock implementation for testing
type mockDependencies struct {
	version    string
	prediction float64
	err        error
	panicWith  any
	calls      []features.Vector
}

func (m *mockDependencies) ModelVersion() string { return m.version }

func (m *mockDependencies) Predict(_ context.Context, v features.Vector) (float64, error) {
	if m.panicWith != nil {
		panic(m.panicWith)
	}
	m.calls = append(m.calls, v)
	return m.prediction, m.err
}

const validPayload = `{"age":0.02,"sex":-0.044,"bmi":0.06,"bp":-0.03,"s1":-0.02,"s2":0.03,"s3":-0.02,"s4":0.02,"s5":0.02,"s6":-0.001}`

type envelope struct {
	Error  string          `json:"error"`
	Detail json.RawMessage `json:"detail"`
}

type detailItem struct {
	Type  string `json:"type"`
	Loc   []any  `json:"loc"`
	Msg   string `json:"msg"`
	Input any    `json:"input"`
}

func newMux(deps *mockDependencies, opts ...api.Option) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, opts...).Register(context.Background(), mux)
	return mux
}

func post(mux *http.ServeMux, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(w *httptest.ResponseRecorder) envelope {
	var env envelope
	So(json.Unmarshal(w.Body.Bytes(), &env), ShouldBeNil)
	return env
}

func decodeDetails(env envelope) []detailItem {
	var items []detailItem
	So(json.Unmarshal(env.Detail, &items), ShouldBeNil)
	return items
}

func TestHealth(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := &mockDependencies{version: "v0.1"}
		mux := newMux(deps)

		Convey("When calling GET /health", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			Convey("Then it returns ok and the model version", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldEqual, "application/json; charset=utf-8")
				var body map[string]string
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body["status"], ShouldEqual, "ok")
				So(body["model_version"], ShouldEqual, "v0.1")
			})

			Convey("Then the model is never called", func() {
				So(deps.calls, ShouldBeEmpty)
			})

			Convey("Then a request id is assigned", func() {
				So(w.Header().Get(api.RequestIDHeader), ShouldNotBeEmpty)
			})
		})

		Convey("When the caller supplies a request id", func() {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.Header.Set(api.RequestIDHeader, "abc-123")
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it is echoed back", func() {
				So(w.Header().Get(api.RequestIDHeader), ShouldEqual, "abc-123")
			})
		})

		Convey("When using the wrong method", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/health", nil))

			Convey("Then it is rejected", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			})
		})
	})
}

func TestPredictOK(t *testing.T) {
	Convey("Given a model that predicts 151.25", t, func() {
		deps := &mockDependencies{version: "dev", prediction: 151.25}
		mux := newMux(deps)

		Convey("When posting all ten numbers", func() {
			w := post(mux, validPayload)

			Convey("Then it returns the prediction", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var body map[string]float64
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body["prediction"], ShouldEqual, 151.25)
			})

			Convey("Then the features reach the model in order", func() {
				So(deps.calls, ShouldHaveLength, 1)
				So(deps.calls[0].Row(), ShouldResemble, []float64{0.02, -0.044, 0.06, -0.03, -0.02, 0.03, -0.02, 0.02, 0.02, -0.001})
			})
		})

		Convey("When numbers arrive as numeric strings", func() {
			w := post(mux, strings.Replace(validPayload, `"age":0.02`, `"age":"0.02"`, 1))

			Convey("Then they are coerced", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.calls[0].Age, ShouldEqual, 0.02)
			})
		})

		Convey("When extra fields are present", func() {
			w := post(mux, strings.Replace(validPayload, "{", `{"note":"x",`, 1))

			Convey("Then they are ignored", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When a field is an explicit zero", func() {
			w := post(mux, strings.Replace(validPayload, `"sex":-0.044`, `"sex":0`, 1))

			Convey("Then it counts as present", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
			})
		})
	})
}

func TestPredictValidation(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := &mockDependencies{version: "dev", prediction: 1}
		mux := newMux(deps)

		Convey("When a field is not numeric and the rest are missing", func() {
			w := post(mux, `{"age":"oops"}`)
			env := decodeEnvelope(w)
			items := decodeDetails(env)

			Convey("Then it is a 422 validation error listing every field in order", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(env.Error, ShouldEqual, "validation_error")
				So(items, ShouldHaveLength, 10)
				So(items[0].Type, ShouldEqual, "float_parsing")
				So(items[0].Loc, ShouldResemble, []any{"body", "age"})
				So(items[0].Input, ShouldEqual, "oops")
				for i, name := range features.Names[1:] {
					So(items[i+1].Type, ShouldEqual, "missing")
					So(items[i+1].Loc, ShouldResemble, []any{"body", name})
					So(items[i+1].Msg, ShouldEqual, "Field required")
				}
			})

			Convey("Then the model is not called", func() {
				So(deps.calls, ShouldBeEmpty)
			})
		})

		Convey("When one field is missing", func() {
			w := post(mux, strings.Replace(validPayload, `,"s6":-0.001`, "", 1))
			items := decodeDetails(decodeEnvelope(w))

			Convey("Then only that field is reported", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(items, ShouldHaveLength, 1)
				So(items[0].Loc, ShouldResemble, []any{"body", "s6"})
			})
		})

		Convey("When a field has the wrong JSON type", func() {
			for _, bad := range []string{"null", "true", "[1]", `{"v":1}`} {
				w := post(mux, strings.Replace(validPayload, `"bmi":0.06`, `"bmi":`+bad, 1))
				items := decodeDetails(decodeEnvelope(w))
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(items, ShouldHaveLength, 1)
				So(items[0].Type, ShouldEqual, "float_type")
			}
		})

		Convey("When a field is not finite", func() {
			for _, bad := range []string{`"NaN"`, `"inf"`, "1e400"} {
				w := post(mux, strings.Replace(validPayload, `"bp":-0.03`, `"bp":`+bad, 1))
				items := decodeDetails(decodeEnvelope(w))
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(items[0].Type, ShouldEqual, "finite_number")
			}
		})

		Convey("When the body is not valid JSON", func() {
			w := post(mux, `{"age":`)
			items := decodeDetails(decodeEnvelope(w))

			Convey("Then it is a json_invalid validation error", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(items[0].Type, ShouldEqual, "json_invalid")
			})
		})

		Convey("When the body is not an object", func() {
			w := post(mux, `[1,2,3]`)
			items := decodeDetails(decodeEnvelope(w))

			Convey("Then the whole body is rejected", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(items, ShouldHaveLength, 1)
				So(items[0].Type, ShouldEqual, "model_attributes_type")
				So(items[0].Loc, ShouldResemble, []any{"body"})
			})
		})
	})
}

func TestPredictFailures(t *testing.T) {
	Convey("Given a model that fails", t, func() {
		deps := &mockDependencies{version: "dev", err: errors.New("inference failed: non-finite value")}
		mux := newMux(deps)

		Convey("When posting a valid body", func() {
			w := post(mux, validPayload)
			env := decodeEnvelope(w)

			Convey("Then it is a 400 bad_request with the message", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(env.Error, ShouldEqual, "bad_request")
				var detail string
				So(json.Unmarshal(env.Detail, &detail), ShouldBeNil)
				So(detail, ShouldContainSubstring, "non-finite")
			})
		})
	})

	Convey("Given a model that panics", t, func() {
		deps := &mockDependencies{version: "dev", panicWith: "index out of range"}

		Convey("When strict server errors are off", func() {
			w := post(newMux(deps), validPayload)
			env := decodeEnvelope(w)

			Convey("Then the panic becomes a 400 bad_request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(env.Error, ShouldEqual, "bad_request")
				So(string(env.Detail), ShouldContainSubstring, "index out of range")
			})
		})

		Convey("When strict server errors are on", func() {
			w := post(newMux(deps, api.WithStrictServerErrors(true)), validPayload)
			env := decodeEnvelope(w)

			Convey("Then the panic becomes a 500 internal_error", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(env.Error, ShouldEqual, "internal_error")
			})
		})

		Convey("When the body is invalid", func() {
			w := post(newMux(deps), `{}`)

			Convey("Then validation answers before the model is reached", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
			})
		})
	})

	Convey("Given a small body limit", t, func() {
		mux := newMux(&mockDependencies{version: "dev"}, api.WithMaxBodyBytes(16))

		Convey("When the body exceeds it", func() {
			w := post(mux, validPayload)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestMetricsEndpoint(t *testing.T) {
	Convey("Given traffic on the API", t, func() {
		mux := newMux(&mockDependencies{version: "dev", prediction: 100})
		post(mux, validPayload)
		post(mux, `{"age":"oops"}`)

		Convey("When scraping /metrics", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

			Convey("Then request and validation counters are exported", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := w.Body.String()
				So(body, ShouldContainSubstring, "clinic_risk_http_requests_total")
				So(body, ShouldContainSubstring, "clinic_risk_validation_errors_total")
			})
		})
	})
}
