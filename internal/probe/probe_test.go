package probe_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/clinic/internal/adapters/http/api"
	service "github.com/okian/clinic/internal/app"
	"github.com/okian/clinic/internal/domain/pipeline"
	"github.com/okian/clinic/internal/probe"
	"github.com/okian/clinic/internal/trainer"
	"github.com/okian/clinic/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

func startServer(p service.Predictor) *httptest.Server {
	svc := service.New(service.WithPredictor(p), service.WithModelVersion("v0.1"))
	So(svc.Start(context.Background()), ShouldBeNil)
	mux := http.NewServeMux()
	api.NewServer(svc).Register(context.Background(), mux)
	return httptest.NewServer(mux)
}

type brokenModel struct{}

func (brokenModel) Name() string { return "Broken" }
func (brokenModel) PredictRow([]float64) (float64, error) {
	return 0, pipeline.ErrNonFinite
}

type constantModel struct{}

func (constantModel) Name() string                           { return "Constant" }
func (constantModel) PredictRow([]float64) (float64, error) { return 150, nil }

func TestProbe(t *testing.T) {
	Convey("Given a service backed by a trained model", t, func() {
		dir := t.TempDir()
		res, err := trainer.New(trainer.WithOutputDir(dir), trainer.WithStdout(io.Discard)).Run(context.Background())
		So(err, ShouldBeNil)
		srv := startServer(res.Pipeline)
		defer srv.Close()

		cfg := &probe.Config{
			BaseURL:      srv.URL,
			Requests:     40,
			Workers:      4,
			Timeout:      5 * time.Second,
			ArtifactPath: res.ArtifactPath,
			Tolerance:    1e-9,
		}

		Convey("When probing with a matching artifact", func() {
			stats, err := probe.Run(context.Background(), cfg)

			Convey("Then every prediction succeeds and matches", func() {
				So(err, ShouldBeNil)
				So(stats.Submitted, ShouldEqual, 40)
				So(stats.Successful, ShouldEqual, 40)
				So(stats.Mismatched, ShouldEqual, 0)
			})
		})

		Convey("When the reference artifact is a different model", func() {
			other, err := trainer.New(
				trainer.WithOutputDir(filepath.Join(dir, "other")),
				trainer.WithStdout(io.Discard),
				trainer.WithSeed(1),
			).Run(context.Background())
			So(err, ShouldBeNil)
			cfg.ArtifactPath = other.ArtifactPath

			stats, err := probe.Run(context.Background(), cfg)

			Convey("Then mismatches are reported", func() {
				So(errors.Is(err, probe.ErrFailures), ShouldBeTrue)
				So(stats.Mismatched, ShouldBeGreaterThan, 0)
			})
		})
	})

	Convey("Given a config with no workers or requests set", t, func() {
		srv := startServer(constantModel{})
		defer srv.Close()
		cfg := &probe.Config{BaseURL: srv.URL, Timeout: 5 * time.Second}

		done := make(chan struct{})
		var (
			stats *probe.Stats
			err   error
		)
		go func() {
			defer close(done)
			stats, err = probe.Run(context.Background(), cfg)
		}()

		Convey("Then the counts are raised to one and the run finishes", func() {
			select {
			case <-done:
			case <-time.After(10 * time.Second):
				t.Fatal("run did not finish")
			}
			So(stats, ShouldNotBeNil)
			So(err, ShouldBeNil)
			So(stats.Submitted, ShouldEqual, 1)
			So(stats.Successful, ShouldEqual, 1)
			So(cfg.Workers, ShouldEqual, 0)
		})
	})

	Convey("Given a service whose model always fails", t, func() {
		srv := startServer(brokenModel{})
		defer srv.Close()

		stats, err := probe.Run(context.Background(), &probe.Config{
			BaseURL: srv.URL, Requests: 5, Workers: 2, Timeout: 5 * time.Second,
		})

		Convey("Then the failures are counted", func() {
			So(errors.Is(err, probe.ErrFailures), ShouldBeTrue)
			So(stats.Failed, ShouldEqual, 5)
		})
	})

	Convey("Given nothing listening", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()

		_, err := probe.Run(context.Background(), &probe.Config{
			BaseURL: srv.URL, Requests: 1, Workers: 1, Timeout: time.Second,
		})

		Convey("Then the health check fails", func() {
			So(errors.Is(err, probe.ErrUnhealthy), ShouldBeTrue)
		})
	})
}
