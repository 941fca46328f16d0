// Package artifact persists fitted pipelines as self-describing JSON documents,
// optionally xz-compressed.
package artifact

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/okian/clinic/internal/domain/features"
	"github.com/okian/clinic/internal/domain/pipeline"
)

// Document identity.
const (
	Format        = "clinic.pipeline"
	FormatVersion = 1

	// CompressedSuffix selects xz compression in Save and Load.
	CompressedSuffix = ".xz"

	kindLinear = "linear"
	kindForest = "forest"
)

// Document is the on-disk shape of a fitted pipeline.
type Document struct {
	Format        string                   `json:"format"`
	FormatVersion int                      `json:"format_version"`
	ModelType     string                   `json:"model_type"`
	Features      []string                 `json:"features"`
	Scaler        *pipeline.StandardScaler `json:"scaler"`
	Regressor     Regressor                `json:"regressor"`
}

// Regressor carries the parameters of either a linear model or a forest.
type Regressor struct {
	Kind string `json:"kind"`

	// linear
	Alpha     float64   `json:"alpha,omitempty"`
	Intercept float64   `json:"intercept,omitempty"`
	Coef      []float64 `json:"coef,omitempty"`

	// forest
	NEstimators     int               `json:"n_estimators,omitempty"`
	MaxDepth        int               `json:"max_depth,omitempty"`
	MinSamplesSplit int               `json:"min_samples_split,omitempty"`
	Seed            int64             `json:"seed,omitempty"`
	Trees           [][]pipeline.Node `json:"trees,omitempty"`
}

// Save writes p to path, truncating any previous file. The write is not atomic.
func Save(path string, p *pipeline.Pipeline) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close artifact: %w", cerr)
		}
	}()

	w := bufio.NewWriter(f)
	if compressed(path) {
		xw, err := xz.NewWriter(w)
		if err != nil {
			return fmt.Errorf("xz writer: %w", err)
		}
		if err := Encode(xw, p); err != nil {
			return err
		}
		if err := xw.Close(); err != nil {
			return fmt.Errorf("xz close: %w", err)
		}
	} else if err := Encode(w, p); err != nil {
		return err
	}
	return w.Flush()
}

// Load reads and validates the pipeline at path.
func Load(path string) (*pipeline.Pipeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if compressed(path) {
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		r = xr
	}
	return Decode(r)
}

// Encode writes p as an indented JSON document.
func Encode(w io.Writer, p *pipeline.Pipeline) error {
	doc, err := toDocument(p)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	return nil
}

// Decode reads a document and rebuilds the pipeline it describes.
func Decode(r io.Reader) (*pipeline.Pipeline, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return fromDocument(&doc)
}

func compressed(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), CompressedSuffix)
}

func toDocument(p *pipeline.Pipeline) (*Document, error) {
	if p == nil || !p.Scaler.Fitted() {
		return nil, fmt.Errorf("encode artifact: %w", pipeline.ErrNotFitted)
	}
	doc := &Document{
		Format:        Format,
		FormatVersion: FormatVersion,
		ModelType:     p.Name(),
		Features:      features.Names[:],
		Scaler:        p.Scaler,
	}
	switch m := p.Model.(type) {
	case *pipeline.LinearRegression:
		doc.Regressor = Regressor{Kind: kindLinear, Alpha: m.Alpha, Intercept: m.Intercept, Coef: m.Coef}
	case *pipeline.RandomForest:
		trees := make([][]pipeline.Node, len(m.Trees))
		for i, t := range m.Trees {
			trees[i] = t.Nodes
		}
		doc.Regressor = Regressor{
			Kind:            kindForest,
			NEstimators:     m.NEstimators,
			MaxDepth:        m.MaxDepth,
			MinSamplesSplit: m.MinSamplesSplit,
			Seed:            m.Seed,
			Trees:           trees,
		}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupported, p.Model)
	}
	return doc, nil
}

func fromDocument(doc *Document) (*pipeline.Pipeline, error) {
	if doc.Format != Format || doc.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("%w: %q version %d", ErrFormat, doc.Format, doc.FormatVersion)
	}
	if len(doc.Features) != features.Count {
		return nil, fmt.Errorf("%w: %d features, want %d", ErrCorrupt, len(doc.Features), features.Count)
	}
	for i, name := range doc.Features {
		if name != features.Names[i] {
			return nil, fmt.Errorf("%w: feature %d is %q, want %q", ErrCorrupt, i, name, features.Names[i])
		}
	}
	if !doc.Scaler.Fitted() || len(doc.Scaler.Mean) != features.Count {
		return nil, fmt.Errorf("%w: scaler", ErrCorrupt)
	}
	for _, s := range doc.Scaler.Scale {
		if s == 0 {
			return nil, fmt.Errorf("%w: zero scale", ErrCorrupt)
		}
	}

	var model pipeline.Regressor
	switch r := doc.Regressor; r.Kind {
	case kindLinear:
		if len(r.Coef) != features.Count {
			return nil, fmt.Errorf("%w: %d coefficients, want %d", ErrCorrupt, len(r.Coef), features.Count)
		}
		model = &pipeline.LinearRegression{Alpha: r.Alpha, Intercept: r.Intercept, Coef: r.Coef}
	case kindForest:
		f := &pipeline.RandomForest{
			NEstimators:     r.NEstimators,
			NFeatures:       features.Count,
			MaxDepth:        r.MaxDepth,
			MinSamplesSplit: r.MinSamplesSplit,
			Seed:            r.Seed,
			Trees:           make([]*pipeline.Tree, len(r.Trees)),
		}
		for i, nodes := range r.Trees {
			f.Trees[i] = &pipeline.Tree{Nodes: nodes}
		}
		if err := f.Validate(features.Count); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		model = f
	default:
		return nil, fmt.Errorf("%w: kind %q", ErrUnsupported, r.Kind)
	}

	if model.Name() != doc.ModelType {
		return nil, fmt.Errorf("%w: model_type %q does not match regressor %q", ErrCorrupt, doc.ModelType, model.Name())
	}
	return &pipeline.Pipeline{Scaler: doc.Scaler, Model: model}, nil
}
