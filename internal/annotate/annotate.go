// Package annotate marks catalog resources that serve WMS and records the
// base URLs a tile proxy has to allow.
package annotate

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/delta10/wms-probe/internal/catalog"
	"github.com/delta10/wms-probe/internal/wms"
)

var ErrAnnotationPanic = errors.New("annotation panicked")

// Prober is the part of wms.Probe the annotator depends on.
type Prober interface {
	IsWMS(ctx context.Context, rawURL string) wms.Verdict
	ExtractBaseURLs(ctx context.Context, rawURL string) wms.BaseURLSet
}

// Recorder receives one line per annotated resource.
type Recorder interface {
	WriteLog(ctx context.Context, labels map[string]string, line map[string]string) error
}

type Result struct {
	ID      string      `json:"id"`
	URL     string      `json:"url"`
	Verdict wms.Verdict `json:"verdict"`
	Changed bool        `json:"changed"`
	Error   string      `json:"error,omitempty"`

	Err error `json:"-"`
}

type Annotator struct {
	prober      Prober
	store       catalog.Store
	recorder    Recorder
	concurrency int
	logger      *zap.Logger
}

type Option func(*Annotator)

func WithRecorder(r Recorder) Option {
	return func(a *Annotator) { a.recorder = r }
}

func WithConcurrency(n int) Option {
	return func(a *Annotator) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

func New(prober Prober, store catalog.Store, logger *zap.Logger, opts ...Option) *Annotator {
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &Annotator{
		prober:      prober,
		store:       store,
		concurrency: 1,
		logger:      logger.With(zap.String("component", "annotator")),
	}
	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Annotate probes the resource URL and, only when it is Confirmed, sets the
// WMS format and base URLs. Changed reports whether the record differs from
// its state on entry. A panic during probing is returned as an error wrapping
// ErrAnnotationPanic and leaves the resource untouched.
func (a *Annotator) Annotate(ctx context.Context, resource *catalog.Resource) (result Result, err error) {
	result = Result{ID: resource.ID, URL: resource.URL, Verdict: wms.Inconclusive}
	before := resource.Annotation()

	defer func() {
		if r := recover(); r != nil {
			*resource = restore(*resource, before)
			result.Changed = false
			err = fmt.Errorf("%w: %v", ErrAnnotationPanic, r)
			a.logger.Error("annotation panicked",
				zap.String("resource_id", resource.ID),
				zap.String("url", resource.URL),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()

	result.Verdict = a.prober.IsWMS(ctx, resource.URL)
	if result.Verdict != wms.Confirmed {
		return result, nil
	}

	urls := a.prober.ExtractBaseURLs(ctx, resource.URL)
	resource.Format = catalog.FormatWMS
	resource.WMSBaseURLs = urls.Join()

	result.Changed = resource.Annotation() != before

	return result, nil
}

func restore(r catalog.Resource, a catalog.Annotation) catalog.Resource {
	r.Format = a.Format
	r.WMSBaseURLs = a.WMSBaseURLs

	return r
}

// AnnotateByID loads a resource, annotates it and writes it back when it
// changed.
func (a *Annotator) AnnotateByID(ctx context.Context, id string) (Result, error) {
	resource, err := a.store.Show(ctx, id)
	if err != nil {
		return Result{ID: id}, fmt.Errorf("show resource: %w", err)
	}

	result, err := a.Annotate(ctx, resource)
	if err != nil {
		return result, err
	}

	if result.Changed {
		if err := a.store.Update(ctx, resource); err != nil {
			return result, fmt.Errorf("update resource: %w", err)
		}
	}

	a.logger.Info("resource annotated",
		zap.String("resource_id", id),
		zap.String("url", result.URL),
		zap.Stringer("verdict", result.Verdict),
		zap.Bool("changed", result.Changed),
	)
	a.record(ctx, result)

	return result, nil
}

// AnnotateAll annotates every id with bounded concurrency. A failing
// resource is logged and reported in its Result; the others still run.
func (a *Annotator) AnnotateAll(ctx context.Context, ids []string) []Result {
	results := make([]Result, len(ids))

	var g errgroup.Group
	g.SetLimit(a.concurrency)

	for i, id := range ids {
		g.Go(func() error {
			result, err := a.AnnotateByID(ctx, id)
			if err != nil {
				a.logger.Error("annotating resource failed", zap.String("resource_id", id), zap.Error(err))
				result.Err = err
				result.Error = err.Error()
			}
			results[i] = result

			return nil
		})
	}

	_ = g.Wait()

	return results
}

func (a *Annotator) record(ctx context.Context, result Result) {
	if a.recorder == nil {
		return
	}

	labels := map[string]string{"app": "wms-probe", "verdict": result.Verdict.String()}
	line := map[string]string{
		"resource_id": result.ID,
		"url":         result.URL,
		"changed":     fmt.Sprint(result.Changed),
	}

	if err := a.recorder.WriteLog(ctx, labels, line); err != nil {
		a.logger.Warn("could not push annotation log", zap.Error(err))
	}
}
