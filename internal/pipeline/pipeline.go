// Package pipeline runs one scrape: fetch the movements page, extract and
// normalize its rows, and write them as newline-delimited JSON.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/harbour-movements/internal/metrics"
	"github.com/JakeFAU/harbour-movements/internal/movement"
	"github.com/JakeFAU/harbour-movements/internal/sink"
	"github.com/JakeFAU/harbour-movements/internal/storage"
)

// Stages reported in errors and failure metrics.
const (
	StageFetch     = "fetch"
	StageExtract   = "extract"
	StageStore     = "store"
	StageNormalize = "normalize"
	StageWrite     = "write"
	StageNotify    = "notify"
)

// Fetcher retrieves the page body.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Extractor turns a page into a sequence of raw records.
type Extractor interface {
	Parse(page string) (iter.Seq[movement.Record], error)
}

// Publisher announces a finished run.
type Publisher interface {
	Publish(ctx context.Context, payload any, attrs map[string]string) (string, error)
}

// Hasher digests the fetched page.
type Hasher interface {
	Sum(page string) string
}

// IDGenerator produces run ids.
type IDGenerator interface {
	NewID() (string, error)
}

// Deps collects the collaborators of a Runner. Hasher, Publisher and Metrics
// are optional.
type Deps struct {
	URL         string
	Fetcher     Fetcher
	Extractor   Extractor
	Normalizer  *movement.Normalizer
	Sink        *sink.JSONL
	Store       storage.Store
	Clock       movement.Clock
	IDs         IDGenerator
	Hasher      Hasher
	Publisher   Publisher
	Metrics     *metrics.Recorder
	MetricsPath string
	Logger      *zap.Logger
}

// Runner executes scrape runs.
type Runner struct {
	deps   Deps
	logger *zap.Logger
}

// Result summarizes a run. It is also the Pub/Sub notification payload.
type Result struct {
	RunID      string    `json:"run_id"`
	URI        string    `json:"uri"`
	Records    int       `json:"records"`
	PageSHA256 string    `json:"page_sha256,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// StageError ties a fatal error to the stage that produced it.
type StageError struct {
	Stage string
	RunID string
	Err   error
}

func (e *StageError) Error() string {
	return e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// New validates deps and returns a Runner.
func New(deps Deps) (*Runner, error) {
	switch {
	case deps.URL == "":
		return nil, errors.New("pipeline: url is required")
	case deps.Fetcher == nil, deps.Extractor == nil, deps.Normalizer == nil,
		deps.Sink == nil, deps.Store == nil, deps.Clock == nil, deps.IDs == nil:
		return nil, errors.New("pipeline: fetcher, extractor, normalizer, sink, store, clock and ids are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{deps: deps, logger: logger}, nil
}

// Run performs one scrape. On failure the returned error is a *StageError
// and the Result holds whatever was known at that point; an output file may
// already exist and contain a prefix of the rows.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	res := Result{StartedAt: r.deps.Clock.Now()}
	id, err := r.deps.IDs.NewID()
	if err != nil {
		return res, fmt.Errorf("generate run id: %w", err)
	}
	res.RunID = id
	logger := r.logger.With(zap.String("run_id", id))

	stage, err := r.run(ctx, logger, &res)
	res.FinishedAt = r.deps.Clock.Now()
	r.observe(logger, res, stage, err)
	if err != nil {
		return res, &StageError{Stage: stage, RunID: id, Err: err}
	}
	return res, nil
}

func (r *Runner) run(ctx context.Context, logger *zap.Logger, res *Result) (string, error) {
	page, err := r.deps.Fetcher.Fetch(ctx, r.deps.URL)
	if err != nil {
		return StageFetch, fmt.Errorf("fetch page: %w", err)
	}
	if r.deps.Hasher != nil {
		res.PageSHA256 = r.deps.Hasher.Sum(page)
	}
	logger.Debug("Fetched page", zap.Int("bytes", len(page)), zap.String("sha256", res.PageSHA256))

	raw, err := r.deps.Extractor.Parse(page)
	if err != nil {
		return StageExtract, fmt.Errorf("extract movements: %w", err)
	}

	w, uri, err := r.deps.Store.Create(ctx, res.StartedAt)
	if err != nil {
		return StageStore, fmt.Errorf("create output: %w", err)
	}
	res.URI = uri

	n, writeErr := r.deps.Sink.Write(w, r.deps.Normalizer.Normalize(raw))
	res.Records = n
	closeErr := w.Close()
	if writeErr != nil {
		var fe *movement.FormatError
		if errors.As(writeErr, &fe) {
			return StageNormalize, fmt.Errorf("normalize movements: %w", writeErr)
		}
		return StageWrite, fmt.Errorf("write movements: %w", writeErr)
	}
	if closeErr != nil {
		return StageWrite, fmt.Errorf("close %s: %w", uri, closeErr)
	}
	logger.Info("Wrote vessel movements", zap.String("uri", uri), zap.Int("records", n))

	if r.deps.Publisher != nil {
		msgID, err := r.deps.Publisher.Publish(ctx, res.withFinish(r.deps.Clock.Now()), map[string]string{"run_id": res.RunID})
		if err != nil {
			return StageNotify, fmt.Errorf("publish run summary: %w", err)
		}
		logger.Debug("Published run summary", zap.String("message_id", msgID))
	}
	return "", nil
}

func (res Result) withFinish(at time.Time) Result {
	res.FinishedAt = at
	return res
}

func (r *Runner) observe(logger *zap.Logger, res Result, stage string, err error) {
	if r.deps.Metrics == nil {
		return
	}
	took := res.FinishedAt.Sub(res.StartedAt)
	if err != nil {
		r.deps.Metrics.ObserveFailure(stage, res.Records, res.FinishedAt, took)
	} else {
		r.deps.Metrics.ObserveSuccess(res.Records, res.FinishedAt, took)
	}
	if werr := r.deps.Metrics.WriteTextfile(r.deps.MetricsPath); werr != nil {
		logger.Warn("Failed to export metrics", zap.Error(werr))
	}
}
