// Package app initializes and holds the long-lived services of a scrape run,
// acting as a dependency injection container.
package app

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/JakeFAU/harbour-movements/internal/clock/system"
	"github.com/JakeFAU/harbour-movements/internal/config"
	"github.com/JakeFAU/harbour-movements/internal/extract"
	collyfetcher "github.com/JakeFAU/harbour-movements/internal/fetcher/colly"
	"github.com/JakeFAU/harbour-movements/internal/hash/sha256"
	"github.com/JakeFAU/harbour-movements/internal/id/uuid"
	"github.com/JakeFAU/harbour-movements/internal/metrics"
	"github.com/JakeFAU/harbour-movements/internal/movement"
	"github.com/JakeFAU/harbour-movements/internal/pipeline"
	pubsubpublisher "github.com/JakeFAU/harbour-movements/internal/publisher/pubsub"
	"github.com/JakeFAU/harbour-movements/internal/sink"
	"github.com/JakeFAU/harbour-movements/internal/storage"
	"github.com/JakeFAU/harbour-movements/internal/storage/gcs"
	"github.com/JakeFAU/harbour-movements/internal/storage/local"
)

// App holds the services shared by a run.
type App struct {
	logger  *zap.Logger
	runner  *pipeline.Runner
	metrics *metrics.Recorder
	closers []func() error
}

// Option customizes how New builds cloud clients.
type Option func(*options)

type options struct {
	storageOpts []option.ClientOption
	pubsubOpts  []option.ClientOption
}

// WithStorageClientOptions passes options to the Cloud Storage client.
func WithStorageClientOptions(opts ...option.ClientOption) Option {
	return func(o *options) { o.storageOpts = append(o.storageOpts, opts...) }
}

// WithPubSubClientOptions passes options to the Pub/Sub client.
func WithPubSubClientOptions(opts ...option.ClientOption) Option {
	return func(o *options) { o.pubsubOpts = append(o.pubsubOpts, opts...) }
}

// New builds every service named by cfg. It fails fast; anything already
// opened is closed before the error is returned.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	clock := system.New(loc)

	a := &App{logger: logger, metrics: metrics.New()}

	store, err := a.newStore(ctx, cfg.Output, o.storageOpts)
	if err != nil {
		a.Close()
		return nil, err
	}

	deps := pipeline.Deps{
		URL: cfg.Source.URL,
		Fetcher: collyfetcher.New(collyfetcher.Config{
			UserAgent: cfg.Source.UserAgent,
			Timeout:   cfg.Timeout(),
		}, logger),
		Extractor:   extract.New(cfg.Source.TableSelector, logger),
		Normalizer:  movement.NewNormalizer(clock, loc),
		Sink:        sink.NewJSONL(logger),
		Store:       store,
		Clock:       clock,
		IDs:         uuid.New(),
		Hasher:      sha256.New(),
		Metrics:     a.metrics,
		MetricsPath: cfg.Metrics.Textfile,
		Logger:      logger,
	}

	if cfg.Notify.PubSubTopic != "" {
		pub, err := a.newPublisher(ctx, cfg.Notify, o.pubsubOpts)
		if err != nil {
			a.Close()
			return nil, err
		}
		deps.Publisher = pub
	}

	a.runner, err = pipeline.New(deps)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) newStore(ctx context.Context, cfg config.OutputConfig, opts []option.ClientOption) (storage.Store, error) {
	switch cfg.Backend {
	case config.BackendGCS:
		client, err := gcstorage.NewClient(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.logger.Info("Using GCS output", zap.String("bucket", cfg.GCSBucket), zap.String("prefix", cfg.Dir))
		return gcs.New(client, gcs.Config{Bucket: cfg.GCSBucket, Prefix: cfg.Dir})
	case config.BackendLocal:
		a.logger.Debug("Using local output", zap.String("dir", cfg.Dir))
		return local.New(local.Config{BaseDir: cfg.Dir})
	default:
		return nil, fmt.Errorf("unknown output backend: %s", cfg.Backend)
	}
}

func (a *App) newPublisher(ctx context.Context, cfg config.NotifyConfig, opts []option.ClientOption) (*pubsubpublisher.Publisher, error) {
	client, err := pubsub.NewClient(ctx, cfg.PubSubProject, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	a.closers = append(a.closers, client.Close)

	pub := pubsubpublisher.New(client.Topic(cfg.PubSubTopic))
	a.closers = append(a.closers, func() error {
		pub.Close()
		return nil
	})
	a.logger.Info("Publishing run summaries", zap.String("project", cfg.PubSubProject), zap.String("topic", cfg.PubSubTopic))
	return pub, nil
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Runner returns the configured scrape runner.
func (a *App) Runner() *pipeline.Runner {
	return a.runner
}

// Metrics returns the run metrics recorder.
func (a *App) Metrics() *metrics.Recorder {
	return a.metrics
}

// Close releases cloud clients in reverse order of creation and flushes the logger.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("Error closing service", zap.Error(err))
		}
	}
	a.closers = nil
	_ = a.logger.Sync()
}
