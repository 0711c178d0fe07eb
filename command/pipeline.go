package command

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/trace"

	"spanbridge/command/version"
	"spanbridge/config"
	"spanbridge/exporter"
	"spanbridge/storage"
	"spanbridge/tracing"
	"spanbridge/transmit"
)

const initialBackoff = 500 * time.Millisecond

// Pipeline is the exporter, sender and spool described by a config.
type Pipeline struct {
	Exporter *exporter.Exporter
	spool    *storage.SQLite
}

// OpenPipeline wires an exporter for cfg. Envelopes are spooled to
// cfg.DatabaseFile when one is set.
func OpenPipeline(ctx context.Context, cfg *config.Config) (*Pipeline, error) {
	logger := logr.FromContextOrDiscard(ctx)

	trace.SpanFromContext(ctx).SetAttributes(
		tracing.HashedString("instrumentation_key", cfg.InstrumentationKey),
	)

	sender := transmit.NewSender(
		cfg.IngestionEndpoint,
		transmit.WithTimeout(cfg.Timeout),
		transmit.WithRetry(initialBackoff, cfg.MaxElapsedTime),
		transmit.WithLogger(logger.WithName("sender")),
	)

	p := &Pipeline{}
	opts := []exporter.Option{
		exporter.WithWorkers(cfg.Workers),
		exporter.WithBatchSize(cfg.BatchSize),
		exporter.WithLogger(logger.WithName("exporter")),
		exporter.WithResourceContext(version.VersionNumber()),
	}

	if cfg.DatabaseFile != "" {
		spool, err := storage.OpenSQLite(ctx, cfg.DatabaseFile)
		if err != nil {
			return nil, tracing.ErrorCtx(ctx, err)
		}

		p.spool = spool
		opts = append(opts, exporter.WithSpool(spool))
	}

	p.Exporter = exporter.New(cfg.InstrumentationKey, sender, opts...)

	return p, nil
}

func (p *Pipeline) Close() error {
	if p.spool == nil {
		return nil
	}
	return p.spool.Close()
}
