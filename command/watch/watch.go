package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"spanbridge/command"
	"spanbridge/config"
	"spanbridge/domain"
	"spanbridge/exporter"
	"spanbridge/tracing"
)

const doneSuffix = ".done"

type WatchCommand struct {
	flags *pflag.FlagSet

	pattern       string
	settle        time.Duration
	flushInterval time.Duration
}

func NewWatchCommand() *WatchCommand {
	c := &WatchCommand{
		flags: pflag.NewFlagSet("watch", pflag.ContinueOnError),
	}

	c.flags.StringVar(&c.pattern, "pattern", "*.json", "glob of the span files to pick up")
	c.flags.DurationVar(&c.settle, "settle", time.Second, "how long a file must be unchanged before it is read")
	c.flags.DurationVar(&c.flushInterval, "flush-interval", 30*time.Second, "how often to resend spooled envelopes, 0 to disable")

	return c
}

func (c *WatchCommand) Synopsis() string {
	return "Watches a directory for span files and sends them as they arrive"
}

func (c *WatchCommand) Flags() *pflag.FlagSet {
	return c.flags
}

func (c *WatchCommand) Execute(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return tracing.ErrorCtx(ctx, errors.New("expected exactly one directory to watch"))
	}

	pipeline, err := command.OpenPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	logger := logr.FromContextOrDiscard(ctx)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		w := NewWatcher(args[0], c.pattern, c.settle, exportFile(pipeline.Exporter), logger.WithName("watcher"))
		return w.Run(ctx)
	})

	if c.flushInterval > 0 {
		g.Go(func() error {
			flushEvery(ctx, pipeline.Exporter, c.flushInterval, logger)
			return nil
		})
	}

	return g.Wait()
}

// exportFile sends the spans in a file, then renames it so it is not picked
// up again.
func exportFile(exp *exporter.Exporter) func(ctx context.Context, path string) error {
	return func(ctx context.Context, path string) error {
		spans, err := domain.ReadFile(path)
		if err != nil {
			return err
		}

		if err := exp.ExportSpans(ctx, spans); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		return os.Rename(path, path+doneSuffix)
	}
}

func flushEvery(ctx context.Context, exp *exporter.Exporter, interval time.Duration, logger logr.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			delivered, err := exp.Flush(ctx)
			if err != nil {
				logger.Error(err, "flush failed", "delivered", delivered)
				continue
			}
			if delivered > 0 {
				logger.Info("spool flushed", "delivered", delivered)
			}
		}
	}
}
