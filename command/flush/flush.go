package flush

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"spanbridge/command"
	"spanbridge/config"
	"spanbridge/tracing"
)

type FlushCommand struct {
	flags *pflag.FlagSet
	out   io.Writer
}

func NewFlushCommand() *FlushCommand {
	return &FlushCommand{
		flags: pflag.NewFlagSet("flush", pflag.ContinueOnError),
		out:   os.Stdout,
	}
}

func (c *FlushCommand) Synopsis() string {
	return "Resends envelopes spooled while the ingestion endpoint was unavailable"
}

func (c *FlushCommand) Flags() *pflag.FlagSet {
	return c.flags
}

func (c *FlushCommand) Execute(ctx context.Context, cfg *config.Config, args []string) error {
	if cfg.DatabaseFile == "" {
		return tracing.ErrorCtx(ctx, errors.New("no database file configured, nothing to flush"))
	}

	pipeline, err := command.OpenPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	delivered, err := pipeline.Exporter.Flush(ctx)
	fmt.Fprintf(c.out, "delivered %d envelopes\n", delivered)

	return tracing.ErrorCtx(ctx, err)
}
