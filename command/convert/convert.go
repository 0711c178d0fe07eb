package convert

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/spf13/pflag"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"spanbridge/command"
	"spanbridge/command/version"
	"spanbridge/config"
	"spanbridge/domain"
	"spanbridge/exporter"
	"spanbridge/tracing"
)

type ConvertCommand struct {
	flags *pflag.FlagSet
	out   io.Writer

	send bool
}

func NewConvertCommand() *ConvertCommand {
	c := &ConvertCommand{
		flags: pflag.NewFlagSet("convert", pflag.ContinueOnError),
		out:   os.Stdout,
	}

	c.flags.BoolVar(&c.send, "send", false, "send the envelopes instead of printing them")

	return c
}

func (c *ConvertCommand) Synopsis() string {
	return "Converts spans written by stdouttrace into envelopes. Reads stdin when no files are given"
}

func (c *ConvertCommand) Flags() *pflag.FlagSet {
	return c.flags
}

func (c *ConvertCommand) Execute(ctx context.Context, cfg *config.Config, args []string) error {
	spans, err := readAll(ctx, args)
	if err != nil {
		return err
	}

	logr.FromContextOrDiscard(ctx).V(1).Info("spans read", "count", len(spans))

	if c.send {
		return c.export(ctx, cfg, spans)
	}

	exp := exporter.New(cfg.InstrumentationKey, nil,
		exporter.WithWorkers(cfg.Workers),
		exporter.WithLogger(logr.FromContextOrDiscard(ctx)),
		exporter.WithResourceContext(version.VersionNumber()),
	)

	envelopes, convertErr := exp.Convert(ctx, spans)

	enc := json.NewEncoder(c.out)
	for _, env := range envelopes {
		if err := enc.Encode(env); err != nil {
			return tracing.ErrorCtx(ctx, err)
		}
	}

	return tracing.ErrorCtx(ctx, convertErr)
}

func (c *ConvertCommand) export(ctx context.Context, cfg *config.Config, spans []sdktrace.ReadOnlySpan) error {
	pipeline, err := command.OpenPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	if err := pipeline.Exporter.ExportSpans(ctx, spans); err != nil {
		return tracing.ErrorCtx(ctx, err)
	}

	return pipeline.Exporter.Shutdown(ctx)
}

func read(path string) ([]sdktrace.ReadOnlySpan, error) {
	if path == "-" {
		return domain.ReadSpans(os.Stdin)
	}
	return domain.ReadFile(path)
}

func readAll(ctx context.Context, paths []string) ([]sdktrace.ReadOnlySpan, error) {
	if len(paths) == 0 {
		paths = []string{"-"}
	}

	var spans []sdktrace.ReadOnlySpan
	for _, path := range paths {
		found, err := read(path)
		if err != nil {
			return nil, tracing.ErrorCtx(ctx, err)
		}
		spans = append(spans, found...)
	}

	return spans, nil
}
