package command

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/hashicorp/cli"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel"

	"spanbridge/command/version"
	"spanbridge/config"
	"spanbridge/tracing"
)

const appName = "spanbridge"

type CommandDefinition interface {
	Synopsis() string
	Flags() *pflag.FlagSet
	Execute(ctx context.Context, cfg *config.Config, args []string) error
}

// Standalone is implemented by commands which run without configuration;
// they are passed a nil config.
type Standalone interface {
	Standalone()
}

func NewCommand(definition CommandDefinition) func() (cli.Command, error) {
	return func() (cli.Command, error) {
		return &command{CommandDefinition: definition}, nil
	}
}

type command struct {
	CommandDefinition

	configPath string
	verbosity  int
}

func (c *command) globalFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("global", pflag.ContinueOnError)
	flags.StringVar(&c.configPath, "config", "", "path to a yaml config file")
	flags.IntVarP(&c.verbosity, "verbosity", "v", 0, "log verbosity, higher is noisier")

	return flags
}

func (c *command) Help() string {
	sb := strings.Builder{}

	sb.WriteString(c.Synopsis())
	sb.WriteString("\n\n")

	sb.WriteString("Flags:\n\n")

	sb.WriteString(c.Flags().FlagUsagesWrapped(80))
	sb.WriteString(c.globalFlags().FlagUsagesWrapped(80))

	return sb.String()
}

func (c *command) Run(args []string) int {
	ctx := withCancelSignals(context.Background())

	flags := pflag.NewFlagSet(appName, pflag.ContinueOnError)
	flags.AddFlagSet(c.Flags())
	flags.AddFlagSet(c.globalFlags())

	if err := flags.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}

	stdr.SetVerbosity(c.verbosity)
	logger := stdr.New(log.New(os.Stderr, "", log.LstdFlags)).WithName(appName)
	ctx = logr.NewContext(ctx, logger)

	var cfg *config.Config
	if _, standalone := c.CommandDefinition.(Standalone); !standalone {
		var err error
		if cfg, err = config.CreateConfig(ctx, c.configPath); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			return 1
		}
	}

	shutdown, err := tracing.Configure(ctx, logger, appName, version.VersionNumber())
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}
	defer shutdown(context.WithoutCancel(ctx))

	tr := otel.Tracer(appName)
	ctx, span := tr.Start(ctx, "main")
	defer span.End()

	if err := c.Execute(ctx, cfg, flags.Args()); err != nil {
		tracing.Error(span, err)
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}

	return 0
}

func withCancelSignals(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-signals
		fmt.Printf("\nReceived %s, stopping\n", s)
		cancel()
	}()

	return ctx
}
