package version

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/spf13/pflag"

	"spanbridge/config"
)

// set at build time with -ldflags "-X spanbridge/command/version.version=..."
var version = ""

// VersionNumber is the build's version, falling back to the module version
// recorded by the go tool.
func VersionNumber() string {
	if version != "" {
		return version
	}

	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}

	return "dev"
}

type VersionCommand struct {
	flags *pflag.FlagSet
}

func NewVersionCommand() *VersionCommand {
	return &VersionCommand{
		flags: pflag.NewFlagSet("version", pflag.ContinueOnError),
	}
}

func (c *VersionCommand) Synopsis() string {
	return "Prints the version number"
}

func (c *VersionCommand) Flags() *pflag.FlagSet {
	return c.flags
}

func (c *VersionCommand) Standalone() {}

func (c *VersionCommand) Execute(ctx context.Context, cfg *config.Config, args []string) error {
	fmt.Println(VersionNumber())
	return nil
}
