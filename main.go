package main

import (
	"fmt"
	"os"

	"github.com/hashicorp/cli"

	"spanbridge/command"
	"spanbridge/command/convert"
	"spanbridge/command/flush"
	"spanbridge/command/version"
	"spanbridge/command/watch"
)

func main() {

	commands := map[string]cli.CommandFactory{
		"convert": command.NewCommand(convert.NewConvertCommand()),
		"watch":   command.NewCommand(watch.NewWatchCommand()),
		"flush":   command.NewCommand(flush.NewFlushCommand()),
		"version": command.NewCommand(version.NewVersionCommand()),
	}

	cli := &cli.CLI{
		Name:                       "spanbridge",
		Version:                    version.VersionNumber(),
		Args:                       os.Args[1:],
		Commands:                   commands,
		Autocomplete:               true,
		AutocompleteNoDefaultFlags: false,
	}

	exitCode, err := cli.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error executing CLI: %s\n", err.Error())
	}

	os.Exit(exitCode)
}
