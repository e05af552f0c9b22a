package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/aldersyn/bomrev/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		// Domain failures are already rendered by the command; anything
		// else still needs a message.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) || exitErr.Code == cli.ExitCommandError {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
