// Package main provides the entry point for the unimported CLI tool.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sumatoshi-tech/unimported/cmd/unimported/commands"
	"github.com/Sumatoshi-tech/unimported/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := commands.NewRootCommand().ExecuteContext(ctx)

	stop()

	if err != nil {
		commands.ReportError(os.Stderr, err)
	}

	os.Exit(commands.ExitCode(err))
}
