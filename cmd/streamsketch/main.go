// Package main provides the entry point for the streamsketch CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sumatoshi-tech/streamsketch/cmd/streamsketch/commands"
	"github.com/Sumatoshi-tech/streamsketch/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := commands.NewRootCommand().ExecuteContext(ctx)

	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
