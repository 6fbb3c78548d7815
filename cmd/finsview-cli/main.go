package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"finsview/internal/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cli.NewRootCmd(cli.Options{}).ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}
