package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	appLog "schedsync/internal/log"
)

var version = "0.1.0-dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		appLog.Error("schedsync failed", err)
		os.Exit(1)
	}
}
