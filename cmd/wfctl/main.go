package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/codex-k8s/wfctl/internal/cli"
	"github.com/codex-k8s/wfctl/internal/fault"
	"github.com/codex-k8s/wfctl/internal/logging"
)

// main is the entry point for the wfctl CLI binary.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.NewLogger(os.Stderr, logging.LevelInfo)
	if err := cli.Execute(ctx, os.Args[1:], logger); err != nil {
		logger.Error("command failed", "error", err)
		for _, hint := range fault.HintsOf(err) {
			_, _ = fmt.Fprintln(os.Stderr, "  hint:", hint)
		}
		stop()
		os.Exit(1)
	}
}
