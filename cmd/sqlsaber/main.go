// Package main provides the sqlsaber CLI: ask a database questions in
// natural language and manage the per-database memory and knowledge stores.
//
// # Basic Usage
//
// Run a one-shot query:
//
//	sqlsaber query -d app.db "which customers churned last month?"
//
// Manage saved knowledge:
//
//	sqlsaber knowledge add -d app.db --name churn --description "churn = no order in 90 days"
//	sqlsaber knowledge search -d app.db churn
//
// # Environment Variables
//
//   - ANTHROPIC_API_KEY: API key for Claude models
//   - OPENAI_API_KEY: API key for GPT models
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// Build information - populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Logs go to stderr so streamed answers on stdout stay clean.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := buildRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
