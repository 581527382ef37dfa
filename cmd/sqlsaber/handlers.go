package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	sqlsaber "github.com/sqlsaber/sqlsaber"
	"github.com/sqlsaber/sqlsaber/internal/config"
	"github.com/sqlsaber/sqlsaber/internal/tools"
	"github.com/sqlsaber/sqlsaber/pkg/models"
)

type queryOptions struct {
	database      string
	configPath    string
	model         string
	thinkingLevel string
	dangerous     bool
	showEvents    bool
}

// loadConfig reads the YAML config when a path is given, otherwise defaults.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// runQuery handles the query command: one prompt, streamed to stdout.
func runQuery(cmd *cobra.Command, opts queryOptions, question string) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.model != "" {
		cfg.ModelName = opts.model
	}
	if opts.dangerous {
		cfg.AllowDangerous = true
	}
	if opts.thinkingLevel != "" {
		cfg.ThinkingLevel = opts.thinkingLevel
		cfg.ThinkingEnabled = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	saber, err := sqlsaber.New(sqlsaber.Options{
		Database: opts.database,
		Config:   cfg,
	})
	if err != nil {
		return err
	}
	defer saber.Close()

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	for ev := range saber.QueryStream(cmd.Context(), question) {
		switch ev.Type {
		case models.EventText:
			fmt.Fprint(out, ev.Text)
		case models.EventToolUse:
			if opts.showEvents && ev.Status == models.ToolUseExecuting {
				fmt.Fprintf(errOut, "[tool] %s\n", executingLabel(ev.ToolName))
			}
		case models.EventQueryResult:
			if opts.showEvents {
				fmt.Fprintf(errOut, "[query] %s (%d rows)\n", ev.Query, len(ev.Rows))
			}
		case models.EventToolResult:
			if opts.showEvents {
				fmt.Fprintf(errOut, "[result] %s\n", ev.ToolName)
			}
		case models.EventProcessing:
			if opts.showEvents {
				fmt.Fprintf(errOut, "[agent] %s\n", ev.Text)
			}
		case models.EventPlotResult:
			fmt.Fprintf(out, "\n%s\n", ev.Payload)
		case models.EventError:
			return errors.New(ev.Text)
		}
	}
	fmt.Fprintln(out)

	if err := cmd.Context().Err(); err != nil {
		return err
	}
	return nil
}

// executingLabel renders a tool's display metadata for event tracing,
// falling back to the bare tool name.
func executingLabel(name string) string {
	spec := tools.Display(name)
	if spec == nil || spec.Executing.Message == "" {
		return name
	}
	if spec.Executing.Icon != "" {
		return fmt.Sprintf("%s %s (%s)", spec.Executing.Icon, spec.Executing.Message, name)
	}
	return fmt.Sprintf("%s (%s)", spec.Executing.Message, name)
}
