package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// buildRootCmd creates the root command and wires all subcommands.
func buildRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sqlsaber",
		Short: "Natural language SQL agent",
		Long: `sqlsaber converts natural language questions into SQL, runs them
read-only against your database, and explains the results.

Supported databases: PostgreSQL, MySQL, SQLite, and CSV files.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(
		buildQueryCmd(),
		buildKnowledgeCmd(),
		buildMemoryCmd(),
		buildVersionCmd(),
	)
	return cmd
}

func buildQueryCmd() *cobra.Command {
	var opts queryOptions
	cmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Ask the database a question in natural language",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, opts, args[0])
		},
	}
	cmd.Flags().StringVarP(&opts.database, "database", "d", "", "Connection string or database file (required)")
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().StringVar(&opts.model, "model", "", "Model as provider:name (e.g. anthropic:claude-sonnet-4-20250514)")
	cmd.Flags().BoolVar(&opts.dangerous, "dangerous", false, "Allow write statements (still rolled back)")
	cmd.Flags().StringVar(&opts.thinkingLevel, "thinking-level", "", "Extended thinking level (minimal, low, medium, high, maximum)")
	cmd.Flags().BoolVar(&opts.showEvents, "events", false, "Print tool events while the agent works")
	cmd.MarkFlagRequired("database")
	return cmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sqlsaber %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
