package main

import (
	"strings"

	"github.com/spf13/cobra"
)

// buildMemoryCmd creates the "memory" command group for the notes injected
// into the system prompt.
func buildMemoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Manage per-database memories",
		Long: `Manage the notes the agent carries into every conversation with a
database, such as unit conventions or columns to avoid.`,
	}
	cmd.AddCommand(
		buildMemoryAddCmd(),
		buildMemoryListCmd(),
		buildMemoryRemoveCmd(),
		buildMemoryClearCmd(),
	)
	return cmd
}

func buildMemoryAddCmd() *cobra.Command {
	var database string
	cmd := &cobra.Command{
		Use:   "add [content...]",
		Short: "Save a memory for a database",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMemoryAdd(cmd, database, strings.Join(args, " "))
		},
	}
	cmd.Flags().StringVarP(&database, "database", "d", "", "Database name (required)")
	cmd.MarkFlagRequired("database")
	return cmd
}

func buildMemoryListCmd() *cobra.Command {
	var database string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List memories for a database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMemoryList(cmd, database)
		},
	}
	cmd.Flags().StringVarP(&database, "database", "d", "", "Database name (required)")
	cmd.MarkFlagRequired("database")
	return cmd
}

func buildMemoryRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove [id]",
		Short: "Remove a memory by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMemoryRemove(cmd, args[0])
		},
	}
}

func buildMemoryClearCmd() *cobra.Command {
	var (
		database string
		yes      bool
	)
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all memories for a database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMemoryClear(cmd, database, yes)
		},
	}
	cmd.Flags().StringVarP(&database, "database", "d", "", "Database name (required)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	cmd.MarkFlagRequired("database")
	return cmd
}
