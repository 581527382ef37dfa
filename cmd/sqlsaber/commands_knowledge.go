package main

import (
	"github.com/spf13/cobra"
)

// buildKnowledgeCmd creates the "knowledge" command group for the saved
// definitions the agent searches with search_knowledge.
func buildKnowledgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "knowledge",
		Short: "Manage saved definitions and query patterns",
		Long: `Manage the per-database knowledge store.

Entries pair a name and description with an optional SQL snippet and are
full-text searchable. The agent consults them via the search_knowledge tool
before writing queries from scratch.`,
	}
	cmd.AddCommand(
		buildKnowledgeAddCmd(),
		buildKnowledgeListCmd(),
		buildKnowledgeShowCmd(),
		buildKnowledgeUpdateCmd(),
		buildKnowledgeRemoveCmd(),
		buildKnowledgeClearCmd(),
		buildKnowledgeSearchCmd(),
	)
	return cmd
}

func buildKnowledgeAddCmd() *cobra.Command {
	var (
		database    string
		name        string
		description string
		sqlText     string
		source      string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a knowledge entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKnowledgeAdd(cmd, database, name, description, sqlText, source)
		},
	}
	cmd.Flags().StringVarP(&database, "database", "d", "", "Database name the entry belongs to (required)")
	cmd.Flags().StringVar(&name, "name", "", "Short entry name (required)")
	cmd.Flags().StringVar(&description, "description", "", "What the entry means (required)")
	cmd.Flags().StringVar(&sqlText, "sql", "", "Optional SQL snippet")
	cmd.Flags().StringVar(&source, "source", "user", "Where the entry came from")
	cmd.MarkFlagRequired("database")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("description")
	return cmd
}

func buildKnowledgeListCmd() *cobra.Command {
	var database string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List knowledge entries for a database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKnowledgeList(cmd, database)
		},
	}
	cmd.Flags().StringVarP(&database, "database", "d", "", "Database name (required)")
	cmd.MarkFlagRequired("database")
	return cmd
}

func buildKnowledgeShowCmd() *cobra.Command {
	var database string
	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show one knowledge entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKnowledgeShow(cmd, database, args[0])
		},
	}
	cmd.Flags().StringVarP(&database, "database", "d", "", "Database name (required)")
	cmd.MarkFlagRequired("database")
	return cmd
}

func buildKnowledgeUpdateCmd() *cobra.Command {
	var (
		database    string
		name        string
		description string
		sqlText     string
		source      string
	)
	cmd := &cobra.Command{
		Use:   "update [id]",
		Short: "Update fields of a knowledge entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKnowledgeUpdate(cmd, database, args[0], name, description, sqlText, source)
		},
	}
	cmd.Flags().StringVarP(&database, "database", "d", "", "Database name (required)")
	cmd.Flags().StringVar(&name, "name", "", "New name (unchanged when empty)")
	cmd.Flags().StringVar(&description, "description", "", "New description (unchanged when empty)")
	cmd.Flags().StringVar(&sqlText, "sql", "", "New SQL snippet (unchanged when empty)")
	cmd.Flags().StringVar(&source, "source", "", "New source (unchanged when empty)")
	cmd.MarkFlagRequired("database")
	return cmd
}

func buildKnowledgeRemoveCmd() *cobra.Command {
	var database string
	cmd := &cobra.Command{
		Use:   "remove [id]",
		Short: "Remove a knowledge entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKnowledgeRemove(cmd, database, args[0])
		},
	}
	cmd.Flags().StringVarP(&database, "database", "d", "", "Database name (required)")
	cmd.MarkFlagRequired("database")
	return cmd
}

func buildKnowledgeClearCmd() *cobra.Command {
	var (
		database string
		yes      bool
	)
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all knowledge entries for a database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKnowledgeClear(cmd, database, yes)
		},
	}
	cmd.Flags().StringVarP(&database, "database", "d", "", "Database name (required)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	cmd.MarkFlagRequired("database")
	return cmd
}

func buildKnowledgeSearchCmd() *cobra.Command {
	var (
		database string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Full-text search knowledge entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKnowledgeSearch(cmd, database, args[0], limit)
		},
	}
	cmd.Flags().StringVarP(&database, "database", "d", "", "Database name (required)")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of results")
	cmd.MarkFlagRequired("database")
	return cmd
}
