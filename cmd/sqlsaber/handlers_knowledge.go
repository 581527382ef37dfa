package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sqlsaber/sqlsaber/internal/knowledge"
)

// openKnowledge opens the default on-disk knowledge store.
func openKnowledge() (*knowledge.Manager, error) {
	path, err := knowledge.DefaultPath()
	if err != nil {
		return nil, fmt.Errorf("failed to locate knowledge store: %w", err)
	}
	store, err := knowledge.NewStore(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open knowledge store: %w", err)
	}
	return knowledge.NewManager(store), nil
}

func runKnowledgeAdd(cmd *cobra.Command, database, name, description, sqlText, source string) error {
	mgr, err := openKnowledge()
	if err != nil {
		return err
	}
	defer mgr.Close()

	entry, err := mgr.Add(cmd.Context(), database, name, description, sqlText, source)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", entry.Name, entry.ID)
	return nil
}

func runKnowledgeList(cmd *cobra.Command, database string) error {
	mgr, err := openKnowledge()
	if err != nil {
		return err
	}
	defer mgr.Close()

	entries, err := mgr.List(cmd.Context(), database)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintf(out, "No knowledge entries for %s.\n", database)
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%s  %-20s  %s\n", e.ID, e.Name, e.Description)
	}
	return nil
}

func runKnowledgeShow(cmd *cobra.Command, database, id string) error {
	mgr, err := openKnowledge()
	if err != nil {
		return err
	}
	defer mgr.Close()

	entry, err := mgr.Get(cmd.Context(), database, id)
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("no entry %s for %s", id, database)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:          %s\n", entry.ID)
	fmt.Fprintf(out, "Name:        %s\n", entry.Name)
	fmt.Fprintf(out, "Description: %s\n", entry.Description)
	if entry.SQL != "" {
		fmt.Fprintf(out, "SQL:         %s\n", entry.SQL)
	}
	if entry.Source != "" {
		fmt.Fprintf(out, "Source:      %s\n", entry.Source)
	}
	fmt.Fprintf(out, "Updated:     %s\n", time.Unix(int64(entry.UpdatedAt), 0).Format(time.RFC3339))
	return nil
}

func runKnowledgeUpdate(cmd *cobra.Command, database, id, name, description, sqlText, source string) error {
	mgr, err := openKnowledge()
	if err != nil {
		return err
	}
	defer mgr.Close()

	current, err := mgr.Get(cmd.Context(), database, id)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("no entry %s for %s", id, database)
	}

	// Empty flags keep the current value.
	if name == "" {
		name = current.Name
	}
	if description == "" {
		description = current.Description
	}
	if sqlText == "" {
		sqlText = current.SQL
	}
	if source == "" {
		source = current.Source
	}

	entry, err := mgr.Update(cmd.Context(), database, id, name, description, sqlText, source)
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("no entry %s for %s", id, database)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated %s (%s)\n", entry.Name, entry.ID)
	return nil
}

func runKnowledgeRemove(cmd *cobra.Command, database, id string) error {
	mgr, err := openKnowledge()
	if err != nil {
		return err
	}
	defer mgr.Close()

	removed, err := mgr.Remove(cmd.Context(), database, id)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("no entry %s for %s", id, database)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", id)
	return nil
}

func runKnowledgeClear(cmd *cobra.Command, database string, yes bool) error {
	if !yes {
		return fmt.Errorf("clearing removes every entry for %s; pass --yes to confirm", database)
	}
	mgr, err := openKnowledge()
	if err != nil {
		return err
	}
	defer mgr.Close()

	n, err := mgr.Clear(cmd.Context(), database)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries for %s.\n", n, database)
	return nil
}

func runKnowledgeSearch(cmd *cobra.Command, database, query string, limit int) error {
	mgr, err := openKnowledge()
	if err != nil {
		return err
	}
	defer mgr.Close()

	entries, err := mgr.Search(cmd.Context(), database, query, limit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No results found.")
		return nil
	}
	fmt.Fprintf(out, "Found %d results:\n\n", len(entries))
	for i, e := range entries {
		fmt.Fprintf(out, "%d. %s - %s\n", i+1, e.Name, e.Description)
		if e.SQL != "" {
			fmt.Fprintf(out, "   SQL: %s\n", e.SQL)
		}
		fmt.Fprintf(out, "   ID: %s\n\n", e.ID)
	}
	return nil
}
