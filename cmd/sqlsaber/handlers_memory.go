package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sqlsaber/sqlsaber/internal/memory"
)

// openMemories opens the default on-disk memory store.
func openMemories() (*memory.Store, error) {
	path, err := memory.DefaultPath()
	if err != nil {
		return nil, fmt.Errorf("failed to locate memory store: %w", err)
	}
	return memory.NewStore(path), nil
}

func runMemoryAdd(cmd *cobra.Command, database, content string) error {
	store, err := openMemories()
	if err != nil {
		return err
	}
	entry, err := store.Add(database, content)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved memory %s for %s.\n", entry.ID, database)
	return nil
}

func runMemoryList(cmd *cobra.Command, database string) error {
	store, err := openMemories()
	if err != nil {
		return err
	}
	entries, err := store.List(database)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintf(out, "No memories for %s.\n", database)
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%s  %s  %s\n", e.ID, e.CreatedAt.Format(time.RFC3339), e.Content)
	}
	return nil
}

func runMemoryRemove(cmd *cobra.Command, id string) error {
	store, err := openMemories()
	if err != nil {
		return err
	}
	removed, err := store.Remove(id)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("no memory with id %s", id)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", id)
	return nil
}

func runMemoryClear(cmd *cobra.Command, database string, yes bool) error {
	if !yes {
		return fmt.Errorf("clearing removes every memory for %s; pass --yes to confirm", database)
	}
	store, err := openMemories()
	if err != nil {
		return err
	}
	n, err := store.Clear(database)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d memories for %s.\n", n, database)
	return nil
}
