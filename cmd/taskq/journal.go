package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jwhiting/taskq/internal/store"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Manage a task's journal",
}

func init() {
	var status, notes string

	add := &cobra.Command{
		Use:   "add <task-id>",
		Short: "Append a journal entry for a task",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			s := openStore(ctx)
			defer func() { _ = s.Close() }()

			id := parseTaskID(args[0])
			entry, err := s.AddJournalEntry(ctx, id, store.Status(status), notes)
			if err != nil {
				failWith(err)
			}
			if jsonOutput {
				printJSON(entry)
				return
			}
			fmt.Printf("#%d task=%d [%s] %s\n", entry.ID, entry.TaskID, entry.Status, entry.Notes)
		},
	}
	add.Flags().StringVar(&status, "status", "", "status label for this observation (required)")
	add.Flags().StringVar(&notes, "notes", "", "free-form note text")
	_ = add.MarkFlagRequired("status")

	list := &cobra.Command{
		Use:   "list <task-id>",
		Short: "List a task's journal entries in chronological order",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			s := openStore(ctx)
			defer func() { _ = s.Close() }()

			id := parseTaskID(args[0])
			entries, err := s.GetTaskJournal(ctx, id)
			if err != nil {
				failWith(err)
			}
			if jsonOutput {
				printJSON(entries)
				return
			}
			for _, e := range entries {
				fmt.Printf("#%d [%s] %s\n", e.ID, e.Status, e.Notes)
			}
		},
	}

	clear := &cobra.Command{
		Use:   "clear <task-id>",
		Short: "Remove all journal entries for a task",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			s := openStore(ctx)
			defer func() { _ = s.Close() }()

			id := parseTaskID(args[0])
			if err := s.ClearTaskJournal(ctx, id); err != nil {
				failWith(err)
			}
			if jsonOutput {
				printJSON(map[string]bool{"cleared": true})
			} else {
				fmt.Printf("cleared journal for task %d\n", id)
			}
		},
	}

	journalCmd.AddCommand(add, list, clear)
}
