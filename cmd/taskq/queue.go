package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jwhiting/taskq/internal/store"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Manage queues",
}

func init() {
	var description, instructions string

	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new queue",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			s := openStore(ctx)
			defer func() { _ = s.Close() }()

			q, err := s.CreateQueue(ctx, args[0], description, instructions)
			if err != nil {
				failWith(err)
			}
			printQueue(q)
		},
	}
	create.Flags().StringVar(&description, "description", "", "queue description")
	create.Flags().StringVar(&instructions, "instructions", "", "queue instructions")

	var updateDescription, updateInstructions string
	var clearDescription, clearInstructions bool
	update := &cobra.Command{
		Use:   "update <name>",
		Short: "Partially update a queue",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			s := openStore(ctx)
			defer func() { _ = s.Close() }()

			patch := store.QueueUpdate{}
			if clearDescription {
				empty := ""
				patch.Description = &empty
			} else if cmd.Flags().Changed("description") {
				patch.Description = &updateDescription
			}
			if clearInstructions {
				empty := ""
				patch.Instructions = &empty
			} else if cmd.Flags().Changed("instructions") {
				patch.Instructions = &updateInstructions
			}

			q, err := s.UpdateQueue(ctx, args[0], patch)
			if err != nil {
				failWith(err)
			}
			printQueue(q)
		},
	}
	update.Flags().StringVar(&updateDescription, "description", "", "new description")
	update.Flags().StringVar(&updateInstructions, "instructions", "", "new instructions")
	update.Flags().BoolVar(&clearDescription, "clear-description", false, "clear the description to empty")
	update.Flags().BoolVar(&clearInstructions, "clear-instructions", false, "clear the instructions to empty")

	del := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a queue and cascade its tasks and journal entries",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			s := openStore(ctx)
			defer func() { _ = s.Close() }()

			if err := s.DeleteQueue(ctx, args[0]); err != nil {
				failWith(err)
			}
			if jsonOutput {
				printJSON(map[string]bool{"deleted": true})
			} else {
				fmt.Printf("deleted queue %q\n", args[0])
			}
		},
	}

	get := &cobra.Command{
		Use:   "get <name>",
		Short: "Show a queue",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			s := openStore(ctx)
			defer func() { _ = s.Close() }()

			q, err := s.GetQueue(ctx, args[0])
			if err != nil {
				failWith(err)
			}
			if q == nil {
				failWith(fmt.Errorf("queue %q not found", args[0]))
			}
			printQueue(q)
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List all queues",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			s := openStore(ctx)
			defer func() { _ = s.Close() }()

			queues, err := s.ListQueues(ctx)
			if err != nil {
				failWith(err)
			}
			if jsonOutput {
				printJSON(queues)
				return
			}
			for _, q := range queues {
				fmt.Printf("%s\t%s\n", q.Name, q.Description)
			}
		},
	}

	stats := &cobra.Command{
		Use:   "stats <name>",
		Short: "Show task counts for a queue",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			s := openStore(ctx)
			defer func() { _ = s.Close() }()

			st, err := s.GetQueueStats(ctx, args[0])
			if err != nil {
				failWith(err)
			}
			if jsonOutput {
				printJSON(st)
				return
			}
			fmt.Printf("total=%d pending=%d checked_out=%d completed=%d failed=%d\n",
				st.Total, st.Pending, st.CheckedOut, st.Completed, st.Failed)
		},
	}

	queueCmd.AddCommand(create, update, del, get, list, stats)
}

func printQueue(q *store.Queue) {
	if jsonOutput {
		printJSON(q)
		return
	}
	fmt.Printf("%s\n  description: %s\n  instructions: %s\n", q.Name, q.Description, q.Instructions)
}
