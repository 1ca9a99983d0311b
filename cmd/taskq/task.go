package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jwhiting/taskq/internal/store"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
}

func init() {
	var queueName, description, instructions, params string
	var priority int

	add := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task to a queue",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			s := openStore(ctx)
			defer func() { _ = s.Close() }()

			parsed, err := parseParams(params)
			if err != nil {
				failWith(fmt.Errorf("validation: %w", err))
			}

			task, err := s.AddTask(ctx, store.AddTaskInput{
				QueueName:    queueName,
				Title:        args[0],
				Description:  description,
				Priority:     priority,
				Parameters:   store.Parameters(parsed),
				Instructions: instructions,
			})
			if err != nil {
				failWith(err)
			}
			printTask(task)
		},
	}
	add.Flags().StringVar(&queueName, "queue", "", "queue name (required)")
	add.Flags().StringVar(&description, "description", "", "task description")
	add.Flags().IntVar(&priority, "priority", 0, "task priority 1-10 (default 5)")
	add.Flags().StringVar(&instructions, "instructions", "", "task instructions")
	add.Flags().StringVar(&params, "params", "", "parameters: a JSON object, or comma-separated k=v pairs")
	_ = add.MarkFlagRequired("queue")

	var updTitle, updDescription, updInstructions, updParams string
	var updPriority int
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Partially update a task",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			s := openStore(ctx)
			defer func() { _ = s.Close() }()

			id := parseTaskID(args[0])
			patch := store.TaskUpdate{}
			if cmd.Flags().Changed("title") {
				patch.Title = &updTitle
			}
			if cmd.Flags().Changed("description") {
				patch.Description = &updDescription
			}
			if cmd.Flags().Changed("priority") {
				patch.Priority = &updPriority
			}
			if cmd.Flags().Changed("instructions") {
				patch.Instructions = &updInstructions
			}
			if cmd.Flags().Changed("params") {
				parsed, err := parseParams(updParams)
				if err != nil {
					failWith(fmt.Errorf("validation: %w", err))
				}
				p := store.Parameters(parsed)
				patch.Parameters = &p
			}

			task, err := s.UpdateTask(ctx, id, patch)
			if err != nil {
				failWith(err)
			}
			printTask(task)
		},
	}
	update.Flags().StringVar(&updTitle, "title", "", "new title")
	update.Flags().StringVar(&updDescription, "description", "", "new description")
	update.Flags().IntVar(&updPriority, "priority", 0, "new priority 1-10")
	update.Flags().StringVar(&updInstructions, "instructions", "", "new instructions")
	update.Flags().StringVar(&updParams, "params", "", "new parameters")

	var checkoutWorker string
	checkout := &cobra.Command{
		Use:   "checkout <queue-or-id>",
		Short: "Claim the highest-priority pending task in a queue, or a specific task by id",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			s := openStore(ctx)
			defer func() { _ = s.Close() }()

			if checkoutWorker == "" {
				checkoutWorker = uuid.NewString()
			}

			target := targetFromArg(args[0])
			task, err := s.CheckoutTask(ctx, target, checkoutWorker)
			if err != nil {
				failWith(err)
			}
			if task == nil {
				if jsonOutput {
					printJSON(map[string]interface{}{"task": nil})
				} else {
					fmt.Println("no pending task available")
				}
				return
			}
			printTask(task)
		},
	}
	checkout.Flags().StringVar(&checkoutWorker, "worker", "", "worker id (default: a generated UUID)")

	complete := taskIDCommand("complete", "Mark a checked-out task completed", func(ctx context.Context, s *store.Store, id int64) (*store.Task, error) {
		return s.CompleteTask(ctx, id)
	})
	reset := taskIDCommand("reset", "Return a task to pending from any state", func(ctx context.Context, s *store.Store, id int64) (*store.Task, error) {
		return s.ResetTask(ctx, id)
	})
	fail := taskIDCommand("fail", "Mark a task failed", func(ctx context.Context, s *store.Store, id int64) (*store.Task, error) {
		return s.FailTask(ctx, id)
	})

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task and cascade its journal entries",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			s := openStore(ctx)
			defer func() { _ = s.Close() }()

			id := parseTaskID(args[0])
			if err := s.DeleteTask(ctx, id); err != nil {
				failWith(err)
			}
			if jsonOutput {
				printJSON(map[string]bool{"deleted": true})
			} else {
				fmt.Printf("deleted task %d\n", id)
			}
		},
	}

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			s := openStore(ctx)
			defer func() { _ = s.Close() }()

			id := parseTaskID(args[0])
			task, err := s.GetTask(ctx, id)
			if err != nil {
				failWith(err)
			}
			if task == nil {
				failWith(fmt.Errorf("task %d not found", id))
			}
			printTask(task)
		},
	}

	var listQueue, listStatus string
	var listLimit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List tasks in a queue",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			s := openStore(ctx)
			defer func() { _ = s.Close() }()

			var status *store.Status
			if listStatus != "" {
				st := store.Status(listStatus)
				status = &st
			}
			tasks, err := s.ListTasks(ctx, listQueue, status, listLimit)
			if err != nil {
				failWith(err)
			}
			if jsonOutput {
				printJSON(tasks)
				return
			}
			for _, t := range tasks {
				fmt.Printf("%d\t%s\t%s\tpriority=%d\n", t.ID, t.Title, t.Status, t.Priority)
			}
		},
	}
	list.Flags().StringVar(&listQueue, "queue", "", "queue name (required)")
	list.Flags().StringVar(&listStatus, "status", "", "filter by status")
	list.Flags().IntVar(&listLimit, "limit", 0, "maximum number of tasks to return")
	_ = list.MarkFlagRequired("queue")

	taskCmd.AddCommand(add, update, checkout, complete, reset, fail, del, get, list)
}

func taskIDCommand(use, short string, fn func(context.Context, *store.Store, int64) (*store.Task, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			s := openStore(ctx)
			defer func() { _ = s.Close() }()

			id := parseTaskID(args[0])
			task, err := fn(ctx, s, id)
			if err != nil {
				failWith(err)
			}
			printTask(task)
		},
	}
}

// targetFromArg implements the façade's string-sniffing rule: an
// all-digits argument targets a task id directly; anything else names a
// queue to dispatch from.
func targetFromArg(arg string) store.CheckoutTarget {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return store.ByTaskID(id)
	}
	return store.ByQueue(arg)
}

func parseTaskID(arg string) int64 {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		failWith(fmt.Errorf("validation: %q is not a valid task id", arg))
	}
	return id
}

func printTask(t *store.Task) {
	if jsonOutput {
		printJSON(t)
		return
	}
	fmt.Printf("#%d %s [%s] priority=%d queue=%s\n", t.ID, t.Title, t.Status, t.Priority, t.QueueName)
}
