package store

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
)

// TestScenario_DispatchOrder mirrors the priority-ordered dispatch scenario
// end to end, including a fifth checkout on the now-empty queue.
func TestScenario_DispatchOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreateQueue(t, s, "dispatch")

	for _, p := range []int{3, 9, 5, 7} {
		if _, err := s.AddTask(ctx, AddTaskInput{QueueName: "dispatch", Title: "t", Priority: p}); err != nil {
			t.Fatalf("AddTask: %v", err)
		}
	}

	var got []int
	for i := 0; i < 4; i++ {
		task, err := s.CheckoutTask(ctx, ByQueue("dispatch"), "w")
		if err != nil {
			t.Fatalf("CheckoutTask: %v", err)
		}
		if task == nil {
			t.Fatal("expected a task, got nil")
		}
		got = append(got, task.Priority)
	}
	want := []int{9, 7, 5, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dispatch order: want %v, got %v", want, got)
		}
	}

	fifth, err := s.CheckoutTask(ctx, ByQueue("dispatch"), "w")
	if err != nil {
		t.Fatalf("CheckoutTask: %v", err)
	}
	if fifth != nil {
		t.Fatalf("expected nil on exhausted queue, got %+v", fifth)
	}
}

// TestScenario_HappyPathLifecycle walks a task from creation through
// checkout to completion, verifying the journal records each step.
func TestScenario_HappyPathLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreateQueue(t, s, "q")

	task, err := s.AddTask(ctx, AddTaskInput{QueueName: "q", Title: "ship it"})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if _, err := s.AddJournalEntry(ctx, task.ID, StatusPending, "created"); err != nil {
		t.Fatalf("AddJournalEntry: %v", err)
	}

	checked, err := s.CheckoutTask(ctx, ByQueue("q"), "worker-1")
	if err != nil {
		t.Fatalf("CheckoutTask: %v", err)
	}
	if checked.ID != task.ID || checked.WorkerID != "worker-1" {
		t.Fatalf("unexpected checkout result: %+v", checked)
	}
	if _, err := s.AddJournalEntry(ctx, task.ID, StatusCheckedOut, "worker-1 picked up"); err != nil {
		t.Fatalf("AddJournalEntry: %v", err)
	}

	done, err := s.CompleteTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	if done.Status != StatusCompleted || done.CompletedAt == nil {
		t.Fatalf("expected completed with timestamp, got %+v", done)
	}
	if _, err := s.AddJournalEntry(ctx, task.ID, StatusCompleted, "done"); err != nil {
		t.Fatalf("AddJournalEntry: %v", err)
	}

	entries, err := s.GetTaskJournal(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTaskJournal: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 journal entries, got %d", len(entries))
	}
}

// TestScenario_ResetStrandedTask exercises recovering a task whose worker
// died mid-checkout: any caller may reset it back to pending regardless of
// which worker originally claimed it.
func TestScenario_ResetStrandedTask(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreateQueue(t, s, "q")
	task, err := s.AddTask(ctx, AddTaskInput{QueueName: "q", Title: "t"})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	if _, err := s.CheckoutTask(ctx, ByQueue("q"), "dead-worker"); err != nil {
		t.Fatalf("CheckoutTask: %v", err)
	}

	reset, err := s.ResetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("ResetTask: %v", err)
	}
	if reset.Status != StatusPending || reset.WorkerID != "" {
		t.Fatalf("expected stranded task reset to clean pending, got %+v", reset)
	}

	// The recovered task must be dispatchable again.
	again, err := s.CheckoutTask(ctx, ByQueue("q"), "fresh-worker")
	if err != nil {
		t.Fatalf("CheckoutTask: %v", err)
	}
	if again == nil || again.ID != task.ID {
		t.Fatalf("expected reset task to be checked out again, got %+v", again)
	}
}

// TestScenario_CascadeDelete verifies deleting a queue removes its tasks
// and their journal entries, but leaves unrelated queues untouched.
func TestScenario_CascadeDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreateQueue(t, s, "doomed")
	mustCreateQueue(t, s, "safe")

	doomedTask, err := s.AddTask(ctx, AddTaskInput{QueueName: "doomed", Title: "t"})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	safeTask, err := s.AddTask(ctx, AddTaskInput{QueueName: "safe", Title: "t"})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if _, err := s.AddJournalEntry(ctx, doomedTask.ID, StatusPending, "note"); err != nil {
		t.Fatalf("AddJournalEntry: %v", err)
	}

	if err := s.DeleteQueue(ctx, "doomed"); err != nil {
		t.Fatalf("DeleteQueue: %v", err)
	}

	if got, err := s.GetTask(ctx, doomedTask.ID); err != nil || got != nil {
		t.Fatalf("expected doomed task gone, got task=%+v err=%v", got, err)
	}
	if entries, err := s.GetTaskJournal(ctx, doomedTask.ID); err != nil || len(entries) != 0 {
		t.Fatalf("expected doomed task's journal gone, got %d entries err=%v", len(entries), err)
	}
	if got, err := s.GetTask(ctx, safeTask.ID); err != nil || got == nil {
		t.Fatalf("expected safe task to survive, got task=%+v err=%v", got, err)
	}
	if q, err := s.GetQueue(ctx, "safe"); err != nil || q == nil {
		t.Fatalf("expected safe queue to survive, got q=%+v err=%v", q, err)
	}
}

// TestScenario_RaceManyWorkers runs 20 tasks against 5 concurrent workers
// and checks every task is claimed exactly once with none left behind.
func TestScenario_RaceManyWorkers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreateQueue(t, s, "q")

	const numTasks = 20
	const numWorkers = 5
	ids := make([]int64, 0, numTasks)
	for i := 0; i < numTasks; i++ {
		task, err := s.AddTask(ctx, AddTaskInput{QueueName: "q", Title: "t"})
		if err != nil {
			t.Fatalf("AddTask: %v", err)
		}
		ids = append(ids, task.ID)
	}

	var mu sync.Mutex
	claimedBy := make(map[int64]string)
	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			name := workerName(worker)
			for {
				task, err := s.CheckoutTask(ctx, ByQueue("q"), name)
				if err != nil {
					if IsKind(err, KindCheckout) {
						continue
					}
					t.Errorf("unexpected error: %v", err)
					return
				}
				if task == nil {
					return
				}
				mu.Lock()
				if prev, dup := claimedBy[task.ID]; dup {
					t.Errorf("task %d claimed by both %s and %s", task.ID, prev, name)
				}
				claimedBy[task.ID] = name
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	if len(claimedBy) != numTasks {
		t.Fatalf("expected all %d tasks claimed, got %d", numTasks, len(claimedBy))
	}
	for _, id := range ids {
		if _, ok := claimedBy[id]; !ok {
			t.Fatalf("task %d was never claimed", id)
		}
	}
}

func workerName(i int) string {
	names := []string{"w0", "w1", "w2", "w3", "w4", "w5", "w6", "w7", "w8", "w9"}
	if i < len(names) {
		return names[i]
	}
	return "wN"
}

// TestScenario_InvalidCheckoutAfterComplete asserts that once a task is
// completed, a direct-id checkout against it fails rather than silently
// reclaiming a finished task.
func TestScenario_InvalidCheckoutAfterComplete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreateQueue(t, s, "q")
	task, err := s.AddTask(ctx, AddTaskInput{QueueName: "q", Title: "t"})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if _, err := s.CheckoutTask(ctx, ByTaskID(task.ID), "w1"); err != nil {
		t.Fatalf("CheckoutTask: %v", err)
	}
	if _, err := s.CompleteTask(ctx, task.ID); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}

	if _, err := s.CheckoutTask(ctx, ByTaskID(task.ID), "w2"); !IsKind(err, KindCheckout) {
		t.Fatalf("expected KindCheckout against a completed task, got %v", err)
	}
}

// TestTransaction_RollbackOnFailure asserts that a caller-supplied
// transaction function that makes two writes and then returns an error
// leaves neither write visible: the compound action is all-or-nothing.
func TestTransaction_RollbackOnFailure(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreateQueue(t, s, "q")

	boom := errors.New("boom")
	err := s.Transaction(ctx, func(ctx context.Context, conn *sql.Conn) error {
		if _, err := conn.ExecContext(ctx, `
			INSERT INTO tasks (queue_name, title, status, created_at, updated_at)
			VALUES ('q', 'first', 'pending', '2024-01-01T00:00:00Z', '2024-01-01T00:00:00Z')
		`); err != nil {
			return err
		}
		if _, err := conn.ExecContext(ctx, `
			INSERT INTO tasks (queue_name, title, status, created_at, updated_at)
			VALUES ('q', 'second', 'pending', '2024-01-01T00:00:00Z', '2024-01-01T00:00:00Z')
		`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the transaction function's own error to propagate, got %v", err)
	}

	tasks, listErr := s.ListTasks(ctx, "q", nil, 0)
	if listErr != nil {
		t.Fatalf("ListTasks: %v", listErr)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected rollback to leave no tasks, got %d", len(tasks))
	}
}
