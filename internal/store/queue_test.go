package store

import (
	"context"
	"testing"
)

func TestCreateAndGetQueue_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateQueue(ctx, "q1", "a queue", "do the work")
	if err != nil {
		t.Fatalf("CreateQueue: %v", err)
	}

	got, err := s.GetQueue(ctx, "q1")
	if err != nil {
		t.Fatalf("GetQueue: %v", err)
	}
	if got == nil {
		t.Fatal("expected queue to exist")
	}
	if got.Name != created.Name || got.Description != "a queue" || got.Instructions != "do the work" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestCreateQueue_DuplicateNameConflicts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreateQueue(t, s, "dup")

	_, err := s.CreateQueue(ctx, "dup", "", "")
	if !IsKind(err, KindConflict) {
		t.Fatalf("expected KindConflict, got %v", err)
	}
}

func TestCreateQueue_InvalidNameRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"", "has spaces", "slash/not/ok"} {
		_, err := s.CreateQueue(ctx, name, "", "")
		if !IsKind(err, KindValidation) {
			t.Fatalf("name %q: expected KindValidation, got %v", name, err)
		}
	}
}

func TestGetQueue_MissingReturnsNil(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.GetQueue(ctx, "nope")
	if err != nil {
		t.Fatalf("GetQueue: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestListQueues_OrderedByName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreateQueue(t, s, "zebra")
	mustCreateQueue(t, s, "apple")
	mustCreateQueue(t, s, "mango")

	queues, err := s.ListQueues(ctx)
	if err != nil {
		t.Fatalf("ListQueues: %v", err)
	}
	if len(queues) != 3 {
		t.Fatalf("expected 3 queues, got %d", len(queues))
	}
	names := []string{queues[0].Name, queues[1].Name, queues[2].Name}
	want := []string{"apple", "mango", "zebra"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, names)
		}
	}
}

func TestUpdateQueue_PartialUpdateSemantics(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.CreateQueue(ctx, "q", "A", "B")
	if err != nil {
		t.Fatalf("CreateQueue: %v", err)
	}

	x := "X"
	updated, err := s.UpdateQueue(ctx, "q", QueueUpdate{Description: &x})
	if err != nil {
		t.Fatalf("UpdateQueue: %v", err)
	}
	if updated.Description != "X" || updated.Instructions != "B" {
		t.Fatalf("expected {X, B}, got {%q, %q}", updated.Description, updated.Instructions)
	}

	empty := ""
	cleared, err := s.UpdateQueue(ctx, "q", QueueUpdate{Description: &empty})
	if err != nil {
		t.Fatalf("UpdateQueue: %v", err)
	}
	if cleared.Description != "" || cleared.Instructions != "B" {
		t.Fatalf("expected {\"\", B}, got {%q, %q}", cleared.Description, cleared.Instructions)
	}
}

func TestUpdateQueue_NoFieldsLeavesRowUntouched(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.CreateQueue(ctx, "q", "A", "B")
	if err != nil {
		t.Fatalf("CreateQueue: %v", err)
	}

	got, err := s.UpdateQueue(ctx, "q", QueueUpdate{})
	if err != nil {
		t.Fatalf("UpdateQueue: %v", err)
	}
	if got.Description != "A" || got.Instructions != "B" {
		t.Fatalf("expected untouched row, got %+v", got)
	}
}

func TestUpdateQueue_MissingFails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	x := "x"

	_, err := s.UpdateQueue(ctx, "nope", QueueUpdate{Description: &x})
	if !IsKind(err, KindNotFound) {
		t.Fatalf("expected KindNotFound, got %v", err)
	}
}

func TestDeleteQueue_CascadesToTasksAndJournal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreateQueue(t, s, "q2")

	t1, err := s.AddTask(ctx, AddTaskInput{QueueName: "q2", Title: "T1"})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if _, err := s.AddTask(ctx, AddTaskInput{QueueName: "q2", Title: "T2"}); err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if _, err := s.AddJournalEntry(ctx, t1.ID, StatusPending, "created"); err != nil {
		t.Fatalf("AddJournalEntry: %v", err)
	}

	if err := s.DeleteQueue(ctx, "q2"); err != nil {
		t.Fatalf("DeleteQueue: %v", err)
	}

	if q, err := s.GetQueue(ctx, "q2"); err != nil || q != nil {
		t.Fatalf("expected queue gone, got q=%+v err=%v", q, err)
	}
	if task, err := s.GetTask(ctx, t1.ID); err != nil || task != nil {
		t.Fatalf("expected task gone, got task=%+v err=%v", task, err)
	}
	entries, err := s.GetTaskJournal(ctx, t1.ID)
	if err != nil {
		t.Fatalf("GetTaskJournal: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected journal cleared, got %d entries", len(entries))
	}
}

func TestDeleteQueue_MissingFails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.DeleteQueue(ctx, "nope"); !IsKind(err, KindNotFound) {
		t.Fatalf("expected KindNotFound, got %v", err)
	}
}

func TestGetQueueStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreateQueue(t, s, "q")

	a, _ := s.AddTask(ctx, AddTaskInput{QueueName: "q", Title: "a"})
	if _, err := s.AddTask(ctx, AddTaskInput{QueueName: "q", Title: "b"}); err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if _, err := s.CheckoutTask(ctx, ByTaskID(a.ID), "w1"); err != nil {
		t.Fatalf("CheckoutTask: %v", err)
	}

	stats, err := s.GetQueueStats(ctx, "q")
	if err != nil {
		t.Fatalf("GetQueueStats: %v", err)
	}
	if stats.Total != 2 || stats.Pending != 1 || stats.CheckedOut != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestGetQueueStats_MissingFails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetQueueStats(ctx, "nope"); !IsKind(err, KindNotFound) {
		t.Fatalf("expected KindNotFound, got %v", err)
	}
}
