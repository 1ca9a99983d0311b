package store

import (
	"context"
	"testing"
)

func TestAddJournalEntry_OrderedRetrieval(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreateQueue(t, s, "q")
	task, err := s.AddTask(ctx, AddTaskInput{QueueName: "q", Title: "t"})
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	if _, err := s.AddJournalEntry(ctx, task.ID, StatusPending, "created"); err != nil {
		t.Fatalf("AddJournalEntry: %v", err)
	}
	if _, err := s.AddJournalEntry(ctx, task.ID, StatusCheckedOut, "picked up"); err != nil {
		t.Fatalf("AddJournalEntry: %v", err)
	}
	if _, err := s.AddJournalEntry(ctx, task.ID, StatusCompleted, "done"); err != nil {
		t.Fatalf("AddJournalEntry: %v", err)
	}

	entries, err := s.GetTaskJournal(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTaskJournal: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	wantNotes := []string{"created", "picked up", "done"}
	for i, want := range wantNotes {
		if entries[i].Notes != want {
			t.Fatalf("entry %d: expected notes %q, got %q", i, want, entries[i].Notes)
		}
	}
}

func TestAddJournalEntry_MissingTaskFails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.AddJournalEntry(ctx, 999, StatusPending, "note"); !IsKind(err, KindNotFound) {
		t.Fatalf("expected KindNotFound, got %v", err)
	}
}

func TestAddJournalEntry_InvalidStatusRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreateQueue(t, s, "q")
	task, _ := s.AddTask(ctx, AddTaskInput{QueueName: "q", Title: "t"})

	if _, err := s.AddJournalEntry(ctx, task.ID, Status("bogus"), "note"); !IsKind(err, KindValidation) {
		t.Fatalf("expected KindValidation, got %v", err)
	}
}

func TestClearTaskJournal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreateQueue(t, s, "q")
	task, _ := s.AddTask(ctx, AddTaskInput{QueueName: "q", Title: "t"})
	if _, err := s.AddJournalEntry(ctx, task.ID, StatusPending, "note"); err != nil {
		t.Fatalf("AddJournalEntry: %v", err)
	}

	if err := s.ClearTaskJournal(ctx, task.ID); err != nil {
		t.Fatalf("ClearTaskJournal: %v", err)
	}
	entries, err := s.GetTaskJournal(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTaskJournal: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected journal cleared, got %d entries", len(entries))
	}
}

func TestClearTaskJournal_MissingTaskIsNoOp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.ClearTaskJournal(ctx, 999); err != nil {
		t.Fatalf("expected no-op success for missing task, got %v", err)
	}
}
