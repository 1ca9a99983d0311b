package store

import (
	"context"
	"testing"
)

// newTestStore returns a Store backed by an isolated temp-file database
// and registers t.Cleanup to close it. File-based databases behave more
// reliably than in-memory ones across the connection pool used by the
// transaction primitive.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	ctx := context.Background()
	path := t.TempDir() + "/test.db"
	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Fatalf("failed to close test store: %v", err)
		}
	})
	return s
}

func mustCreateQueue(t *testing.T, s *Store, name string) *Queue {
	t.Helper()
	q, err := s.CreateQueue(context.Background(), name, "", "")
	if err != nil {
		t.Fatalf("failed to create queue %q: %v", name, err)
	}
	return q
}
