package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// CreateQueue validates name and creates a new queue. Fails with
// KindConflict if the name already exists and KindValidation on
// malformed input.
func (s *Store) CreateQueue(ctx context.Context, name, description, instructions string) (*Queue, error) {
	if err := validateQueueName(name); err != nil {
		return nil, validationErr("CreateQueue", name, err)
	}

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO queues (name, description, instructions, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, name, nullIfEmpty(description), nullIfEmpty(instructions), formatTime(now), formatTime(now))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, conflictErr("CreateQueue", name)
		}
		return nil, wrapDBError("CreateQueue", name, err)
	}

	return &Queue{
		Name:         name,
		Description:  description,
		Instructions: instructions,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// QueueUpdate carries partial-update fields for UpdateQueue. A nil field
// preserves the existing value; a non-nil pointer to "" clears the
// stored value to null; any other value replaces it.
type QueueUpdate struct {
	Description  *string
	Instructions *string
}

// UpdateQueue applies a partial update with "absent preserves, empty
// clears" semantics. If neither field is supplied the stored row is
// untouched and the current snapshot is returned. Fails with
// KindNotFound if the queue does not exist.
func (s *Store) UpdateQueue(ctx context.Context, name string, patch QueueUpdate) (*Queue, error) {
	if patch.Description == nil && patch.Instructions == nil {
		q, err := s.GetQueue(ctx, name)
		if err == nil && q == nil {
			return nil, notFoundErr("UpdateQueue", name)
		}
		return q, err
	}

	setClauses := []string{"updated_at = ?"}
	args := []interface{}{formatTime(time.Now().UTC())}

	if patch.Description != nil {
		setClauses = append(setClauses, "description = ?")
		args = append(args, nullIfEmpty(*patch.Description))
	}
	if patch.Instructions != nil {
		setClauses = append(setClauses, "instructions = ?")
		args = append(args, nullIfEmpty(*patch.Instructions))
	}
	args = append(args, name)

	query := fmt.Sprintf("UPDATE queues SET %s WHERE name = ?", joinClauses(setClauses))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("UpdateQueue", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, wrapDBError("UpdateQueue", name, err)
	}
	if n == 0 {
		return nil, notFoundErr("UpdateQueue", name)
	}
	return s.GetQueue(ctx, name)
}

// DeleteQueue removes the queue and cascades to owned tasks and their
// journal entries. Fails with KindNotFound if absent.
func (s *Store) DeleteQueue(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM queues WHERE name = ?`, name)
	if err != nil {
		return wrapDBError("DeleteQueue", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBError("DeleteQueue", name, err)
	}
	if n == 0 {
		return notFoundErr("DeleteQueue", name)
	}
	return nil
}

// GetQueue returns the queue, or nil if it does not exist.
func (s *Store) GetQueue(ctx context.Context, name string) (*Queue, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, description, instructions, created_at, updated_at
		FROM queues WHERE name = ?
	`, name)
	q, err := scanQueue(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, wrapDBError("GetQueue", name, err)
	}
	return q, nil
}

// ListQueues returns all queues ordered ascending by name.
func (s *Store) ListQueues(ctx context.Context) ([]*Queue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, description, instructions, created_at, updated_at
		FROM queues ORDER BY name ASC
	`)
	if err != nil {
		return nil, wrapDBError("ListQueues", "", err)
	}
	defer func() { _ = rows.Close() }()

	var queues []*Queue
	for rows.Next() {
		q, err := scanQueue(rows)
		if err != nil {
			return nil, wrapDBError("ListQueues", "", err)
		}
		queues = append(queues, q)
	}
	return queues, wrapDBError("ListQueues", "", rows.Err())
}

// GetQueueStats returns the five counters computed by one grouped read.
// Fails with KindNotFound if the queue does not exist.
func (s *Store) GetQueueStats(ctx context.Context, name string) (*QueueStats, error) {
	existing, err := s.GetQueue(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, notFoundErr("GetQueueStats", name)
	}

	stats := &QueueStats{QueueName: name}
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM tasks WHERE queue_name = ? GROUP BY status
	`, name)
	if err != nil {
		return nil, wrapDBError("GetQueueStats", name, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, wrapDBError("GetQueueStats", name, err)
		}
		stats.Total += count
		switch Status(status) {
		case StatusPending:
			stats.Pending = count
		case StatusCheckedOut:
			stats.CheckedOut = count
		case StatusCompleted:
			stats.Completed = count
		case StatusFailed:
			stats.Failed = count
		}
	}
	return stats, wrapDBError("GetQueueStats", name, rows.Err())
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanQueue(row scanner) (*Queue, error) {
	var q Queue
	var description, instructions sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&q.Name, &description, &instructions, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	q.Description = description.String
	q.Instructions = instructions.String
	q.CreatedAt = parseTimeString(createdAt)
	q.UpdatedAt = parseTimeString(updatedAt)
	return &q, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func joinClauses(clauses []string) string {
	out := clauses[0]
	for _, c := range clauses[1:] {
		out += ", " + c
	}
	return out
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed: UNIQUE")
}
