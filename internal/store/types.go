package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Status is one of the four legal task/journal states.
type Status string

const (
	StatusPending    Status = "pending"
	StatusCheckedOut Status = "checked_out"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) valid() bool {
	switch s {
	case StatusPending, StatusCheckedOut, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Parameters is an arbitrary JSON-serializable key->value mapping. It is
// stored as a single opaque JSON document and never imposes a schema on
// its values, per the "dynamic/opaque parameter bag" design note.
type Parameters map[string]interface{}

// Value implements driver.Valuer.
func (p Parameters) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	b, err := json.Marshal(map[string]interface{}(p))
	if err != nil {
		return nil, fmt.Errorf("marshal parameters: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner. A malformed stored document degrades to a
// nil map rather than failing the read.
func (p *Parameters) Scan(src interface{}) error {
	*p = nil
	if src == nil {
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return nil
	}
	if len(raw) == 0 {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	*p = m
	return nil
}

// Queue is a named container for tasks.
type Queue struct {
	Name         string
	Description  string
	Instructions string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// QueueStats is a derived snapshot of task counts owned by a queue.
type QueueStats struct {
	QueueName   string
	Total       int
	Pending     int
	CheckedOut  int
	Completed   int
	Failed      int
}

// Task is a unit of work owned by exactly one queue.
type Task struct {
	ID            int64
	QueueName     string
	Title         string
	Description   string
	Priority      int
	Parameters    Parameters
	Instructions  string
	Status        Status
	WorkerID      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CheckedOutAt  *time.Time
	CompletedAt   *time.Time
}

// JournalEntry is an append-only observation about a task.
type JournalEntry struct {
	ID        int64
	TaskID    int64
	Status    Status
	Notes     string
	Timestamp time.Time
}

// CheckoutTarget is the tagged-sum argument accepted by CheckoutTask: a
// queue name (dispatch the highest-priority pending task) or a task id
// (attempt to claim that exact task). The façade, not the core, is
// responsible for the "all-digits => task id" string-sniffing rule.
type CheckoutTarget struct {
	queueName string
	taskID    int64
	byID      bool
}

// ByQueue targets the highest-priority pending task in the named queue.
func ByQueue(name string) CheckoutTarget { return CheckoutTarget{queueName: name} }

// ByTaskID targets one specific task by id.
func ByTaskID(id int64) CheckoutTarget { return CheckoutTarget{taskID: id, byID: true} }
