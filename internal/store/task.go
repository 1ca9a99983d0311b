package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"
)

// AddTaskInput carries the arguments for AddTask. Priority of 0 means
// "not specified" and defaults to 5; the valid range [1,10] never
// includes 0, so the zero value doubles as the "absent" sentinel.
type AddTaskInput struct {
	QueueName    string
	Title        string
	Description  string
	Priority     int
	Parameters   Parameters
	Instructions string
}

const defaultPriority = 5

// AddTask validates fields, rejects with KindNotFound if the queue does
// not exist, persists and returns the hydrated task with status pending.
func (s *Store) AddTask(ctx context.Context, in AddTaskInput) (*Task, error) {
	if err := validateTitle(in.Title); err != nil {
		return nil, validationErr("AddTask", in.Title, err)
	}
	priority := in.Priority
	if priority == 0 {
		priority = defaultPriority
	}
	if err := validatePriority(priority); err != nil {
		return nil, validationErr("AddTask", in.Title, err)
	}

	var task *Task
	err := s.withTx(ctx, func(ctx context.Context, conn *sql.Conn) error {
		var exists int
		if err := conn.QueryRowContext(ctx, `SELECT 1 FROM queues WHERE name = ?`, in.QueueName).Scan(&exists); err != nil {
			if err == sql.ErrNoRows {
				return notFoundErr("AddTask", in.QueueName)
			}
			return wrapDBError("AddTask", in.QueueName, err)
		}

		now := time.Now().UTC()
		paramsVal, err := in.Parameters.Value()
		if err != nil {
			return validationErr("AddTask", in.Title, err)
		}

		res, err := conn.ExecContext(ctx, `
			INSERT INTO tasks (queue_name, title, description, priority, parameters, instructions,
			                    status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, in.QueueName, in.Title, nullIfEmpty(in.Description), priority, paramsVal,
			nullIfEmpty(in.Instructions), string(StatusPending), formatTime(now), formatTime(now))
		if err != nil {
			return wrapDBError("AddTask", in.Title, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return wrapDBError("AddTask", in.Title, err)
		}

		task = &Task{
			ID:           id,
			QueueName:    in.QueueName,
			Title:        in.Title,
			Description:  in.Description,
			Priority:     priority,
			Parameters:   in.Parameters,
			Instructions: in.Instructions,
			Status:       StatusPending,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// TaskUpdate carries partial-update fields for UpdateTask. A nil field
// preserves the existing value; a non-nil pointer to "" clears
// Description or Instructions to null (an empty Title is rejected by
// validation, since a title is never null). Priority and Parameters have no
// "clear" sense (priority is never null; an empty Parameters map simply
// replaces the stored document), so they are absent-or-present only.
type TaskUpdate struct {
	Title        *string
	Description  *string
	Priority     *int
	Parameters   *Parameters
	Instructions *string
}

// UpdateTask applies a partial update with "absent preserves, empty
// clears" semantics for string fields. It re-validates any field present
// in the patch and never touches status, worker_id, or timestamp fields
// besides updated_at.
func (s *Store) UpdateTask(ctx context.Context, id int64, patch TaskUpdate) (*Task, error) {
	if err := validateID(id); err != nil {
		return nil, validationErr("UpdateTask", fmt.Sprint(id), err)
	}

	setClauses := []string{"updated_at = ?"}
	args := []interface{}{formatTime(time.Now().UTC())}

	if patch.Title != nil {
		if err := validateTitle(*patch.Title); err != nil {
			return nil, validationErr("UpdateTask", strconv.FormatInt(id, 10), err)
		}
		setClauses = append(setClauses, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Description != nil {
		setClauses = append(setClauses, "description = ?")
		args = append(args, nullIfEmpty(*patch.Description))
	}
	if patch.Priority != nil {
		if err := validatePriority(*patch.Priority); err != nil {
			return nil, validationErr("UpdateTask", strconv.FormatInt(id, 10), err)
		}
		setClauses = append(setClauses, "priority = ?")
		args = append(args, *patch.Priority)
	}
	if patch.Parameters != nil {
		val, err := patch.Parameters.Value()
		if err != nil {
			return nil, validationErr("UpdateTask", strconv.FormatInt(id, 10), err)
		}
		setClauses = append(setClauses, "parameters = ?")
		args = append(args, val)
	}
	if patch.Instructions != nil {
		setClauses = append(setClauses, "instructions = ?")
		args = append(args, nullIfEmpty(*patch.Instructions))
	}

	if len(setClauses) == 1 {
		// Nothing but updated_at supplied: absent patch, untouched row.
		return s.GetTask(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE tasks SET %s WHERE id = ?", joinClauses(setClauses))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("UpdateTask", strconv.FormatInt(id, 10), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, wrapDBError("UpdateTask", strconv.FormatInt(id, 10), err)
	}
	if n == 0 {
		return nil, notFoundErr("UpdateTask", strconv.FormatInt(id, 10))
	}
	return s.GetTask(ctx, id)
}

// CheckoutTask is the atomic-checkout heart of the system. See
// CheckoutTarget for the two ways to target it.
//
// By queue name: under one serializable transaction, selects the single
// pending task with highest priority (ties broken by earliest
// created_at), conditionally updates it from pending to checked_out
// guarded by WHERE id = ? AND status = 'pending'. Zero pending tasks is
// a normal outcome (nil, nil), not a failure. Losing the guarded race
// (another worker won) fails with KindCheckout.
//
// By task id: looks up the task; any status other than pending fails
// with KindCheckout; otherwise performs the same guarded update.
func (s *Store) CheckoutTask(ctx context.Context, target CheckoutTarget, workerID string) (*Task, error) {
	var task *Task
	err := s.withTx(ctx, func(ctx context.Context, conn *sql.Conn) error {
		var id int64

		if target.byID {
			id = target.taskID
			if err := validateID(id); err != nil {
				return validationErr("CheckoutTask", strconv.FormatInt(id, 10), err)
			}
			var status string
			err := conn.QueryRowContext(ctx, `SELECT status FROM tasks WHERE id = ?`, id).Scan(&status)
			if err == sql.ErrNoRows {
				return notFoundErr("CheckoutTask", strconv.FormatInt(id, 10))
			}
			if err != nil {
				return wrapDBError("CheckoutTask", strconv.FormatInt(id, 10), err)
			}
			if Status(status) != StatusPending {
				return checkoutErr("CheckoutTask", strconv.FormatInt(id, 10),
					fmt.Errorf("task is %s, not pending", status))
			}
		} else {
			var exists int
			if err := conn.QueryRowContext(ctx, `SELECT 1 FROM queues WHERE name = ?`, target.queueName).Scan(&exists); err != nil {
				if err == sql.ErrNoRows {
					return notFoundErr("CheckoutTask", target.queueName)
				}
				return wrapDBError("CheckoutTask", target.queueName, err)
			}

			err := conn.QueryRowContext(ctx, `
				SELECT id FROM tasks
				WHERE queue_name = ? AND status = 'pending'
				ORDER BY priority DESC, created_at ASC, id ASC
				LIMIT 1
			`, target.queueName).Scan(&id)
			if err == sql.ErrNoRows {
				// No pending task: a normal, non-failure outcome.
				return nil
			}
			if err != nil {
				return wrapDBError("CheckoutTask", target.queueName, err)
			}
		}

		now := time.Now().UTC()
		res, err := conn.ExecContext(ctx, `
			UPDATE tasks
			SET status = 'checked_out', worker_id = ?, checked_out_at = ?, updated_at = ?
			WHERE id = ? AND status = 'pending'
		`, nullIfEmpty(workerID), formatTime(now), formatTime(now), id)
		if err != nil {
			return wrapDBError("CheckoutTask", strconv.FormatInt(id, 10), err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return wrapDBError("CheckoutTask", strconv.FormatInt(id, 10), err)
		}
		if n == 0 {
			// Another transaction claimed it between our SELECT and our
			// guarded UPDATE; the caller may retry a queue-name checkout.
			return checkoutErr("CheckoutTask", strconv.FormatInt(id, 10), fmt.Errorf("lost checkout race"))
		}

		t, err := getTaskTx(ctx, conn, "CheckoutTask", id)
		if err != nil {
			return err
		}
		task = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// CompleteTask is idempotent for already-completed tasks. Fails
// KindValidation if the task exists but is not currently checked_out.
// Fails KindNotFound if no such task.
func (s *Store) CompleteTask(ctx context.Context, id int64) (*Task, error) {
	var task *Task
	err := s.withTx(ctx, func(ctx context.Context, conn *sql.Conn) error {
		current, err := getTaskTx(ctx, conn, "CompleteTask", id)
		if err != nil {
			return err
		}

		if current.Status == StatusCompleted {
			task = current
			return nil
		}
		if current.Status != StatusCheckedOut {
			return validationErr("CompleteTask", strconv.FormatInt(id, 10),
				fmt.Errorf("task is %s, must be checked_out to complete", current.Status))
		}

		now := time.Now().UTC()
		_, err = conn.ExecContext(ctx, `
			UPDATE tasks SET status = 'completed', completed_at = ?, updated_at = ? WHERE id = ?
		`, formatTime(now), formatTime(now), id)
		if err != nil {
			return wrapDBError("CompleteTask", strconv.FormatInt(id, 10), err)
		}

		task, err = getTaskTx(ctx, conn, "CompleteTask", id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// ResetTask is idempotent for already-pending tasks. Unconditionally
// restores the task to pending from any other state, clearing worker_id,
// checked_out_at, and completed_at. Any caller may reset any task; this
// is how stranded checked_out tasks are recovered.
func (s *Store) ResetTask(ctx context.Context, id int64) (*Task, error) {
	var task *Task
	err := s.withTx(ctx, func(ctx context.Context, conn *sql.Conn) error {
		current, err := getTaskTx(ctx, conn, "ResetTask", id)
		if err != nil {
			return err
		}
		if current.Status == StatusPending {
			task = current
			return nil
		}

		now := time.Now().UTC()
		_, err = conn.ExecContext(ctx, `
			UPDATE tasks
			SET status = 'pending', worker_id = NULL, checked_out_at = NULL, completed_at = NULL,
			    updated_at = ?
			WHERE id = ?
		`, formatTime(now), id)
		if err != nil {
			return wrapDBError("ResetTask", strconv.FormatInt(id, 10), err)
		}

		task, err = getTaskTx(ctx, conn, "ResetTask", id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// FailTask is idempotent for already-failed tasks. Sets status to failed
// from any other state; does not touch worker_id or checked_out_at,
// leaving them intact for forensics.
func (s *Store) FailTask(ctx context.Context, id int64) (*Task, error) {
	var task *Task
	err := s.withTx(ctx, func(ctx context.Context, conn *sql.Conn) error {
		current, err := getTaskTx(ctx, conn, "FailTask", id)
		if err != nil {
			return err
		}
		if current.Status == StatusFailed {
			task = current
			return nil
		}

		now := time.Now().UTC()
		_, err = conn.ExecContext(ctx, `
			UPDATE tasks SET status = 'failed', updated_at = ? WHERE id = ?
		`, formatTime(now), id)
		if err != nil {
			return wrapDBError("FailTask", strconv.FormatInt(id, 10), err)
		}

		task, err = getTaskTx(ctx, conn, "FailTask", id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// DeleteTask removes the row; cascades to the journal. Fails KindNotFound
// if absent.
func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return wrapDBError("DeleteTask", strconv.FormatInt(id, 10), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBError("DeleteTask", strconv.FormatInt(id, 10), err)
	}
	if n == 0 {
		return notFoundErr("DeleteTask", strconv.FormatInt(id, 10))
	}
	return nil
}

// GetTask hydrates parameters by parsing the stored JSON document; if
// parsing fails the field is returned as nil but the read does not fail.
func (s *Store) GetTask(ctx context.Context, id int64) (*Task, error) {
	t, err := scanTaskRow(s.db.QueryRowContext(ctx, taskSelectSQL+" WHERE t.id = ?", id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, wrapDBError("GetTask", strconv.FormatInt(id, 10), err)
	}
	return t, nil
}

func getTaskTx(ctx context.Context, conn *sql.Conn, op string, id int64) (*Task, error) {
	t, err := scanTaskRow(conn.QueryRowContext(ctx, taskSelectSQL+" WHERE t.id = ?", id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, notFoundErr(op, strconv.FormatInt(id, 10))
		}
		return nil, wrapDBError(op, strconv.FormatInt(id, 10), err)
	}
	return t, nil
}

// ListTasks returns tasks in a queue ordered by priority DESC, created_at
// ASC, with an optional status filter and an optional positive limit.
func (s *Store) ListTasks(ctx context.Context, queueName string, status *Status, limit int) ([]*Task, error) {
	query := taskSelectSQL + " WHERE t.queue_name = ?"
	args := []interface{}{queueName}
	if status != nil {
		query += " AND t.status = ?"
		args = append(args, string(*status))
	}
	query += " ORDER BY t.priority DESC, t.created_at ASC, t.id ASC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("ListTasks", queueName, err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTaskRow(rows)
		if err != nil {
			return nil, wrapDBError("ListTasks", queueName, err)
		}
		tasks = append(tasks, t)
	}
	return tasks, wrapDBError("ListTasks", queueName, rows.Err())
}

const taskSelectSQL = `
	SELECT t.id, t.queue_name, t.title, t.description, t.priority, t.parameters, t.instructions,
	       t.status, t.worker_id, t.created_at, t.updated_at, t.checked_out_at, t.completed_at
	FROM tasks t`

func scanTaskRow(row scanner) (*Task, error) {
	var t Task
	var description, instructions, workerID sql.NullString
	var paramsRaw sql.NullString
	var status string
	var createdAt, updatedAt string
	var checkedOutAt, completedAt sql.NullString

	if err := row.Scan(&t.ID, &t.QueueName, &t.Title, &description, &t.Priority, &paramsRaw, &instructions,
		&status, &workerID, &createdAt, &updatedAt, &checkedOutAt, &completedAt); err != nil {
		return nil, err
	}

	t.Description = description.String
	t.Instructions = instructions.String
	t.WorkerID = workerID.String
	t.Status = Status(status)
	t.CreatedAt = parseTimeString(createdAt)
	t.UpdatedAt = parseTimeString(updatedAt)
	t.CheckedOutAt = parseNullableTimeString(checkedOutAt)
	t.CompletedAt = parseNullableTimeString(completedAt)

	var params Parameters
	_ = params.Scan(nullableStringToAny(paramsRaw))
	t.Parameters = params

	return &t, nil
}

func nullableStringToAny(ns sql.NullString) interface{} {
	if !ns.Valid {
		return nil
	}
	return ns.String
}
