package store

import (
	"context"
	"database/sql"
	"strconv"
	"time"
)

// AddJournalEntry appends an observation about a task. Fails KindNotFound
// if the task does not exist. status is validated independently of the
// task's current status -- journal entries are observations, not
// transitions, per the design note on free-form journal status.
func (s *Store) AddJournalEntry(ctx context.Context, taskID int64, status Status, notes string) (*JournalEntry, error) {
	if err := validateStatusValue(status); err != nil {
		return nil, validationErr("AddJournalEntry", strconv.FormatInt(taskID, 10), err)
	}

	var entry *JournalEntry
	err := s.withTx(ctx, func(ctx context.Context, conn *sql.Conn) error {
		var exists int
		if err := conn.QueryRowContext(ctx, `SELECT 1 FROM tasks WHERE id = ?`, taskID).Scan(&exists); err != nil {
			if err == sql.ErrNoRows {
				return notFoundErr("AddJournalEntry", strconv.FormatInt(taskID, 10))
			}
			return wrapDBError("AddJournalEntry", strconv.FormatInt(taskID, 10), err)
		}

		now := time.Now().UTC()
		res, err := conn.ExecContext(ctx, `
			INSERT INTO journal_entries (task_id, status, notes, timestamp)
			VALUES (?, ?, ?, ?)
		`, taskID, string(status), nullIfEmpty(notes), formatTime(now))
		if err != nil {
			return wrapDBError("AddJournalEntry", strconv.FormatInt(taskID, 10), err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return wrapDBError("AddJournalEntry", strconv.FormatInt(taskID, 10), err)
		}

		entry = &JournalEntry{
			ID:        id,
			TaskID:    taskID,
			Status:    status,
			Notes:     notes,
			Timestamp: now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// GetTaskJournal returns all journal entries for a task in ascending
// timestamp order.
func (s *Store) GetTaskJournal(ctx context.Context, taskID int64) ([]*JournalEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, status, notes, timestamp
		FROM journal_entries
		WHERE task_id = ?
		ORDER BY timestamp ASC, id ASC
	`, taskID)
	if err != nil {
		return nil, wrapDBError("GetTaskJournal", strconv.FormatInt(taskID, 10), err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*JournalEntry
	for rows.Next() {
		var e JournalEntry
		var notes sql.NullString
		var status, ts string
		if err := rows.Scan(&e.ID, &e.TaskID, &status, &notes, &ts); err != nil {
			return nil, wrapDBError("GetTaskJournal", strconv.FormatInt(taskID, 10), err)
		}
		e.Status = Status(status)
		e.Notes = notes.String
		e.Timestamp = parseTimeString(ts)
		entries = append(entries, &e)
	}
	return entries, wrapDBError("GetTaskJournal", strconv.FormatInt(taskID, 10), rows.Err())
}

// ClearTaskJournal unconditionally deletes all entries for the task; a
// no-op if none exist.
func (s *Store) ClearTaskJournal(ctx context.Context, taskID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM journal_entries WHERE task_id = ?`, taskID)
	return wrapDBError("ClearTaskJournal", strconv.FormatInt(taskID, 10), err)
}
