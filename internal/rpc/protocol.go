// Package rpc implements the taskq-agentd wire protocol: a newline-delimited
// JSON request/response envelope over a Unix domain socket, plus an optional
// websocket endpoint that streams queue statistics to remote listeners.
package rpc

import "encoding/json"

// Operation names, one per store.Store method exposed over the wire, plus
// ping.
const (
	OpQueueCreate     = "queue_create"
	OpQueueUpdate     = "queue_update"
	OpQueueDelete     = "queue_delete"
	OpQueueGet        = "queue_get"
	OpQueueList       = "queue_list"
	OpQueueStats      = "queue_stats"
	OpTaskAdd         = "task_add"
	OpTaskUpdate      = "task_update"
	OpTaskCheckout    = "task_checkout"
	OpTaskComplete    = "task_complete"
	OpTaskReset       = "task_reset"
	OpTaskFail        = "task_fail"
	OpTaskDelete      = "task_delete"
	OpTaskGet         = "task_get"
	OpTaskList        = "task_list"
	OpJournalAdd      = "journal_add"
	OpJournalList     = "journal_list"
	OpJournalClear    = "journal_clear"
	OpPing            = "ping"
)

// Request is one client call. Args is the operation-specific payload,
// deferred as raw JSON so the dispatch table can unmarshal into the
// concrete args type for each operation.
type Request struct {
	Operation string          `json:"operation"`
	Args      json.RawMessage `json:"args,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// ErrorInfo is the typed failure reported back to the client, mirroring
// store.Kind so callers never have to string-match an error message.
type ErrorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Response is the envelope returned for every Request.
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *ErrorInfo      `json:"error,omitempty"`
}

// QueueCreateArgs carries CreateQueue's arguments.
type QueueCreateArgs struct {
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

// QueueUpdateArgs carries UpdateQueue's arguments, mirroring store.QueueUpdate's
// pointer-based partial-update semantics over the wire.
type QueueUpdateArgs struct {
	Name         string  `json:"name"`
	Description  *string `json:"description,omitempty"`
	Instructions *string `json:"instructions,omitempty"`
}

// QueueNameArgs targets one queue by name; shared by get/delete/stats.
type QueueNameArgs struct {
	Name string `json:"name"`
}

// TaskAddArgs carries AddTask's arguments.
type TaskAddArgs struct {
	QueueName    string                 `json:"queue_name"`
	Title        string                 `json:"title"`
	Description  string                 `json:"description,omitempty"`
	Priority     int                    `json:"priority,omitempty"`
	Parameters   map[string]interface{} `json:"parameters,omitempty"`
	Instructions string                 `json:"instructions,omitempty"`
}

// TaskUpdateArgs carries UpdateTask's arguments.
type TaskUpdateArgs struct {
	ID           int64                   `json:"id"`
	Title        *string                 `json:"title,omitempty"`
	Description  *string                 `json:"description,omitempty"`
	Priority     *int                    `json:"priority,omitempty"`
	Parameters   *map[string]interface{} `json:"parameters,omitempty"`
	Instructions *string                 `json:"instructions,omitempty"`
}

// TaskIDArgs targets one task by id; shared by get/delete/complete/reset/fail.
type TaskIDArgs struct {
	ID int64 `json:"id"`
}

// TaskCheckoutArgs targets either a queue name or a task id, matching
// store.CheckoutTarget's tagged-sum shape. Exactly one of QueueName/TaskID
// is populated; the façade is responsible for the string-sniffing rule
// that decides which on the command line.
type TaskCheckoutArgs struct {
	QueueName string `json:"queue_name,omitempty"`
	TaskID    int64  `json:"task_id,omitempty"`
	WorkerID  string `json:"worker_id,omitempty"`
}

// TaskListArgs carries ListTasks's arguments.
type TaskListArgs struct {
	QueueName string  `json:"queue_name"`
	Status    *string `json:"status,omitempty"`
	Limit     int     `json:"limit,omitempty"`
}

// JournalAddArgs carries AddJournalEntry's arguments.
type JournalAddArgs struct {
	TaskID int64  `json:"task_id"`
	Status string `json:"status"`
	Notes  string `json:"notes,omitempty"`
}

// JournalTaskArgs targets a task's journal; shared by list/clear.
type JournalTaskArgs struct {
	TaskID int64 `json:"task_id"`
}
