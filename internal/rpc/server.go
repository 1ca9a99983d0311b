package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwhiting/taskq/internal/metrics"
	"github.com/jwhiting/taskq/internal/store"
)

// Server dispatches Requests against one *store.Store and writes
// newline-delimited Responses back over whatever net.Listener it is
// handed, Unix domain socket or TCP alike.
type Server struct {
	store          *store.Store
	log            zerolog.Logger
	requestTimeout time.Duration
}

// NewServer returns a Server bound to s, logging through log.
func NewServer(s *store.Store, log zerolog.Logger) *Server {
	return &Server{store: s, log: log, requestTimeout: 30 * time.Second}
}

// Serve accepts connections on ln until ctx is canceled or Accept fails.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go s.handleConnection(ctx, conn)
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(s.requestTimeout)); err != nil {
			return
		}
		line, err := reader.ReadBytes('\n')
		if err != nil {
			return
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeResponse(writer, errorResponse(store.KindValidation, fmt.Sprintf("invalid request: %v", err)))
			continue
		}

		timer := metrics.NewTimer()
		resp := s.dispatch(ctx, &req)
		outcome := "ok"
		if !resp.Success {
			outcome = "error"
		}
		metrics.OperationsTotal.WithLabelValues(req.Operation, outcome).Inc()
		timer.ObserveDurationVec(metrics.OperationDuration, req.Operation)

		if err := conn.SetWriteDeadline(time.Now().Add(s.requestTimeout)); err != nil {
			return
		}
		s.writeResponse(writer, resp)
	}
}

func (s *Server) writeResponse(w *bufio.Writer, resp Response) {
	b, err := json.Marshal(resp)
	if err != nil {
		s.log.Error().Err(err).Msg("marshal response")
		return
	}
	if _, err := w.Write(b); err != nil {
		return
	}
	if err := w.WriteByte('\n'); err != nil {
		return
	}
	_ = w.Flush()
}

func (s *Server) dispatch(ctx context.Context, req *Request) Response {
	switch req.Operation {
	case OpPing:
		return okResponse(map[string]bool{"ok": true})

	case OpQueueCreate:
		var a QueueCreateArgs
		if err := json.Unmarshal(req.Args, &a); err != nil {
			return errorResponse(store.KindValidation, err.Error())
		}
		q, err := s.store.CreateQueue(ctx, a.Name, a.Description, a.Instructions)
		return respondOrErr(q, err)

	case OpQueueUpdate:
		var a QueueUpdateArgs
		if err := json.Unmarshal(req.Args, &a); err != nil {
			return errorResponse(store.KindValidation, err.Error())
		}
		q, err := s.store.UpdateQueue(ctx, a.Name, store.QueueUpdate{
			Description:  a.Description,
			Instructions: a.Instructions,
		})
		return respondOrErr(q, err)

	case OpQueueDelete:
		var a QueueNameArgs
		if err := json.Unmarshal(req.Args, &a); err != nil {
			return errorResponse(store.KindValidation, err.Error())
		}
		if err := s.store.DeleteQueue(ctx, a.Name); err != nil {
			return errResponse(err)
		}
		return okResponse(map[string]bool{"deleted": true})

	case OpQueueGet:
		var a QueueNameArgs
		if err := json.Unmarshal(req.Args, &a); err != nil {
			return errorResponse(store.KindValidation, err.Error())
		}
		q, err := s.store.GetQueue(ctx, a.Name)
		return respondOrErr(q, err)

	case OpQueueList:
		queues, err := s.store.ListQueues(ctx)
		return respondOrErr(queues, err)

	case OpQueueStats:
		var a QueueNameArgs
		if err := json.Unmarshal(req.Args, &a); err != nil {
			return errorResponse(store.KindValidation, err.Error())
		}
		stats, err := s.store.GetQueueStats(ctx, a.Name)
		if err == nil && stats != nil {
			metrics.QueueDepth.WithLabelValues(a.Name).Set(float64(stats.Pending))
		}
		return respondOrErr(stats, err)

	case OpTaskAdd:
		var a TaskAddArgs
		if err := json.Unmarshal(req.Args, &a); err != nil {
			return errorResponse(store.KindValidation, err.Error())
		}
		task, err := s.store.AddTask(ctx, store.AddTaskInput{
			QueueName:    a.QueueName,
			Title:        a.Title,
			Description:  a.Description,
			Priority:     a.Priority,
			Parameters:   store.Parameters(a.Parameters),
			Instructions: a.Instructions,
		})
		return respondOrErr(task, err)

	case OpTaskUpdate:
		var a TaskUpdateArgs
		if err := json.Unmarshal(req.Args, &a); err != nil {
			return errorResponse(store.KindValidation, err.Error())
		}
		patch := store.TaskUpdate{
			Title:        a.Title,
			Description:  a.Description,
			Priority:     a.Priority,
			Instructions: a.Instructions,
		}
		if a.Parameters != nil {
			p := store.Parameters(*a.Parameters)
			patch.Parameters = &p
		}
		task, err := s.store.UpdateTask(ctx, a.ID, patch)
		return respondOrErr(task, err)

	case OpTaskCheckout:
		var a TaskCheckoutArgs
		if err := json.Unmarshal(req.Args, &a); err != nil {
			return errorResponse(store.KindValidation, err.Error())
		}
		timer := metrics.NewTimer()
		target := store.ByQueue(a.QueueName)
		if a.TaskID != 0 {
			target = store.ByTaskID(a.TaskID)
		}
		task, err := s.store.CheckoutTask(ctx, target, a.WorkerID)
		timer.ObserveDuration(metrics.CheckoutLatency)
		switch {
		case err != nil && store.IsKind(err, store.KindCheckout):
			metrics.CheckoutTotal.WithLabelValues("lost_race").Inc()
		case err != nil:
			metrics.CheckoutTotal.WithLabelValues("error").Inc()
		case task == nil:
			metrics.CheckoutTotal.WithLabelValues("empty").Inc()
		default:
			metrics.CheckoutTotal.WithLabelValues("claimed").Inc()
		}
		return respondOrErr(task, err)

	case OpTaskComplete:
		var a TaskIDArgs
		if err := json.Unmarshal(req.Args, &a); err != nil {
			return errorResponse(store.KindValidation, err.Error())
		}
		task, err := s.store.CompleteTask(ctx, a.ID)
		return respondOrErr(task, err)

	case OpTaskReset:
		var a TaskIDArgs
		if err := json.Unmarshal(req.Args, &a); err != nil {
			return errorResponse(store.KindValidation, err.Error())
		}
		task, err := s.store.ResetTask(ctx, a.ID)
		return respondOrErr(task, err)

	case OpTaskFail:
		var a TaskIDArgs
		if err := json.Unmarshal(req.Args, &a); err != nil {
			return errorResponse(store.KindValidation, err.Error())
		}
		task, err := s.store.FailTask(ctx, a.ID)
		return respondOrErr(task, err)

	case OpTaskDelete:
		var a TaskIDArgs
		if err := json.Unmarshal(req.Args, &a); err != nil {
			return errorResponse(store.KindValidation, err.Error())
		}
		if err := s.store.DeleteTask(ctx, a.ID); err != nil {
			return errResponse(err)
		}
		return okResponse(map[string]bool{"deleted": true})

	case OpTaskGet:
		var a TaskIDArgs
		if err := json.Unmarshal(req.Args, &a); err != nil {
			return errorResponse(store.KindValidation, err.Error())
		}
		task, err := s.store.GetTask(ctx, a.ID)
		return respondOrErr(task, err)

	case OpTaskList:
		var a TaskListArgs
		if err := json.Unmarshal(req.Args, &a); err != nil {
			return errorResponse(store.KindValidation, err.Error())
		}
		var status *store.Status
		if a.Status != nil {
			st := store.Status(*a.Status)
			status = &st
		}
		tasks, err := s.store.ListTasks(ctx, a.QueueName, status, a.Limit)
		return respondOrErr(tasks, err)

	case OpJournalAdd:
		var a JournalAddArgs
		if err := json.Unmarshal(req.Args, &a); err != nil {
			return errorResponse(store.KindValidation, err.Error())
		}
		entry, err := s.store.AddJournalEntry(ctx, a.TaskID, store.Status(a.Status), a.Notes)
		return respondOrErr(entry, err)

	case OpJournalList:
		var a JournalTaskArgs
		if err := json.Unmarshal(req.Args, &a); err != nil {
			return errorResponse(store.KindValidation, err.Error())
		}
		entries, err := s.store.GetTaskJournal(ctx, a.TaskID)
		return respondOrErr(entries, err)

	case OpJournalClear:
		var a JournalTaskArgs
		if err := json.Unmarshal(req.Args, &a); err != nil {
			return errorResponse(store.KindValidation, err.Error())
		}
		if err := s.store.ClearTaskJournal(ctx, a.TaskID); err != nil {
			return errResponse(err)
		}
		return okResponse(map[string]bool{"cleared": true})

	default:
		return errorResponse(store.KindValidation, fmt.Sprintf("unknown operation %q", req.Operation))
	}
}

func okResponse(v interface{}) Response {
	b, err := json.Marshal(v)
	if err != nil {
		return errorResponse(store.KindDatabase, fmt.Sprintf("marshal response: %v", err))
	}
	return Response{Success: true, Data: b}
}

func respondOrErr(v interface{}, err error) Response {
	if err != nil {
		return errResponse(err)
	}
	return okResponse(v)
}

func errResponse(err error) Response {
	var se *store.Error
	if ok := asStoreError(err, &se); ok {
		return errorResponse(se.Kind, se.Error())
	}
	return errorResponse(store.KindDatabase, err.Error())
}

func errorResponse(kind store.Kind, msg string) Response {
	return Response{Success: false, Error: &ErrorInfo{Kind: string(kind), Message: msg}}
}

// asStoreError walks err's Unwrap chain and reports the first *store.Error
// it finds, the same lookup errors.As performs for this one target type.
func asStoreError(err error, target **store.Error) bool {
	for err != nil {
		if se, ok := err.(*store.Error); ok {
			*target = se
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// ListenSocket opens a Unix domain socket at path, removing any stale
// socket file left behind by a prior unclean shutdown.
func ListenSocket(path string) (net.Listener, error) {
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	return net.Listen("unix", path)
}
