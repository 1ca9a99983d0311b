package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/jwhiting/taskq/internal/store"
)

// StatusStream serves a websocket endpoint that periodically pushes
// QueueStats snapshots for one queue, used by remote dashboards against
// a daemon started with --listen.
type StatusStream struct {
	store    *store.Store
	log      zerolog.Logger
	interval time.Duration
}

// NewStatusStream returns a StatusStream polling s every interval.
func NewStatusStream(s *store.Store, log zerolog.Logger, interval time.Duration) *StatusStream {
	if interval <= 0 {
		interval = time.Second
	}
	return &StatusStream{store: s, log: log, interval: interval}
}

// ServeHTTP upgrades the request to a websocket connection and streams
// stats for the queue named in the "queue" query parameter until the
// client disconnects.
func (s *StatusStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	queueName := r.URL.Query().Get("queue")
	if queueName == "" {
		http.Error(w, "missing queue parameter", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		s.log.Error().Err(err).Msg("status stream: accept")
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	ctx := r.Context()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := s.store.GetQueueStats(ctx, queueName)
			if err != nil {
				s.log.Warn().Err(err).Str("queue", queueName).Msg("status stream: get stats")
				continue
			}
			b, err := json.Marshal(stats)
			if err != nil {
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
				return
			}
		}
	}
}

// DialStatusStream connects to a remote status stream endpoint, for
// tooling that wants to tail a daemon it does not own.
func DialStatusStream(ctx context.Context, url string) (*websocket.Conn, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	return conn, err
}
