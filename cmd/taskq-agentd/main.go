// Command taskq-agentd is the RPC daemon: it opens the store once and
// serves it to many short-lived taskq CLI invocations (or any RPC
// client) over a Unix domain socket, with an optional TCP/websocket
// listener for remote status streaming.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwhiting/taskq/internal/config"
	"github.com/jwhiting/taskq/internal/metrics"
	"github.com/jwhiting/taskq/internal/rpc"
	"github.com/jwhiting/taskq/internal/store"
)

func main() {
	var dbPath, socketPath, listen, metricsAddr string
	flag.StringVar(&dbPath, "db", "", "path to the taskq database")
	flag.StringVar(&socketPath, "socket", "", "Unix domain socket path (default: platform config dir)")
	flag.StringVar(&listen, "listen", "", "optional TCP address for the websocket status stream, e.g. :8090")
	flag.StringVar(&metricsAddr, "metrics-addr", "", "optional TCP address to serve Prometheus metrics, e.g. :9090")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Resolve(dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("resolve config")
	}
	if socketPath != "" {
		cfg.SocketPath = socketPath
	}
	if listen != "" {
		cfg.Listen = listen
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	s, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open store")
	}
	defer func() { _ = s.Close() }()

	server := rpc.NewServer(s, log)

	ln, err := rpc.ListenSocket(cfg.SocketPath)
	if err != nil {
		log.Fatal().Err(err).Str("socket", cfg.SocketPath).Msg("listen")
	}
	log.Info().Str("socket", cfg.SocketPath).Msg("taskq-agentd listening")

	var httpSrv *http.Server
	if cfg.Listen != "" {
		mux := http.NewServeMux()
		stream := rpc.NewStatusStream(s, log, 2*time.Second)
		mux.Handle("/status", stream)
		if cfg.MetricsAddr == "" {
			mux.Handle("/metrics", metrics.Handler())
		}
		httpSrv = &http.Server{Addr: cfg.Listen, Handler: mux}
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("status listener")
			}
		}()
		log.Info().Str("addr", cfg.Listen).Msg("status stream listening")
	}

	if cfg.MetricsAddr != "" {
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, metrics.Handler()); err != nil {
				log.Error().Err(err).Msg("metrics listener")
			}
		}()
		log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics listening")
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve(ctx, ln) }()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-serveErr:
		if err != nil {
			log.Error().Err(err).Msg("serve")
		}
	}

	if httpSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}
	fmt.Fprintln(os.Stderr, "taskq-agentd stopped")
}
