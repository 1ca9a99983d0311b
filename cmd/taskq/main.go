// Command taskq is the direct-mode CLI over the embedded Task Store. It
// opens the database itself and translates one subcommand into one core
// call; it holds no business logic of its own.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jwhiting/taskq/internal/config"
	"github.com/jwhiting/taskq/internal/store"
)

var (
	dbPath     string
	jsonOutput bool
	log        zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "taskq",
	Short: "taskq - a durable, concurrency-safe task queue",
	Long:  "A CLI over the embedded taskq Task Store: named queues of prioritized, parameterized tasks.",
}

func main() {
	log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to the taskq database (overrides TASKQ_DB and config file)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit machine-readable JSON output")

	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(journalCmd)
	rootCmd.AddCommand(configCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openStore resolves the database path and opens the store, exiting
// the process with a database-kind exit code on failure.
func openStore(ctx context.Context) *store.Store {
	cfg, err := config.Resolve(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "taskq: resolve config: %v\n", err)
		os.Exit(exitForKind(store.KindDatabase))
	}
	s, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "taskq: open store: %v\n", err)
		os.Exit(exitForKind(store.KindDatabase))
	}
	return s
}

// exitForKind maps a store.Kind to the process exit code documented for
// façades: Validation->2, NotFound->3, Conflict->4, Checkout->5, Database->6.
func exitForKind(kind store.Kind) int {
	switch kind {
	case store.KindValidation:
		return 2
	case store.KindNotFound:
		return 3
	case store.KindConflict:
		return 4
	case store.KindCheckout:
		return 5
	case store.KindDatabase:
		return 6
	default:
		return 1
	}
}

// failWith reports err to stderr (or as JSON if --json) and exits with
// the code matching its store.Kind, or 1 if err is not a *store.Error.
func failWith(err error) {
	var se *store.Error
	kind := store.Kind("")
	if storeErrAs(err, &se) {
		kind = se.Kind
	}
	if jsonOutput {
		printJSON(map[string]interface{}{
			"success": false,
			"error":   map[string]string{"kind": string(kind), "message": err.Error()},
		})
	} else {
		fmt.Fprintf(os.Stderr, "taskq: %v\n", err)
	}
	if kind == "" {
		os.Exit(1)
	}
	os.Exit(exitForKind(kind))
}

func storeErrAs(err error, target **store.Error) bool {
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

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
