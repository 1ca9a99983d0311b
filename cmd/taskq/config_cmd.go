package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jwhiting/taskq/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the resolved configuration",
}

func init() {
	dump := &cobra.Command{
		Use:   "dump",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Resolve(dbPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "taskq: resolve config: %v\n", err)
				os.Exit(1)
			}
			out, err := config.DumpYAML(cfg)
			if err != nil {
				fmt.Fprintf(os.Stderr, "taskq: %v\n", err)
				os.Exit(1)
			}
			fmt.Print(out)
		},
	}
	configCmd.AddCommand(dump)
}
