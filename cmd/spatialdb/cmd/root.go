package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var dataDir string

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "spatialdb",
	Short: "spatialdb - a persistent 2-D spatial index and its group coordinator",
	Long: `spatialdb maintains a disk-resident R-tree index over
(bounding-box, value) pairs a spatial function emits from documents in
an append-only document database, and serves bbox queries against it
through a background-updated group coordinator.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := os.MkdirAll(dataDir, 0750); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
		return nil
	},
}

// Execute adds all child commands to rootCmd and runs it. Called once
// by main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "./data", "data directory for documents and index files")
}
