package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/spatialdb/spatialdb/pkg/docdb"
)

var loadCmd = &cobra.Command{
	Use:   "load <ndjson-file>",
	Short: "Load newline-delimited JSON documents into the document database",
	Long: `Reads one JSON document per line from the given file and Puts
each into the document database under a sequential doc_id, so the
updater has something to index without a real document-database
deployment.

Example:
  spatialdb load places.ndjson`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening %s: %w", args[0], err)
		}
		defer f.Close()

		db, err := docdb.OpenPebble(filepath.Join(dataDir, "docs"))
		if err != nil {
			return fmt.Errorf("opening document database: %w", err)
		}
		defer db.Close()

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		n := 0
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			docID := []byte(fmt.Sprintf("doc-%06d", n))
			if _, err := db.Put(docID, append([]byte(nil), line...)); err != nil {
				return fmt.Errorf("storing document %d: %w", n, err)
			}
			n++
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		if err := db.Commit(); err != nil {
			return fmt.Errorf("committing: %w", err)
		}

		fmt.Printf("loaded %d documents\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loadCmd)
}
