package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spatialdb/spatialdb/pkg/api"
	"github.com/spatialdb/spatialdb/pkg/config"
	"github.com/spatialdb/spatialdb/pkg/docdb"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the spatial query HTTP API",
	Long: `Start the HTTP query layer: bbox queries against every declared
design document's spatial indices, fronted by a lazily-opened group
coordinator per design document.

Example:
  spatialdb serve --port 8080 --api-key mysecretkey`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		bind, _ := cmd.Flags().GetString("bind")
		apiKey, _ := cmd.Flags().GetString("api-key")

		cfg := config.DefaultConfig()
		cfg.DataDir = dataDir
		cfg.Port = port
		cfg.Bind = bind
		cfg.Security.AdminAPIKey = apiKey

		dbDir := filepath.Join(cfg.DataDir, "docs")
		openDB := func() (docdb.Database, error) { return docdb.OpenPebble(dbDir) }

		registry := api.NewRegistry(
			filepath.Join(cfg.DataDir, "indices"),
			cfg.Index.ToVTreeConfig(),
			openDB,
			demoDesignDocs(),
		)
		defer registry.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		serverCfg := api.ServerConfig{
			Port:        cfg.Port,
			Bind:        cfg.Bind,
			AdminAPIKey: cfg.Security.AdminAPIKey,
			RootDir:     cfg.DataDir,
		}
		if err := api.StartServer(ctx, registry, serverCfg); err != nil {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	serveCmd.Flags().String("bind", "127.0.0.1", "address to bind to")
	serveCmd.Flags().String("api-key", "", "API key required on /api/v1 routes; empty disables authentication")
}
