package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/civicwatch/watchboard/internal/config"
	"github.com/civicwatch/watchboard/internal/g2b"
	"github.com/civicwatch/watchboard/internal/ingest"
	"github.com/civicwatch/watchboard/internal/store"
	"github.com/civicwatch/watchboard/internal/tender"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "watchboard",
	Short: "Municipal tender and pledge watchboard",
	Long:  "Ingests bid notices from the public procurement open API, tracks municipal pledges, and serves the watchboard read API.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// openStore picks the backend from config. The sqlite driver takes the
// database_url value as a plain file path.
func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.DatabaseURL
		if path == "" {
			path = "watchboard.db"
		}
		return store.NewSQLite(path)
	default:
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.MaxConns, cfg.Store.MinConns)
	}
}

func newRunner(st store.Store) (*ingest.Runner, error) {
	rules, err := tender.LoadScopeRules(cfg.G2B.ScopeRulesPath)
	if err != nil {
		return nil, err
	}
	client := g2b.NewClient(g2b.Options{
		BaseURL:    cfg.G2B.BaseURL,
		ServiceKey: cfg.G2B.ServiceKey,
		RatePerSec: cfg.G2B.RatePerSec,
	})
	delay := time.Duration(cfg.G2B.RequestDelayMs) * time.Millisecond
	return ingest.NewRunner(client, st, rules, delay), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
