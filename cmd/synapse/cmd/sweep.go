package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/synapse-rag/synapse/internal/session"
	"github.com/synapse-rag/synapse/internal/store"
)

// newSweepCmd creates the sweep command: a one-shot expired-session
// cleanup for deployments that prefer cron over the built-in sweeper.
func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove expired sessions and their data",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			lock := store.NewDirLock(cfg.Storage.DataDir)
			if err := lock.TryLock(); err != nil {
				return err
			}
			defer func() { _ = lock.Unlock() }()

			meta, err := store.NewSQLiteStore(filepath.Join(cfg.Storage.DataDir, "synapse.db"))
			if err != nil {
				return fmt.Errorf("failed to open metadata store: %w", err)
			}
			defer meta.Close()

			keyword, err := store.NewKeywordIndex(cfg.Storage.KeywordBackend, cfg.Storage.DataDir)
			if err != nil {
				return fmt.Errorf("failed to open keyword index: %w", err)
			}
			defer keyword.Close()

			vectors, err := store.NewHNSWIndex(cfg.Storage.DataDir)
			if err != nil {
				return fmt.Errorf("failed to open vector index: %w", err)
			}
			defer vectors.Close()

			registry := session.NewRegistry(meta, keyword, vectors, cfg.Sessions.TTL)
			removed, err := registry.SweepExpired(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired session(s)\n", removed)
			return nil
		},
	}
}
