package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"deepsearch/internal/config"
	"deepsearch/internal/memory"
)

func backupCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export conversations and live cached answers to a JSON snapshot",
		Long: `Reads every conversation with its messages, plus the cached answers that
have not expired yet, and writes them as one JSON document. The database is
read through the store, so a running server does not need to be stopped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			snap, err := store.Export(cmd.Context(), time.Now())
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}

			if outputPath == "" {
				dir := filepath.Join(config.DefaultConfigDir(), "backups")
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("cannot create backup directory: %w", err)
				}
				outputPath = filepath.Join(dir, "deepsearch-"+snap.ExportedAt.Format("20060102-150405")+".json")
			}
			if err := writeSnapshot(outputPath, snap); err != nil {
				return err
			}

			messages := 0
			for _, c := range snap.Conversations {
				messages += len(c.Messages)
			}
			fmt.Printf("Snapshot written: %s\n", outputPath)
			fmt.Printf("  conversations: %d (%d messages)\n", len(snap.Conversations), messages)
			fmt.Printf("  cached answers: %d\n", len(snap.Cache))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "snapshot path (default: ~/.deepsearch/backups/deepsearch-<timestamp>.json)")
	return cmd
}

func restoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <snapshot.json>",
		Short: "Merge a snapshot written by 'deepsearch backup' into the database",
		Long: `Conversations that already exist are left as they are. Cached answers
are only replaced by snapshot entries created later than the stored ones.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := readSnapshot(args[0])
			if err != nil {
				return err
			}

			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Import(cmd.Context(), snap)
			if err != nil {
				return fmt.Errorf("restore: %w", err)
			}
			fmt.Printf("Restored from %s\n", args[0])
			fmt.Printf("  conversations: %d new, %d already present\n", stats.Conversations, stats.Skipped)
			fmt.Printf("  messages: %d\n", stats.Messages)
			fmt.Printf("  cached answers: %d\n", stats.CacheEntries)
			return nil
		},
	}
	return cmd
}

// openStore opens the configured database; backup and restore make no
// sense with storage turned off.
func openStore() (*memory.SQLiteStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.Storage.Enabled {
		return nil, fmt.Errorf("storage is disabled (storage.enabled=false)")
	}
	return memory.NewSQLiteStore(cfg.Storage.DBPath, logger)
}

func writeSnapshot(path string, snap *memory.Snapshot) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		f.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	return f.Close()
}

func readSnapshot(path string) (*memory.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	return decodeSnapshot(f)
}

func decodeSnapshot(r io.Reader) (*memory.Snapshot, error) {
	var snap memory.Snapshot
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&snap); err != nil {
		return nil, fmt.Errorf("not a deepsearch snapshot: %w", err)
	}
	if snap.SchemaVersion == 0 {
		return nil, fmt.Errorf("not a deepsearch snapshot: missing schema_version")
	}
	return &snap, nil
}
