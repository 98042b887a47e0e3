package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"deepsearch/internal/provider"
	"deepsearch/internal/search"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your DeepSearch installation",
		Long: `Verifies that DeepSearch's configuration, provider credentials, search
backend, database and listen address are usable. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("DeepSearch Doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file
			if _, err := os.Stat(cfgPath); err != nil {
				printWarn("Config file", fmt.Sprintf("not found at %s, using defaults", cfgPath))
				warned++
			} else {
				printPass("Config file", cfgPath)
				passed++
			}

			// 2. Config loads, env applies and validates
			cfg, err := loadConfig()
			if err != nil {
				printFail("Config validation", err.Error())
				failed++
				fmt.Printf("\n%d passed, %d failed\n", passed, failed)
				return fmt.Errorf("%d check(s) failed", failed)
			}
			printPass("Config validation", "valid")
			passed++

			// 3. Providers: a usable credential is what matters
			configured := 0
			for _, name := range cfg.General.ProviderOrder {
				pc := cfg.Providers[name]
				label := "Provider: " + name
				switch {
				case !pc.Enabled:
					printWarn(label, "disabled")
					warned++
				case provider.HasCredential(pc.APIKey):
					printPass(label, "credential configured")
					passed++
					configured++
				default:
					printWarn(label, "no usable API key, will be skipped")
					warned++
				}
			}
			if configured == 0 {
				printWarn("Providers", "none configured; answers will come from templates")
				warned++
			}

			// 4. Search backend
			backend := search.NewBackend(cfg.Search, nil)
			printPass("Search backend", backend.Name())
			passed++

			// 5. Database writable
			if cfg.Storage.Enabled {
				if err := checkDatabase(cfg.Storage.DBPath); err != nil {
					printFail("Database", err.Error())
					failed++
				} else {
					printPass("Database", cfg.Storage.DBPath)
					passed++
				}
			} else {
				printWarn("Database", "storage disabled; conversations are not kept")
				warned++
			}

			// 6. Listen address
			if err := checkPort(cfg.Server.Host, cfg.Server.Port); err != nil {
				printWarn("Listen address", fmt.Sprintf("%s:%d may be in use: %v", cfg.Server.Host, cfg.Server.Port, err))
				warned++
			} else {
				printPass("Listen address", fmt.Sprintf("%s:%d available", cfg.Server.Host, cfg.Server.Port))
				passed++
			}

			// Summary
			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running DeepSearch.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\nDeepSearch should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed! DeepSearch is ready to run.\n")
			}
			return nil
		},
	}
}

func checkDatabase(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("cannot create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot ping: %w", err)
	}

	// Try a write.
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS _doctor_test (id INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	db.ExecContext(ctx, "DROP TABLE IF EXISTS _doctor_test")

	return nil
}

func checkPort(host string, port int) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
