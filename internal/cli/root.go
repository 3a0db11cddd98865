// Package cli implements the keepsake CLI commands.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ovelia/keepsake/internal/assets"
	"github.com/ovelia/keepsake/internal/db"
	"github.com/ovelia/keepsake/internal/logging"
	"github.com/ovelia/keepsake/internal/metadata"
	"github.com/ovelia/keepsake/internal/retry"
	"github.com/ovelia/keepsake/internal/vault"
)

var (
	dataDir     string
	cacheBudget string
	verbose     bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "keepsake",
	Short: "Local store for trimmed memory clips",
	Long:  "Keepsake persists trimmed video clips and their metadata on a single device. SQLite-backed, no network.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := logrus.WarnLevel
		if verbose {
			level = logrus.DebugLevel
		}
		logging.Init(os.Stderr, level)
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "", "Data directory (default: $KEEPSAKE_DATA or ~/.keepsake)")
	RootCmd.PersistentFlags().StringVar(&cacheBudget, "cache-budget", "500MB", "Asset cache size budget, e.g. 500MB or 2GB")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func getDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if env := os.Getenv("KEEPSAKE_DATA"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".keepsake")
}

// stack is the composition root: one store per process, wired here and
// passed by handle to the commands.
type stack struct {
	vault *vault.Vault
	repo  *db.Repository
	close func()
}

func openStack() (*stack, error) {
	dir := getDataDir()

	budget, err := humanize.ParseBytes(cacheBudget)
	if err != nil {
		return nil, fmt.Errorf("invalid cache budget %q: %w", cacheBudget, err)
	}

	database, err := db.Open(dir)
	if err != nil {
		return nil, err
	}

	schema := db.NewSchemaManager(database.DB)
	repo := db.NewRepository(database.DB, schema, retry.Default)

	store, err := assets.NewStore(filepath.Join(dir, "assets"))
	if err != nil {
		database.Close()
		return nil, err
	}

	kv, err := metadata.NewFileKV(filepath.Join(dir, "metadata"))
	if err != nil {
		database.Close()
		return nil, err
	}
	meta := metadata.NewSyncer(kv, retry.Default)

	return &stack{
		vault: vault.New(repo, schema, store, meta, int64(budget)),
		repo:  repo,
		close: func() {
			repo.Close()
			database.Close()
		},
	}, nil
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
