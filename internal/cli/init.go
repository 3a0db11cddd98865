package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ovelia/keepsake/internal/db"
)

func init() {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create or migrate the store",
		Run:   runInit,
	}

	RootCmd.AddCommand(cmd)
}

func runInit(cmd *cobra.Command, args []string) {
	s, err := openStack()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.close()

	stats, err := s.vault.Stats(cmd.Context())
	if err != nil {
		exitErr("init", err)
	}

	fmt.Printf("store ready at %s (schema v%d of v%d)\n", getDataDir(), stats.SchemaVersion, db.CurrentSchemaVersion)
}
