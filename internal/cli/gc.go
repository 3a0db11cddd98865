package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Evict oldest cached assets until the cache fits the budget",
		Run:   runGc,
	}

	RootCmd.AddCommand(cmd)
}

func runGc(cmd *cobra.Command, args []string) {
	s, err := openStack()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.close()

	if err := s.vault.EnforceCacheBudget(); err != nil {
		exitErr("gc", err)
	}

	st, err := s.vault.Stats(cmd.Context())
	if err != nil {
		exitErr("gc", err)
	}

	fmt.Printf("cache now %s (budget %s)\n", humanize.Bytes(uint64(st.Cache.TotalBytes)), cacheBudget)
}
