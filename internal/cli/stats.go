package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show row counts and cache usage",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	s, err := openStack()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.close()

	st, err := s.vault.Stats(cmd.Context())
	if err != nil {
		exitErr("stats", err)
	}

	fmt.Printf("memories:   %d\n", st.Videos)
	fmt.Printf("schema:     v%d\n", st.SchemaVersion)
	fmt.Printf("videos:     %d files, %s\n", st.Cache.VideoFiles, humanize.Bytes(uint64(st.Cache.VideoBytes)))
	fmt.Printf("thumbnails: %d files, %s\n", st.Cache.ThumbnailFiles, humanize.Bytes(uint64(st.Cache.ThumbnailBytes)))
	fmt.Printf("cache:      %s total\n", humanize.Bytes(uint64(st.Cache.TotalBytes)))
}
