package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var clearYes bool

func init() {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every memory, asset and metadata record",
		Run:   runClear,
	}

	cmd.Flags().BoolVar(&clearYes, "yes", false, "Confirm the wipe")

	RootCmd.AddCommand(cmd)
}

func runClear(cmd *cobra.Command, args []string) {
	if !clearYes {
		exitErr("clear", fmt.Errorf("refusing to wipe the store without --yes"))
	}

	s, err := openStack()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.close()

	if err := s.vault.ClearAll(cmd.Context()); err != nil {
		exitErr("clear", err)
	}

	fmt.Println("store cleared")
}
