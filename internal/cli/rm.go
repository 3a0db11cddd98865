package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ovelia/keepsake/internal/models"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a memory and its assets",
		Args:  cobra.ExactArgs(1),
		Run:   runRm,
	}

	RootCmd.AddCommand(cmd)
}

func runRm(cmd *cobra.Command, args []string) {
	s, err := openStack()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.close()

	if err := s.vault.DeleteMemory(cmd.Context(), models.ID(args[0])); err != nil {
		exitErr("rm", err)
	}

	fmt.Printf("deleted %s\n", args[0])
}
