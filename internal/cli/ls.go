package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ovelia/keepsake/internal/models"
)

var lsCategory string

func init() {
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List memories",
		Run:   runLs,
	}

	cmd.Flags().StringVarP(&lsCategory, "category", "c", models.SentinelCategoryID, "Category id to filter by")

	RootCmd.AddCommand(cmd)
}

func runLs(cmd *cobra.Command, args []string) {
	s, err := openStack()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.close()

	memories, err := s.vault.Memories(cmd.Context(), models.ID(lsCategory))
	if err != nil {
		exitErr("ls", err)
	}

	b, _ := json.MarshalIndent(memories, "", "  ")
	fmt.Println(string(b))
}
