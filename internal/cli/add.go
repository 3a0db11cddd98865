package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ovelia/keepsake/internal/models"
	"github.com/ovelia/keepsake/internal/vault"
)

var (
	addTitle       string
	addDescription string
	addCategory    string
	addStart       float64
	addEnd         float64
)

func init() {
	cmd := &cobra.Command{
		Use:   "add <clip> <thumbnail>",
		Short: "Store a trimmed clip as a new memory",
		Args:  cobra.ExactArgs(2),
		Run:   runAdd,
	}

	cmd.Flags().StringVarP(&addTitle, "title", "t", "", "Memory title (required)")
	cmd.Flags().StringVar(&addDescription, "description", "", "Optional description")
	cmd.Flags().StringVarP(&addCategory, "category", "c", models.SentinelCategoryID, "Category id")
	cmd.Flags().Float64Var(&addStart, "start", 0, "Trim start, seconds into the source clip")
	cmd.Flags().Float64Var(&addEnd, "end", 0, "Trim end, seconds into the source clip (required)")
	cmd.MarkFlagRequired("title")
	cmd.MarkFlagRequired("end")

	RootCmd.AddCommand(cmd)
}

func runAdd(cmd *cobra.Command, args []string) {
	s, err := openStack()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.close()

	video, err := s.vault.CreateMemory(cmd.Context(), vault.CreateMemoryInput{
		SourcePath:    args[0],
		ThumbnailPath: args[1],
		StartTime:     addStart,
		EndTime:       addEnd,
		Title:         addTitle,
		Description:   addDescription,
		CategoryID:    models.ID(addCategory),
	})
	if err != nil {
		exitErr("add", err)
	}

	b, _ := json.MarshalIndent(video, "", "  ")
	fmt.Println(string(b))
}
