package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ovelia/keepsake/internal/models"
)

var (
	annotateColor string
	annotateType  string
)

func init() {
	cmd := &cobra.Command{
		Use:   "annotate <id> <note>",
		Short: "Attach or replace the core memory annotation on a clip",
		Args:  cobra.ExactArgs(2),
		Run:   runAnnotate,
	}

	cmd.Flags().StringVar(&annotateColor, "color", "", "Accent color, e.g. #FFB800")
	cmd.Flags().StringVar(&annotateType, "type", "joy", "Memory type: a builtin name or a custom type id")

	RootCmd.AddCommand(cmd)
}

func runAnnotate(cmd *cobra.Command, args []string) {
	s, err := openStack()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.close()

	ref := models.ParseTypeRef(annotateType)
	cm, err := s.vault.AnnotateMemory(cmd.Context(), models.ID(args[0]), args[1], annotateColor, ref)
	if err != nil {
		exitErr("annotate", err)
	}

	b, _ := json.MarshalIndent(cm, "", "  ")
	fmt.Println(string(b))
}
