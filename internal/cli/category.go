package cli

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ovelia/keepsake/internal/models"
)

var (
	catIcon  string
	catColor string
)

func init() {
	cmd := &cobra.Command{
		Use:   "category",
		Short: "Manage categories",
	}

	lsCmd := &cobra.Command{
		Use:   "ls",
		Short: "List categories",
		Run:   runCategoryLs,
	}

	addCmd := &cobra.Command{
		Use:   "add <key> <name>",
		Short: "Create a category",
		Args:  cobra.ExactArgs(2),
		Run:   runCategoryAdd,
	}
	addCmd.Flags().StringVar(&catIcon, "icon", "", "Icon name")
	addCmd.Flags().StringVar(&catColor, "color", "", "Accent color")

	rmCmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a category, moving its memories to the default",
		Args:  cobra.ExactArgs(1),
		Run:   runCategoryRm,
	}

	cmd.AddCommand(lsCmd, addCmd, rmCmd)
	RootCmd.AddCommand(cmd)
}

func runCategoryLs(cmd *cobra.Command, args []string) {
	s, err := openStack()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.close()

	categories, err := s.repo.GetCategories(cmd.Context())
	if err != nil {
		exitErr("category ls", err)
	}

	b, _ := json.MarshalIndent(categories, "", "  ")
	fmt.Println(string(b))
}

func runCategoryAdd(cmd *cobra.Command, args []string) {
	s, err := openStack()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.close()

	c := &models.Category{
		ID:    models.ID(uuid.NewString()),
		Key:   args[0],
		Name:  args[1],
		Icon:  catIcon,
		Color: catColor,
	}
	if err := s.repo.AddCategory(cmd.Context(), c); err != nil {
		exitErr("category add", err)
	}

	b, _ := json.MarshalIndent(c, "", "  ")
	fmt.Println(string(b))
}

func runCategoryRm(cmd *cobra.Command, args []string) {
	s, err := openStack()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.close()

	if err := s.repo.DeleteCategory(cmd.Context(), models.ID(args[0])); err != nil {
		exitErr("category rm", err)
	}

	fmt.Printf("deleted category %s\n", args[0])
}
