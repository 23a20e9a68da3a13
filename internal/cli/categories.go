package cli

import (
	"fmt"

	"github.com/ogulcanaydogan/stocksync/pkg/catalog"
	"github.com/ogulcanaydogan/stocksync/pkg/model"
	"github.com/spf13/cobra"
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "Manage default product categories",
}

var categoriesSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the default categories that are missing",
	RunE:  runCategoriesSeed,
}

func init() {
	rootCmd.AddCommand(categoriesCmd)
	categoriesCmd.AddCommand(categoriesSeedCmd)

	categoriesSeedCmd.Flags().StringP("file", "f", "", "YAML file with categories (default: built-in list)")
}

func runCategoriesSeed(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	file, _ := cmd.Flags().GetString("file")
	if file == "" {
		file = cfg.Storage.CategoriesFile
	}

	var defaults []model.Category
	if file != "" {
		defaults, err = catalog.LoadFile(file)
	} else {
		defaults, err = catalog.Defaults()
	}
	if err != nil {
		return err
	}

	store, err := initStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	added, err := store.SeedDefaultCategories(cmd.Context(), defaults)
	if err != nil {
		return fmt.Errorf("seed categories: %w", err)
	}

	fmt.Printf("Seeded %d of %d default categories (%d already present)\n", added, len(defaults), len(defaults)-added)
	return nil
}
