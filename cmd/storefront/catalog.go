package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"storefront/internal/catalog"
	"storefront/internal/config"
	"storefront/internal/storefront"
)

var (
	listQuery     string
	listCategory  string
	featuredLimit int
	asJSON        bool
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Query the configured product catalog",
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List products matching a search text and category",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, products, err := loadCatalog(cmd)
		if err != nil {
			return err
		}
		return printProducts(cmd.OutOrStdout(), catalog.Filter(products, listQuery, listCategory))
	},
}

var catalogCategoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List distinct categories, sorted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, products, err := loadCatalog(cmd)
		if err != nil {
			return err
		}
		categories := catalog.DistinctCategories(products)
		if asJSON {
			return writeJSON(cmd.OutOrStdout(), categories)
		}
		for _, c := range categories {
			fmt.Fprintln(cmd.OutOrStdout(), c)
		}
		return nil
	},
}

var catalogFeaturedCmd = &cobra.Command{
	Use:   "featured",
	Short: "Show the featured selection",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, products, err := loadCatalog(cmd)
		if err != nil {
			return err
		}
		limit := featuredLimit
		if !cmd.Flags().Changed("limit") {
			limit = cfg.Catalog.FeaturedLimit
		}
		return printProducts(cmd.OutOrStdout(), catalog.SelectFeatured(products, limit))
	},
}

func init() {
	catalogListCmd.Flags().StringVar(&listQuery, "q", "", "free-text search over name and category")
	catalogListCmd.Flags().StringVar(&listCategory, "category", "", "exact category (case-sensitive)")
	catalogFeaturedCmd.Flags().IntVar(&featuredLimit, "limit", 0, "maximum number of products (catalog.featured_limit when unset)")
	catalogCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")

	catalogCmd.AddCommand(catalogListCmd, catalogCategoriesCmd, catalogFeaturedCmd)
}

func loadCatalog(cmd *cobra.Command) (*config.Config, []catalog.Product, error) {
	cfg, log, err := setup()
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = log.Sync() }()

	backends := storefront.NewBackends(cfg, log)
	defer backends.Close()

	store, err := backends.CatalogStore(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	products, err := store.List(cmd.Context())
	return cfg, products, err
}

func printProducts(w io.Writer, products []catalog.Product) error {
	if asJSON {
		return writeJSON(w, products)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE\tFEATURED")
	for _, p := range products {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%t\n", p.ID, p.Name, p.Category, p.Price, p.Featured)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
