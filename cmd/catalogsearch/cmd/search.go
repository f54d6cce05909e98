package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shopfront/catalogsearch/internal/output"
	"github.com/shopfront/catalogsearch/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	skip     int
	limit    int
	category string
	country  string
	format   string // "text", "json"
	seed     bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the catalog index",
		Long: `Search the catalog index with the storefront query syntax.

Unfielded terms match name, description, category and country.
Operators: AND, OR, NOT, +term, -term, "phrases", field:value, prefix*, fuzzy~.

Examples:
  catalogsearch search laptop
  catalogsearch search "name:lamp OR towel" --country italy
  catalogsearch search tea --category tea --limit 5 --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVar(&opts.skip, "skip", 0, "Number of results to skip")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", search.DefaultLimit, "Page size (1-50)")
	cmd.Flags().StringVar(&opts.category, "category", "", "Keep results whose category contains this text")
	cmd.Flags().StringVar(&opts.country, "country", "", "Keep results whose country contains this text")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.seed, "seed", false, "Load the demo catalog and reindex before searching")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("invalid format %q: use text or json", opts.format)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(ctx, cfg, nil, appOptions{seed: opts.seed})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if opts.seed {
		if _, err := a.reindex(ctx); err != nil {
			return err
		}
	}

	resp, err := a.service.Search(ctx, search.Request{
		Query:    query,
		Skip:     opts.skip,
		Limit:    opts.limit,
		Category: opts.category,
		Country:  opts.country,
	})
	if err != nil {
		return err
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	printResults(output.New(cmd.OutOrStdout()), query, resp)
	return nil
}

func printResults(out *output.Writer, query string, resp *search.Response) {
	if resp.StoreError != "" {
		out.Errorf("Index unavailable: %s", resp.StoreError)
		return
	}
	if resp.Degraded {
		out.Warningf("Could not parse %q, showing all items", query)
	}
	if len(resp.Items) == 0 {
		out.Warning("No results")
		return
	}

	total := fmt.Sprintf("%d", resp.Total)
	if resp.Truncated {
		total = "at least " + total
	}
	out.Header(fmt.Sprintf("Results %d-%d of %s", resp.Skip+1, resp.Skip+len(resp.Items), total))
	for i, d := range resp.Items {
		out.Item(resp.Skip+i+1,
			fmt.Sprintf("%s  %s", d.Name, d.Price),
			fmt.Sprintf("#%d · %s · %s", d.ID, d.CategoryName, d.CountryName))
	}
	if resp.HasNext() {
		out.Newline()
		out.Statusf("", "next page: --skip %d --limit %d", resp.Skip+resp.Limit, resp.Limit)
	}
}
