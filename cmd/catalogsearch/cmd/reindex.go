package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/shopfront/catalogsearch/internal/output"
)

func newReindexCmd() *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the index from the catalog",
		Long: `Replace the whole index with the current catalog contents in one commit.

Searches running during the rebuild see either the old index or the new one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg, nil, appOptions{catalog: true, seed: seed})
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			start := time.Now()
			n, err := a.reindex(cmd.Context())
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			out.Successf("Indexed %d items in %s", n, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().BoolVar(&seed, "seed", false, "Load the demo catalog first")

	return cmd
}
