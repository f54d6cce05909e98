package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shopfront/catalogsearch/internal/output"
	"github.com/shopfront/catalogsearch/internal/profiling"
	"github.com/shopfront/catalogsearch/internal/search"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Inspect the search index",
	}
	cmd.AddCommand(newIndexInfoCmd())
	return cmd
}

// indexInfo is the JSON form of 'index info'.
type indexInfo struct {
	search.Stats
	HeapInUse uint64 `json:"heap_in_use_bytes"`
}

func newIndexInfoCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show index location and statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg, nil, appOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			stats, err := a.service.Stats()
			if err != nil {
				return err
			}
			info := indexInfo{Stats: stats, HeapInUse: profiling.HeapInUse()}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}

			cache := "disabled"
			if stats.CacheEnabled {
				cache = fmt.Sprintf("enabled (%d entries)", stats.CacheEntries)
			}
			out := output.New(cmd.OutOrStdout())
			out.Header("Index")
			out.KeyValue(
				[2]string{"Location", stats.Location},
				[2]string{"Documents", strconv.FormatUint(stats.DocumentCount, 10)},
				[2]string{"Version", stats.Version},
				[2]string{"Cache", cache},
				[2]string{"Heap in use", profiling.FormatBytes(info.HeapInUse)},
			)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}
