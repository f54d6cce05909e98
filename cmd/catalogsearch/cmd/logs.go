package cmd

import (
	"context"
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/shopfront/catalogsearch/internal/logging"
	"github.com/shopfront/catalogsearch/internal/output"
)

type logsOptions struct {
	follow  bool
	lines   int
	level   string
	pattern string
	noColor bool
	file    string
}

func newLogsCmd() *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View the debug log",
		Long: `View the log written by 'catalogsearch --debug'.

Examples:
  catalogsearch logs               # last 50 lines
  catalogsearch logs -f            # follow new entries
  catalogsearch logs --level warn  # warnings and errors only
  catalogsearch logs --pattern index_commit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&opts.level, "level", "", "Minimum level: debug, info, warn, error")
	cmd.Flags().StringVar(&opts.pattern, "pattern", "", "Only lines matching this regular expression")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().StringVar(&opts.file, "file", "", "Log file (default ~/.catalogsearch/logs/server.log)")

	return cmd
}

func runLogs(ctx context.Context, cmd *cobra.Command, opts logsOptions) error {
	path, err := logging.FindLogFile(opts.file)
	if err != nil {
		return err
	}

	cfg := logging.ViewerConfig{
		Level:   opts.level,
		NoColor: opts.noColor || !output.IsTerminal(cmd.OutOrStdout()),
	}
	if opts.pattern != "" {
		re, err := regexp.Compile(opts.pattern)
		if err != nil {
			return fmt.Errorf("invalid pattern: %w", err)
		}
		cfg.Pattern = re
	}

	v := logging.NewViewer(cfg, cmd.OutOrStdout())
	entries, err := v.Tail(path, opts.lines)
	if err != nil {
		return err
	}
	v.Print(entries)

	if !opts.follow {
		return nil
	}

	ch := make(chan logging.Entry)
	errc := make(chan error, 1)
	go func() {
		errc <- v.Follow(ctx, path, ch)
		close(ch)
	}()
	for e := range ch {
		v.Print([]logging.Entry{e})
	}
	return <-errc
}
