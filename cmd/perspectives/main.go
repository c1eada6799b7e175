package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"PerspectiveEngine/internal/app"
	"PerspectiveEngine/internal/config"
	"PerspectiveEngine/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "perspectives",
		Short:         "Perspective matching and balanced feeds for news articles",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file path (YAML); defaults to $PERSPECTIVES_CONFIG")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override the configured log level")

	cmd.AddCommand(migrateCmd(opts), findCmd(opts), feedCmd(opts))
	return cmd
}

func migrateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), root, func(a *app.Application) error {
				if err := a.Migrate(cmd.Context()); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
				return err
			})
		},
	}
}

func findCmd(root *rootOptions) *cobra.Command {
	var (
		country    string
		maxResults int
		window     time.Duration
		tieBand    float64
	)

	cmd := &cobra.Command{
		Use:   "find <article-id>",
		Short: "Find the same story told by other outlets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), root, func(a *app.Application) error {
				opts := a.MatchOptions()
				if cmd.Flags().Changed("max-results") {
					opts.MaxResults = maxResults
				}
				if cmd.Flags().Changed("window") {
					opts.TimeWindow = window
				}
				if cmd.Flags().Changed("tie-band") {
					opts.TieBand = tieBand
				}

				res, err := a.FindPerspectives(cmd.Context(), args[0], country, opts)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), res)
			})
		},
	}

	cmd.Flags().StringVar(&country, "country", "tr", "Edition country code")
	cmd.Flags().IntVar(&maxResults, "max-results", 5, "Maximum perspectives to return")
	cmd.Flags().DurationVar(&window, "window", 24*time.Hour, "Half-width of the candidate time window")
	cmd.Flags().Float64Var(&tieBand, "tie-band", 0.1, "Score distance treated as a tie")
	return cmd
}

func feedCmd(root *rootOptions) *cobra.Command {
	var (
		country string
		limit   int
		page    int
	)

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Print a balanced feed of recent articles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), root, func(a *app.Application) error {
				feed, err := a.BalancedFeed(cmd.Context(), country, limit, page)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), feed)
			})
		},
	}

	cmd.Flags().StringVar(&country, "country", "tr", "Edition country code")
	cmd.Flags().IntVar(&limit, "limit", 0, "Articles across all buckets (0 uses the configured default)")
	cmd.Flags().IntVar(&page, "page", 1, "Page number, starting at 1")
	return cmd
}

func withApp(ctx context.Context, root *rootOptions, fn func(*app.Application) error) error {
	cfg := config.Load()
	if root.configPath != "" {
		cfg = config.LoadFrom(root.configPath)
	}
	if root.logLevel != "" {
		cfg.Logging.Level = root.logLevel
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := application.Close(); cerr != nil {
			logger.Warn("close application", "error", cerr)
		}
	}()

	return fn(application)
}

func writeJSON(w io.Writer, v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(payload))
	return err
}
