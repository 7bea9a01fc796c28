package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ps-vitor/offplan-sys/backend/internal/app"
	"github.com/ps-vitor/offplan-sys/backend/internal/config"
	"github.com/ps-vitor/offplan-sys/backend/internal/domain"
	"github.com/ps-vitor/offplan-sys/backend/pkg/logger"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.New(color.FgRed).Sprint("Error: ")+fatalMessage(err))
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		incremental  bool
		useLocalList bool
		rehydrate    bool
		outputDir    string
	)

	cmd := &cobra.Command{
		Use:           "scraping",
		Short:         "Fetch REMApp projects and their details into the output directory",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}

			rc := &cfg.Scraping.Remapp
			flags := cmd.Flags()
			if flags.Changed("incremental") {
				rc.IncrementalMode = incremental
			}
			if flags.Changed("use-local-list") {
				rc.UseLocalList = useLocalList
			}
			if flags.Changed("rehydrate") {
				rc.RehydrateOnly = rehydrate
			}
			if flags.Changed("output-dir") {
				rc.OutputDir = outputDir
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, cmd)
		},
	}

	cmd.Flags().BoolVar(&incremental, "incremental", true, "only fetch projects newer than the cached list")
	cmd.Flags().BoolVar(&useLocalList, "use-local-list", true, "reuse the cached project list when present")
	cmd.Flags().BoolVar(&rehydrate, "rehydrate", false, "rebuild outputs from cached details without API calls")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "directory for cached and merged artifacts")
	return cmd
}

func run(ctx context.Context, cfg *config.Config, cmd *cobra.Command) error {
	log := logger.New("scraping", cfg.App.LogLevel)

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.Scraper.ScrapeAndStore(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s run %s\n", color.New(color.FgGreen).Sprint("Done:"), report.RunID)
	fmt.Fprintf(out, "  list:     %d projects (%s, %d new)\n", report.Projects, report.ListSource, report.NewProjects)
	fmt.Fprintf(out, "  details:  %d total, %d fetched, %d cached, %d skipped, %d missing\n",
		report.Details, report.Fetched, report.Cached, report.Skipped, report.Missing)
	fmt.Fprintf(out, "  merged:   %d projects, %d indexed by fk\n", report.Merged, report.Indexed)
	fmt.Fprintf(out, "  output:   %s\n", cfg.Scraping.Remapp.OutputDir)
	return nil
}

// fatalMessage turns a run error into a short hint for the operator.
func fatalMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrAuthConfiguration):
		return "authentication required: set REMAPP_BEARER_TOKEN or REMAPP_USERNAME and REMAPP_PASSWORD"
	case domain.IsAuthFailure(err):
		return fmt.Sprintf("the API rejected our credentials (%v); refresh REMAPP_BEARER_TOKEN or the login", err)
	case errors.Is(err, domain.ErrRateLimitExceeded):
		return fmt.Sprintf("rate limit not lifted after retries (%v); rerun later to resume", err)
	case errors.Is(err, context.Canceled):
		return "interrupted; rerun to resume from the details log"
	default:
		return err.Error()
	}
}
