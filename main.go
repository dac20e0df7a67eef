package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/motillonc/leetify-tools/config"
	"github.com/motillonc/leetify-tools/fetch"
	"github.com/motillonc/leetify-tools/llm"
	"github.com/motillonc/leetify-tools/model"
	"github.com/motillonc/leetify-tools/report"
	"github.com/motillonc/leetify-tools/run"
	"github.com/motillonc/leetify-tools/runstore"
	"github.com/motillonc/leetify-tools/server"
	"github.com/motillonc/leetify-tools/sink"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "leetify-tools",
		Short: "Report on the recent CS2 matches of a Leetify player",
		Long: `Reads the match history of the player owning LEETIFY_TOKEN, writes a text report and a
language model analysis per match and finally a summary across all matches.

Configuration is read from LEETIFY_* environment variables, an optional .env file and the
YAML file named by LEETIFY_CONFIG_FILE.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, nil)
		},
	}

	matchCmd := &cobra.Command{
		Use:   "match <match-id>...",
		Short: "Report on the given matches instead of the match history",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			matchIDs := make([]model.MatchID, 0, len(args))
			for _, arg := range args {
				matchIDs = append(matchIDs, model.MatchID(arg))
			}
			return execute(cmd, matchIDs)
		},
	}

	endpointsCmd := &cobra.Command{
		Use:   "endpoints",
		Short: "List the match endpoints that make up a report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printEndpoints(cmd.OutOrStdout())
		},
	}

	root.AddCommand(matchCmd, endpointsCmd)
	return root
}

func printEndpoints(out io.Writer) error {
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "TITLE\tSHAPE\tPATH")
	for _, endpoint := range report.Registry() {
		fmt.Fprintf(writer, "%s\t%s\t%s\n", endpoint.Title, endpoint.Shape, endpoint.PathSuffix)
	}
	return writer.Flush()
}

func newLogger(verbose bool) (*zap.Logger, error) {
	loggerConfig := zap.NewProductionConfig()
	if verbose {
		loggerConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return loggerConfig.Build()
}

// Runs a complete invocation. Without match ids the ids are taken from the match history.
func execute(cmd *cobra.Command, matchIDs []model.MatchID) error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()

	fetcher := fetch.New(fetch.Options{
		Token:          cfg.Token,
		ConnectTimeout: cfg.ConnectTimeout,
		ReadTimeout:    cfg.ReadTimeout,
		RetryMax:       cfg.RetryMax,
		RetryWaitMin:   cfg.RetryWaitMin,
		RetryWaitMax:   cfg.RetryWaitMax,
	}, logger)
	analyzer := llm.NewOllamaClient(cfg.OllamaURL, cfg.Model, cfg.LLMTimeout, logger)

	targets := sink.Multi{sink.NewDirSink(cfg.OutputDir)}

	if cfg.ArchivePath != "" {
		archive, err := sink.OpenArchive(cfg.ArchivePath, runID)
		if err != nil {
			return err
		}
		defer archive.Close()
		targets = append(targets, archive)
	}

	if cfg.MonitorPort > 0 {
		store := runstore.New(cfg.StoreTTL)
		targets = append(targets, store)

		monitor := server.New(cfg.MonitorAddr, cfg.MonitorPort, store, logger)
		go func() {
			if err := monitor.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("monitor server failed", zap.Error(err))
			}
		}()
		defer func() {
			if err := monitor.Stop(); err != nil {
				logger.Warn("could not stop monitor server", zap.Error(err))
			}
		}()
	}

	runner := run.New(fetcher, report.NewBuilder(fetcher, cfg.GamesURL, logger), analyzer, targets, run.Options{
		RunID:      runID,
		HistoryURL: cfg.HistoryURL,
		Workers:    cfg.Workers,
	}, logger)

	var result *run.Result
	if matchIDs == nil {
		result, err = runner.Run(ctx)
		if err != nil {
			logger.Error("run aborted", zap.Error(err))
			return err
		}
	} else {
		result = runner.RunMatches(ctx, matchIDs)
	}

	return printResult(cmd.OutOrStdout(), cfg.OutputDir, result)
}

func printResult(out io.Writer, outputDir string, result *run.Result) error {
	degraded := 0
	for _, matchReport := range result.Reports {
		if matchReport.Failures() > 0 {
			degraded++
		}
	}

	_, err := fmt.Fprintf(out, "Done with %d matches (%d with missing sections), documents in %s\n",
		len(result.Reports), degraded, outputDir)
	return err
}
