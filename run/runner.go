// Package run drives a complete invocation: it discovers the matches of the player, builds and analyses every match
// report on a bounded number of workers and finally asks the language model for a summary across all matches.
package run

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/motillonc/leetify-tools/fetch"
	"github.com/motillonc/leetify-tools/llm"
	"github.com/motillonc/leetify-tools/model"
	"github.com/motillonc/leetify-tools/report"
	"github.com/motillonc/leetify-tools/sink"
)

var (
	// ErrHistory means the match history could not be retrieved, so there is nothing to report on.
	ErrHistory = errors.New("match history unavailable")
	// ErrUnauthorized means the upstream rejected the credential.
	ErrUnauthorized = errors.New("credential rejected by upstream")
)

type Options struct {
	RunID      string
	HistoryURL string
	Workers    int
}

// Result collects the outcome of a run. Reports and Analyses follow the order in which the matches were enumerated.
type Result struct {
	RunID    string
	Reports  []*report.MatchReport
	Analyses []llm.MatchAnalysis
	Summary  string
}

type Runner struct {
	fetcher  fetch.Fetcher
	builder  *report.Builder
	analyzer llm.Analyzer
	target   sink.Sink
	options  Options
	logger   *zap.Logger
}

func New(fetcher fetch.Fetcher, builder *report.Builder, analyzer llm.Analyzer, target sink.Sink, options Options, logger *zap.Logger) *Runner {
	if options.RunID == "" {
		options.RunID = uuid.NewString()
	}
	if options.Workers < 1 {
		options.Workers = 1
	}

	return &Runner{
		fetcher:  fetcher,
		builder:  builder,
		analyzer: analyzer,
		target:   target,
		options:  options,
		logger:   logger.Named("run").With(zap.String("run_id", options.RunID)),
	}
}

// MatchIDs reads the match history of the player. Any failure here is fatal for the run.
func (r *Runner) MatchIDs(ctx context.Context) ([]model.MatchID, error) {
	response, ioError := r.fetcher.Get(ctx, r.options.HistoryURL)
	if ioError != nil {
		return nil, fmt.Errorf("%w: %w", ErrHistory, ioError)
	}

	switch {
	case response.StatusCode == http.StatusUnauthorized || response.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: HTTP %d", ErrUnauthorized, response.StatusCode)
	case !response.OK():
		return nil, fmt.Errorf("%w: HTTP %d", ErrHistory, response.StatusCode)
	}

	history := new(model.History)
	if jsonError := json.Unmarshal(response.Body, history); jsonError != nil {
		return nil, fmt.Errorf("%w: %w", ErrHistory, jsonError)
	}

	return history.MatchIDs(), nil
}

// Run processes every match of the player's history.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	matchIDs, err := r.MatchIDs(ctx)
	if err != nil {
		return nil, err
	}

	r.logger.Info("match history read", zap.Int("matches", len(matchIDs)))
	return r.RunMatches(ctx, matchIDs), nil
}

// RunMatches processes the given matches independently of each other, waits for all of them and then writes the global
// summary. Failures of single matches only degrade their documents.
func (r *Runner) RunMatches(ctx context.Context, matchIDs []model.MatchID) *Result {
	start := time.Now()
	result := &Result{
		RunID:    r.options.RunID,
		Reports:  make([]*report.MatchReport, len(matchIDs)),
		Analyses: make([]llm.MatchAnalysis, len(matchIDs)),
	}

	var group errgroup.Group
	group.SetLimit(r.options.Workers)

	for i, matchID := range matchIDs {
		i, matchID := i, matchID
		group.Go(func() error {
			result.Reports[i], result.Analyses[i] = r.builder.Process(ctx, matchID, r.target, r.analyzer)
			return nil
		})
	}
	_ = group.Wait()

	if len(matchIDs) == 0 {
		r.logger.Warn("no matches to summarize")
		return result
	}

	result.Summary = r.analyzer.Analyze(ctx, llm.SummaryPrompt(result.Analyses))
	if err := r.target.WriteSummary(result.Summary); err != nil {
		r.logger.Error("could not persist summary", zap.Error(err))
	}

	failedAnalyses := 0
	for _, analysis := range result.Analyses {
		if llm.Unavailable(analysis.Analysis) {
			failedAnalyses++
		}
	}

	r.logger.Info("run finished",
		zap.Int("matches", len(matchIDs)),
		zap.Int("failed_analyses", failedAnalyses),
		zap.Bool("summary_available", !llm.Unavailable(result.Summary)),
		zap.Duration("elapsed", time.Since(start)))
	return result
}
