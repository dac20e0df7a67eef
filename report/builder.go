package report

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/motillonc/leetify-tools/fetch"
	"github.com/motillonc/leetify-tools/llm"
	"github.com/motillonc/leetify-tools/model"
	"github.com/motillonc/leetify-tools/sink"
)

var (
	outcomesCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "leetify",
		Subsystem: "report",
		Name:      "endpoint_outcomes",
		Help:      "Counts the outcome of every endpoint section per endpoint",
	}, []string{"endpoint", "outcome"})
)

// Builder assembles match reports from the per-match endpoints of the registry.
type Builder struct {
	fetcher   fetch.Fetcher
	gamesURL  string
	endpoints []EndpointSpec
	logger    *zap.Logger
}

// NewBuilder creates a builder for the full endpoint registry. gamesURL is the base every match path is appended to.
func NewBuilder(fetcher fetch.Fetcher, gamesURL string, logger *zap.Logger) *Builder {
	return newBuilder(fetcher, gamesURL, Registry(), logger)
}

func newBuilder(fetcher fetch.Fetcher, gamesURL string, endpoints []EndpointSpec, logger *zap.Logger) *Builder {
	return &Builder{fetcher, strings.TrimRight(gamesURL, "/"), endpoints, logger.Named("report")}
}

// URL returns the address of an endpoint for a match. The id always stays a single path segment.
func (b *Builder) URL(matchID model.MatchID, endpoint EndpointSpec) string {
	return fmt.Sprintf("%s/%s%s", b.gamesURL, url.PathEscape(string(matchID)), endpoint.PathSuffix)
}

// Build fetches every endpoint of a match and renders one section per endpoint. Failures are contained in their
// section, so a report is always returned.
func (b *Builder) Build(ctx context.Context, matchID model.MatchID) *MatchReport {
	report := &MatchReport{MatchID: matchID, Sections: make([]Section, 0, len(b.endpoints))}

	for _, endpoint := range b.endpoints {
		outcome := b.section(ctx, matchID, endpoint)
		outcomesCounter.WithLabelValues(endpoint.PathSuffix, outcome.Kind.String()).Inc()

		if outcome.Kind != Success {
			b.logger.Warn("endpoint degraded",
				zap.String("match_id", string(matchID)),
				zap.String("endpoint", endpoint.PathSuffix),
				zap.Stringer("outcome", outcome.Kind),
				zap.String("detail", outcome.Body()),
				zap.String("reason", outcome.Reason))
		}

		report.Sections = append(report.Sections, Section{endpoint.Title, outcome})
	}

	b.logger.Info("report built",
		zap.String("match_id", string(matchID)),
		zap.Int("sections", len(report.Sections)),
		zap.Int("failures", report.Failures()))
	return report
}

func (b *Builder) section(ctx context.Context, matchID model.MatchID, endpoint EndpointSpec) Outcome {
	response, ioError := b.fetcher.Get(ctx, b.URL(matchID, endpoint))
	if ioError != nil {
		return RequestFailed(ioError)
	}
	if !response.OK() {
		return StatusFailed(response.StatusCode)
	}
	if !json.Valid(response.Body) {
		return InvalidJSON()
	}
	if shape, known := shapeOf(response.Body); !known || shape != endpoint.Shape {
		return UnexpectedFormat(fmt.Sprintf("expected a JSON %s", endpoint.Shape))
	}

	text, formatError := endpoint.Format(response.Body)
	if formatError != nil {
		return UnexpectedFormat(formatError.Error())
	}
	return Succeeded(text)
}

// Process runs the whole pipeline for one match: the report is built and persisted, then analysed by the language
// model and the analysis persisted as well. Sink failures are logged, they do not stop the pipeline.
func (b *Builder) Process(ctx context.Context, matchID model.MatchID, target sink.Sink, analyzer llm.Analyzer) (*MatchReport, llm.MatchAnalysis) {
	report := b.Build(ctx, matchID)
	text := report.Text()

	if err := target.WriteReport(matchID, text); err != nil {
		b.logger.Error("could not persist report", zap.String("match_id", string(matchID)), zap.Error(err))
	}

	analysis := analyzer.Analyze(ctx, llm.MatchPrompt(text))
	if err := target.WriteAnalysis(matchID, analysis); err != nil {
		b.logger.Error("could not persist analysis", zap.String("match_id", string(matchID)), zap.Error(err))
	}

	return report, llm.MatchAnalysis{MatchID: string(matchID), Analysis: analysis}
}

// Returns the top-level kind of a valid JSON document. Scalars are not a known shape.
func shapeOf(payload []byte) (Shape, bool) {
	trimmed := bytes.TrimLeft(payload, " \t\r\n")
	if len(trimmed) == 0 {
		return 0, false
	}

	switch trimmed[0] {
	case '{':
		return ShapeObject, true
	case '[':
		return ShapeList, true
	default:
		return 0, false
	}
}
