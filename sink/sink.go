package sink

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/motillonc/leetify-tools/model"
)

const (
	reportFileName   = "match_report.txt"
	analysisFileName = "analysis.txt"
	summaryFileName  = "global_summary.txt"
)

var (
	writesCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "leetify",
		Subsystem: "sink",
		Name:      "writes",
		Help:      "Counts sink writes per sink, document kind and result",
	}, []string{"sink", "kind", "result"})
)

// ErrInvalidMatchID is returned for match ids that cannot be used as a directory name.
var ErrInvalidMatchID = errors.New("sink: invalid match id")

// Defines where the documents of a run end up. Implementations must be safe for concurrent use, as matches are
// processed in parallel.
type Sink interface {
	// Persists the text report of a match.
	WriteReport(matchID model.MatchID, text string) error
	// Persists the language model analysis of a match.
	WriteAnalysis(matchID model.MatchID, text string) error
	// Persists the summary across all matches of the run.
	WriteSummary(text string) error
}

// DirSink writes one directory per match below a root directory, plus the global summary at the root.
type DirSink struct {
	root string
}

func NewDirSink(root string) *DirSink {
	return &DirSink{root}
}

func (s *DirSink) WriteReport(matchID model.MatchID, text string) error {
	dir, err := s.matchDir("report", matchID)
	if err != nil {
		return err
	}
	return s.write("report", filepath.Join(dir, reportFileName), text)
}

func (s *DirSink) WriteAnalysis(matchID model.MatchID, text string) error {
	dir, err := s.matchDir("analysis", matchID)
	if err != nil {
		return err
	}
	return s.write("analysis", filepath.Join(dir, analysisFileName), text)
}

func (s *DirSink) WriteSummary(text string) error {
	return s.write("summary", filepath.Join(s.root, summaryFileName), text)
}

// Match ids end up as a single directory name below the root, never as a path.
func (s *DirSink) matchDir(kind string, matchID model.MatchID) (string, error) {
	id := string(matchID)
	if id == "" || id == "." || strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		writesCounter.WithLabelValues("dir", kind, "error").Inc()
		return "", fmt.Errorf("%w: %q", ErrInvalidMatchID, id)
	}
	return filepath.Join(s.root, id), nil
}

func (s *DirSink) write(kind, path string, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		writesCounter.WithLabelValues("dir", kind, "error").Inc()
		return fmt.Errorf("sink: create directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		writesCounter.WithLabelValues("dir", kind, "error").Inc()
		return fmt.Errorf("sink: write %s: %w", path, err)
	}
	writesCounter.WithLabelValues("dir", kind, "ok").Inc()
	return nil
}

// Multi fans every write out to all sinks. All sinks are written even if one fails; the errors are joined.
type Multi []Sink

func (m Multi) WriteReport(matchID model.MatchID, text string) error {
	return m.each(func(s Sink) error { return s.WriteReport(matchID, text) })
}

func (m Multi) WriteAnalysis(matchID model.MatchID, text string) error {
	return m.each(func(s Sink) error { return s.WriteAnalysis(matchID, text) })
}

func (m Multi) WriteSummary(text string) error {
	return m.each(func(s Sink) error { return s.WriteSummary(text) })
}

func (m Multi) each(write func(Sink) error) error {
	var errs []error
	for _, s := range m {
		if err := write(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
