package run

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/motillonc/leetify-tools/fetch"
	"github.com/motillonc/leetify-tools/llm"
	"github.com/motillonc/leetify-tools/model"
	"github.com/motillonc/leetify-tools/report"
)

const (
	historyURL = "https://leetify.test/api/v2/games/history"
	gamesURL   = "https://leetify.test/api/games"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fetcherFunc func(ctx context.Context, url string) (*fetch.Response, error)

func (f fetcherFunc) Get(ctx context.Context, url string) (*fetch.Response, error) {
	return f(ctx, url)
}

// Serves the given history and a healthy, match specific payload for every endpoint.
func upstream(history string) fetcherFunc {
	return func(_ context.Context, url string) (*fetch.Response, error) {
		if url == historyURL {
			return &fetch.Response{StatusCode: 200, Body: []byte(history)}, nil
		}

		path := strings.TrimPrefix(url, gamesURL+"/")
		matchID := path[:strings.Index(path, "/")]
		if strings.HasSuffix(url, "/your-match") {
			body := fmt.Sprintf(`{"profileId": "profile-of-%s", "trackedMatches": 3, "skills": []}`, matchID)
			return &fetch.Response{StatusCode: 200, Body: []byte(body)}, nil
		}
		return &fetch.Response{StatusCode: 200, Body: []byte(`[]`)}, nil
	}
}

type memorySink struct {
	locker    sync.Mutex
	reports   map[model.MatchID]string
	analyses  map[model.MatchID]string
	summaries []string
}

func newMemorySink() *memorySink {
	return &memorySink{reports: map[model.MatchID]string{}, analyses: map[model.MatchID]string{}}
}

func (s *memorySink) WriteReport(matchID model.MatchID, text string) error {
	s.locker.Lock()
	defer s.locker.Unlock()
	s.reports[matchID] = text
	return nil
}

func (s *memorySink) WriteAnalysis(matchID model.MatchID, text string) error {
	s.locker.Lock()
	defer s.locker.Unlock()
	s.analyses[matchID] = text
	return nil
}

func (s *memorySink) WriteSummary(text string) error {
	s.locker.Lock()
	defer s.locker.Unlock()
	s.summaries = append(s.summaries, text)
	return nil
}

type analyzerFunc func(ctx context.Context, prompt string) string

func (f analyzerFunc) Analyze(ctx context.Context, prompt string) string {
	return f(ctx, prompt)
}

// Answers with the profile found in the prompt, so analyses can be told apart. The summary prompt is recorded.
type echoAnalyzer struct {
	delays  map[string]time.Duration
	locker  sync.Mutex
	prompts []string
}

func (a *echoAnalyzer) Analyze(_ context.Context, prompt string) string {
	a.locker.Lock()
	a.prompts = append(a.prompts, prompt)
	a.locker.Unlock()

	if strings.HasPrefix(prompt, "Create a global summary") {
		return "summary"
	}
	start := strings.Index(prompt, "profile-of-")
	profile := strings.Fields(prompt[start:])[0]
	time.Sleep(a.delays[profile])
	return "analysis of " + profile
}

func (a *echoAnalyzer) summaryPrompts() []string {
	a.locker.Lock()
	defer a.locker.Unlock()
	var prompts []string
	for _, prompt := range a.prompts {
		if strings.HasPrefix(prompt, "Create a global summary") {
			prompts = append(prompts, prompt)
		}
	}
	return prompts
}

func newRunner(fetcher fetch.Fetcher, analyzer llm.Analyzer, target *memorySink, workers int) *Runner {
	builder := report.NewBuilder(fetcher, gamesURL, zap.NewNop())
	return New(fetcher, builder, analyzer, target, Options{HistoryURL: historyURL, Workers: workers}, zap.NewNop())
}

func TestRunSummarizesInEnumerationOrder(t *testing.T) {
	history := `{"games": [{"id": "m1", "mapName": "de_mirage"}, {"id": "m2", "mapName": "de_nuke"}, {"id": "m1"}]}`
	analyzer := &echoAnalyzer{delays: map[string]time.Duration{"profile-of-m1": 50 * time.Millisecond}}
	target := newMemorySink()

	result, err := newRunner(upstream(history), analyzer, target, 4).Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	require.Len(t, result.Reports, 2)
	assert.Equal(t, model.MatchID("m1"), result.Reports[0].MatchID)
	assert.Equal(t, model.MatchID("m2"), result.Reports[1].MatchID)
	assert.Equal(t, []llm.MatchAnalysis{
		{MatchID: "m1", Analysis: "analysis of profile-of-m1"},
		{MatchID: "m2", Analysis: "analysis of profile-of-m2"},
	}, result.Analyses)

	assert.Len(t, target.reports, 2)
	assert.Equal(t, "analysis of profile-of-m2", target.analyses["m2"])
	assert.Equal(t, []string{"summary"}, target.summaries)
	assert.Equal(t, "summary", result.Summary)

	prompts := analyzer.summaryPrompts()
	require.Len(t, prompts, 1)
	assert.Equal(t, llm.SummaryPrompt(result.Analyses), prompts[0])
	assert.Less(t, strings.Index(prompts[0], "m1:\n"), strings.Index(prompts[0], "m2:\n"))
}

func TestRunKeepsGivenRunID(t *testing.T) {
	fetcher := upstream(`{"games": []}`)
	builder := report.NewBuilder(fetcher, gamesURL, zap.NewNop())
	runner := New(fetcher, builder, &echoAnalyzer{}, newMemorySink(), Options{RunID: "run-1"}, zap.NewNop())

	assert.Equal(t, "run-1", runner.RunMatches(context.Background(), nil).RunID)
	assert.Equal(t, 1, runner.options.Workers)
}

func TestRunWithoutMatchesSkipsSummary(t *testing.T) {
	analyzer := &echoAnalyzer{}
	target := newMemorySink()

	result, err := newRunner(upstream(`{"games": []}`), analyzer, target, 2).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, result.Reports)
	assert.Empty(t, result.Summary)
	assert.Empty(t, analyzer.prompts)
	assert.Empty(t, target.summaries)
}

func TestRunHistoryFailures(t *testing.T) {
	tests := []struct {
		name     string
		response *fetch.Response
		err      error
		expected error
	}{
		{"unauthorized", &fetch.Response{StatusCode: 401}, nil, ErrUnauthorized},
		{"forbidden", &fetch.Response{StatusCode: 403}, nil, ErrUnauthorized},
		{"server error", &fetch.Response{StatusCode: 502}, nil, ErrHistory},
		{"transport", nil, errors.New("connection reset by peer"), ErrHistory},
		{"invalid json", &fetch.Response{StatusCode: 200, Body: []byte(`{"games": [`)}, nil, ErrHistory},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var calls int32
			fetcher := fetcherFunc(func(context.Context, string) (*fetch.Response, error) {
				atomic.AddInt32(&calls, 1)
				return test.response, test.err
			})
			analyzer := &echoAnalyzer{}
			target := newMemorySink()

			result, err := newRunner(fetcher, analyzer, target, 2).Run(context.Background())

			assert.Nil(t, result)
			assert.ErrorIs(t, err, test.expected)
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
			assert.Empty(t, target.reports)
			assert.Empty(t, target.summaries)
			assert.Empty(t, analyzer.prompts)
		})
	}
}

func TestRunRespectsWorkerLimit(t *testing.T) {
	var active, peak int32
	base := upstream(`{"games": [{"id": "a"}, {"id": "b"}, {"id": "c"}, {"id": "d"}, {"id": "e"}]}`)
	fetcher := fetcherFunc(func(ctx context.Context, url string) (*fetch.Response, error) {
		if strings.HasSuffix(url, "/your-match") {
			current := atomic.AddInt32(&active, 1)
			for {
				seen := atomic.LoadInt32(&peak)
				if current <= seen || atomic.CompareAndSwapInt32(&peak, seen, current) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&active, -1)
		}
		return base(ctx, url)
	})

	result := newRunner(fetcher, &echoAnalyzer{}, newMemorySink(), 2).
		RunMatches(context.Background(), []model.MatchID{"a", "b", "c", "d", "e"})

	assert.Len(t, result.Reports, 5)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	assert.Equal(t, int32(0), atomic.LoadInt32(&active))
}

func TestRunStoresUnavailableAnalyses(t *testing.T) {
	analyzer := analyzerFunc(func(_ context.Context, prompt string) string {
		return llm.UnavailablePrefix + "context deadline exceeded"
	})
	target := newMemorySink()

	result := newRunner(upstream(""), analyzer, target, 1).
		RunMatches(context.Background(), []model.MatchID{"m1"})

	assert.True(t, llm.Unavailable(result.Analyses[0].Analysis))
	assert.Equal(t, result.Analyses[0].Analysis, target.analyses["m1"])
	assert.True(t, llm.Unavailable(result.Summary))
	assert.Equal(t, []string{result.Summary}, target.summaries)
	assert.Contains(t, target.reports["m1"], "=== Your Match ===\nProfile: profile-of-m1")
}
