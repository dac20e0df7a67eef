package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const (
	defaultEndpoint = "http://localhost:11434"
	defaultModel    = "llama2"

	// Prefix of the text stored in place of an analysis when the model could not be reached.
	UnavailablePrefix = "LLM analysis unavailable: "
)

var (
	requestsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "leetify",
		Subsystem: "llm",
		Name:      "requests",
		Help:      "Counts generate requests against the language model by result",
	}, []string{"result"})
)

// Defines the text-in/text-out contract of the language model used for match analysis.
type Analyzer interface {
	// Returns the model's answer to the prompt. Failures never surface as error: the returned text then starts with
	// UnavailablePrefix and names the reason.
	Analyze(ctx context.Context, prompt string) string
}

// OllamaClient talks to a local Ollama server through its non-streaming generate API.
type OllamaClient struct {
	endpoint string
	model    string
	client   *http.Client
	logger   *zap.Logger
}

// NewOllamaClient creates a client for the given server and model. Local inference is slow, so the timeout is usually
// measured in minutes.
func NewOllamaClient(endpoint, model string, timeout time.Duration, logger *zap.Logger) *OllamaClient {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	if model == "" {
		model = defaultModel
	}

	return &OllamaClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    model,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.Named("llm"),
	}
}

// Generate sends a single prompt and returns the model's response text.
func (c *OllamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{Model: c.model, Prompt: prompt, Stream: false})
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("llm: ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("llm: ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("llm: decode response: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("llm: ollama error: %s", result.Error)
	}

	return result.Response, nil
}

func (c *OllamaClient) Analyze(ctx context.Context, prompt string) string {
	start := time.Now()
	response, err := c.Generate(ctx, prompt)
	if err != nil {
		requestsCounter.WithLabelValues("error").Inc()
		c.logger.Warn("analysis failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return UnavailablePrefix + err.Error()
	}

	requestsCounter.WithLabelValues("ok").Inc()
	c.logger.Debug("analysis done", zap.Duration("elapsed", time.Since(start)), zap.Int("chars", len(response)))
	return response
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}
