package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	requestsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "leetify",
		Subsystem: "fetch",
		Name:      "requests",
		Help:      "Counts upstream GET requests by final result (status code or error)",
	}, []string{"result"})

	retriesCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "leetify",
		Subsystem: "fetch",
		Name:      "retries",
		Help:      "Counts retried upstream attempts",
	})
)

// Defines the capability to read a resource from the upstream API. A Fetcher is created once per run and shared by
// every component issuing requests; it owns the connection pool and the retry policy.
type Fetcher interface {
	// Issues a GET request for the given URL. A transport failure (including timeouts and exhausted retries without
	// any response) is returned as error. Any response that arrived is returned, whatever its status code.
	Get(ctx context.Context, url string) (*Response, error)
}

// Response is a fully read upstream response.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

type Options struct {
	Token          string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	RetryMax       int
	RetryWaitMin   time.Duration
	RetryWaitMax   time.Duration
}

type client struct {
	token      string
	httpClient *retryablehttp.Client
}

// Creates a new Fetcher that authenticates with a bearer token. Failed GETs are retried with exponential backoff when
// the connection failed or the upstream answered 429, 500, 502, 503 or 504.
func New(options Options, logger *zap.Logger) Fetcher {
	return newClient(options, logger)
}

func newClient(options Options, logger *zap.Logger) *client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   options.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   options.ConnectTimeout,
		ResponseHeaderTimeout: options.ReadTimeout,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConnsPerHost:   16,
		ForceAttemptHTTP2:     true,
	}

	httpClient := retryablehttp.NewClient()
	httpClient.HTTPClient = &http.Client{
		Transport: transport,
		Timeout:   options.ConnectTimeout + options.ReadTimeout,
	}
	httpClient.RetryMax = options.RetryMax
	httpClient.RetryWaitMin = options.RetryWaitMin
	httpClient.RetryWaitMax = options.RetryWaitMax
	httpClient.Backoff = retryablehttp.DefaultBackoff
	httpClient.CheckRetry = retryPolicy
	httpClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	httpClient.Logger = &leveledLogger{logger.Named("fetch").Sugar()}
	httpClient.RequestLogHook = func(_ retryablehttp.Logger, _ *http.Request, attempt int) {
		if attempt > 0 {
			retriesCounter.Inc()
		}
	}

	return &client{options.Token, httpClient}
}

func (c *client) Get(ctx context.Context, url string) (*Response, error) {
	request, requestError := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if requestError != nil {
		requestsCounter.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("fetch: build request: %w", requestError)
	}
	request.Header.Set("Authorization", "Bearer "+c.token)
	request.Header.Set("Accept", "application/json")

	response, ioError := c.httpClient.Do(request)
	if ioError != nil {
		requestsCounter.WithLabelValues("error").Inc()
		return nil, ioError
	}
	defer response.Body.Close()

	body, ioError := io.ReadAll(response.Body)
	if ioError != nil {
		requestsCounter.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("fetch: read body: %w", ioError)
	}

	requestsCounter.WithLabelValues(strconv.Itoa(response.StatusCode)).Inc()
	return &Response{response.StatusCode, body}, nil
}

func retryPolicy(ctx context.Context, response *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, response, err)
	}

	switch response.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true, nil
	}
	return false, nil
}

// Adapts zap to the retryablehttp logging interface. Retry chatter is only interesting at debug level.
type leveledLogger struct {
	logger *zap.SugaredLogger
}

func (l *leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Warnw(msg, keysAndValues...)
}

func (l *leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l *leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l *leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warnw(msg, keysAndValues...)
}
