package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

var sugar *zap.SugaredLogger

type StationFetcher struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	sugar      *zap.SugaredLogger
}

// HTTPStatusError is returned when the server answers with a non-2xx status.
type HTTPStatusError struct {
	StatusCode int
	Status     string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %s", e.Status)
}

// a 4xx only says something about the station that was asked for, so it does not count against the
// server; transport errors, timeouts, 429 and 5xx do
func upstreamHealthy(err error) bool {
	if err == nil {
		return true
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 400 && statusErr.StatusCode < 500 && statusErr.StatusCode != http.StatusTooManyRequests
	}
	return false
}

type StationFetcherOptions struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	// 0 disables the breaker
	MaxConsecutiveFailures uint32
}

func NewStationFetcher(opts StationFetcherOptions, logger *zap.SugaredLogger) *StationFetcher {
	if opts.BaseURL == "" {
		opts.BaseURL = DEFAULT_STATION_DATA_BASE_URL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DEFAULT_USER_AGENT
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DEFAULT_FETCH_TIMEOUT
	}

	// once upstream has failed this many times in a row there is no point hitting it for every
	// remaining station, the breaker only ever short-circuits and never retries
	maxFails := opts.MaxConsecutiveFailures
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "metoffice-stationdata",
		Timeout: 5 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return maxFails > 0 && counts.ConsecutiveFailures >= maxFails
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warnf("circuit breaker %s changed state from %s to %s", name, from, to)
		},
		IsSuccessful: upstreamHealthy,
	})

	return &StationFetcher{
		baseURL:    opts.BaseURL,
		userAgent:  opts.UserAgent,
		httpClient: &http.Client{Timeout: opts.Timeout},
		breaker:    breaker,
		sugar:      logger,
	}
}

func (f *StationFetcher) URLFor(station string) string {
	return StationDataURL(f.baseURL, station)
}

// FetchStationData reads the full observation file for a station into memory.
func (f *StationFetcher) FetchStationData(ctx context.Context, station string) ([]byte, error) {
	url := f.URLFor(station)
	f.sugar.Debugf("url=%s", url)

	result, err := f.breaker.Execute(func() (interface{}, error) {
		return f.get(ctx, url)
	})
	if err != nil {
		return nil, fmt.Errorf("error downloading %s: %w", url, err)
	}

	body := result.([]byte)
	f.sugar.Debugf("downloaded %d bytes", len(body))
	return body, nil
}

func (f *StationFetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error making HTTP request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error getting HTTP response: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading HTTP response body: %w", err)
	}
	return body, nil
}
