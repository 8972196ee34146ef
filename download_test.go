package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

func testSugar() *zap.SugaredLogger {
	logger, _ := zap.NewDevelopment()
	return logger.Sugar()
}

func TestStationFetcherURLFor(t *testing.T) {
	tests := []struct {
		name     string
		baseURL  string
		station  string
		expected string
	}{
		{
			"default base",
			"",
			"heathrow",
			"https://www.metoffice.gov.uk/pub/data/weather/uk/climate/stationdata/heathrowdata.txt",
		},
		{
			"custom base",
			"http://127.0.0.1:8080/stationdata",
			"oxford",
			"http://127.0.0.1:8080/stationdata/oxforddata.txt",
		},
		{
			"trailing slash on base",
			"http://127.0.0.1:8080/stationdata/",
			"oxford",
			"http://127.0.0.1:8080/stationdata/oxforddata.txt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewStationFetcher(StationFetcherOptions{BaseURL: tt.baseURL}, testSugar())
			got := f.URLFor(tt.station)
			if got != tt.expected {
				t.Errorf("URLFor(%q) = %q, want %q", tt.station, got, tt.expected)
			}
		})
	}
}

func TestFetchStationData_Success(t *testing.T) {
	payload := "Oxford\nLocation 450900E 207200N, Lat 51.761 Lon -1.262, 63 metres amsl\n"
	var gotUA, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotPath = r.URL.Path
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	f := NewStationFetcher(StationFetcherOptions{BaseURL: srv.URL + "/stationdata"}, testSugar())
	data, err := f.FetchStationData(context.Background(), "oxford")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != payload {
		t.Errorf("body = %q, want %q", data, payload)
	}
	if gotUA != DEFAULT_USER_AGENT {
		t.Errorf("User-Agent = %q, want %q", gotUA, DEFAULT_USER_AGENT)
	}
	if gotPath != "/stationdata/oxforddata.txt" {
		t.Errorf("path = %q, want /stationdata/oxforddata.txt", gotPath)
	}
}

func TestFetchStationData_CustomUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	f := NewStationFetcher(StationFetcherOptions{BaseURL: srv.URL, UserAgent: "ukmohso-ingest/1.0"}, testSugar())
	if _, err := f.FetchStationData(context.Background(), "oxford"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotUA != "ukmohso-ingest/1.0" {
		t.Errorf("User-Agent = %q, want ukmohso-ingest/1.0", gotUA)
	}
}

func TestFetchStationData_Non2xx(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusForbidden, http.StatusInternalServerError} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			}))
			defer srv.Close()

			f := NewStationFetcher(StationFetcherOptions{BaseURL: srv.URL}, testSugar())
			if _, err := f.FetchStationData(context.Background(), "oxford"); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestFetchStationData_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	f := NewStationFetcher(StationFetcherOptions{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, testSugar())
	if _, err := f.FetchStationData(context.Background(), "oxford"); err == nil {
		t.Fatal("expected timeout error, got nil")
	}
}

func TestFetchStationData_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := NewStationFetcher(StationFetcherOptions{BaseURL: srv.URL, MaxConsecutiveFailures: 2}, testSugar())
	for i := 0; i < 2; i++ {
		if _, err := f.FetchStationData(context.Background(), "oxford"); err == nil {
			t.Fatal("expected error, got nil")
		}
	}

	_, err := f.FetchStationData(context.Background(), "heathrow")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open breaker error, got %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("server hit %d times, want 2", hits.Load())
	}
}

func TestFetchStationData_BreakerDisabled(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := NewStationFetcher(StationFetcherOptions{BaseURL: srv.URL, MaxConsecutiveFailures: 0}, testSugar())
	for i := 0; i < 10; i++ {
		_, err := f.FetchStationData(context.Background(), "oxford")
		if errors.Is(err, gobreaker.ErrOpenState) {
			t.Fatalf("breaker opened on attempt %d with tripping disabled", i+1)
		}
	}
	if hits.Load() != 10 {
		t.Errorf("server hit %d times, want 10", hits.Load())
	}
}

func TestFetchStationData_NotFoundDoesNotTripBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/heathrowdata.txt" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(sampleStationData))
	}))
	defer srv.Close()

	f := NewStationFetcher(StationFetcherOptions{BaseURL: srv.URL, MaxConsecutiveFailures: DEFAULT_MAX_CONSECUTIVE_FAILS}, testSugar())
	for _, station := range []string{"typo1", "closed2", "renamed3", "retired4"} {
		_, err := f.FetchStationData(context.Background(), station)
		var statusErr *HTTPStatusError
		if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
			t.Fatalf("%s: expected 404 status error, got %v", station, err)
		}
	}

	data, err := f.FetchStationData(context.Background(), "heathrow")
	if err != nil {
		t.Fatalf("valid station failed after unrelated 404s: %v", err)
	}
	if string(data) != sampleStationData {
		t.Errorf("unexpected body %q", data)
	}
	if hits.Load() != 5 {
		t.Errorf("server hit %d times, want 5", hits.Load())
	}
}

func TestFetchStationData_TooManyRequestsTripsBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := NewStationFetcher(StationFetcherOptions{BaseURL: srv.URL, MaxConsecutiveFailures: 2}, testSugar())
	for i := 0; i < 2; i++ {
		f.FetchStationData(context.Background(), "oxford")
	}
	if _, err := f.FetchStationData(context.Background(), "oxford"); !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open breaker after repeated 429s, got %v", err)
	}
}

func TestUpstreamHealthy(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"no error", nil, true},
		{"not found", &HTTPStatusError{StatusCode: 404, Status: "404 Not Found"}, true},
		{"forbidden", &HTTPStatusError{StatusCode: 403, Status: "403 Forbidden"}, true},
		{"wrapped not found", fmt.Errorf("error downloading: %w", &HTTPStatusError{StatusCode: 404}), true},
		{"too many requests", &HTTPStatusError{StatusCode: 429, Status: "429 Too Many Requests"}, false},
		{"server error", &HTTPStatusError{StatusCode: 502, Status: "502 Bad Gateway"}, false},
		{"transport error", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := upstreamHealthy(tt.err); got != tt.expected {
				t.Errorf("upstreamHealthy(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}
