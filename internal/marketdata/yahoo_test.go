package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func chartBody(timestamps []int64, quotes string, adjclose string) string {
	return fmt.Sprintf(`{
		"chart": {
			"result": [{
				"timestamp": %s,
				"indicators": {
					"quote": [%s],
					"adjclose": [%s]
				}
			}],
			"error": null
		}
	}`, intsJSON(timestamps), quotes, adjclose)
}

func intsJSON(vals []int64) string {
	s := "["
	for i, v := range vals {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf("%d", v)
	}
	return s + "]"
}

func newTestProvider(handler http.HandlerFunc) (*YahooProvider, *httptest.Server) {
	srv := httptest.NewServer(handler)
	p := NewYahooProvider(zerolog.Nop()).WithBaseURL(srv.URL)
	return p, srv
}

func TestYahooFetchAdjustedBars(t *testing.T) {
	day1 := time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC).Unix()
	day2 := time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC).Unix()

	quotes := `{
		"open":   [90, 91],
		"high":   [101, 102],
		"low":    [89, 90],
		"close":  [100, 100],
		"volume": [1000, 2000]
	}`
	// Day 1 halves under adjustment; day 2 is unadjusted.
	adj := `{"adjclose": [50, 100]}`

	p, srv := newTestProvider(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chartBody([]int64{day1, day2}, quotes, adj))
	})
	defer srv.Close()

	bars, err := p.Fetch(context.Background(),
		"AAPL", time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}

	if bars[0].Close != 50 {
		t.Errorf("expected adjusted close 50, got %f", bars[0].Close)
	}
	if bars[0].Open != 45 {
		t.Errorf("expected open scaled to 45, got %f", bars[0].Open)
	}
	if bars[0].Volume != 1000 {
		t.Errorf("expected volume 1000, got %d", bars[0].Volume)
	}
	if bars[1].Close != 100 || bars[1].Open != 91 {
		t.Errorf("expected unadjusted second bar, got open=%f close=%f", bars[1].Open, bars[1].Close)
	}

	wantDate := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	if !bars[0].Date.Equal(wantDate) {
		t.Errorf("expected intraday timestamp truncated to %v, got %v", wantDate, bars[0].Date)
	}
}

func TestYahooFetchSkipsNullBars(t *testing.T) {
	day1 := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC).Unix()
	day2 := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC).Unix()
	day3 := time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC).Unix()

	// Middle bar is a market holiday with null quotes.
	quotes := `{
		"open":   [90, null, 92],
		"high":   [101, null, 103],
		"low":    [89, null, 91],
		"close":  [100, null, 102],
		"volume": [1000, null, 3000]
	}`
	adj := `{"adjclose": [100, null, 102]}`

	p, srv := newTestProvider(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chartBody([]int64{day1, day2, day3}, quotes, adj))
	})
	defer srv.Close()

	bars, err := p.Fetch(context.Background(),
		"AAPL", time.Unix(day1, 0), time.Unix(day3, 0))
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected null bar skipped, got %d bars", len(bars))
	}
	if bars[0].Close != 100 || bars[1].Close != 102 {
		t.Errorf("unexpected bars survived: %+v", bars)
	}
}

func TestYahooFetchErrorPayload(t *testing.T) {
	p, srv := newTestProvider(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart": {"result": null, "error": {"code": "Not Found", "description": "No data found, symbol may be delisted"}}}`)
	})
	defer srv.Close()

	_, err := p.Fetch(context.Background(), "NOPE", time.Now().AddDate(0, -1, 0), time.Now())
	if !errors.Is(err, ErrDataUnavailable) {
		t.Errorf("expected ErrDataUnavailable for error payload, got %v", err)
	}
}

func TestYahooFetchHTTPStatusError(t *testing.T) {
	p, srv := newTestProvider(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	defer srv.Close()

	_, err := p.Fetch(context.Background(), "NOPE", time.Now().AddDate(0, -1, 0), time.Now())
	if !errors.Is(err, ErrDataUnavailable) {
		t.Errorf("expected ErrDataUnavailable for 404, got %v", err)
	}
}

func TestYahooFetchEmptyResult(t *testing.T) {
	p, srv := newTestProvider(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart": {"result": [], "error": null}}`)
	})
	defer srv.Close()

	_, err := p.Fetch(context.Background(), "AAPL", time.Now().AddDate(0, -1, 0), time.Now())
	if !errors.Is(err, ErrDataUnavailable) {
		t.Errorf("expected ErrDataUnavailable for empty result, got %v", err)
	}
}

func TestYahooFetchEmptyTicker(t *testing.T) {
	p := NewYahooProvider(zerolog.Nop())
	_, err := p.Fetch(context.Background(), "", time.Now().AddDate(0, -1, 0), time.Now())
	if !errors.Is(err, ErrDataUnavailable) {
		t.Errorf("expected ErrDataUnavailable for empty ticker, got %v", err)
	}
}
