package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"event-study-lab/internal/domain"
	"event-study-lab/internal/observability"
)

// DefaultYahooBaseURL is the public Yahoo Finance chart API endpoint.
const DefaultYahooBaseURL = "https://query1.finance.yahoo.com"

// YahooProvider implements Provider using the Yahoo Finance chart API.
// Open/high/low/close are scaled by the adjusted-close ratio so the series
// is fully adjusted for splits and dividends, matching the benchmark.
type YahooProvider struct {
	client  *http.Client
	baseURL string
	logger  zerolog.Logger
}

// NewYahooProvider creates a Yahoo Finance provider.
func NewYahooProvider(logger zerolog.Logger) *YahooProvider {
	return &YahooProvider{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: DefaultYahooBaseURL,
		logger:  logger.With().Str("component", "marketdata.yahoo").Logger(),
	}
}

// WithBaseURL overrides the API endpoint. Used by tests.
func (p *YahooProvider) WithBaseURL(base string) *YahooProvider {
	p.baseURL = base
	return p
}

// yahooChart is the response structure of the Yahoo Finance chart API.
// Nullable array entries (market holidays, missing quotes) decode to nil.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Fetch retrieves daily bars for the ticker with dates in [start, end].
func (p *YahooProvider) Fetch(ctx context.Context, ticker string, start, end time.Time) (bars []domain.PriceBar, err error) {
	began := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		observability.RecordFetch(status, time.Since(began).Seconds(), len(bars))
	}()

	if ticker == "" {
		return nil, fmt.Errorf("empty ticker: %w", ErrDataUnavailable)
	}

	// period2 is exclusive upstream; extend one day so end is inclusive.
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&period1=%d&period2=%d&events=div%%2Csplit",
		p.baseURL, url.PathEscape(ticker),
		domain.Day(start).Unix(), domain.Day(end).Add(24*time.Hour).Unix())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ticker, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body for %s: %w", ticker, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("ticker %s: %w", ticker, ErrDataUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ticker %s: status %d: %w", ticker, resp.StatusCode, ErrDataUnavailable)
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("decode chart for %s: %w", ticker, err)
	}
	if chart.Chart.Error != nil {
		p.logger.Debug().Str("ticker", ticker).Str("code", chart.Chart.Error.Code).Msg("chart api error")
		return nil, fmt.Errorf("ticker %s: %s: %w", ticker, chart.Chart.Error.Description, ErrDataUnavailable)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return nil, fmt.Errorf("ticker %s: no data in range: %w", ticker, ErrDataUnavailable)
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("ticker %s: no quote data: %w", ticker, ErrDataUnavailable)
	}
	quote := result.Indicators.Quote[0]

	var adjClose []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adjClose = result.Indicators.AdjClose[0].AdjClose
	}

	// Deduplicate by calendar day, last bar wins.
	byDay := make(map[time.Time]domain.PriceBar, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		bar, ok := buildBar(ts, i, quote.Open, quote.High, quote.Low, quote.Close, quote.Volume, adjClose)
		if !ok {
			continue // null bar: holiday or missing quote
		}
		byDay[bar.Date] = bar
	}
	if len(byDay) == 0 {
		return nil, fmt.Errorf("ticker %s: only null bars in range: %w", ticker, ErrDataUnavailable)
	}

	bars = make([]domain.PriceBar, 0, len(byDay))
	for _, b := range byDay {
		bars = append(bars, b)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })

	p.logger.Debug().Str("ticker", ticker).Int("bars", len(bars)).Msg("fetched price history")
	return bars, nil
}

// buildBar assembles one adjusted bar; ok=false when any quote field is null.
func buildBar(ts int64, i int, open, high, low, closes, volume, adjClose []*float64) (domain.PriceBar, bool) {
	at := func(vals []*float64) (float64, bool) {
		if i >= len(vals) || vals[i] == nil {
			return 0, false
		}
		return *vals[i], true
	}

	o, ok1 := at(open)
	h, ok2 := at(high)
	l, ok3 := at(low)
	c, ok4 := at(closes)
	if !ok1 || !ok2 || !ok3 || !ok4 || c <= 0 {
		return domain.PriceBar{}, false
	}

	// Full price adjustment: scale OHLC by adjclose/close.
	if adj, ok := at(adjClose); ok && adj > 0 {
		ratio := adj / c
		o *= ratio
		h *= ratio
		l *= ratio
		c = adj
	}

	var vol int64
	if v, ok := at(volume); ok && v > 0 {
		vol = int64(v)
	}

	return domain.PriceBar{
		Date:   domain.Day(time.Unix(ts, 0).UTC()),
		Open:   o,
		High:   h,
		Low:    l,
		Close:  c,
		Volume: vol,
	}, true
}

var _ Provider = (*YahooProvider)(nil)
