package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"b3ingest/pkg/contracts"
	"b3ingest/pkg/contracts/domain"
)

const (
	yahooBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"
	// Yahoo throttles aggressively; keep requests well under their limit.
	yahooRequestsPerSecond = 2
)

// requiredProviderColumns are the provider-native columns a daily payload
// must carry. Adjusted close is optional at the adapter level; the canonical
// schema document decides whether it survives mapping.
var requiredProviderColumns = []string{"Open", "High", "Low", "Close", "Volume"}

// YahooAdapter fetches daily OHLCV series from the Yahoo Finance chart API.
type YahooAdapter struct {
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
}

// NewYahooAdapter creates a Yahoo adapter with a rate-limited HTTP client.
func NewYahooAdapter() *YahooAdapter {
	return &YahooAdapter{
		client:  &http.Client{},
		limiter: rate.NewLimiter(rate.Limit(yahooRequestsPerSecond), 1),
		baseURL: yahooBaseURL,
	}
}

// NewYahooAdapterWithClient creates a Yahoo adapter with an explicit HTTP
// client and base URL. Used by tests to point at a stub server.
func NewYahooAdapterWithClient(client *http.Client, baseURL string) *YahooAdapter {
	return &YahooAdapter{
		client:  client,
		limiter: rate.NewLimiter(rate.Inf, 1),
		baseURL: baseURL,
	}
}

// Source returns the provider identifier stamped on payloads.
func (a *YahooAdapter) Source() string { return "yahoo" }

// Fetch performs one single-shot fetch. It returns a structurally valid
// RawPayload or an error; retrying is the engine's job, not the adapter's.
func (a *YahooAdapter) Fetch(ctx context.Context, req FetchRequest) (*domain.RawPayload, error) {
	ticker := NormalizeB3Ticker(req.Ticker)

	start, end, err := resolveRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, NewFetchError(fmt.Sprintf("invalid date range for %s", ticker), err)
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	url := fmt.Sprintf("%s/%s?period1=%d&period2=%d&interval=1d&events=div%%2Csplit",
		a.baseURL, ticker, start.Unix(), end.Unix())

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, NewFetchError(fmt.Sprintf("failed to build request for %s", ticker), err)
	}
	httpReq.Header.Set("User-Agent", contracts.UserAgent())

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, NewRateLimitError(
			fmt.Sprintf("rate limited fetching %s", ticker),
			&StatusError{StatusCode: resp.StatusCode, URL: url})
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: url}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewFetchError(fmt.Sprintf("failed to read response for %s", ticker), err)
	}

	payload, err := parseChartResponse(body, ticker)
	if err != nil {
		return nil, err
	}

	if err := validatePayload(payload, ticker); err != nil {
		return nil, err
	}

	payload.Meta = domain.PayloadMeta{
		Source:    a.Source(),
		Ticker:    ticker,
		FetchedAt: time.Now().UTC().Format("2006-01-02T15:04:05Z"),
	}
	return payload, nil
}

// NormalizeB3Ticker uppercases the ticker and appends the .SA suffix Yahoo
// expects for B3-listed symbols (those ending in a digit, e.g. PETR4).
func NormalizeB3Ticker(ticker string) string {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if t == "" {
		return t
	}
	last := t[len(t)-1]
	if last >= '0' && last <= '9' && !strings.HasSuffix(t, ".SA") {
		return t + ".SA"
	}
	return t
}

func resolveRange(startDate, endDate string) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	end := now
	start := now.AddDate(-1, 0, 0)

	var err error
	if endDate != "" {
		end, err = time.Parse("2006-01-02", endDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("bad end date %q: %w", endDate, err)
		}
	}
	if startDate != "" {
		start, err = time.Parse("2006-01-02", startDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("bad start date %q: %w", startDate, err)
		}
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start %s is not before end %s", start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	return start, end, nil
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
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

func parseChartResponse(body []byte, ticker string) (*domain.RawPayload, error) {
	var cr chartResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, NewFetchError(fmt.Sprintf("failed to decode chart response for %s", ticker), err)
	}
	if cr.Chart.Error != nil {
		return nil, NewFetchError(
			fmt.Sprintf("provider error for %s: %s (%s)", ticker, cr.Chart.Error.Description, cr.Chart.Error.Code), nil)
	}
	if len(cr.Chart.Result) == 0 || len(cr.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, NewValidationError(
			fmt.Sprintf("empty chart result for %s; check the ticker and date range", ticker))
	}

	result := cr.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	payload := &domain.RawPayload{
		Columns: []string{"Open", "High", "Low", "Close", "Adj Close", "Volume"},
	}

	var adj []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adj = result.Indicators.AdjClose[0].AdjClose
	}

	for i, ts := range result.Timestamp {
		payload.Index = append(payload.Index, time.Unix(ts, 0).UTC())
		payload.Rows = append(payload.Rows, []string{
			renderFloatPtr(at(quote.Open, i)),
			renderFloatPtr(at(quote.High, i)),
			renderFloatPtr(at(quote.Low, i)),
			renderFloatPtr(at(quote.Close, i)),
			renderFloatPtr(at(adj, i)),
			renderIntPtr(at(quote.Volume, i)),
		})
	}

	return payload, nil
}

func at[T any](s []*T, i int) *T {
	if i < 0 || i >= len(s) {
		return nil
	}
	return s[i]
}

func renderFloatPtr(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'g', 10, 64)
}

func renderIntPtr(i *int64) string {
	if i == nil {
		return ""
	}
	return strconv.FormatInt(*i, 10)
}

// validatePayload checks the structural contract a fetched payload must meet
// before it is worth mapping: non-empty, required provider columns present,
// index aligned with rows.
func validatePayload(p *domain.RawPayload, ticker string) error {
	if p.Empty() {
		return NewValidationError(
			fmt.Sprintf("empty payload returned for %s; check the ticker and date range", ticker))
	}

	var missing []string
	for _, col := range requiredProviderColumns {
		if p.Column(col) < 0 {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return NewValidationError(
			fmt.Sprintf("required columns missing for %s: %v", ticker, missing))
	}

	if len(p.Index) != len(p.Rows) {
		return NewValidationError(
			fmt.Sprintf("payload index for %s has %d entries for %d rows", ticker, len(p.Index), len(p.Rows)))
	}
	return nil
}
