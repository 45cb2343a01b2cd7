package ingestion

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// RESTClient paginates markets and trades from the venue's metadata (Gamma)
// and CLOB REST APIs.
type RESTClient struct {
	gamma *resty.Client
	clob  *resty.Client
}

func NewRESTClient(gammaBaseURL, clobBaseURL string) *RESTClient {
	newHTTP := func(base string) *resty.Client {
		return resty.New().
			SetBaseURL(base).
			SetTimeout(30 * time.Second).
			SetRetryCount(3).
			SetRetryWaitTime(500 * time.Millisecond).
			SetRetryMaxWaitTime(5 * time.Second).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				if err != nil {
					return true
				}
				return r.StatusCode() >= 500
			})
	}
	return &RESTClient{gamma: newHTTP(gammaBaseURL), clob: newHTTP(clobBaseURL)}
}

// GetMarketsPage fetches one page of markets from the Gamma API. activeOnly
// additionally filters out closed markets. On HTTP 429 it sleeps for the
// venue's advertised Retry-After and retries once before giving up.
func (c *RESTClient) GetMarketsPage(limit, offset int, activeOnly bool) ([]RawMarket, error) {
	var raw []map[string]interface{}
	if err := c.getWithRetryAfter("/markets", map[string]string{
		"limit":  strconv.Itoa(limit),
		"offset": strconv.Itoa(offset),
		"closed": boolParam(activeOnly, "false"),
		"active": boolParam(activeOnly, "true"),
	}, &raw, c.gamma); err != nil {
		return nil, fmt.Errorf("get markets page: %w", err)
	}

	out := make([]RawMarket, 0, len(raw))
	for _, item := range raw {
		if m, ok := parseMarket(item); ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// boolParam returns value when active-only filtering is requested, empty
// string (no query param) otherwise; Python's client omits both closed and
// active entirely when active_only=False, which get() honors by dropping
// empty values.
func boolParam(activeOnly bool, value string) string {
	if !activeOnly {
		return ""
	}
	return value
}

// GetTrades fetches recent trades for a token and drops anything older
// than maxAgeSeconds (G1): the venue sometimes returns trades months old
// under a "recent" endpoint, and treating those as fresh would poison the
// event processor.
func (c *RESTClient) GetTrades(tokenID string, maxAgeSeconds int) ([]RawTrade, error) {
	var raw []map[string]interface{}
	if err := c.getWithRetryAfter("/trades", map[string]string{"market": tokenID}, &raw, c.clob); err != nil {
		return nil, fmt.Errorf("get trades: %w", err)
	}

	return filterFreshTrades(raw, tokenID, maxAgeSeconds, time.Now()), nil
}

// filterFreshTrades parses raw trade rows and drops anything older than
// maxAgeSeconds relative to now (G1). Split out from GetTrades so the
// freshness boundary can be tested without an HTTP round-trip.
func filterFreshTrades(raw []map[string]interface{}, fallbackTokenID string, maxAgeSeconds int, now time.Time) []RawTrade {
	out := make([]RawTrade, 0, len(raw))
	for _, item := range raw {
		t, ok := parseTrade(item, fallbackTokenID)
		if !ok {
			continue
		}
		if now.Sub(t.Timestamp).Seconds() > float64(maxAgeSeconds) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (c *RESTClient) getWithRetryAfter(path string, params map[string]string, result interface{}, http *resty.Client) error {
	for attempt := 0; attempt < 2; attempt++ {
		req := http.R().SetResult(result)
		for k, v := range params {
			if v != "" {
				req.SetQueryParam(k, v)
			}
		}
		resp, err := req.Get(path)
		if err != nil {
			return err
		}
		if resp.StatusCode() == 429 {
			wait := parseRetryAfter(resp.Header().Get("Retry-After"))
			log.Warn().Str("path", path).Dur("retry_after", wait).Msg("📡 rate limited, sleeping")
			time.Sleep(wait)
			continue
		}
		if resp.StatusCode() != 200 {
			return fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String())
		}
		return nil
	}
	return fmt.Errorf("exhausted retries against %s after repeated 429s", path)
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 2 * time.Second
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second
	}
	return 2 * time.Second
}

// parseMarket defensively extracts a RawMarket from the Gamma API's
// camelCase/snake_case mixed shape, where clobTokenIds/outcomes/outcomePrices
// arrive as JSON-encoded strings rather than native JSON arrays.
func parseMarket(data map[string]interface{}) (RawMarket, bool) {
	conditionID, _ := firstString(data, "conditionId", "condition_id")
	if conditionID == "" {
		return RawMarket{}, false
	}

	m := RawMarket{
		ConditionID: conditionID,
		Question:    stringField(data, "question"),
		Resolved:    boolField(data, "closed") || boolField(data, "resolved"),
	}
	if category, ok := firstString(data, "category", "groupItemTitle"); ok {
		m.Category = category
	}

	if end, ok := firstString(data, "endDate", "end_date_iso", "endDateIso"); ok && end != "" {
		if t, err := parseFlexibleTime(end); err == nil {
			m.EndTime = t
			m.HasEndTime = true
		}
	}

	tokenIDs := parseJSONStringArray(data, "clobTokenIds")
	outcomes := parseJSONStringArray(data, "outcomes")
	prices := parseJSONStringArray(data, "outcomePrices")
	for i, tokenID := range tokenIDs {
		token := RawToken{TokenID: tokenID, OutcomeIndex: i}
		if i < len(outcomes) {
			token.Outcome = outcomes[i]
		} else {
			token.Outcome = defaultOutcomeName(i)
		}
		m.Tokens = append(m.Tokens, token)
	}

	if len(prices) > 0 {
		if p, err := decimal.NewFromString(prices[0]); err == nil {
			m.Price = p
			m.HasPrice = true
		}
	}

	if bid, ok := decimalField(data, "bestBid"); ok {
		if ask, ok2 := decimalField(data, "bestAsk"); ok2 {
			m.BestBid, m.BestAsk = bid, ask
			m.HasSpread = true
		}
	}
	if v, ok := decimalField(data, "volume"); ok {
		m.VolumeTotal = v
	}
	if v, ok := decimalField(data, "volume24hr"); ok {
		m.Volume24h = v
	}
	if v, ok := decimalField(data, "liquidity"); ok {
		m.Liquidity = v
	}

	return m, true
}

func defaultOutcomeName(i int) string {
	switch i {
	case 0:
		return "Yes"
	case 1:
		return "No"
	default:
		return fmt.Sprintf("Outcome %d", i)
	}
}

func parseTrade(data map[string]interface{}, fallbackTokenID string) (RawTrade, bool) {
	id, ok := firstString(data, "id", "trade_id", "tradeId")
	if !ok {
		return RawTrade{}, false
	}
	ts, ok := parseTradeTimestamp(data["timestamp"])
	if !ok {
		return RawTrade{}, false
	}
	price, _ := decimalField(data, "price")
	size, _ := decimalField(data, "size")
	tokenID := fallbackTokenID
	if t, ok := firstString(data, "asset_id", "token_id"); ok {
		tokenID = t
	}
	side := stringField(data, "side")
	return RawTrade{
		TradeID:   id,
		TokenID:   tokenID,
		Price:     price,
		Size:      size,
		Side:      side,
		Timestamp: ts,
	}, true
}

// parseTradeTimestamp accepts epoch seconds, epoch milliseconds (the venue's
// actual format per test fixtures), or an RFC3339 string.
func parseTradeTimestamp(raw interface{}) (time.Time, bool) {
	switch v := raw.(type) {
	case float64:
		return normalizeEpoch(v), true
	case int64:
		return normalizeEpoch(float64(v)), true
	case string:
		if v == "" {
			return time.Time{}, false
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return normalizeEpoch(f), true
		}
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// normalizeEpoch accepts seconds or milliseconds and returns UTC seconds.
func normalizeEpoch(v float64) time.Time {
	if v > 1e12 { // milliseconds
		return time.UnixMilli(int64(v)).UTC()
	}
	return time.Unix(int64(v), 0).UTC()
}

func parseFlexibleTime(s string) (time.Time, error) {
	s = strings.TrimSuffix(s, "Z")
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized time format %q", s)
}

func parseJSONStringArray(data map[string]interface{}, key string) []string {
	raw, ok := data[key]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case string:
		var out []string
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil
		}
		return out
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func firstString(data map[string]interface{}, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := data[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

func stringField(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func boolField(data map[string]interface{}, key string) bool {
	v, ok := data[key].(bool)
	return ok && v
}

func decimalField(data map[string]interface{}, key string) (decimal.Decimal, bool) {
	raw, ok := data[key]
	if !ok {
		return decimal.Zero, false
	}
	switch v := raw.(type) {
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case float64:
		return decimal.NewFromFloat(v), true
	default:
		return decimal.Zero, false
	}
}
