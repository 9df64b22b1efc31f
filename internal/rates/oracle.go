package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/interbank/internal/domain"
	"github.com/iho/interbank/internal/infrastructure/metrics"
)

const (
	cacheKeyPrefix = "rate:"
	// minorUnitPlaces is the ledger's fixed-point precision.
	minorUnitPlaces = 2
)

// Source fetches a live conversion rate for a currency pair.
type Source interface {
	Fetch(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// HTTPSource queries an external rate service over HTTP.
type HTTPSource struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPSource creates a rate source for the service at baseURL.
func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Fetch retrieves the rate for from→to.
func (s *HTTPSource) Fetch(ctx context.Context, from, to string) (decimal.Decimal, error) {
	u := fmt.Sprintf("%s?from=%s&to=%s", s.baseURL, url.QueryEscape(from), url.QueryEscape(to))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return decimal.Zero, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("rate source returned status %d", resp.StatusCode)
	}

	var body struct {
		Rate decimal.Decimal `json:"rate"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, err
	}

	if body.Rate.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("rate source returned non-positive rate %s", body.Rate)
	}

	return body.Rate, nil
}

// Cache is the injected cache for live rates.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Oracle adapts the external rate source with caching and a static
// last-resort table.
type Oracle struct {
	source  Source
	cache   Cache
	ttl     time.Duration
	static  map[string]decimal.Decimal
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewOracle creates a rate oracle. static holds last-resort rates keyed
// "FROM:TO"; the reciprocal of a reverse entry is used when the direct
// entry is absent.
func NewOracle(source Source, cache Cache, ttl time.Duration, static map[string]decimal.Decimal, m *metrics.Metrics, logger zerolog.Logger) *Oracle {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	normalized := make(map[string]decimal.Decimal, len(static))
	for k, v := range static {
		normalized[strings.ToUpper(k)] = v
	}

	return &Oracle{
		source:  source,
		cache:   cache,
		ttl:     ttl,
		static:  normalized,
		metrics: m,
		logger:  logger.With().Str("component", "rates").Logger(),
	}
}

// Rate returns the conversion rate from→to. Identity pairs are 1; live
// rates are cached per ordered pair; on live failure the static table is
// consulted, inverting the reverse entry if needed.
func (o *Oracle) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)

	if from == to {
		return decimal.NewFromInt(1), nil
	}

	key := cacheKeyPrefix + from + ":" + to

	if cached, err := o.cache.Get(ctx, key); err == nil {
		if rate, err := decimal.NewFromString(string(cached)); err == nil {
			o.recordLookup("cache")
			return rate, nil
		}
	}

	// Without a live source the static table is the only authority.
	if o.source != nil {
		rate, err := o.source.Fetch(ctx, from, to)
		if err == nil {
			if cacheErr := o.cache.Set(ctx, key, []byte(rate.String()), o.ttl); cacheErr != nil {
				o.logger.Warn().Err(cacheErr).Msg("failed to cache rate")
			}

			o.recordLookup("live")

			return rate, nil
		}

		o.logger.Warn().Err(err).Str("from", from).Str("to", to).Msg("live rate source failed, trying static table")
	}

	if rate, ok := o.static[from+":"+to]; ok {
		o.recordLookup("static")
		return rate, nil
	}

	if reverse, ok := o.static[to+":"+from]; ok && !reverse.IsZero() {
		o.recordLookup("static")
		return decimal.NewFromInt(1).Div(reverse), nil
	}

	return decimal.Zero, fmt.Errorf("%w: %s/%s", domain.ErrUnsupportedPair, from, to)
}

// Convert returns amount converted from→to, rounded to the ledger's minor
// unit with round-half-away-from-zero, along with the rate used.
func (o *Oracle) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, decimal.Decimal, error) {
	rate, err := o.Rate(ctx, from, to)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	return amount.Mul(rate).Round(minorUnitPlaces), rate, nil
}

func (o *Oracle) recordLookup(source string) {
	if o.metrics != nil {
		o.metrics.RateLookups.WithLabelValues(source).Inc()
	}
}
