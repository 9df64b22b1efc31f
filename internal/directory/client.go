package directory

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/interbank/internal/domain"
	"github.com/iho/interbank/internal/infrastructure/metrics"
	"github.com/iho/interbank/internal/keys"
)

const cachePrefix = "bankdir:"

// negativeEntry marks a cached directory miss so repeated lookups for an
// unknown prefix do not hammer the directory.
var negativeEntry = []byte("!")

// Cache is the injected cache used for directory entries.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Config holds the directory client's settings.
type Config struct {
	// Self describes this institution, used both for registration and as
	// the final fallback when the directory is unreachable.
	Self domain.PeerBank
	// TTL bounds both positive and negative cache entries.
	TTL time.Duration
	// RegistrationFile is where the last accepted registration record is
	// persisted for degraded-mode self lookups.
	RegistrationFile string
	// KeyFetchTimeout bounds remote key set retrieval.
	KeyFetchTimeout time.Duration
}

// Client resolves routing prefixes to peer institutions and fetches their
// published verification keys.
type Client struct {
	backend    Backend
	cache      Cache
	httpClient *http.Client
	cfg        Config
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// NewClient creates a directory client over the given backend and cache.
func NewClient(backend Backend, cache Cache, cfg Config, m *metrics.Metrics, logger zerolog.Logger) *Client {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}

	if cfg.KeyFetchTimeout <= 0 {
		cfg.KeyFetchTimeout = 10 * time.Second
	}

	return &Client{
		backend:    backend,
		cache:      cache,
		httpClient: &http.Client{Timeout: cfg.KeyFetchTimeout},
		cfg:        cfg,
		metrics:    m,
		logger:     logger.With().Str("component", "directory").Logger(),
	}
}

// Resolve maps a routing prefix to a peer institution. force bypasses the
// cache for operator-triggered reconciliation.
func (c *Client) Resolve(ctx context.Context, prefix string, force bool) (*domain.PeerBank, error) {
	prefix = strings.ToUpper(prefix)
	key := cachePrefix + prefix

	if !force {
		if cached, err := c.cache.Get(ctx, key); err == nil {
			if string(cached) == string(negativeEntry) {
				c.recordLookup("cache_hit")
				return nil, domain.ErrPeerNotFound
			}

			var bank domain.PeerBank
			if err := json.Unmarshal(cached, &bank); err == nil {
				c.recordLookup("cache_hit")
				return &bank, nil
			}
		}
	}

	banks, err := c.backend.ListBanks(ctx)
	if err != nil {
		c.recordLookup("error")
		return c.resolveDegraded(prefix, err)
	}

	for _, bank := range banks {
		if strings.EqualFold(bank.RoutingPrefix, prefix) {
			bank.FetchedAt = time.Now().UTC()

			if encoded, err := json.Marshal(bank); err == nil {
				if err := c.cache.Set(ctx, key, encoded, c.cfg.TTL); err != nil {
					c.logger.Warn().Err(err).Str("prefix", prefix).Msg("failed to cache directory entry")
				}
			}

			c.recordLookup("resolved")

			return &bank, nil
		}
	}

	if err := c.cache.Set(ctx, key, negativeEntry, c.cfg.TTL); err != nil {
		c.logger.Warn().Err(err).Str("prefix", prefix).Msg("failed to cache negative entry")
	}

	c.recordLookup("miss")

	return nil, domain.ErrPeerNotFound
}

// resolveDegraded applies the fallback chain when the directory is down:
// persisted self-registration record, then the static self description, for
// the institution's own prefix only.
func (c *Client) resolveDegraded(prefix string, cause error) (*domain.PeerBank, error) {
	if !strings.EqualFold(prefix, c.cfg.Self.RoutingPrefix) {
		return nil, fmt.Errorf("%w: %v", domain.ErrDirectoryUnavailable, cause)
	}

	c.recordFallback()

	if rec, err := c.loadRegistrationRecord(); err == nil {
		c.logger.Warn().Str("prefix", prefix).Msg("directory unreachable, using persisted registration record")
		return rec, nil
	}

	c.logger.Warn().Str("prefix", prefix).Msg("directory unreachable, using self description")

	self := c.cfg.Self

	return &self, nil
}

// Invalidate drops the cached entry for a prefix. Called when signature
// verification fails, on suspicion of key rotation.
func (c *Client) Invalidate(ctx context.Context, prefix string) error {
	return c.cache.Delete(ctx, cachePrefix+strings.ToUpper(prefix))
}

// Register publishes this institution's record to the directory and
// persists the accepted record for degraded-mode lookups.
func (c *Client) Register(ctx context.Context) error {
	registered, err := c.backend.Register(ctx, c.cfg.Self)
	if err != nil {
		return err
	}

	if c.cfg.RegistrationFile != "" {
		if err := c.persistRegistrationRecord(&registered); err != nil {
			c.logger.Warn().Err(err).Msg("failed to persist registration record")
		}
	}

	c.logger.Info().Str("prefix", registered.RoutingPrefix).Msg("registered with bank directory")

	return nil
}

// FetchPeerKey retrieves a peer's published key set and selects the key
// with the given identifier.
func (c *Client) FetchPeerKey(ctx context.Context, keySetURL, kid string) (*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, keySetURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordKeyFetch("error")
		return nil, fmt.Errorf("%w: %v", domain.ErrDirectoryUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.recordKeyFetch("error")
		return nil, fmt.Errorf("%w: key set fetch status %d", domain.ErrDirectoryUnavailable, resp.StatusCode)
	}

	var set keys.KeySet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		c.recordKeyFetch("error")
		return nil, fmt.Errorf("failed to parse key set: %w", err)
	}

	jwk, ok := set.ByID(kid)
	if !ok {
		c.recordKeyFetch("miss")
		return nil, domain.ErrKeyNotFound
	}

	c.recordKeyFetch("success")

	return keys.PublicKeyFromJWK(jwk)
}

func (c *Client) recordLookup(outcome string) {
	if c.metrics != nil {
		c.metrics.DirectoryLookups.WithLabelValues(outcome).Inc()
	}
}

func (c *Client) recordFallback() {
	if c.metrics != nil {
		c.metrics.DirectoryFallbacks.Inc()
	}
}

func (c *Client) recordKeyFetch(outcome string) {
	if c.metrics != nil {
		c.metrics.PeerKeyFetches.WithLabelValues(outcome).Inc()
	}
}

func (c *Client) loadRegistrationRecord() (*domain.PeerBank, error) {
	if c.cfg.RegistrationFile == "" {
		return nil, errors.New("no registration file configured")
	}

	data, err := os.ReadFile(c.cfg.RegistrationFile)
	if err != nil {
		return nil, err
	}

	var rec domain.PeerBank
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}

	return &rec, nil
}

func (c *Client) persistRegistrationRecord(rec *domain.PeerBank) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	return os.WriteFile(c.cfg.RegistrationFile, data, 0o644)
}
