package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/iho/interbank/internal/domain"
)

// Backend is the source of bank directory records. Selected at construction:
// HTTPBackend for the live directory, StaticBackend as a fixture.
type Backend interface {
	ListBanks(ctx context.Context) ([]domain.PeerBank, error)
	Register(ctx context.Context, bank domain.PeerBank) (domain.PeerBank, error)
}

// HTTPBackend talks to the external bank directory over HTTP. Reads are
// unauthenticated; registration carries the API credential header.
type HTTPBackend struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPBackend creates a backend for the directory at baseURL.
func NewHTTPBackend(baseURL, apiKey string, timeout time.Duration) *HTTPBackend {
	return &HTTPBackend{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ListBanks fetches the full directory listing, retrying transient failures
// with exponential backoff.
func (b *HTTPBackend) ListBanks(ctx context.Context) ([]domain.PeerBank, error) {
	var banks []domain.PeerBank

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/banks", nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := b.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("directory returned status %d", resp.StatusCode)
			if resp.StatusCode >= 500 {
				return err
			}

			return backoff.Permanent(err)
		}

		return json.NewDecoder(resp.Body).Decode(&banks)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxElapsedTime = 3 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDirectoryUnavailable, err)
	}

	return banks, nil
}

// Register publishes this institution's own record to the directory.
func (b *HTTPBackend) Register(ctx context.Context, bank domain.PeerBank) (domain.PeerBank, error) {
	body, err := json.Marshal(bank)
	if err != nil {
		return domain.PeerBank{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/banks", bytes.NewReader(body))
	if err != nil {
		return domain.PeerBank{}, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", b.apiKey)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return domain.PeerBank{}, fmt.Errorf("%w: %v", domain.ErrDirectoryUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		diag, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.PeerBank{}, fmt.Errorf("%w: registration status %d: %s", domain.ErrDirectoryUnavailable, resp.StatusCode, diag)
	}

	registered := bank
	if err := json.NewDecoder(resp.Body).Decode(&registered); err != nil && err != io.EOF {
		return domain.PeerBank{}, err
	}

	return registered, nil
}

// StaticBackend serves a fixed set of directory records.
type StaticBackend struct {
	banks []domain.PeerBank
}

// NewStaticBackend creates a fixture backend.
func NewStaticBackend(banks ...domain.PeerBank) *StaticBackend {
	return &StaticBackend{banks: banks}
}

// ListBanks returns the fixture records.
func (b *StaticBackend) ListBanks(_ context.Context) ([]domain.PeerBank, error) {
	return b.banks, nil
}

// Register appends the record to the fixture set.
func (b *StaticBackend) Register(_ context.Context, bank domain.PeerBank) (domain.PeerBank, error) {
	b.banks = append(b.banks, bank)
	return bank, nil
}
