package peerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/interbank/internal/domain"
)

// Client dispatches signed settlement tokens to peer institutions. Every
// call carries a bounded timeout so a transfer is never parked in flight
// indefinitely.
type Client struct {
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a peer gateway client.
func NewClient(timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "peerclient").Logger(),
	}
}

// SendTransfer posts the signed token to the peer's transfer endpoint. Any
// 2xx is acceptance; anything else is ErrPeerTransport with the response
// body as diagnostic text.
func (c *Client) SendTransfer(ctx context.Context, endpoint, token string) (*domain.PeerAck, error) {
	body, err := json.Marshal(map[string]string{"jwt": token})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPeerTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		diag, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

		c.logger.Warn().Int("status", resp.StatusCode).Str("endpoint", endpoint).Msg("peer rejected transfer")

		return nil, fmt.Errorf("%w: peer status %d: %s", domain.ErrPeerTransport, resp.StatusCode, diag)
	}

	ack := &domain.PeerAck{}
	if err := json.NewDecoder(resp.Body).Decode(ack); err != nil && err != io.EOF {
		// Acceptance without a parseable body still settles; the
		// counterparty name is descriptive only.
		c.logger.Warn().Err(err).Msg("peer acknowledgment body unreadable")
	}

	return ack, nil
}
