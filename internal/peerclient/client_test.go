package peerclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/interbank/internal/domain"
)

func TestSendTransferSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "signed-token", body["jwt"])

		json.NewEncoder(w).Encode(map[string]string{"receiverName": "Bob", "transactionId": "abc"})
	}))
	defer srv.Close()

	client := NewClient(5*time.Second, zerolog.Nop())

	result, err := client.SendTransfer(context.Background(), srv.URL, "signed-token")
	require.NoError(t, err)
	assert.Equal(t, "Bob", result.ReceiverName)
}

func TestSendTransferPeerRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"unknown account","code":"not_found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(5*time.Second, zerolog.Nop())

	_, err := client.SendTransfer(context.Background(), srv.URL, "signed-token")
	require.ErrorIs(t, err, domain.ErrPeerTransport)
	assert.True(t, strings.Contains(err.Error(), "unknown account"), "diagnostic body should be captured: %v", err)
}

func TestSendTransferTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(50*time.Millisecond, zerolog.Nop())

	_, err := client.SendTransfer(context.Background(), srv.URL, "signed-token")
	assert.ErrorIs(t, err, domain.ErrPeerTransport)
}

func TestSendTransferEmptyAckBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(5*time.Second, zerolog.Nop())

	result, err := client.SendTransfer(context.Background(), srv.URL, "signed-token")
	require.NoError(t, err)
	assert.Empty(t, result.ReceiverName)
}
