package domain

import "time"

// PeerBank is a cached bank directory entry: the externally sourced fact of
// where another institution accepts transfers and publishes its keys.
type PeerBank struct {
	RoutingPrefix    string    `json:"routingPrefix"`
	Name             string    `json:"name"`
	TransferEndpoint string    `json:"transferEndpoint"`
	KeySetEndpoint   string    `json:"keySetEndpoint"`
	FetchedAt        time.Time `json:"fetchedAt,omitempty"`
}

// PeerAck is a peer institution's acknowledgment of an accepted transfer.
// Both fields are descriptive; the receiver name is the protocol's only
// authoritative write-back.
type PeerAck struct {
	ReceiverName  string `json:"receiverName"`
	TransactionID string `json:"transactionId"`
}
