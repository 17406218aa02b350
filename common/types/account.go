package types

import "go.uber.org/zap/zapcore"

// Account is the local account document. The peer directory and the stable
// local address are persisted as part of it.
type Account struct {
	ID          AccountID    `json:"id"`
	DisplayName string       `json:"displayName"`
	Avatar      []byte       `json:"avatar,omitempty"`
	Address     Address      `json:"peerAddress,omitempty"`
	Peers       []PeerRecord `json:"knownPeers,omitempty"`
}

// Identity returns identity attached to outgoing messages.
func (a *Account) Identity() Identity {
	return Identity{
		Address:     a.Address,
		AccountID:   a.ID,
		DisplayName: a.DisplayName,
		Avatar:      a.Avatar,
	}
}

// ConnectionStatus of a remote peer.
type ConnectionStatus string

const (
	Disconnected ConnectionStatus = "disconnected"
	Connecting   ConnectionStatus = "connecting"
	Connected    ConnectionStatus = "connected"
	Error        ConnectionStatus = "error"
)

// PeerRecord is an entry of the peer directory.
type PeerRecord struct {
	Address         Address          `json:"address,omitempty"`
	LinkedAccountID AccountID        `json:"linkedAccountId,omitempty"`
	DisplayName     string           `json:"displayName,omitempty"`
	Avatar          []byte           `json:"avatar,omitempty"`
	Status          ConnectionStatus `json:"connectionStatus"`
	LastConnectedAt Timestamp        `json:"lastConnectedAt,omitempty"`
}

// Name returns a human readable name of the peer.
func (r *PeerRecord) Name() string {
	if r.DisplayName != "" {
		return r.DisplayName
	}
	if !r.Address.Empty() {
		return r.Address.ShortString()
	}
	return r.LinkedAccountID.String()
}

// MarshalLogObject implements logging encoder for PeerRecord.
func (r *PeerRecord) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddString("address", r.Address.ShortString())
	encoder.AddString("account", r.LinkedAccountID.String())
	encoder.AddString("name", r.DisplayName)
	encoder.AddString("status", string(r.Status))
	return nil
}
