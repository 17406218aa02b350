// Package events delivers typed change notifications, human readable
// notifications, approval prompts and persistent alerts to the UI.
package events

import (
	"go.uber.org/zap/zapcore"

	"github.com/cardmesh/go-cardmesh/common/types"
)

// Op is a change applied to a stored entity.
type Op string

const (
	OpSaved   Op = "saved"
	OpDeleted Op = "deleted"
)

// EntityChanged is emitted whenever a synced entity changes locally.
type EntityChanged struct {
	Kind types.EntityKind
	ID   string
	Op   Op
	// Origin is the peer that caused the change, empty for local changes.
	Origin types.Address
}

// StatsChanged is emitted when remote stats were merged.
type StatsChanged struct {
	Key types.StatsKey
}

// PeerChanged is emitted on every connection status transition.
type PeerChanged struct {
	Address types.Address
	Status  types.ConnectionStatus
}

// Level is a severity of the notification.
type Level string

const (
	LevelInfo      Level = "info"
	LevelImportant Level = "important"
	LevelError     Level = "error"
)

// Notification is a toast style status message.
type Notification struct {
	Level Level
	Text  string
	Time  types.Timestamp
}

func (n *Notification) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddString("level", string(n.Level))
	encoder.AddString("text", n.Text)
	return nil
}

// RequestKind distinguishes approval prompts.
type RequestKind string

const (
	// RequestApproval asks whether to accept a connection from an unknown peer.
	RequestApproval RequestKind = "approval"
	// RequestSameIdentity asks whether a peer using the local display name is
	// another installation of the same user, or a different person.
	RequestSameIdentity RequestKind = "same-identity"
)

// Request is a pending decision. It is resolved by id through the orchestrator.
type Request struct {
	ID        string
	Kind      RequestKind
	Peer      types.Identity
	CreatedAt types.Timestamp
}

func (r *Request) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddString("id", r.ID)
	encoder.AddString("kind", string(r.Kind))
	encoder.AddString("peer", r.Peer.Address.ShortString())
	encoder.AddString("name", r.Peer.DisplayName)
	return nil
}

// ApprovalRequested is emitted when a decision is required.
type ApprovalRequested struct {
	Request Request
}

// Alert reports data divergence between peers. Alerts are persisted until acknowledged.
type Alert struct {
	ID   string          `json:"id"`
	Text string          `json:"text"`
	Time types.Timestamp `json:"time"`
}
