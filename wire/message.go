// Package wire defines messages exchanged between peers.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cardmesh/go-cardmesh/codec"
	"github.com/cardmesh/go-cardmesh/common/types"
)

var (
	// ErrUnknownType is returned for messages with a type this node doesn't handle.
	ErrUnknownType = errors.New("unknown message type")
	// ErrMalformed is returned when the payload doesn't match the schema of its type.
	ErrMalformed = errors.New("malformed message")
)

// Type of the message.
type Type string

const (
	TypeSyncRequest    Type = "sync-request"
	TypeSyncResponse   Type = "sync-response"
	TypeDeckUpdate     Type = "deck-update"
	TypeCardUpdate     Type = "card-update"
	TypePlaylistUpdate Type = "playlist-update"
	TypeDeckDelete     Type = "deck-delete"
	TypeCardDelete     Type = "card-delete"
	TypePlaylistDelete Type = "playlist-delete"
	TypeProfileUpdate  Type = "profile-update"
	TypeStatsUpdate    Type = "stats-update"
	TypePeerRemoved    Type = "peer-removed"
)

// UpdateType returns the update message type for the entity kind.
func UpdateType(kind types.EntityKind) Type {
	return Type(string(kind) + "-update")
}

// DeleteType returns the delete message type for the entity kind.
func DeleteType(kind types.EntityKind) Type {
	return Type(string(kind) + "-delete")
}

// Kind returns entity kind for update and delete types, empty otherwise.
func (t Type) Kind() types.EntityKind {
	switch t {
	case TypeDeckUpdate, TypeDeckDelete:
		return types.KindDeck
	case TypeCardUpdate, TypeCardDelete:
		return types.KindCard
	case TypePlaylistUpdate, TypePlaylistDelete:
		return types.KindPlaylist
	}
	return ""
}

// Message is an envelope for every payload.
// Messages on a single connection are delivered in send order.
type Message struct {
	Type      Type            `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp types.Timestamp `json:"timestamp"`
}

// Payload is a decoded message body.
type Payload interface {
	Sender() types.Identity
}

// New encodes payload into a message of type t.
func New(t Type, payload Payload, ts types.Timestamp) (Message, error) {
	if _, exist := schemas[t]; !exist {
		return Message{}, fmt.Errorf("%w: %s", ErrUnknownType, t)
	}
	data, err := codec.Encode(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s: %w", t, err)
	}
	return Message{Type: t, Data: data, Timestamp: ts}, nil
}

// Decode validates data against the schema of the message type and returns
// the concrete payload.
func (m *Message) Decode() (Payload, error) {
	sch, exist := schemas[m.Type]
	if !exist {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, m.Type)
	}
	var raw any
	if err := json.Unmarshal(m.Data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformed, m.Type, err)
	}
	if err := sch.Validate(raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformed, m.Type, err)
	}
	var payload Payload
	switch m.Type {
	case TypeSyncRequest:
		payload = &SyncRequest{}
	case TypeSyncResponse:
		payload = &SyncResponse{}
	case TypeDeckUpdate:
		payload = &DeckUpdate{}
	case TypeCardUpdate:
		payload = &CardUpdate{}
	case TypePlaylistUpdate:
		payload = &PlaylistUpdate{}
	case TypeDeckDelete, TypeCardDelete, TypePlaylistDelete:
		payload = &Delete{Kind: m.Type.Kind()}
	case TypeProfileUpdate:
		payload = &ProfileUpdate{}
	case TypeStatsUpdate:
		payload = &StatsUpdate{}
	case TypePeerRemoved:
		payload = &PeerRemoved{}
	}
	if err := codec.Decode(m.Data, payload); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformed, m.Type, err)
	}
	return payload, nil
}

// SyncRequest asks the receiver for its public dataset. The sender may attach its own.
type SyncRequest struct {
	From types.Identity `json:"from"`
	// RequestID is echoed in the response.
	RequestID string         `json:"requestId,omitempty"`
	Dataset   *types.Dataset `json:"dataset,omitempty"`
}

func (r *SyncRequest) Sender() types.Identity { return r.From }

// SyncResponse carries the public dataset of the sender. Pushed changes are sent
// without a request id.
type SyncResponse struct {
	From      types.Identity `json:"from"`
	RequestID string         `json:"requestId,omitempty"`
	Dataset   types.Dataset  `json:"dataset"`
}

func (r *SyncResponse) Sender() types.Identity { return r.From }

// DeckUpdate carries a created or updated deck. A private deck is a retraction.
type DeckUpdate struct {
	From types.Identity `json:"from"`
	Deck types.Deck     `json:"deck"`
}

func (u *DeckUpdate) Sender() types.Identity { return u.From }

// CardUpdate carries a created or updated card. A private card is a retraction.
type CardUpdate struct {
	From types.Identity `json:"from"`
	Card types.Card     `json:"card"`
}

func (u *CardUpdate) Sender() types.Identity { return u.From }

// PlaylistUpdate carries a created or updated playlist. A private playlist is a retraction.
type PlaylistUpdate struct {
	From     types.Identity `json:"from"`
	Playlist types.Playlist `json:"playlist"`
}

func (u *PlaylistUpdate) Sender() types.Identity { return u.From }

// Delete is a tombstone for a single entity.
type Delete struct {
	From types.Identity   `json:"from"`
	Kind types.EntityKind `json:"-"`
	ID   string           `json:"id"`
}

func (d *Delete) Sender() types.Identity { return d.From }

// ProfileUpdate carries display name and avatar of the sender account.
type ProfileUpdate struct {
	From types.Identity `json:"from"`
}

func (u *ProfileUpdate) Sender() types.Identity { return u.From }

// StatsUpdate carries usage stats of the sender for a shared deck.
type StatsUpdate struct {
	From  types.Identity `json:"from"`
	Stats types.Stats    `json:"stats"`
}

func (u *StatsUpdate) Sender() types.Identity { return u.From }

// PeerRemoved notifies the receiver that the sender removed it from its peers.
type PeerRemoved struct {
	From    types.Identity `json:"from"`
	Removed types.Address  `json:"removed"`
}

func (r *PeerRemoved) Sender() types.Identity { return r.From }
