package types

import (
	"slices"

	"go.uber.org/zap/zapcore"
)

// Visibility gates whether an entity is ever transmitted to or merged from peers.
type Visibility string

const (
	Public  Visibility = "public"
	Private Visibility = "private"
)

// EntityKind is a kind of syncable entity.
type EntityKind string

const (
	KindDeck     EntityKind = "deck"
	KindCard     EntityKind = "card"
	KindPlaylist EntityKind = "playlist"
)

// Kinds lists all syncable entity kinds in dependency order.
var Kinds = []EntityKind{KindDeck, KindCard, KindPlaylist}

// Meta is the part of the entity that synchronization cares about.
type Meta struct {
	ID            string      `json:"id"`
	OwnerID       AccountID   `json:"ownerId"`
	Visibility    Visibility  `json:"visibility"`
	CreatedAt     Timestamp   `json:"createdAt"`
	UpdatedAt     Timestamp   `json:"updatedAt,omitempty"`
	Origin        Address     `json:"originPeerAddress,omitempty"`
	Collaborators []AccountID `json:"collaborators,omitempty"`
}

// IsPublic is true if the entity may cross the wire.
func (m Meta) IsPublic() bool {
	return m.Visibility == Public
}

// Modified returns UpdatedAt, or CreatedAt if the entity was never updated.
func (m Meta) Modified() Timestamp {
	if m.UpdatedAt.IsZero() {
		return m.CreatedAt
	}
	return m.UpdatedAt
}

// HasCollaborator is true if account is registered as collaborator on the entity.
func (m Meta) HasCollaborator(account AccountID) bool {
	return slices.Contains(m.Collaborators, account)
}

// MarshalLogObject implements logging encoder for Meta.
func (m Meta) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddString("id", m.ID)
	encoder.AddString("owner", m.OwnerID.String())
	encoder.AddString("visibility", string(m.Visibility))
	encoder.AddInt64("modified", int64(m.Modified()))
	if !m.Origin.Empty() {
		encoder.AddString("origin", m.Origin.ShortString())
	}
	return nil
}

// Entity is implemented by the three syncable kinds.
type Entity[T any] interface {
	Deck | Card | Playlist
	Header() Meta
	// WithOrigin returns a copy tagged with the address it was received from.
	WithOrigin(Address) T
	// Title is empty for kinds without a title.
	Title() string
	// WithTitle returns a copy with the title replaced. Noop for kinds without a title.
	WithTitle(string) T
	// Redacted returns a copy without content, used to retract the entity from peers.
	Redacted() T
	Kind() EntityKind
}

// Deck is a collection of cards.
type Deck struct {
	Meta
	Name        string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	CreatorName string   `json:"creatorName,omitempty"`
}

func (d Deck) Header() Meta { return d.Meta }

func (d Deck) WithOrigin(a Address) Deck {
	d.Origin = a
	return d
}

func (d Deck) Title() string { return d.Name }

func (d Deck) WithTitle(title string) Deck {
	d.Name = title
	return d
}

func (d Deck) Redacted() Deck { return Deck{Meta: d.Meta} }

func (Deck) Kind() EntityKind { return KindDeck }

// Card belongs to exactly one deck. Image may carry a large embedded payload.
type Card struct {
	Meta
	DeckID string `json:"deckId"`
	Front  string `json:"front"`
	Back   string `json:"back"`
	Image  []byte `json:"image,omitempty"`
}

func (c Card) Header() Meta { return c.Meta }

func (c Card) WithOrigin(a Address) Card {
	c.Origin = a
	return c
}

func (Card) Title() string { return "" }

func (c Card) WithTitle(string) Card { return c }

func (c Card) Redacted() Card { return Card{Meta: c.Meta, DeckID: c.DeckID} }

func (Card) Kind() EntityKind { return KindCard }

// Playlist is an ordered selection of decks.
type Playlist struct {
	Meta
	Name    string   `json:"title"`
	DeckIDs []string `json:"deckIds,omitempty"`
}

func (p Playlist) Header() Meta { return p.Meta }

func (p Playlist) WithOrigin(a Address) Playlist {
	p.Origin = a
	return p
}

func (p Playlist) Title() string { return p.Name }

func (p Playlist) WithTitle(title string) Playlist {
	p.Name = title
	return p
}

func (p Playlist) Redacted() Playlist { return Playlist{Meta: p.Meta} }

func (Playlist) Kind() EntityKind { return KindPlaylist }
