package types

// Dataset is a set of entities exchanged in a single sync message.
type Dataset struct {
	Decks     []Deck     `json:"decks,omitempty"`
	Cards     []Card     `json:"cards,omitempty"`
	Playlists []Playlist `json:"playlists,omitempty"`
	Stats     []Stats    `json:"stats,omitempty"`
	// Manifest is the complete set of public ids of the sender. When present
	// receivers drop copies from the sender that are not listed.
	Manifest *Manifest `json:"manifest,omitempty"`
}

// Empty is true if dataset carries no entities.
func (d *Dataset) Empty() bool {
	return len(d.Decks) == 0 && len(d.Cards) == 0 && len(d.Playlists) == 0 && len(d.Stats) == 0
}

// Size is the total number of entities in the dataset.
func (d *Dataset) Size() int {
	return len(d.Decks) + len(d.Cards) + len(d.Playlists) + len(d.Stats)
}

// Manifest lists ids per entity kind.
type Manifest struct {
	Decks     []string `json:"decks"`
	Cards     []string `json:"cards"`
	Playlists []string `json:"playlists"`
}

// IDs returns ids of the given kind.
func (m *Manifest) IDs(kind EntityKind) []string {
	switch kind {
	case KindDeck:
		return m.Decks
	case KindCard:
		return m.Cards
	case KindPlaylist:
		return m.Playlists
	}
	return nil
}

// ManifestOf builds a manifest from the entities in the dataset.
func ManifestOf(d *Dataset) *Manifest {
	m := &Manifest{
		Decks:     make([]string, 0, len(d.Decks)),
		Cards:     make([]string, 0, len(d.Cards)),
		Playlists: make([]string, 0, len(d.Playlists)),
	}
	for _, deck := range d.Decks {
		m.Decks = append(m.Decks, deck.ID)
	}
	for _, card := range d.Cards {
		m.Cards = append(m.Cards, card.ID)
	}
	for _, playlist := range d.Playlists {
		m.Playlists = append(m.Playlists, playlist.ID)
	}
	return m
}
