package types

// Stats are usage statistics of one account for one deck.
type Stats struct {
	AccountID     AccountID `json:"accountId"`
	DeckID        string    `json:"deckId"`
	PracticeCount int       `json:"practiceCount"`
	BestScore     int       `json:"bestScore"`
	LastStudiedAt Timestamp `json:"lastStudiedAt,omitempty"`
	UpdatedAt     Timestamp `json:"updatedAt,omitempty"`
}

// Key returns the (account, deck) pair that identifies stats.
func (s Stats) Key() StatsKey {
	return StatsKey{AccountID: s.AccountID, DeckID: s.DeckID}
}

// Supersedes is true if s carries progress that local does not have.
func (s Stats) Supersedes(local Stats) bool {
	return s.PracticeCount > local.PracticeCount ||
		s.BestScore > local.BestScore ||
		s.LastStudiedAt.After(local.LastStudiedAt)
}

// StatsKey identifies stats record.
type StatsKey struct {
	AccountID AccountID
	DeckID    string
}
