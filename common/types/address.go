package types

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Address is an opaque, globally unique identifier of a reachable endpoint.
// It is generated once per local account and reused across sessions.
type Address string

// String implements fmt.Stringer.
func (a Address) String() string {
	return string(a)
}

// ShortString returns the first 8 characters of the address, for logging purposes.
func (a Address) ShortString() string {
	return Shorten(string(a), 8)
}

// Field returns a log field.
func (a Address) Field() zap.Field { return zap.String("peer", a.ShortString()) }

// Empty is true if address is not set.
func (a Address) Empty() bool {
	return len(a) == 0
}

// AccountID identifies a local account. It is independent from the address
// of the installation that operates the account.
type AccountID string

// String implements fmt.Stringer.
func (id AccountID) String() string {
	return string(id)
}

// NewID returns a collision resistant identifier for entities and operations.
func NewID() string {
	return uuid.NewString()
}

// Shorten shortens a string to a specified length.
func Shorten(s string, l int) string {
	if len(s) > l {
		return s[:l]
	}
	return s
}

// Identity is the self-reported identity attached to handshakes and messages.
// It is not authenticated in any way.
type Identity struct {
	Address     Address   `json:"address,omitempty"`
	AccountID   AccountID `json:"accountId,omitempty"`
	DisplayName string    `json:"displayName,omitempty"`
	Avatar      []byte    `json:"avatar,omitempty"`
}

// MarshalLogObject implements logging encoder for Identity.
func (i *Identity) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddString("address", i.Address.ShortString())
	encoder.AddString("account", i.AccountID.String())
	encoder.AddString("name", i.DisplayName)
	return nil
}
