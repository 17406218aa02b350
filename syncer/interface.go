package syncer

import (
	"github.com/cardmesh/go-cardmesh/common/types"
	"github.com/cardmesh/go-cardmesh/events"
)

//go:generate mockgen -typed -package=syncer -destination=./mocks.go -source=./interface.go

// Reporter delivers events to the UI.
type Reporter interface {
	EntityChanged(kind types.EntityKind, id string, op events.Op, origin types.Address)
	StatsChanged(key types.StatsKey)
	PeerChanged(addr types.Address, status types.ConnectionStatus)
	Notify(level events.Level, format string, args ...any)
	RequestApproval(req events.Request)
	Alert(format string, args ...any) (events.Alert, error)
	SetNotifications(level types.NotificationLevel)
}
