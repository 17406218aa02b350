package types

import "time"

// SyncFrequency controls when local changes are pushed to peers.
type SyncFrequency string

const (
	// SyncAlways pushes every change as soon as it is broadcast.
	SyncAlways SyncFrequency = "always"
	// SyncInterval pushes changed entities on a periodic tick.
	SyncInterval SyncFrequency = "interval"
	// SyncManual pushes changed entities only when requested.
	SyncManual SyncFrequency = "manual"
)

// NotificationLevel is a severity of a human readable notification.
type NotificationLevel string

const (
	NotifyAll       NotificationLevel = "all"
	NotifyImportant NotificationLevel = "important"
	NotifyNone      NotificationLevel = "none"
)

// Settings are user controlled sync settings.
type Settings struct {
	Frequency         SyncFrequency     `mapstructure:"frequency"`
	Interval          time.Duration     `mapstructure:"interval"`
	AutoSyncOnConnect bool              `mapstructure:"auto-sync-on-connect"`
	Notifications     NotificationLevel `mapstructure:"notifications"`
}

// DefaultSettings returns settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Frequency:         SyncAlways,
		Interval:          5 * time.Minute,
		AutoSyncOnConnect: true,
		Notifications:     NotifyImportant,
	}
}
