// Package log builds zap loggers for cardmesh components.
package log

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Encoder defines a log encoder kind.
type Encoder = string

const (
	// ConsoleEncoder represents logging with plain text.
	ConsoleEncoder Encoder = "console"
	// JSONEncoder represents logging with JSON.
	JSONEncoder Encoder = "json"
)

const defaultLevel = zapcore.InfoLevel

// where logs go by default.
var logWriter io.Writer = os.Stdout

// LoggerConfig holds the logging level for each module.
type LoggerConfig struct {
	Encoder        Encoder `mapstructure:"log-encoder"`
	AppLevel       string  `mapstructure:"app"`
	P2PLevel       string  `mapstructure:"p2p"`
	BrokerLevel    string  `mapstructure:"broker"`
	SyncerLevel    string  `mapstructure:"syncer"`
	BookLevel      string  `mapstructure:"book"`
	LedgerLevel    string  `mapstructure:"ledger"`
	QueueLevel     string  `mapstructure:"queue"`
	DatastoreLevel string  `mapstructure:"datastore"`
	EventsLevel    string  `mapstructure:"events"`
}

// DefaultConfig returns config with every module at info level.
func DefaultConfig() LoggerConfig {
	return LoggerConfig{
		Encoder:        ConsoleEncoder,
		AppLevel:       defaultLevel.String(),
		P2PLevel:       defaultLevel.String(),
		BrokerLevel:    defaultLevel.String(),
		SyncerLevel:    defaultLevel.String(),
		BookLevel:      defaultLevel.String(),
		LedgerLevel:    defaultLevel.String(),
		QueueLevel:     defaultLevel.String(),
		DatastoreLevel: defaultLevel.String(),
		EventsLevel:    defaultLevel.String(),
	}
}

func (c *LoggerConfig) level(module string) string {
	switch module {
	case "app":
		return c.AppLevel
	case "p2p":
		return c.P2PLevel
	case "broker":
		return c.BrokerLevel
	case "syncer":
		return c.SyncerLevel
	case "book":
		return c.BookLevel
	case "ledger":
		return c.LedgerLevel
	case "queue":
		return c.QueueLevel
	case "datastore":
		return c.DatastoreLevel
	case "events":
		return c.EventsLevel
	}
	return ""
}

// New creates the root logger. The root logger passes every level, modules
// derived from it with Module apply their own level.
func New(cfg LoggerConfig, hooks ...func(zapcore.Entry) error) (*zap.Logger, error) {
	var encoder zapcore.Encoder
	switch cfg.Encoder {
	case JSONEncoder:
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	case ConsoleEncoder, "":
		encoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	default:
		return nil, fmt.Errorf("unknown log encoder %q", cfg.Encoder)
	}
	core := zapcore.NewCore(encoder, zapcore.AddSync(logWriter), zap.NewAtomicLevelAt(zapcore.DebugLevel))
	if len(hooks) > 0 {
		core = zapcore.RegisterHooks(core, hooks...)
	}
	return zap.New(core), nil
}

// Module returns a named logger with the level configured for the module.
// Unknown or empty level falls back to info.
func Module(root *zap.Logger, cfg LoggerConfig, module string) *zap.Logger {
	lvl := zap.NewAtomicLevelAt(defaultLevel)
	if raw := cfg.level(module); raw != "" {
		if err := lvl.UnmarshalText([]byte(raw)); err != nil {
			root.Warn("invalid log level", zap.String("module", module), zap.String("level", raw))
			lvl.SetLevel(defaultLevel)
		}
	}
	return root.Named(module).WithOptions(WithLevel(lvl))
}

// WithLevel is an option that overrides the level of the wrapped core.
func WithLevel(level zap.AtomicLevel) zap.Option {
	return zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return &coreWithLevel{
			Core: core,
			lvl:  level,
		}
	})
}

type coreWithLevel struct {
	zapcore.Core
	lvl zap.AtomicLevel
}

func (c *coreWithLevel) Enabled(level zapcore.Level) bool {
	return c.lvl.Enabled(level)
}

func (c *coreWithLevel) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.lvl.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

func (c *coreWithLevel) With(fields []zapcore.Field) zapcore.Core {
	return &coreWithLevel{Core: c.Core.With(fields), lvl: c.lvl}
}
