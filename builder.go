package conduit

import (
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Builder configures a Manager before initialization.
// Use NewBuilder() to create a builder and chain configuration methods.
type Builder struct {
	store    Store
	cfg      Config
	opts     []Option
	log      *slog.Logger
	handler  NetworkHandler
	registry prometheus.Registerer
}

// NewBuilder creates a new builder with the default config.
func NewBuilder() *Builder {
	return &Builder{cfg: DefaultConfig()}
}

// Store sets the entity store. If unset, an empty MemStore is used.
func (b *Builder) Store(s Store) *Builder {
	b.store = s
	return b
}

// Config replaces the config.
func (b *Builder) Config(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// Options applies options on top of the config.
//
// Example:
//
//	conduit.NewBuilder().Options(conduit.WithTolerance(0.05))
func (b *Builder) Options(opts ...Option) *Builder {
	b.opts = append(b.opts, opts...)
	return b
}

// Logger sets the logger. Defaults to slog.Default().
func (b *Builder) Logger(l *slog.Logger) *Builder {
	b.log = l
	return b
}

// Handler sets the network lifecycle handler.
func (b *Builder) Handler(h NetworkHandler) *Builder {
	b.handler = h
	return b
}

// Metrics registers the engine's Prometheus collectors with reg.
func (b *Builder) Metrics(reg prometheus.Registerer) *Builder {
	b.registry = reg
	return b
}

// Build creates the Manager without starting its scheduler. Use it when the
// host calls Manager.Tick from its own loop.
func (b *Builder) Build() (*Manager, error) {
	cfg := b.cfg
	for _, opt := range b.opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := b.log
	if log == nil {
		log = slog.Default()
	}
	h := b.handler
	if h == nil {
		h = NopHandler{}
	}
	s := b.store
	if s == nil {
		s = NewMemStore(cfg.CellSize)
	}

	var m *Metrics
	if b.registry != nil {
		var err error
		if m, err = NewMetrics(b.registry); err != nil {
			return nil, errors.Join(errors.New("conduit: register metrics"), err)
		}
	}
	return newManager(s, cfg, log, h, m), nil
}

// Init builds the Manager and starts its scheduler.
// It panics if the configuration is invalid.
func (b *Builder) Init() *Manager {
	m, err := b.Build()
	if err != nil {
		panic("conduit: failed to build manager: " + err.Error())
	}
	m.Start()
	return m
}
