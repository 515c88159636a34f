package server

import (
	"context"
	"fmt"
)

// Pinger is a dependency that can report its own reachability.
// Implementations must be safe to call from multiple goroutines.
type Pinger interface {
	// Ping returns nil when the dependency is reachable.
	Ping(ctx context.Context) error
	// Name labels the dependency in readiness responses.
	Name() string
}

// pingTarget is anything with a Ping method: the native chat client, the
// records and history stores, the Qdrant mirror.
type pingTarget interface {
	Ping(ctx context.Context) error
}

type namedPinger struct {
	name   string
	target pingTarget
}

// NewPinger labels target for readiness probes.
func NewPinger(name string, target pingTarget) Pinger {
	return &namedPinger{name: name, target: target}
}

func (p *namedPinger) Name() string { return p.name }

func (p *namedPinger) Ping(ctx context.Context) error {
	if err := p.target.Ping(ctx); err != nil {
		return fmt.Errorf("%s: %w", p.name, err)
	}
	return nil
}

// PingFunc adapts a function to Pinger.
type PingFunc struct {
	Label string
	Fn    func(ctx context.Context) error
}

func (f PingFunc) Name() string                   { return f.Label }
func (f PingFunc) Ping(ctx context.Context) error { return f.Fn(ctx) }
