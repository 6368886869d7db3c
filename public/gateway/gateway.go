// Package gateway is the embeddable public facade over the parameter
// gateway: load a configuration, open a transport, and run the gateway
// in the caller's own process instead of via cmd/paramgw.
//
// A small public wrapper type exposes Init/Run/Shutdown over
// internal/service.Service for callers that want to host the gateway
// inside a larger process instead of launching it as a standalone
// binary.
package gateway

import (
	"context"

	"github.com/tenzoki/agen/paramgw/internal/config"
	"github.com/tenzoki/agen/paramgw/internal/parambus"
	"github.com/tenzoki/agen/paramgw/internal/service"
	"github.com/tenzoki/agen/paramgw/internal/uplink"
)

// Gateway is the embeddable entry point: construct with New, Init once,
// then Run (blocks until ctx is cancelled) and Shutdown.
type Gateway struct {
	svc *service.Service
}

// New constructs an unwired Gateway.
func New() *Gateway {
	return &Gateway{svc: service.New()}
}

// Init loads cfg, opens transport against the parambus driver (pass nil
// for the in-memory reference driver), and wires every internal
// component. Safe to call exactly once.
func (g *Gateway) Init(cfg *config.Config, transport uplink.Transport, driver parambus.Driver) error {
	return g.svc.Init(cfg, transport, driver)
}

// Run drives the gateway's uplink receive loop until ctx is cancelled.
func (g *Gateway) Run(ctx context.Context) {
	g.svc.Run(ctx)
}

// Shutdown drains subscriptions and closes the parambus handle.
func (g *Gateway) Shutdown() error {
	return g.svc.Shutdown()
}

// LoadConfig is a convenience re-export of config.Load for embedders
// that don't want to import internal/config directly (it isn't
// reachable from outside this module anyway; this keeps the embeddable
// surface self-contained).
func LoadConfig(path string) (*config.Config, error) {
	return config.Load(path)
}

// DefaultConfig is a convenience re-export of config.Default.
func DefaultConfig() *config.Config {
	return config.Default()
}
