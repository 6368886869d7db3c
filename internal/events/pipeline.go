package events

import (
	"strings"

	"github.com/tenzoki/agen/paramgw/internal/cache"
	"github.com/tenzoki/agen/paramgw/internal/logging"
	"github.com/tenzoki/agen/paramgw/internal/parambus"
)

// Emitter hands a built notification to the uplink for framing and
// transmission. Implemented by internal/uplink.Session.
type Emitter interface {
	Emit(n *Notification) error
}

// Pipeline subscribes to a configured set of parambus event names and
// republishes them as notifications. Event callbacks never call back
// into the parambus synchronously; the pipeline only reads from the
// cache and writes to the emitter.
type Pipeline struct {
	adapter               *parambus.Adapter
	cache                 *cache.Cache
	emitter               Emitter
	log                   *logging.Logger
	source                string
	destination           string
	fillOldValueFromCache bool
}

// NewPipeline constructs a Pipeline. cache may be nil, in which case
// oldValue always falls back to "unknown" regardless of the
// fillOldValueFromCache flag.
func NewPipeline(adapter *parambus.Adapter, c *cache.Cache, emitter Emitter, log *logging.Logger, source, destination string, fillOldValueFromCache bool) *Pipeline {
	return &Pipeline{
		adapter:               adapter,
		cache:                 c,
		emitter:               emitter,
		log:                   log,
		source:                source,
		destination:           destination,
		fillOldValueFromCache: fillOldValueFromCache,
	}
}

// Subscribe registers the pipeline's callback for eventName through the
// adapter's refcounted Subscribe.
func (p *Pipeline) Subscribe(eventName string) error {
	return p.adapter.Subscribe(eventName, p.handle)
}

// Unsubscribe releases the pipeline's registration for eventName.
func (p *Pipeline) Unsubscribe(eventName string) error {
	return p.adapter.Unsubscribe(eventName)
}

func (p *Pipeline) handle(ev parambus.Event) {
	switch ev.Kind {
	case parambus.EventValueChange:
		p.handleValueChange(ev)
	case parambus.EventObjectCreated:
		p.handleClientEvent(ev, "Online")
	case parambus.EventObjectDeleted:
		p.handleClientEvent(ev, "Offline")
	}
}

func (p *Pipeline) handleValueChange(ev parambus.Event) {
	oldValue := "unknown"
	if p.fillOldValueFromCache && p.cache != nil {
		if v, _, ok := p.cache.Get(ev.Name); ok {
			oldValue = v
		}
	}
	writeID := ev.Metadata["writeID"]
	n, err := NewParamChange(p.source, p.destination, ev.Name, oldValue, ev.Value, int(ev.Type), writeID)
	if err != nil {
		p.log.Error("failed to build param-change notification for %s: %v", ev.Name, err)
		return
	}
	if err := p.Emit(n); err != nil {
		p.log.Error("failed to emit param-change notification for %s: %v", ev.Name, err)
	}
}

func (p *Pipeline) handleClientEvent(ev parambus.Event, status string) {
	if !isHostsTablePath(ev.Name) {
		return
	}
	mac := ev.Metadata["mac"]
	if mac == "" {
		mac = ev.Value
	}
	n, err := NewConnectedClient(p.source, p.destination, status, mac)
	if err != nil {
		p.log.Error("failed to build connected-client notification for %s: %v", ev.Name, err)
		return
	}
	if err := p.Emit(n); err != nil {
		p.log.Error("failed to emit connected-client notification for %s: %v", ev.Name, err)
	}
}

func isHostsTablePath(name string) bool {
	return strings.Contains(name, ".Hosts.") || strings.Contains(name, ".Clients.")
}

// Emit hands a pre-built notification (e.g. a transaction-status
// notification from the Transaction Engine) to the uplink, exposing a
// uniform entry point regardless of which component constructed it.
func (p *Pipeline) Emit(n *Notification) error {
	return p.emitter.Emit(n)
}
