package parambus

import (
	"sort"
	"strings"
	"sync"

	"github.com/tenzoki/agen/paramgw/internal/valuecodec"
)

// MemoryDriver is a reference in-memory Driver implementation. It backs
// mock mode, where the uplink and the parambus are both replaced with
// in-process stand-ins carrying identical semantics, and the package's
// own tests; a production deployment replaces it with a real bus
// binding behind the same Driver interface.
type MemoryDriver struct {
	mu            sync.Mutex
	values        map[string]valuecodec.TypedValue
	attrs         map[string]Attributes
	tableCounters map[string]int
	subscriptions map[string]EventCallback
	opened        bool
}

// NewMemoryDriver constructs an empty in-memory parameter tree.
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{
		values:        make(map[string]valuecodec.TypedValue),
		attrs:         make(map[string]Attributes),
		tableCounters: make(map[string]int),
		subscriptions: make(map[string]EventCallback),
	}
}

func (m *MemoryDriver) Open(componentName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened = true
	return nil
}

func (m *MemoryDriver) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened = false
	return nil
}

func (m *MemoryDriver) GetRaw(name string) (valuecodec.TypedValue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tv, ok := m.values[name]
	if !ok {
		return valuecodec.TypedValue{}, &BusError{Code: BusNotFound, Message: "no such parameter: " + name}
	}
	return tv, nil
}

// SetRaw installs the value and, if the name had no prior value or its
// value changed, fires any subscription registered for this exact name
// as a value-change event. Table wildcard subscriptions are not matched
// here; subscribers register by exact event name.
func (m *MemoryDriver) SetRaw(name string, tv valuecodec.TypedValue) error {
	m.mu.Lock()
	prev, existed := m.values[name]
	m.values[name] = tv
	cb, subscribed := m.subscriptions[name]
	m.mu.Unlock()

	if subscribed && (!existed || prev.Value != tv.Value) {
		cb(Event{Name: name, Kind: EventValueChange, Value: tv.Value, Type: tv.Type})
	}
	return nil
}

func (m *MemoryDriver) Expand(prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for k := range m.values {
		if strings.HasPrefix(k, prefix) {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryDriver) NextInstance(tablePath string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tableCounters[tablePath]++
	return m.tableCounters[tablePath], nil
}

func (m *MemoryDriver) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if strings.HasSuffix(name, ".") {
		for k := range m.values {
			if strings.HasPrefix(k, name) {
				delete(m.values, k)
			}
		}
		return nil
	}
	if _, ok := m.values[name]; !ok {
		return &BusError{Code: BusNotFound, Message: "no such parameter: " + name}
	}
	delete(m.values, name)
	return nil
}

func (m *MemoryDriver) GetAttrs(name string) (Attributes, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attrs[name]
	if !ok {
		return Attributes{Notify: 0, Access: "readWrite"}, nil
	}
	return a, nil
}

func (m *MemoryDriver) SetAttrs(name string, attr Attributes) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attrs[name] = attr
	return nil
}

func (m *MemoryDriver) SubscribeRaw(eventName string, cb EventCallback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions[eventName] = cb
	return nil
}

func (m *MemoryDriver) UnsubscribeRaw(eventName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, eventName)
	return nil
}

// Seed installs a value directly, bypassing subscription delivery, for
// test setup.
func (m *MemoryDriver) Seed(name string, tv valuecodec.TypedValue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[name] = tv
}

// Exists reports whether name currently has a value, used by the
// Transaction Engine's ADD semantics (param must not currently exist).
func (m *MemoryDriver) Exists(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.values[name]
	return ok
}
