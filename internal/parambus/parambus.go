// Package parambus defines the Parambus Adapter boundary: the typed
// get/set/subscribe/table-CRUD contract between the gateway and the
// local hierarchical parameter bus, plus the fixed error-mapping table
// from raw bus failures to the gateway's error taxonomy.
//
// Grounded on the typed HTTP-backed data-model adapter pattern (mapping
// backend status codes onto a closed error taxonomy) and generalized to
// a bus driver instead of an HTTP client.
package parambus

import (
	"strconv"
	"strings"
	"sync"

	"github.com/tenzoki/agen/paramgw/internal/gwerr"
	"github.com/tenzoki/agen/paramgw/internal/valuecodec"
)

// RowField is one (name, string-rendering, wire-type) triple of a table
// row.
type RowField struct {
	Name  string
	Value string
	Type  valuecodec.WireType
}

// Attributes is the (notify, access) pair attached to a parameter.
type Attributes struct {
	Notify int    // 0 = off, 1 = on
	Access string // "readOnly" | "readWrite" | "writeOnly"
}

// EventKind enumerates the parambus event categories the adapter
// forwards to subscribers.
type EventKind int

const (
	EventValueChange EventKind = iota
	EventObjectCreated
	EventObjectDeleted
)

// Event is a single parambus callback delivery.
type Event struct {
	Name     string
	Kind     EventKind
	Value    string
	Type     valuecodec.WireType
	Metadata map[string]string
}

// EventCallback is invoked by the bus's background callback thread; it
// must never call back into the bus synchronously — the bus library is
// not reentrant.
type EventCallback func(Event)

// BusErrorCode is one of the raw parambus failure codes the driver
// reports; the adapter maps these through the fixed table in
// MapBusError.
type BusErrorCode int

const (
	BusNotFound BusErrorCode = iota
	BusAccessDenied
	BusTimeout
	BusInvalidValue
	BusBusy
	BusUnavailable
	BusInternal
)

// BusError is the raw error a Driver returns; never exposed past the
// adapter boundary, which maps it to a *gwerr.Error.
type BusError struct {
	Code    BusErrorCode
	Message string
}

func (e *BusError) Error() string { return e.Message }

// MapBusError is the fixed table from raw bus codes to the gateway
// error taxonomy.
func MapBusError(err error) *gwerr.Error {
	be, ok := err.(*BusError)
	if !ok {
		return gwerr.New(gwerr.Internal, err.Error())
	}
	switch be.Code {
	case BusNotFound:
		return gwerr.New(gwerr.NotFound, be.Message)
	case BusAccessDenied:
		return gwerr.New(gwerr.Forbidden, be.Message)
	case BusTimeout:
		return gwerr.New(gwerr.Timeout, be.Message)
	case BusInvalidValue:
		return gwerr.New(gwerr.Unprocessable, be.Message)
	case BusBusy:
		return gwerr.New(gwerr.Locked, be.Message)
	case BusUnavailable:
		return gwerr.New(gwerr.Unavailable, be.Message)
	default:
		return gwerr.New(gwerr.Internal, be.Message)
	}
}

// Driver is the raw parambus collaborator: the external bus library
// this adapter wraps. The uplink framing library and the parambus
// itself are both external collaborators outside this module's own
// code; a reference in-memory Driver lives in memory.go for mock mode
// and tests.
type Driver interface {
	Open(componentName string) error
	Close() error
	GetRaw(name string) (valuecodec.TypedValue, error)
	SetRaw(name string, tv valuecodec.TypedValue) error
	Expand(prefix string) ([]string, error)
	NextInstance(tablePath string) (int, error)
	Delete(name string) error
	GetAttrs(name string) (Attributes, error)
	SetAttrs(name string, attr Attributes) error
	SubscribeRaw(eventName string, cb EventCallback) error
	UnsubscribeRaw(eventName string) error
}

// Adapter implements the full parambus contract over a Driver:
// refcounted subscriptions, table-row path composition,
// replace-as-enumerate, and adapter-level atomic compare-and-set.
type Adapter struct {
	driver Driver

	mu        sync.Mutex
	refcounts map[string]int
	opened    bool
}

// NewAdapter wraps driver with refcounting and composite-operation
// logic. At most one Adapter should hold a given driver open per
// process.
func NewAdapter(driver Driver) *Adapter {
	return &Adapter{driver: driver, refcounts: make(map[string]int)}
}

func (a *Adapter) Open(componentName string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.opened {
		return gwerr.New(gwerr.Internal, "adapter already opened")
	}
	if err := a.driver.Open(componentName); err != nil {
		return MapBusError(err)
	}
	a.opened = true
	return nil
}

func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.opened {
		return nil
	}
	err := a.driver.Close()
	a.opened = false
	if err != nil {
		return MapBusError(err)
	}
	return nil
}

func (a *Adapter) Get(name string) (string, error) {
	tv, err := a.driver.GetRaw(name)
	if err != nil {
		return "", MapBusError(err)
	}
	return tv.Value, nil
}

func (a *Adapter) GetTyped(name string) (valuecodec.TypedValue, error) {
	tv, err := a.driver.GetRaw(name)
	if err != nil {
		return valuecodec.TypedValue{}, MapBusError(err)
	}
	return tv, nil
}

func (a *Adapter) Set(name, value string) error {
	return a.SetTyped(name, valuecodec.TypedValue{Value: value, Type: valuecodec.TypeString})
}

func (a *Adapter) SetTyped(name string, tv valuecodec.TypedValue) error {
	if err := a.driver.SetRaw(name, tv); err != nil {
		return MapBusError(err)
	}
	return nil
}

// ExpandWildcard requires prefix to end in '.'; an empty result is not
// an error.
func (a *Adapter) ExpandWildcard(prefix string) ([]string, error) {
	if !strings.HasSuffix(prefix, ".") {
		return nil, gwerr.Newf(gwerr.InvalidRequest, "wildcard prefix %q must end in '.'", prefix)
	}
	names, err := a.driver.Expand(prefix)
	if err != nil {
		return nil, MapBusError(err)
	}
	return names, nil
}

// AddTableRow composes the new row path from the driver-assigned
// instance number, then sets each field. Partial-set failures are
// reported but the allocation is not undone here; atomic rollback is
// the Transaction Engine's responsibility.
func (a *Adapter) AddTableRow(tablePath string, row []RowField) (string, error) {
	n, err := a.driver.NextInstance(tablePath)
	if err != nil {
		return "", MapBusError(err)
	}
	rowPath := tablePath + strconv.Itoa(n) + "."
	var firstErr error
	for _, f := range row {
		tv := valuecodec.TypedValue{Value: f.Value, Type: f.Type}
		if err := a.driver.SetRaw(rowPath+f.Name, tv); err != nil && firstErr == nil {
			firstErr = MapBusError(err)
		}
	}
	if firstErr != nil {
		return rowPath, firstErr
	}
	return rowPath, nil
}

func (a *Adapter) DeleteTableRow(rowPath string) error {
	if err := a.driver.Delete(rowPath); err != nil {
		return MapBusError(err)
	}
	return nil
}

// ReplaceTable is semantically enumerate-existing, delete-each,
// add-each; not atomic at the bus level.
func (a *Adapter) ReplaceTable(tablePath string, rows [][]RowField) error {
	existing, err := a.ExpandWildcard(tablePath)
	if err != nil {
		return err
	}
	for _, rowPath := range existing {
		if err := a.DeleteTableRow(rowPath); err != nil {
			return err
		}
	}
	for _, row := range rows {
		if _, err := a.AddTableRow(tablePath, row); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) GetAttributes(name string) (Attributes, error) {
	attrs, err := a.driver.GetAttrs(name)
	if err != nil {
		return Attributes{}, MapBusError(err)
	}
	return attrs, nil
}

func (a *Adapter) SetAttributes(name string, attr Attributes) error {
	if err := a.driver.SetAttrs(name, attr); err != nil {
		return MapBusError(err)
	}
	return nil
}

// Subscribe refcounts registrations per event name; the driver only
// sees the first subscribe and the last unsubscribe.
func (a *Adapter) Subscribe(eventName string, cb EventCallback) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.refcounts[eventName] == 0 {
		if err := a.driver.SubscribeRaw(eventName, cb); err != nil {
			return MapBusError(err)
		}
	}
	a.refcounts[eventName]++
	return nil
}

func (a *Adapter) Unsubscribe(eventName string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.refcounts[eventName] <= 0 {
		return nil
	}
	a.refcounts[eventName]--
	if a.refcounts[eventName] == 0 {
		delete(a.refcounts, eventName)
		if err := a.driver.UnsubscribeRaw(eventName); err != nil {
			return MapBusError(err)
		}
	}
	return nil
}

// RefCount exposes the current subscription refcount, for tests
// asserting the driver sees exactly one subscribe/unsubscribe per
// distinct event name regardless of caller refcounting.
func (a *Adapter) RefCount(eventName string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refcounts[eventName]
}

// TestAndSet is atomic at the adapter layer (not at the bus): read
// current, compare to expected under the canonical encoding of the
// wire type, set iff equal.
func (a *Adapter) TestAndSet(name string, expected, newValue valuecodec.TypedValue) error {
	current, err := a.driver.GetRaw(name)
	if err != nil {
		return MapBusError(err)
	}
	currentRendered, _ := encodeCanon(current)
	expectedRendered, _ := encodeCanon(expected)
	if currentRendered != expectedRendered {
		return gwerr.New(gwerr.PreconditionFailed, "test-and-set precondition mismatch")
	}
	if err := a.driver.SetRaw(name, newValue); err != nil {
		return MapBusError(err)
	}
	return nil
}

func encodeCanon(tv valuecodec.TypedValue) (string, valuecodec.WireType) {
	return valuecodec.Encode(tv)
}
