// Package translator implements the Protocol Translator: dialect
// detection/normalization, per-op dispatch against the Parambus
// Adapter (through the Parameter Cache as a read-through/
// write-invalidating proxy), webpa-egress response shaping, and status
// mapping.
//
// Dispatch is centralized in a single normalizer producing a tagged
// internal Request before per-op handling, the same shape as a
// method-switch over RPC method names, generalized here to the
// parambus operation set.
package translator

import "encoding/json"

// Op is one of the closed set of internal-dialect operations.
type Op string

const (
	OpGet           Op = "GET"
	OpSet           Op = "SET"
	OpGetAttributes Op = "GET_ATTRIBUTES"
	OpSetAttributes Op = "SET_ATTRIBUTES"
	OpAddRow        Op = "ADD_ROW"
	OpDeleteRow     Op = "DELETE_ROW"
	OpReplaceRows   Op = "REPLACE_ROWS"
	OpSubscribe     Op = "SUBSCRIBE"
	OpUnsubscribe   Op = "UNSUBSCRIBE"
	OpTestAndSet    Op = "TEST_AND_SET"
)

var validOps = map[Op]bool{
	OpGet: true, OpSet: true, OpGetAttributes: true, OpSetAttributes: true,
	OpAddRow: true, OpDeleteRow: true, OpReplaceRows: true,
	OpSubscribe: true, OpUnsubscribe: true, OpTestAndSet: true,
}

// Attributes mirrors the wire {notify, access} pair.
type Attributes struct {
	Notify int    `json:"notify"`
	Access string `json:"access,omitempty"`
}

// RowWire is one wire-form table row field.
type RowWire struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	DataType int    `json:"dataType"`
}

// Request is the internal normalized request form every dialect is
// reduced to before dispatch.
type Request struct {
	ID         string
	Op         Op
	Params     []paramEntry
	Param      string
	Value      string
	Attributes *Attributes
	TableName  string
	RowData    []RowWire
	RowName    string
	TableData  [][]RowWire
	Event      string
	OldValue   string
	NewValue   string
	DataType   int
}

// paramEntry is one element of a GET request's params array: either a
// valid name, or a malformed (non-string) entry tracked by index so it
// can be reported as results["_<idx>"] = null without aborting the
// other entries.
type paramEntry struct {
	index int
	name  string
	valid bool
}

// ResultEntry is one successful GET result, {v, t} on the wire.
type ResultEntry struct {
	V string `json:"v"`
	T int    `json:"t"`
}

// Response is the internal normalized response, shaped to the
// appropriate egress form by the caller when the inbound dialect was
// webpa.
type Response struct {
	ID         string
	Status     int
	Results    map[string]*ResultEntry
	Message    string
	NewRowName string
	Attributes *Attributes

	// Groups records, for each GET wildcard prefix in request order,
	// the ordered list of child names it expanded to. Used only by
	// ShapeGrouped; not wire-visible on the internal dialect.
	Groups map[string][]string
	// GroupOrder preserves the order wildcard prefixes appeared in the
	// request, since Go map iteration order is not stable.
	GroupOrder []string
}

// wireRequest is the raw internal-dialect JSON shape (plus the webpa
// fields normalizeWebpa reads from), parsed once up front.
type wireRequest struct {
	ID     string            `json:"id,omitempty"`
	Op     string            `json:"op,omitempty"`
	Params []json.RawMessage `json:"params,omitempty"`
	Param  string            `json:"param,omitempty"`
	Value  string            `json:"value,omitempty"`

	Attributes *Attributes `json:"attributes,omitempty"`

	TableName string      `json:"tableName,omitempty"`
	RowData   []RowWire   `json:"rowData,omitempty"`
	RowName   string      `json:"rowName,omitempty"`
	TableData [][]RowWire `json:"tableData,omitempty"`

	Event string `json:"event,omitempty"`

	OldValue string `json:"oldValue,omitempty"`
	NewValue string `json:"newValue,omitempty"`
	DataType int    `json:"dataType,omitempty"`

	// webpa-dialect fields. Row is polymorphic: DELETE_ROW carries a
	// bare string, ADD_ROW carries a row[] array; the command
	// discriminates which shape to decode.
	Command    string          `json:"command,omitempty"`
	Names      []string        `json:"names,omitempty"`
	Parameters []webpaParam    `json:"parameters,omitempty"`
	Table      string          `json:"table,omitempty"`
	Row        json.RawMessage `json:"row,omitempty"`
	Rows       [][]RowWire     `json:"rows,omitempty"`
}

type webpaParam struct {
	Name       string      `json:"name"`
	Value      string      `json:"value,omitempty"`
	DataType   int         `json:"dataType,omitempty"`
	Attributes *Attributes `json:"attributes,omitempty"`
}

// wireResponse is the internal-dialect JSON response shape.
type wireResponse struct {
	ID         string                  `json:"id,omitempty"`
	Status     int                     `json:"status"`
	Results    map[string]*ResultEntry `json:"results,omitempty"`
	Message    string                  `json:"message,omitempty"`
	NewRowName string                  `json:"newRowName,omitempty"`
	Attributes *Attributes             `json:"attributes,omitempty"`
}

// WebpaFlatParam is one {name, value, dataType} entry in flat-mode
// egress.
type WebpaFlatParam struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	DataType int    `json:"dataType"`
}

// WebpaGroupedParam is the single grouped-mode parameters[0] entry.
type WebpaGroupedParam struct {
	Name           string           `json:"name"`
	DataType       int              `json:"dataType"`
	ParameterCount int              `json:"parameterCount"`
	Message        string           `json:"message"`
	Value          []WebpaFlatParam `json:"value"`
}

// WebpaResponse is the webpa-dialect egress envelope.
type WebpaResponse struct {
	StatusCode int           `json:"statusCode"`
	Parameters []interface{} `json:"parameters"`
	Message    string        `json:"message"`
}
