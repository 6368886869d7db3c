package translator

import (
	"encoding/json"

	"github.com/tenzoki/agen/paramgw/internal/gwerr"
)

// Dialect is either internal (op discriminator) or webpa (command
// discriminator).
type Dialect int

const (
	DialectInternal Dialect = iota
	DialectWebpa
)

func (d Dialect) String() string {
	if d == DialectWebpa {
		return "webpa"
	}
	return "internal"
}

// decodeAndNormalize parses the raw JSON payload and reduces either
// dialect to the internal Request form, preserving an incoming id or
// falling back to fallbackID (the uplink transaction id) when absent.
func decodeAndNormalize(payload []byte, fallbackID string) (*Request, Dialect, error) {
	var wr wireRequest
	if err := json.Unmarshal(payload, &wr); err != nil {
		return nil, DialectInternal, gwerr.Newf(gwerr.InvalidRequest, "malformed JSON: %v", err)
	}

	if wr.ID == "" {
		wr.ID = fallbackID
	}

	if wr.Op != "" {
		req, err := normalizeInternal(wr)
		return req, DialectInternal, err
	}
	if wr.Command != "" {
		req, err := normalizeWebpa(wr)
		return req, DialectWebpa, err
	}
	return nil, DialectInternal, gwerr.New(gwerr.InvalidRequest, "request has neither 'op' nor 'command'")
}

func normalizeInternal(wr wireRequest) (*Request, error) {
	op := Op(wr.Op)
	if !validOps[op] {
		return nil, gwerr.Newf(gwerr.InvalidRequest, "unknown op %q", wr.Op)
	}
	return &Request{
		ID:         wr.ID,
		Op:         op,
		Params:     parseParamEntries(wr.Params),
		Param:      wr.Param,
		Value:      wr.Value,
		Attributes: wr.Attributes,
		TableName:  wr.TableName,
		RowData:    wr.RowData,
		RowName:    wr.RowName,
		TableData:  wr.TableData,
		Event:      wr.Event,
		OldValue:   wr.OldValue,
		NewValue:   wr.NewValue,
		DataType:   wr.DataType,
	}, nil
}

func parseParamEntries(raw []json.RawMessage) []paramEntry {
	entries := make([]paramEntry, 0, len(raw))
	for i, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err != nil {
			entries = append(entries, paramEntry{index: i, valid: false})
			continue
		}
		entries = append(entries, paramEntry{index: i, name: s, valid: true})
	}
	return entries
}

// normalizeWebpa applies the command->op normalization table.
func normalizeWebpa(wr wireRequest) (*Request, error) {
	req := &Request{ID: wr.ID}

	switch wr.Command {
	case "GET":
		req.Op = OpGet
		entries := make([]paramEntry, 0, len(wr.Names))
		for i, n := range wr.Names {
			entries = append(entries, paramEntry{index: i, name: n, valid: true})
		}
		req.Params = entries

	case "GET_ATTRIBUTES":
		if len(wr.Names) == 0 {
			return nil, gwerr.New(gwerr.InvalidRequest, "GET_ATTRIBUTES requires names[0]")
		}
		req.Op = OpGetAttributes
		req.Param = wr.Names[0]

	case "SET":
		if len(wr.Parameters) == 0 {
			return nil, gwerr.New(gwerr.InvalidRequest, "SET requires parameters[0]")
		}
		req.Op = OpSet
		req.Param = wr.Parameters[0].Name
		req.Value = wr.Parameters[0].Value
		req.DataType = wr.Parameters[0].DataType

	case "SET_ATTRIBUTES":
		if len(wr.Parameters) == 0 || wr.Parameters[0].Attributes == nil {
			return nil, gwerr.New(gwerr.InvalidRequest, "SET_ATTRIBUTES requires parameters[0].attributes")
		}
		req.Op = OpSetAttributes
		req.Param = wr.Parameters[0].Name
		req.Attributes = wr.Parameters[0].Attributes

	case "ADD_ROW":
		var row []RowWire
		if err := json.Unmarshal(wr.Row, &row); err != nil {
			return nil, gwerr.Newf(gwerr.InvalidRequest, "ADD_ROW requires row[]: %v", err)
		}
		req.Op = OpAddRow
		req.TableName = wr.Table
		req.RowData = row

	case "DELETE_ROW":
		var rowName string
		if err := json.Unmarshal(wr.Row, &rowName); err != nil {
			return nil, gwerr.Newf(gwerr.InvalidRequest, "DELETE_ROW requires row string: %v", err)
		}
		req.Op = OpDeleteRow
		req.RowName = rowName

	case "REPLACE_ROWS":
		req.Op = OpReplaceRows
		req.TableName = wr.Table
		req.TableData = wr.Rows

	case "SUBSCRIBE":
		req.Op = OpSubscribe
		req.Event = wr.Event

	case "UNSUBSCRIBE":
		req.Op = OpUnsubscribe
		req.Event = wr.Event

	default:
		return nil, gwerr.Newf(gwerr.InvalidRequest, "unknown command %q", wr.Command)
	}

	return req, nil
}
