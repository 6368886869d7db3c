package translator

import (
	"strings"

	"github.com/tenzoki/agen/paramgw/internal/valuecodec"
)

// webpaMessage renders the top-level webpa message for a status:
// "Success" for 200 and 207, "Failure" for everything else.
func webpaMessage(status int) string {
	if status == 200 || status == 207 {
		return "Success"
	}
	return "Failure"
}

// ShapeFlat renders a non-wildcard Response in webpa flat mode. For GET,
// parameters[] holds one entry per successfully resolved name, in
// request order, each carrying its own name/value/dataType; names whose
// lookup failed and non-string entries are omitted. For a successful
// GET_ATTRIBUTES it holds a single entry carrying only the name.
func ShapeFlat(req *Request, resp *Response) WebpaResponse {
	out := WebpaResponse{StatusCode: resp.Status, Message: webpaMessage(resp.Status)}

	switch req.Op {
	case OpGet:
		params := make([]interface{}, 0, len(req.Params))
		for _, pe := range req.Params {
			if !pe.valid {
				continue
			}
			entry, ok := resp.Results[pe.name]
			if !ok || entry == nil {
				continue
			}
			params = append(params, WebpaFlatParam{Name: pe.name, Value: entry.V, DataType: entry.T})
		}
		out.Parameters = params

	case OpGetAttributes:
		if resp.Attributes != nil {
			out.Parameters = []interface{}{WebpaFlatParam{Name: req.Param}}
		}

	default:
		// SET/ADD_ROW/DELETE_ROW/REPLACE_ROWS/SUBSCRIBE/UNSUBSCRIBE/
		// TEST_AND_SET carry no parameters[] payload on success or
		// failure; status/message alone communicate the outcome.
	}

	return out
}

// ShapeGrouped renders a Response that contains at least one wildcard
// expansion in webpa grouped mode: a single parameters[0] object whose
// name is the comma-joined list of wildcard prefixes, whose dataType is
// the group code, whose parameterCount is the number of expanded
// children, and whose value array carries the per-child entries in
// expansion order. Plain names requested alongside a wildcard are still
// rendered flat, after the grouped entry.
func ShapeGrouped(req *Request, resp *Response) WebpaResponse {
	out := WebpaResponse{StatusCode: resp.Status, Message: webpaMessage(resp.Status)}

	childCount := 0
	values := make([]WebpaFlatParam, 0)
	for _, prefix := range resp.GroupOrder {
		children := resp.Groups[prefix]
		childCount += len(children)
		for _, c := range children {
			entry := resp.Results[c]
			if entry == nil {
				continue
			}
			values = append(values, WebpaFlatParam{Name: c, Value: entry.V, DataType: entry.T})
		}
	}

	params := make([]interface{}, 0, 1+len(req.Params))
	params = append(params, WebpaGroupedParam{
		Name:           strings.Join(resp.GroupOrder, ","),
		DataType:       int(valuecodec.TypeGroup),
		ParameterCount: childCount,
		Message:        webpaMessage(resp.Status),
		Value:          values,
	})

	grouped := make(map[string]bool, len(resp.GroupOrder))
	for _, prefix := range resp.GroupOrder {
		grouped[prefix] = true
	}
	for _, pe := range req.Params {
		if !pe.valid || grouped[pe.name] {
			continue
		}
		entry, ok := resp.Results[pe.name]
		if !ok || entry == nil {
			continue
		}
		params = append(params, WebpaFlatParam{Name: pe.name, Value: entry.V, DataType: entry.T})
	}

	out.Parameters = params
	return out
}

// hasWildcard reports whether req's GET params include any trailing-dot
// group prefix or interior-'*' table pattern, the signal that selects
// grouped over flat egress shaping.
func hasWildcard(req *Request) bool {
	if req.Op != OpGet {
		return false
	}
	for _, pe := range req.Params {
		if !pe.valid {
			continue
		}
		if len(pe.name) == 0 {
			continue
		}
		if pe.name[len(pe.name)-1] == '.' {
			return true
		}
		if strings.ContainsRune(pe.name, '*') {
			return true
		}
	}
	return false
}
