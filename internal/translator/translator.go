package translator

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/tenzoki/agen/paramgw/internal/authz"
	"github.com/tenzoki/agen/paramgw/internal/cache"
	"github.com/tenzoki/agen/paramgw/internal/events"
	"github.com/tenzoki/agen/paramgw/internal/gwerr"
	"github.com/tenzoki/agen/paramgw/internal/logging"
	"github.com/tenzoki/agen/paramgw/internal/parambus"
	"github.com/tenzoki/agen/paramgw/internal/valuecodec"
)

// Translator is the Protocol Translator: it decodes a raw request
// payload, normalizes its dialect, authorizes and dispatches each
// operation against the Parambus Adapter through the Parameter Cache,
// and shapes the egress payload appropriately.
type Translator struct {
	adapter  *parambus.Adapter
	cache    *cache.Cache
	authz    *authz.Hook
	pipeline *events.Pipeline
	log      *logging.Logger
}

// New constructs a Translator. pipeline is used to route client-issued
// SUBSCRIBE/UNSUBSCRIBE requests through the same refcounted
// registration the Event Pipeline itself uses.
func New(adapter *parambus.Adapter, c *cache.Cache, hook *authz.Hook, pipeline *events.Pipeline, log *logging.Logger) *Translator {
	return &Translator{adapter: adapter, cache: c, authz: hook, pipeline: pipeline, log: log}
}

// Handle decodes payload, normalizes, authorizes, dispatches, and
// returns the JSON-encoded response in the dialect appropriate for the
// inbound request: internal-dialect responses pass through unchanged,
// webpa-dialect responses are re-shaped per ShapeFlat/ShapeGrouped.
func (t *Translator) Handle(payload []byte, fallbackID string, authCtx authz.AuthContext) []byte {
	t.cache.ExpireSweep()

	req, dialect, err := decodeAndNormalize(payload, fallbackID)
	if err != nil {
		t.log.Warn("rejecting request %s: %v", fallbackID, err)
		return mustJSON(errorResponse(fallbackID, err))
	}

	resp := t.dispatch(req, authCtx)

	t.log.WithFields(map[string]interface{}{
		"id":      req.ID,
		"op":      req.Op,
		"dialect": dialect,
		"status":  resp.Status,
	}).Debug("dispatched request")

	if dialect == DialectInternal {
		return mustJSON(toWireResponse(resp))
	}

	if hasWildcard(req) {
		return mustJSON(ShapeGrouped(req, resp))
	}
	return mustJSON(ShapeFlat(req, resp))
}

func errorResponse(id string, err error) wireResponse {
	ge, _ := gwerr.As(err)
	msg := err.Error()
	if ge != nil {
		msg = ge.Message
	}
	return wireResponse{ID: id, Status: gwerr.StatusOf(err), Message: msg}
}

func toWireResponse(r *Response) wireResponse {
	return wireResponse{
		ID:         r.ID,
		Status:     r.Status,
		Results:    r.Results,
		Message:    r.Message,
		NewRowName: r.NewRowName,
		Attributes: r.Attributes,
	}
}

func mustJSON(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// Marshaling our own well-typed response structs cannot fail in
		// practice; fall back to a minimal internal-error envelope.
		return []byte(`{"status":500,"message":"internal marshal error"}`)
	}
	return b
}

func (t *Translator) dispatch(req *Request, authCtx authz.AuthContext) *Response {
	switch req.Op {
	case OpGet:
		return t.handleGet(req, authCtx)
	case OpSet:
		return t.handleSet(req, authCtx)
	case OpGetAttributes:
		return t.handleGetAttributes(req, authCtx)
	case OpSetAttributes:
		return t.handleSetAttributes(req, authCtx)
	case OpAddRow:
		return t.handleAddRow(req, authCtx)
	case OpDeleteRow:
		return t.handleDeleteRow(req, authCtx)
	case OpReplaceRows:
		return t.handleReplaceRows(req, authCtx)
	case OpSubscribe:
		return t.handleSubscribe(req, authCtx)
	case OpUnsubscribe:
		return t.handleUnsubscribe(req, authCtx)
	case OpTestAndSet:
		return t.handleTestAndSet(req, authCtx)
	default:
		return &Response{ID: req.ID, Status: gwerr.NotImplemented.Status(), Message: "unimplemented op"}
	}
}

func (t *Translator) authorize(resource string, permission authz.Permission, authCtx authz.AuthContext) error {
	if t.authz == nil {
		return nil
	}
	return t.authz.Check(resource, permission, authCtx)
}

// getTypedCached reads through the cache, populating it on a bus hit.
func (t *Translator) getTypedCached(name string) (valuecodec.TypedValue, error) {
	if v, wt, ok := t.cache.Get(name); ok {
		return valuecodec.TypedValue{Value: v, Type: wt}, nil
	}
	tv, err := t.adapter.GetTyped(name)
	if err != nil {
		return tv, err
	}
	t.cache.Set(name, tv.Value, tv.Type, 0)
	return tv, nil
}

// setTypedCached writes through to the bus and, once the write
// succeeds, invalidates the cache entry before returning success, so
// the next read after this call goes to the bus.
func (t *Translator) setTypedCached(name string, tv valuecodec.TypedValue) error {
	if err := t.adapter.SetTyped(name, tv); err != nil {
		return err
	}
	t.cache.Delete(name)
	return nil
}

func (t *Translator) handleGet(req *Request, authCtx authz.AuthContext) *Response {
	if len(req.Params) == 0 {
		return &Response{ID: req.ID, Status: gwerr.InvalidRequest.Status(), Message: "params must be non-empty"}
	}

	results := make(map[string]*ResultEntry)
	groups := make(map[string][]string)
	var groupOrder []string
	successes, failures := 0, 0

	for _, pe := range req.Params {
		if !pe.valid {
			key := "_" + strconv.Itoa(pe.index)
			results[key] = nil
			failures++
			continue
		}
		name := pe.name

		switch {
		case strings.HasSuffix(name, "."):
			children, ok := t.resolveGroupWildcard(name, authCtx, results)
			groups[name] = children
			groupOrder = append(groupOrder, name)
			if !ok {
				results[name] = nil
				failures++
			} else if len(children) == 0 {
				successes++
			} else {
				for _, c := range children {
					if results[c] != nil {
						successes++
					} else {
						failures++
					}
				}
			}

		case strings.Contains(name, "*"):
			children, ok := t.resolveTableWildcard(name, authCtx, results)
			groups[name] = children
			groupOrder = append(groupOrder, name)
			if !ok {
				results[name] = nil
				failures++
			} else if len(children) == 0 {
				successes++
			} else {
				for _, c := range children {
					if results[c] != nil {
						successes++
					} else {
						failures++
					}
				}
			}

		default:
			if err := t.authorize(name, authz.PermRead, authCtx); err != nil {
				results[name] = nil
				failures++
				continue
			}
			tv, err := t.getTypedCached(name)
			if err != nil {
				results[name] = nil
				failures++
				continue
			}
			results[name] = &ResultEntry{V: tv.Value, T: int(tv.Type)}
			successes++
		}
	}

	status := gwerr.Internal.Status()
	switch {
	case failures == 0 && successes >= 1:
		status = 200
	case failures >= 1 && successes >= 1:
		status = gwerr.Partial.Status()
	case successes == 0 && failures >= 1:
		status = 500
	}

	return &Response{
		ID:         req.ID,
		Status:     status,
		Results:    results,
		Groups:     groups,
		GroupOrder: groupOrder,
	}
}

// resolveGroupWildcard expands a trailing-dot prefix and fills results
// for each resolved child, returning the ordered child names and
// whether the expansion itself succeeded. An empty expansion is a
// success with zero children; only an authorization failure or an
// adapter error is a failure.
func (t *Translator) resolveGroupWildcard(prefix string, authCtx authz.AuthContext, results map[string]*ResultEntry) ([]string, bool) {
	if err := t.authorize(prefix, authz.PermRead, authCtx); err != nil {
		return nil, false
	}
	children, err := t.adapter.ExpandWildcard(prefix)
	if err != nil {
		return nil, false
	}
	for _, c := range children {
		tv, err := t.getTypedCached(c)
		if err != nil {
			results[c] = nil
			continue
		}
		results[c] = &ResultEntry{V: tv.Value, T: int(tv.Type)}
	}
	return children, true
}

// resolveTableWildcard expands an interior-'*' pattern by expanding the
// segment before the '*' through the parambus and filtering the results
// by the suffix after it. Like resolveGroupWildcard, an empty match set
// is a success; only an authorization or adapter error is a failure.
func (t *Translator) resolveTableWildcard(pattern string, authCtx authz.AuthContext, results map[string]*ResultEntry) ([]string, bool) {
	i := strings.Index(pattern, "*")
	before := pattern[:i]
	after := pattern[i+1:]

	if err := t.authorize(before, authz.PermRead, authCtx); err != nil {
		return nil, false
	}
	candidates, err := t.adapter.ExpandWildcard(before)
	if err != nil {
		return nil, false
	}
	var matched []string
	for _, c := range candidates {
		rest := strings.TrimPrefix(c, before)
		if strings.HasSuffix(rest, after) {
			matched = append(matched, c)
		}
	}
	for _, c := range matched {
		tv, err := t.getTypedCached(c)
		if err != nil {
			results[c] = nil
			continue
		}
		results[c] = &ResultEntry{V: tv.Value, T: int(tv.Type)}
	}
	return matched, true
}

func (t *Translator) handleSet(req *Request, authCtx authz.AuthContext) *Response {
	if req.Param == "" {
		return &Response{ID: req.ID, Status: gwerr.InvalidRequest.Status(), Message: "param is required"}
	}
	if err := t.authorize(req.Param, authz.PermWrite, authCtx); err != nil {
		return errorResp(req.ID, err)
	}
	wt := valuecodec.WireType(req.DataType)
	tv, err := valuecodec.Decode(req.Value, wt)
	if err != nil {
		return errorResp(req.ID, err)
	}
	if err := t.setTypedCached(req.Param, tv); err != nil {
		return errorResp(req.ID, err)
	}
	return &Response{ID: req.ID, Status: 200, Message: "Success"}
}

func (t *Translator) handleGetAttributes(req *Request, authCtx authz.AuthContext) *Response {
	if req.Param == "" {
		return &Response{ID: req.ID, Status: gwerr.InvalidRequest.Status(), Message: "param is required"}
	}
	if err := t.authorize(req.Param, authz.PermRead, authCtx); err != nil {
		return errorResp(req.ID, err)
	}
	attrs, err := t.adapter.GetAttributes(req.Param)
	if err != nil {
		return errorResp(req.ID, err)
	}
	return &Response{ID: req.ID, Status: 200, Attributes: &Attributes{Notify: attrs.Notify, Access: attrs.Access}}
}

func (t *Translator) handleSetAttributes(req *Request, authCtx authz.AuthContext) *Response {
	if req.Param == "" || req.Attributes == nil {
		return &Response{ID: req.ID, Status: gwerr.InvalidRequest.Status(), Message: "param and attributes are required"}
	}
	if err := t.authorize(req.Param, authz.PermWrite, authCtx); err != nil {
		return errorResp(req.ID, err)
	}
	err := t.adapter.SetAttributes(req.Param, parambus.Attributes{Notify: req.Attributes.Notify, Access: req.Attributes.Access})
	if err != nil {
		return errorResp(req.ID, err)
	}
	return &Response{ID: req.ID, Status: 200, Message: "Success"}
}

func (t *Translator) handleAddRow(req *Request, authCtx authz.AuthContext) *Response {
	if req.TableName == "" || len(req.RowData) == 0 {
		return &Response{ID: req.ID, Status: gwerr.InvalidRequest.Status(), Message: "tableName and rowData are required"}
	}
	if err := t.authorize(req.TableName, authz.PermWrite, authCtx); err != nil {
		return errorResp(req.ID, err)
	}
	row := make([]parambus.RowField, 0, len(req.RowData))
	for _, f := range req.RowData {
		row = append(row, parambus.RowField{Name: f.Name, Value: f.Value, Type: valuecodec.WireType(f.DataType)})
	}
	newRowName, err := t.adapter.AddTableRow(req.TableName, row)
	if err != nil {
		return errorResp(req.ID, err)
	}
	t.cache.InvalidateWildcard(req.TableName)
	return &Response{ID: req.ID, Status: 200, Message: "Success", NewRowName: newRowName}
}

func (t *Translator) handleDeleteRow(req *Request, authCtx authz.AuthContext) *Response {
	if req.RowName == "" {
		return &Response{ID: req.ID, Status: gwerr.InvalidRequest.Status(), Message: "rowName is required"}
	}
	if err := t.authorize(req.RowName, authz.PermWrite, authCtx); err != nil {
		return errorResp(req.ID, err)
	}
	if err := t.adapter.DeleteTableRow(req.RowName); err != nil {
		return errorResp(req.ID, err)
	}
	t.cache.InvalidateWildcard(req.RowName)
	return &Response{ID: req.ID, Status: 200, Message: "Success"}
}

func (t *Translator) handleReplaceRows(req *Request, authCtx authz.AuthContext) *Response {
	if req.TableName == "" {
		return &Response{ID: req.ID, Status: gwerr.InvalidRequest.Status(), Message: "tableName is required"}
	}
	if err := t.authorize(req.TableName, authz.PermWrite, authCtx); err != nil {
		return errorResp(req.ID, err)
	}
	rows := make([][]parambus.RowField, 0, len(req.TableData))
	for _, wireRow := range req.TableData {
		row := make([]parambus.RowField, 0, len(wireRow))
		for _, f := range wireRow {
			row = append(row, parambus.RowField{Name: f.Name, Value: f.Value, Type: valuecodec.WireType(f.DataType)})
		}
		rows = append(rows, row)
	}
	if err := t.adapter.ReplaceTable(req.TableName, rows); err != nil {
		return errorResp(req.ID, err)
	}
	t.cache.InvalidateWildcard(req.TableName)
	return &Response{ID: req.ID, Status: 200, Message: "Success"}
}

func (t *Translator) handleSubscribe(req *Request, authCtx authz.AuthContext) *Response {
	if req.Event == "" {
		return &Response{ID: req.ID, Status: gwerr.InvalidRequest.Status(), Message: "event is required"}
	}
	if err := t.authorize(req.Event, authz.PermRead, authCtx); err != nil {
		return errorResp(req.ID, err)
	}
	if err := t.pipeline.Subscribe(req.Event); err != nil {
		return errorResp(req.ID, err)
	}
	return &Response{ID: req.ID, Status: 200, Message: "Success"}
}

func (t *Translator) handleUnsubscribe(req *Request, authCtx authz.AuthContext) *Response {
	if req.Event == "" {
		return &Response{ID: req.ID, Status: gwerr.InvalidRequest.Status(), Message: "event is required"}
	}
	if err := t.authorize(req.Event, authz.PermRead, authCtx); err != nil {
		return errorResp(req.ID, err)
	}
	if err := t.pipeline.Unsubscribe(req.Event); err != nil {
		return errorResp(req.ID, err)
	}
	return &Response{ID: req.ID, Status: 200, Message: "Success"}
}

func (t *Translator) handleTestAndSet(req *Request, authCtx authz.AuthContext) *Response {
	if req.Param == "" {
		return &Response{ID: req.ID, Status: gwerr.InvalidRequest.Status(), Message: "param is required"}
	}
	if err := t.authorize(req.Param, authz.PermWrite, authCtx); err != nil {
		return errorResp(req.ID, err)
	}
	wt := valuecodec.WireType(req.DataType)
	expected, err := valuecodec.Decode(req.OldValue, wt)
	if err != nil {
		return errorResp(req.ID, err)
	}
	newValue, err := valuecodec.Decode(req.NewValue, wt)
	if err != nil {
		return errorResp(req.ID, err)
	}
	if err := t.adapter.TestAndSet(req.Param, expected, newValue); err != nil {
		return errorResp(req.ID, err)
	}
	t.cache.Delete(req.Param)
	return &Response{ID: req.ID, Status: 200, Message: "Success"}
}

func errorResp(id string, err error) *Response {
	ge, _ := gwerr.As(err)
	msg := err.Error()
	if ge != nil {
		msg = ge.Message
	}
	return &Response{ID: id, Status: gwerr.StatusOf(err), Message: msg}
}
