// Package uplink implements the Uplink Session: a single-threaded
// receive loop over a framed message transport, request/reply
// correlation by transaction id, and an Emitter adapter so the Event
// Pipeline can push notifications out through the same session.
//
// The receive loop decodes a frame, sniffs its kind field, and
// dispatches over a persistent encoder/decoder pair, the same way a
// message listener drains a long-lived connection, generalized here
// from a method/topic broker to the uplink's kind/source/dest framing.
package uplink

import "encoding/json"

// Kind is one of the uplink frame kinds.
type Kind string

const (
	KindRequest  Kind = "request"
	KindRetrieve Kind = "retrieve"
	KindEvent    Kind = "event"
	KindOther    Kind = "other"
)

// Frame is one framed uplink message.
type Frame struct {
	Kind            Kind   `json:"kind"`
	Source          string `json:"source"`
	Dest            string `json:"dest"`
	TransactionUUID string `json:"transaction_uuid,omitempty"`
	ContentType     string `json:"content_type,omitempty"`
	Payload         []byte `json:"payload_bytes,omitempty"`
}

// reply builds the response frame for f: same kind, source/dest
// swapped, transaction id preserved.
func (f Frame) reply(payload []byte) Frame {
	return Frame{
		Kind:            f.Kind,
		Source:          f.Dest,
		Dest:            f.Source,
		TransactionUUID: f.TransactionUUID,
		ContentType:     f.ContentType,
		Payload:         payload,
	}
}

// wireFrame is the line-delimited-JSON rendering used by the mock
// transport: in mock mode the uplink is replaced by line-delimited
// JSON on stdin/stdout with identical semantics.
type wireFrame struct {
	Kind            string          `json:"kind"`
	Source          string          `json:"source"`
	Dest            string          `json:"dest"`
	TransactionUUID string          `json:"transaction_uuid,omitempty"`
	ContentType     string          `json:"content_type,omitempty"`
	Payload         json.RawMessage `json:"payload_bytes,omitempty"`
}

func toWire(f Frame) wireFrame {
	return wireFrame{
		Kind:            string(f.Kind),
		Source:          f.Source,
		Dest:            f.Dest,
		TransactionUUID: f.TransactionUUID,
		ContentType:     f.ContentType,
		Payload:         json.RawMessage(f.Payload),
	}
}

func fromWire(w wireFrame) Frame {
	kind := Kind(w.Kind)
	switch kind {
	case KindRequest, KindRetrieve, KindEvent:
	default:
		kind = KindOther
	}
	return Frame{
		Kind:            kind,
		Source:          w.Source,
		Dest:            w.Dest,
		TransactionUUID: w.TransactionUUID,
		ContentType:     w.ContentType,
		Payload:         []byte(w.Payload),
	}
}
