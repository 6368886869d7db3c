package uplink

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Transport is the external framed-message collaborator the session
// reads frames from and writes replies to. The uplink framing library
// itself is an external system; production deployments supply a
// Transport binding the real bus, mock mode uses the
// line-delimited-JSON transport below.
type Transport interface {
	Receive(timeout time.Duration) (Frame, error)
	Send(f Frame) error
	Close() error
}

// ErrReceiveTimeout is returned by Receive when no frame arrived within
// the bounded timeout, letting the session loop re-check its
// cancellation flag so shutdown latency stays bounded.
var ErrReceiveTimeout = fmt.Errorf("uplink: receive timeout")

// MockTransport implements Transport over line-delimited JSON with a
// persistent encoder/decoder pair, generalized from a TCP connection to
// arbitrary io.Reader/io.Writer so stdin/stdout work in mock mode.
type MockTransport struct {
	decoder *json.Decoder
	encoder *json.Encoder
	frames  chan Frame
	errs    chan error
	done    chan struct{}
}

// NewMockTransport starts a background goroutine decoding line-delimited
// JSON frames from r; writes go synchronously to w via encoder.
func NewMockTransport(r io.Reader, w io.Writer) *MockTransport {
	t := &MockTransport{
		decoder: json.NewDecoder(r),
		encoder: json.NewEncoder(w),
		frames:  make(chan Frame),
		errs:    make(chan error, 1),
		done:    make(chan struct{}),
	}
	go t.readLoop()
	return t
}

func (t *MockTransport) readLoop() {
	for {
		var w wireFrame
		if err := t.decoder.Decode(&w); err != nil {
			select {
			case t.errs <- err:
			case <-t.done:
			}
			return
		}
		select {
		case t.frames <- fromWire(w):
		case <-t.done:
			return
		}
	}
}

// Receive blocks for up to timeout for the next decoded frame.
func (t *MockTransport) Receive(timeout time.Duration) (Frame, error) {
	select {
	case f := <-t.frames:
		return f, nil
	case err := <-t.errs:
		return Frame{}, err
	case <-time.After(timeout):
		return Frame{}, ErrReceiveTimeout
	case <-t.done:
		return Frame{}, io.EOF
	}
}

// Send encodes f as a single line of JSON to the underlying writer.
func (t *MockTransport) Send(f Frame) error {
	return t.encoder.Encode(toWire(f))
}

// Close stops the background read goroutine.
func (t *MockTransport) Close() error {
	close(t.done)
	return nil
}
