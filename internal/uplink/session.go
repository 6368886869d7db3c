package uplink

import (
	"sync/atomic"
	"time"

	"github.com/tenzoki/agen/paramgw/internal/authz"
	"github.com/tenzoki/agen/paramgw/internal/events"
	"github.com/tenzoki/agen/paramgw/internal/logging"
)

// Handler is the request-translation boundary the session calls for
// every inbound request/retrieve/event frame. internal/translator.
// Translator.Handle satisfies this signature.
type Handler func(payload []byte, fallbackID string, authCtx authz.AuthContext) []byte

// AuthResolver extracts an AuthContext from a frame, e.g. by reading a
// bearer token out of its content-type metadata. A nil resolver yields
// an unauthenticated context for every frame.
type AuthResolver func(f Frame) authz.AuthContext

// Session is the single-threaded receive loop against the uplink
// transport. It also implements events.Emitter so the Event Pipeline
// can push notifications out through the same transport.
type Session struct {
	transport      Transport
	handler        Handler
	resolveAuth    AuthResolver
	log            *logging.Logger
	serviceName    string
	eventsEndpoint string
	receiveTimeout time.Duration

	running  int32
	lastSeen int64 // unix millis of the last frame handled
}

// SetHandler assigns the request handler. Exists separately from
// NewSession so a Session can be constructed and handed to the Event
// Pipeline as an Emitter before the Translator (which depends on the
// pipeline) is built, breaking the construction cycle. Must be called
// before Run.
func (s *Session) SetHandler(h Handler) {
	s.handler = h
}

// NewSession constructs a Session. resolveAuth and handler may be nil;
// handler can be supplied later via SetHandler.
func NewSession(transport Transport, handler Handler, resolveAuth AuthResolver, log *logging.Logger, serviceName, eventsEndpoint string, receiveTimeoutSeconds int) *Session {
	if receiveTimeoutSeconds <= 0 {
		receiveTimeoutSeconds = 5
	}
	return &Session{
		transport:      transport,
		handler:        handler,
		resolveAuth:    resolveAuth,
		log:            log,
		serviceName:    serviceName,
		eventsEndpoint: eventsEndpoint,
		receiveTimeout: time.Duration(receiveTimeoutSeconds) * time.Second,
	}
}

// Run drives the receive loop until Stop is called or the transport
// reports a non-timeout error. Safe to call exactly once.
func (s *Session) Run() {
	atomic.StoreInt32(&s.running, 1)
	for atomic.LoadInt32(&s.running) == 1 {
		f, err := s.transport.Receive(s.receiveTimeout)
		if err == ErrReceiveTimeout {
			continue
		}
		if err != nil {
			s.log.Error("uplink receive error, stopping session: %v", err)
			return
		}
		s.handleFrame(f)
	}
}

// Stop sets the cancellation flag; the loop exits after its current
// iteration.
func (s *Session) Stop() {
	atomic.StoreInt32(&s.running, 0)
}

// LastSeen reports when the session last handled an inbound frame, for
// health-monitoring hooks. Zero time means no frame has arrived yet.
func (s *Session) LastSeen() time.Time {
	ms := atomic.LoadInt64(&s.lastSeen)
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func (s *Session) handleFrame(f Frame) {
	atomic.StoreInt64(&s.lastSeen, time.Now().UnixMilli())
	switch f.Kind {
	case KindRequest, KindRetrieve, KindEvent:
		if len(f.Payload) == 0 {
			s.log.Warn("dropping %s frame from %s with empty payload", f.Kind, f.Source)
			return
		}
		authCtx := authz.AuthContext{}
		if s.resolveAuth != nil {
			authCtx = s.resolveAuth(f)
		}
		respPayload := s.handler(f.Payload, f.TransactionUUID, authCtx)
		reply := f.reply(respPayload)
		if f.Kind == KindEvent && reply.Dest == "" {
			reply.Dest = s.eventsEndpoint
		}
		if err := s.transport.Send(reply); err != nil {
			s.log.Error("uplink send error replying to %s: %v", f.Source, err)
		}

	default:
		s.log.Debug("dropping unrecognized uplink frame kind %q from %s", f.Kind, f.Source)
	}
}

// Emit implements events.Emitter: frames n for its own destination, or
// for the events endpoint when that is empty, and sends it with the
// configured service name as source.
func (s *Session) Emit(n *events.Notification) error {
	payload, err := n.ToJSON()
	if err != nil {
		return err
	}
	dest := n.Destination
	if dest == "" {
		dest = s.eventsEndpoint
	}
	return s.transport.Send(Frame{
		Kind:    KindEvent,
		Source:  s.serviceName,
		Dest:    dest,
		Payload: payload,
	})
}
