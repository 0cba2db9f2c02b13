// Package transport owns the single WebSocket connection to the analysis
// server. Telemetry batches and commands go out on it; server replies come
// back on it.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"bvp_relay/internal/logger"
	"bvp_relay/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Close reasons sent with the normal-closure code.
const (
	ReasonReconnecting  = "Reconnecting"
	ReasonDisconnecting = "Disconnecting"
)

const (
	writeWait        = 10 * time.Second
	closeGrace       = 2 * time.Second
	handshakeTimeout = 10 * time.Second
	maxMsgSize       = 1 << 16 // 64 KB
	DefaultQueueSize = 64
)

var ErrInvalidEndpoint = errors.New("invalid endpoint: host and port 1-65535 required")

// State of a connection.
type State int32

const (
	StateClosed State = iota
	StateOpening
	StateOpen
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpening:
		return "OPENING"
	case StateOpen:
		return "OPEN"
	case StateClosing:
		return "CLOSING"
	}
	return fmt.Sprintf("STATE(%d)", int32(s))
}

// Handler receives connection callbacks. Both methods run on the
// connection's I/O goroutines, never on the caller of Send.
type Handler interface {
	OnOpen(endpoint models.Endpoint)
	OnMessage(data []byte)
}

// Options configure a Session.
type Options struct {
	QueueSize int               // outbound messages buffered per connection
	Dialer    *websocket.Dialer // nil means websocket.DefaultDialer with a 10s handshake timeout
	Log       *logger.Logger
}

// Session holds at most one live connection. Open and Close are
// serialized internally; Send may be called from any goroutine.
type Session struct {
	dialer    *websocket.Dialer
	queueSize int
	log       *logger.Logger

	mu      sync.Mutex
	handler Handler
	cur     atomic.Pointer[link]
}

// link is one physical connection attempt and its goroutines.
type link struct {
	id       string
	endpoint models.Endpoint
	state    atomic.Int32
	out      chan []byte
	quit     chan string // carries the close reason
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewSession(opts Options) *Session {
	if opts.QueueSize < 1 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Dialer == nil {
		d := *websocket.DefaultDialer
		d.HandshakeTimeout = handshakeTimeout
		opts.Dialer = &d
	}
	return &Session{
		dialer:    opts.Dialer,
		queueSize: opts.QueueSize,
		log:       opts.Log,
	}
}

// SetHandler registers the callback consumer. Call it before Open.
func (s *Session) SetHandler(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// Open starts connecting to endpoint and returns immediately. A connection
// that is still opening or open is closed first with ReasonReconnecting.
func (s *Session) Open(endpoint models.Endpoint) error {
	if !endpoint.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidEndpoint, endpoint.Address())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old := s.cur.Load(); old != nil {
		s.shutdown(old, ReasonReconnecting)
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &link{
		id:       uuid.NewString(),
		endpoint: endpoint,
		out:      make(chan []byte, s.queueSize),
		quit:     make(chan string, 1),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	l.state.Store(int32(StateOpening))
	s.cur.Store(l)

	go s.run(ctx, l, s.handler)
	return nil
}

// Close shuts the current connection down with a normal-closure frame
// carrying reason. It reports whether a connection was opening or open.
func (s *Session) Close(reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.cur.Load()
	if l == nil {
		return false
	}
	s.cur.Store(nil)
	return s.shutdown(l, reason)
}

// Send queues msg as a text frame. Without an open connection, or with a
// full queue, the message is dropped and Send returns false.
func (s *Session) Send(msg []byte) bool {
	l := s.cur.Load()
	if l == nil || State(l.state.Load()) != StateOpen {
		if s.log != nil {
			s.log.Debugw("transport_send_dropped", "reason", "not_open", "bytes", len(msg))
		}
		return false
	}
	select {
	case l.out <- msg:
		return true
	default:
		if s.log != nil {
			s.log.Warnw("transport_send_dropped", "reason", "queue_full", "session", l.id)
		}
		return false
	}
}

// State returns the state of the current connection.
func (s *Session) State() State {
	l := s.cur.Load()
	if l == nil {
		return StateClosed
	}
	return State(l.state.Load())
}

// Endpoint returns the endpoint of the connection that is opening or open.
func (s *Session) Endpoint() (models.Endpoint, bool) {
	l := s.cur.Load()
	if l == nil {
		return models.Endpoint{}, false
	}
	switch State(l.state.Load()) {
	case StateOpening, StateOpen:
		return l.endpoint, true
	}
	return models.Endpoint{}, false
}

// shutdown moves l to Closing and waits for its goroutine to finish.
// Callers hold s.mu.
func (s *Session) shutdown(l *link, reason string) bool {
	for {
		st := State(l.state.Load())
		if st != StateOpening && st != StateOpen {
			return false
		}
		if l.state.CompareAndSwap(int32(st), int32(StateClosing)) {
			break
		}
	}
	l.quit <- reason
	l.cancel()

	select {
	case <-l.done:
	case <-time.After(writeWait + closeGrace):
		if s.log != nil {
			s.log.Warnw("transport_close_timeout", "session", l.id)
		}
	}
	return true
}

// run dials, then owns every write on the connection until it ends.
func (s *Session) run(ctx context.Context, l *link, h Handler) {
	defer close(l.done)
	defer l.cancel()
	defer l.state.Store(int32(StateClosed))

	u := url.URL{Scheme: "ws", Host: l.endpoint.Address(), Path: "/"}
	ws, err := s.dial(ctx, u.String())
	if err != nil {
		if s.log != nil && ctx.Err() == nil {
			s.log.Errorw("transport_open_failed", "err", err, "endpoint", u.String(), "session", l.id)
		}
		return
	}
	defer func() { _ = ws.Close() }()

	if !l.state.CompareAndSwap(int32(StateOpening), int32(StateOpen)) {
		// Closed while the handshake was in flight.
		writeClose(ws, <-l.quit)
		return
	}
	if s.log != nil {
		s.log.Infow("transport_open", "endpoint", u.String(), "session", l.id)
	}

	ws.SetReadLimit(maxMsgSize)
	readerDone := make(chan struct{})
	go s.readLoop(l, ws, h, readerDone)

	if h != nil {
		h.OnOpen(l.endpoint)
	}

	for {
		select {
		case msg := <-l.out:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				if s.log != nil {
					s.log.Errorw("transport_write_failed", "err", err, "session", l.id)
				}
				return
			}
		case <-readerDone:
			return
		case reason := <-l.quit:
			writeClose(ws, reason)
			select {
			case <-readerDone:
			case <-time.After(closeGrace):
			}
			if s.log != nil {
				s.log.Infow("transport_closed", "reason", reason, "session", l.id)
			}
			return
		}
	}
}

// dial runs the WebSocket handshake. Canceling ctx closes the raw
// connection, so a server that accepts TCP but never answers the upgrade
// cannot hold up Close or a re-Open.
func (s *Session) dial(ctx context.Context, rawURL string) (*websocket.Conn, error) {
	d := *s.dialer
	netDial := d.NetDialContext
	if netDial == nil {
		if d.NetDial != nil {
			plain := d.NetDial
			netDial = func(_ context.Context, network, addr string) (net.Conn, error) {
				return plain(network, addr)
			}
		} else {
			netDial = (&net.Dialer{}).DialContext
		}
	}

	var (
		mu    sync.Mutex
		stops []func() bool
	)
	d.NetDialContext = func(dialCtx context.Context, network, addr string) (net.Conn, error) {
		conn, err := netDial(dialCtx, network, addr)
		if err != nil {
			return nil, err
		}
		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
		mu.Lock()
		stops = append(stops, stop)
		mu.Unlock()
		return conn, nil
	}

	ws, _, err := d.DialContext(ctx, rawURL, nil)

	// From here on the connection is closed by run.
	mu.Lock()
	for _, stop := range stops {
		stop()
	}
	mu.Unlock()
	return ws, err
}

// readLoop delivers inbound text frames until the connection ends.
func (s *Session) readLoop(l *link, ws *websocket.Conn, h Handler, done chan<- struct{}) {
	defer close(done)
	for {
		typ, data, err := ws.ReadMessage()
		if err != nil {
			if s.log != nil && State(l.state.Load()) == StateOpen {
				s.log.Infow("transport_read_closed", "err", err, "session", l.id)
			}
			return
		}
		if typ != websocket.TextMessage || h == nil {
			continue
		}
		h.OnMessage(data)
	}
}

func writeClose(ws *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
