package session

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

type frame struct {
	messageType int
	data        []byte
}

// fakeTransport is an in-memory Transport. Writes can be held back through gate.
type fakeTransport struct {
	inbound  chan frame
	outbound chan []byte
	closed   chan struct{}
	once     sync.Once

	gate     chan struct{}
	pings    atomic.Int32
	writeErr atomic.Pointer[error]
	pong     func(string) error
	mu       sync.Mutex

	// clock, when set, makes ReadMessage fail once the read deadline has passed.
	clock         clockwork.Clock
	readDeadline  time.Time
	closeDeadline time.Time
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbound:  make(chan frame, 16),
		outbound: make(chan []byte, 1024),
		closed:   make(chan struct{}),
	}
}

func (f *fakeTransport) ReadMessage() (int, []byte, error) {
	if f.deadlineExpired() {
		return 0, nil, errReadTimeout
	}
	select {
	case fr := <-f.inbound:
		return fr.messageType, fr.data, nil
	case <-f.closed:
		return 0, nil, net.ErrClosed
	}
}

func (f *fakeTransport) WriteMessage(messageType int, data []byte) error {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-f.closed:
		}
	}
	select {
	case <-f.closed:
		return net.ErrClosed
	default:
	}
	if errp := f.writeErr.Load(); errp != nil {
		return *errp
	}
	if messageType == websocket.PingMessage {
		f.pings.Add(1)
		return nil
	}
	f.outbound <- data
	return nil
}

func (f *fakeTransport) WriteControl(messageType int, _ []byte, deadline time.Time) error {
	if messageType == websocket.CloseMessage {
		f.mu.Lock()
		f.closeDeadline = deadline
		f.mu.Unlock()
	}
	return nil
}

func (f *fakeTransport) SetReadDeadline(t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readDeadline = t
	return nil
}

func (f *fakeTransport) currentReadDeadline() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readDeadline
}

func (f *fakeTransport) deadlineExpired() bool {
	if f.clock == nil {
		return false
	}
	deadline := f.currentReadDeadline()
	return !deadline.IsZero() && !f.clock.Now().Before(deadline)
}

func (f *fakeTransport) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeTransport) SetPongHandler(h func(string) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pong = h
}

func (f *fakeTransport) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeTransport) failWrites(err error) {
	f.writeErr.Store(&err)
}

var (
	errBrokenPipe  = errors.New("broken pipe")
	errReadTimeout = errors.New("i/o timeout")
)
