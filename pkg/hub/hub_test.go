package hub

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-putt/internal/log"
)

type fakeConn struct {
	mu      sync.Mutex
	written []string
	types   []int

	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn { return &fakeConn{closed: make(chan struct{})} }

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	<-f.closed
	return 0, nil, io.EOF
}

func (f *fakeConn) WriteMessage(t int, data []byte) error {
	select {
	case <-f.closed:
		return io.ErrClosedPipe
	default:
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types = append(f.types, t)
	f.written = append(f.written, string(data))
	return nil
}

func (f *fakeConn) SetReadLimit(int64) {}

func (f *fakeConn) SetReadDeadline(time.Time) error { return nil }

func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeConn) SetPongHandler(func(string) error) {}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.written...)
}

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := New("test", log.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)
	require.Eventually(t, h.IsRunning, time.Second, time.Millisecond)
	return h, cancel
}

func TestHub_SlowClientKeepsOnlyLatest(t *testing.T) {
	h, _ := startHub(t)

	// No pumps: nothing drains the client's queue.
	c := NewClient(h, newFakeConn())
	require.Equal(t, 1, h.ClientCount())

	for _, s := range []string{"1", "2", "3"} {
		h.Broadcast(NewJSONMessage([]byte(s)))
	}
	require.Eventually(t, func() bool { return h.Replaced() == 2 }, time.Second, time.Millisecond)

	msg := <-c.send
	assert.Equal(t, "3", string(msg.Data))
	select {
	case m := <-c.send:
		t.Fatalf("unexpected second message %q", m.Data)
	default:
	}
}

func TestHub_NewClientGetsLastMessage(t *testing.T) {
	h, _ := startHub(t)

	require.NoError(t, h.BroadcastJSON(map[string]int{"level": 2}))
	c := NewClient(h, newFakeConn())

	select {
	case msg := <-c.send:
		assert.JSONEq(t, `{"level":2}`, string(msg.Data))
	case <-time.After(time.Second):
		t.Fatal("no message for new client")
	}
}

func TestClient_PumpsAndDisconnect(t *testing.T) {
	h, _ := startHub(t)
	conn := newFakeConn()
	c := NewClient(h, conn)

	done := make(chan struct{})
	go func() {
		c.Run()
		close(done)
	}()

	h.Broadcast(NewJSONMessage([]byte(`{"n":1}`)))
	require.Eventually(t, func() bool { return len(conn.messages()) == 1 }, time.Second, time.Millisecond)
	require.NoError(t, h.BroadcastJSON(map[string]int{"n": 2}))
	require.Eventually(t, func() bool { return len(conn.messages()) == 2 }, time.Second, time.Millisecond)

	conn.mu.Lock()
	assert.Equal(t, []int{websocket.TextMessage, websocket.TextMessage}, conn.types)
	conn.mu.Unlock()
	assert.JSONEq(t, `{"n":2}`, conn.messages()[1])

	require.NoError(t, conn.Close())
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("client did not stop")
	}
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, time.Millisecond)
}

func TestHub_StopClosesClients(t *testing.T) {
	h, cancel := startHub(t)
	c := NewClient(h, newFakeConn())

	cancel()
	require.Eventually(t, func() bool { return !h.IsRunning() }, time.Second, time.Millisecond)

	_, ok := <-c.send
	assert.False(t, ok)
	assert.Equal(t, 0, h.ClientCount())

	late := NewClient(h, newFakeConn())
	_, ok = <-late.send
	assert.False(t, ok, "registration after stop must not block")
}
