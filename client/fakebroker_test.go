package client

import (
	"bufio"
	"net"
	"strconv"
	"sync"
	"testing"

	"github.com/mkocikowski/simplekafka/api"
)

// fakeRequest is a request read by fakeBroker, with the connection it came
// in on so the handler can answer it (or not) in any order.
type fakeRequest struct {
	Header *api.Header
	Body   []byte
	conn   net.Conn
}

// respond writes body as the response to r.
func (r *fakeRequest) respond(t *testing.T, body interface{}) {
	t.Helper()
	r.respondWithId(t, r.Header.CorrelationId, body)
}

func (r *fakeRequest) respondWithId(t *testing.T, correlationId int32, body interface{}) {
	t.Helper()
	b, err := api.MarshalResponse(correlationId, body)
	if err != nil {
		t.Error(err)
		return
	}
	if _, err := r.conn.Write(b); err != nil {
		t.Log(err)
	}
}

// fakeBroker accepts connections on a local port and passes every request it
// reads to the test through the requests channel.
type fakeBroker struct {
	ln       net.Listener
	requests chan *fakeRequest
	accepted chan struct{} // closed when accept returns
	wg       sync.WaitGroup

	mu    sync.Mutex
	conns []net.Conn
}

func newFakeBroker(t *testing.T) *fakeBroker {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	b := &fakeBroker{
		ln:       ln,
		requests: make(chan *fakeRequest, 100),
		accepted: make(chan struct{}),
	}
	go b.accept()
	t.Cleanup(b.Close)
	return b
}

func (b *fakeBroker) Addr() string { return b.ln.Addr().String() }

func (b *fakeBroker) hostPort(t *testing.T) (string, int32) {
	t.Helper()
	host, port, err := net.SplitHostPort(b.Addr())
	if err != nil {
		t.Fatal(err)
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		t.Fatal(err)
	}
	return host, int32(n)
}

// handle every request with f, in order, until the test ends.
func (b *fakeBroker) handle(t *testing.T, f func(r *fakeRequest)) {
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case r := <-b.requests:
				f(r)
			case <-stop:
				return
			}
		}
	}()
	t.Cleanup(func() {
		close(stop)
		<-done
	})
}

func (b *fakeBroker) numConns() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

func (b *fakeBroker) accept() {
	defer close(b.accepted)
	for {
		conn, err := b.ln.Accept()
		if err != nil {
			return
		}
		b.mu.Lock()
		b.conns = append(b.conns, conn)
		b.mu.Unlock()
		b.wg.Add(1)
		go b.serve(conn)
	}
}

func (b *fakeBroker) serve(conn net.Conn) {
	defer b.wg.Done()
	r := bufio.NewReader(conn)
	for {
		h, body, err := api.ReadRequest(r, 0)
		if err != nil {
			return
		}
		b.requests <- &fakeRequest{Header: h, Body: body, conn: conn}
	}
}

// DropConnections closes all accepted connections.
func (b *fakeBroker) DropConnections() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.conns {
		c.Close()
	}
	b.conns = nil
}

func (b *fakeBroker) Close() {
	b.ln.Close()
	<-b.accepted
	b.DropConnections()
	b.wg.Wait()
}
