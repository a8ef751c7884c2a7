package client

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"math"
	"net"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"go.uber.org/atomic"

	"github.com/mkocikowski/simplekafka"
	"github.com/mkocikowski/simplekafka/api"
	"github.com/mkocikowski/simplekafka/wire"
)

type State int32

const (
	Disconnected State = iota
	Connecting
	Ready
	// Faulted connections received a response frame they could not parse.
	Faulted
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	case Faulted:
		return "faulted"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

var errConnClosed = errors.New("connection closed")

type result struct {
	resp *api.Response
	err  error
}

// Conn is a connection to a single broker, shared by many callers. Requests
// are written one at a time under a write lock; a single reader goroutine
// matches responses to waiting callers by correlation id, so responses may
// arrive in any order. Once the connection fails every waiting caller gets
// simplekafka.ErrBrokerUnavailable and the connection stays failed: it is not
// re-established (Brokers dials a new one on next use). Safe for concurrent
// use.
type Conn struct {
	addr             string
	clientId         string
	maxResponseBytes int32
	writeTimeout     time.Duration
	logger           log.Logger
	metrics          *Metrics

	state atomic.Int32

	wmu  sync.Mutex // serializes frame writes
	conn net.Conn

	mu            sync.Mutex
	correlationId int32
	pending       map[int32]chan result
	err           error // set once, when the connection fails

	done chan struct{} // closed when the reader exits
}

// Dial connects to the broker at addr. Dial errors wrap
// simplekafka.ErrBrokerUnavailable.
func Dial(ctx context.Context, addr string, cfg Config, logger log.Logger, metrics *Metrics) (*Conn, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	metrics.connStates.WithLabelValues(Connecting.String()).Inc()
	dialer := &net.Dialer{Timeout: cfg.DialTimeout}
	var conn net.Conn
	var err error
	if tlsConfig := cfg.tlsConfig(); tlsConfig != nil {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		metrics.connStates.WithLabelValues(Disconnected.String()).Inc()
		return nil, fmt.Errorf("error connecting to broker %s (TLS: %v): %w: %w", addr, cfg.tlsConfig() != nil, simplekafka.ErrBrokerUnavailable, err)
	}
	return newConn(conn, addr, cfg, logger, metrics), nil
}

func newConn(conn net.Conn, addr string, cfg Config, logger log.Logger, metrics *Metrics) *Conn {
	c := &Conn{
		addr:             addr,
		clientId:         cfg.clientId(),
		maxResponseBytes: int32(cfg.MaxResponseBytes),
		writeTimeout:     cfg.WriteTimeout,
		logger:           log.With(logger, "component", "conn", "broker", addr),
		metrics:          metrics,
		conn:             conn,
		pending:          make(map[int32]chan result),
		done:             make(chan struct{}),
	}
	c.setState(Ready)
	go c.read()
	return c
}

func (c *Conn) Addr() string { return c.addr }

func (c *Conn) State() State {
	return State(c.state.Load())
}

func (c *Conn) setState(s State) {
	c.state.Store(int32(s))
	c.metrics.connStates.WithLabelValues(s.String()).Inc()
}

// Err returns the error the connection failed with, or nil while it is Ready.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// next correlation id not in flight. Wraps at math.MaxInt32. Call with c.mu
// held.
func (c *Conn) nextCorrelationId() int32 {
	for {
		id := c.correlationId
		if c.correlationId == math.MaxInt32 {
			c.correlationId = 0
		} else {
			c.correlationId++
		}
		if _, inFlight := c.pending[id]; !inFlight {
			return id
		}
	}
}

// register a request. ch is nil for requests that expect no response.
func (c *Conn) register(expectResponse bool) (int32, chan result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, nil, c.err
	}
	id := c.nextCorrelationId()
	if !expectResponse {
		return id, nil, nil
	}
	ch := make(chan result, 1)
	c.pending[id] = ch
	return id, ch, nil
}

func (c *Conn) unregister(id int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}

func (c *Conn) inFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Call sends req and unmarshals the response into v. The request is sent with
// the next correlation id and the connection's client id (when req has
// none); req itself is not modified. Requests that expect no response (see
// api.Request.ExpectResponse) return as soon as they are written, and v is
// ignored. If ctx is already done nothing is sent. If ctx is done before the
// response arrives, Call returns ctx.Err() and the connection stays up for
// other callers; the request may still be processed by the broker. Connection failures wrap
// simplekafka.ErrBrokerUnavailable. There is no retry.
func (c *Conn) Call(ctx context.Context, req *api.Request, v interface{}) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	apiName := req.ApiKey.String()
	c.metrics.requestsTotal.WithLabelValues(apiName).Inc()
	expect := req.ExpectResponse()
	id, ch, err := c.register(expect)
	if err != nil {
		c.metrics.requestErrors.WithLabelValues(apiName, "unavailable").Inc()
		return err
	}
	r := *req
	r.CorrelationId = id
	if r.ClientId == "" {
		r.ClientId = c.clientId
	}
	b, err := r.Bytes()
	if err != nil {
		c.unregister(id)
		c.metrics.requestErrors.WithLabelValues(apiName, "encode").Inc()
		return err
	}
	c.metrics.inflight.Inc()
	defer c.metrics.inflight.Dec()
	start := time.Now()
	if err := c.write(b); err != nil {
		c.metrics.requestErrors.WithLabelValues(apiName, "write").Inc()
		c.fail(Disconnected, err)
		return fmt.Errorf("error sending %v request to %s: %w: %w", r.ApiKey, c.addr, simplekafka.ErrBrokerUnavailable, err)
	}
	if !expect {
		return nil
	}
	select {
	case res := <-ch:
		c.metrics.requestDuration.WithLabelValues(apiName).Observe(time.Since(start).Seconds())
		if res.err != nil {
			c.metrics.requestErrors.WithLabelValues(apiName, "unavailable").Inc()
			return res.err
		}
		if v == nil {
			return nil
		}
		if err := res.resp.Unmarshal(&r, v); err != nil {
			c.metrics.requestErrors.WithLabelValues(apiName, "decode").Inc()
			return err
		}
		return nil
	case <-ctx.Done():
		c.unregister(id)
		c.metrics.requestErrors.WithLabelValues(apiName, "canceled").Inc()
		return ctx.Err()
	}
}

// write a whole frame. The deadline is the connection's write timeout, never a
// caller's context: an unfinished frame leaves the stream unusable for every
// caller, so a write that times out fails the connection.
func (c *Conn) write(b []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	var deadline time.Time
	if c.writeTimeout > 0 {
		deadline = time.Now().Add(c.writeTimeout)
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	_, err := c.conn.Write(b)
	return err
}

// read runs in its own goroutine for the lifetime of the connection. It is the
// only reader of the socket.
func (c *Conn) read() {
	defer close(c.done)
	r := bufio.NewReader(c.conn)
	for {
		resp, err := api.ReadResponse(r, c.maxResponseBytes)
		if err != nil {
			state := Disconnected
			if errors.Is(err, wire.ErrMalformedResponse) {
				state = Faulted
			}
			c.fail(state, err)
			return
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.CorrelationId]
		delete(c.pending, resp.CorrelationId)
		c.mu.Unlock()
		if !ok {
			c.metrics.unmatchedResponses.Inc()
			level.Warn(c.logger).Log("msg", "discarding response with unknown correlation id", "correlation_id", resp.CorrelationId, "bytes", len(resp.Bytes()))
			continue
		}
		ch <- result{resp: resp} // buffered, never blocks
	}
}

// fail the connection: close the socket and fail every pending request. Only
// the first call has effect.
func (c *Conn) fail(state State, cause error) {
	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return
	}
	err := fmt.Errorf("connection to broker %s: %w: %w", c.addr, simplekafka.ErrBrokerUnavailable, cause)
	c.err = err
	pending := c.pending
	c.pending = make(map[int32]chan result)
	c.setState(state)
	c.mu.Unlock()

	c.conn.Close()
	for _, ch := range pending {
		ch <- result{err: err}
	}
	if cause == errConnClosed {
		level.Debug(c.logger).Log("msg", "connection closed", "pending", len(pending))
		return
	}
	level.Warn(c.logger).Log("msg", "connection failed", "state", state, "pending", len(pending), "err", cause)
}

// Close the connection. Requests waiting for a response fail with
// simplekafka.ErrBrokerUnavailable. Blocks until the reader goroutine exits.
func (c *Conn) Close() error {
	c.fail(Disconnected, errConnClosed)
	<-c.done
	return nil
}
