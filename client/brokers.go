package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/singleflight"

	"github.com/mkocikowski/simplekafka"
	"github.com/mkocikowski/simplekafka/api"
)

var ErrClosed = errors.New("client closed")

// Brokers is the registry of broker connections: one Conn per address,
// dialed on first use and shared by all callers. A Conn that failed is
// replaced by a new one on the next call for its address. Concurrent calls
// for an address with no Ready connection share a single dial. Safe for
// concurrent use.
type Brokers struct {
	cfg     Config
	logger  log.Logger
	metrics *Metrics

	dials singleflight.Group

	mu     sync.Mutex
	conns  map[string]*Conn
	closed bool
}

func NewBrokers(cfg Config, logger log.Logger, metrics *Metrics) *Brokers {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Brokers{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		conns:   make(map[string]*Conn),
	}
}

func (b *Brokers) ready(addr string) (*Conn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	if c := b.conns[addr]; c != nil && c.State() == Ready {
		return c, nil
	}
	return nil, nil
}

// Get the connection to addr, dialing it if there is no Ready one. The dial is
// shared with concurrent callers, so it does not stop when ctx is done: only
// this caller stops waiting for it, and the connection is kept for later use.
func (b *Brokers) Get(ctx context.Context, addr string) (*Conn, error) {
	if c, err := b.ready(addr); c != nil || err != nil {
		return c, err
	}
	dialCtx := context.WithoutCancel(ctx)
	ch := b.dials.DoChan(addr, func() (interface{}, error) {
		return b.dial(dialCtx, addr)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Conn), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *Brokers) dial(ctx context.Context, addr string) (*Conn, error) {
	if c, err := b.ready(addr); c != nil || err != nil {
		return c, err
	}
	if b.cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.DialTimeout)
		defer cancel()
	}
	c, err := Dial(ctx, addr, b.cfg, b.logger, b.metrics)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		c.Close()
		return nil, ErrClosed
	}
	if old := b.conns[addr]; old != nil {
		old.Close() // already failed, returns once its reader exits
	}
	b.conns[addr] = c
	level.Debug(b.logger).Log("msg", "connected to broker", "broker", addr)
	return c, nil
}

// Call req on the broker at addr. See Conn.Call.
func (b *Brokers) Call(ctx context.Context, addr string, req *api.Request, v interface{}) error {
	c, err := b.Get(ctx, addr)
	if err != nil {
		return err
	}
	return c.Call(ctx, req, v)
}

// CallAny tries addrs in order until one of them can be reached. Errors other
// than simplekafka.ErrBrokerUnavailable are returned immediately.
func (b *Brokers) CallAny(ctx context.Context, addrs []string, req *api.Request, v interface{}) error {
	err := fmt.Errorf("no broker addresses: %w", simplekafka.ErrBrokerUnavailable)
	for _, addr := range addrs {
		if err = b.Call(ctx, addr, req, v); err == nil || !errors.Is(err, simplekafka.ErrBrokerUnavailable) {
			return err
		}
		level.Debug(b.logger).Log("msg", "broker unavailable", "broker", addr, "err", err)
	}
	return err
}

// Close all connections. Pending calls fail with
// simplekafka.ErrBrokerUnavailable and later calls with ErrClosed.
func (b *Brokers) Close() error {
	b.mu.Lock()
	b.closed = true
	conns := b.conns
	b.conns = make(map[string]*Conn)
	b.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
	return nil
}
