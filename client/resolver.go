package client

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strconv"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mkocikowski/simplekafka"
	"github.com/mkocikowski/simplekafka/api"
	"github.com/mkocikowski/simplekafka/api/FindCoordinator"
	"github.com/mkocikowski/simplekafka/api/Metadata"
)

var (
	ErrUnknownTopic          = errors.New("topic not in metadata response")
	ErrPartitionDoesNotExist = errors.New("partition does not exist")
	ErrNoLeaderForPartition  = errors.New("no leader for partition")
)

// Resolver finds the brokers responsible for topic partitions and consumer
// groups.
type Resolver interface {
	// Leader returns host:port of the partition leader.
	Leader(ctx context.Context, topic string, partition int32) (string, error)
	// Partitions returns the sorted partition ids of the topic.
	Partitions(ctx context.Context, topic string) ([]int32, error)
	// Coordinator returns host:port of the group coordinator.
	Coordinator(ctx context.Context, group string) (string, error)
}

// LookupSrv returns a list of host:port strings in the order returned by the
// srv lookup call.
func LookupSrv(name string) ([]string, error) {
	_, srvs, err := net.LookupSRV("", "", name)
	if err != nil {
		return nil, err
	}
	var addrs []string
	for _, srv := range srvs {
		host := net.JoinHostPort(srv.Target, strconv.Itoa(int(srv.Port)))
		addrs = append(addrs, host)
	}
	return addrs, nil
}

// RandomBroker tries to resolve name through a call to LookupSrv. If
// successful it returns a random host:port from the list. If LookupSrv fails
// it returns name unmodified (so you can pass "localhost:9092" for example).
func RandomBroker(name string) string {
	addrs, err := LookupSrv(name)
	if err != nil || len(addrs) == 0 {
		return name
	}
	return addrs[rand.Intn(len(addrs))]
}

// cached is a cache entry valid until expires.
type cached[V any] struct {
	value   V
	expires time.Time
}

// ttlCache is a fixed size lru cache whose entries expire after maxAge. Safe
// for concurrent use.
type ttlCache[V any] struct {
	maxAge time.Duration
	lru    *lru.Cache[string, cached[V]]
}

func newTTLCache[V any](size int, maxAge time.Duration) (*ttlCache[V], error) {
	c, err := lru.New[string, cached[V]](size)
	if err != nil {
		return nil, err
	}
	return &ttlCache[V]{maxAge: maxAge, lru: c}, nil
}

func (c *ttlCache[V]) Get(key string) (V, bool) {
	e, ok := c.lru.Get(key)
	if !ok || time.Now().After(e.expires) {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *ttlCache[V]) Add(key string, value V) {
	c.lru.Add(key, cached[V]{value: value, expires: time.Now().Add(c.maxAge)})
}

func (c *ttlCache[V]) Remove(key string) {
	c.lru.Remove(key)
}

// MetadataResolver resolves leaders with Metadata calls and coordinators with
// FindCoordinator calls to the bootstrap brokers. Results are cached for
// Config.MetadataMaxAge. Broker error codes are returned as
// *simplekafka.Error.
type MetadataResolver struct {
	bootstrap    []string
	clientId     string
	brokers      *Brokers
	logger       log.Logger
	topics       *ttlCache[*Metadata.Response]
	coordinators *ttlCache[string]
}

func NewMetadataResolver(cfg Config, brokers *Brokers, logger log.Logger) (*MetadataResolver, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	topics, err := newTTLCache[*Metadata.Response](cfg.MetadataCacheSize, cfg.MetadataMaxAge)
	if err != nil {
		return nil, fmt.Errorf("error creating metadata cache: %w", err)
	}
	coordinators, err := newTTLCache[string](cfg.MetadataCacheSize, cfg.MetadataMaxAge)
	if err != nil {
		return nil, fmt.Errorf("error creating coordinator cache: %w", err)
	}
	return &MetadataResolver{
		bootstrap:    cfg.BootstrapAddrs(),
		clientId:     cfg.clientId(),
		brokers:      brokers,
		logger:       log.With(logger, "component", "resolver"),
		topics:       topics,
		coordinators: coordinators,
	}, nil
}

// bootstrapAddrs in random order, with srv names (names without a port)
// resolved.
func (r *MetadataResolver) bootstrapAddrs() []string {
	var addrs []string
	for _, name := range r.bootstrap {
		if _, _, err := net.SplitHostPort(name); err == nil {
			addrs = append(addrs, name)
			continue
		}
		if srv, err := LookupSrv(name); err == nil && len(srv) > 0 {
			addrs = append(addrs, srv...)
			continue
		}
		addrs = append(addrs, name)
	}
	rand.Shuffle(len(addrs), func(i, j int) {
		addrs[i], addrs[j] = addrs[j], addrs[i]
	})
	return addrs
}

// Call req on any of the bootstrap brokers.
func (r *MetadataResolver) Call(ctx context.Context, req *api.Request, v interface{}) error {
	return r.brokers.CallAny(ctx, r.bootstrapAddrs(), req, v)
}

func (r *MetadataResolver) metadata(ctx context.Context, topic string) (*Metadata.Response, error) {
	if m, ok := r.topics.Get(topic); ok {
		return m, nil
	}
	req := Metadata.NewRequest(r.clientId, []string{topic})
	resp := &Metadata.Response{}
	if err := r.Call(ctx, req, resp); err != nil {
		return nil, fmt.Errorf("error getting metadata for topic %s: %w", topic, err)
	}
	t := resp.Topic(topic)
	if t == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
	if err := simplekafka.ErrorForCode(api.Metadata, topic, -1, t.ErrorCode); err != nil {
		return nil, err
	}
	r.topics.Add(topic, resp)
	return resp, nil
}

func (r *MetadataResolver) Partitions(ctx context.Context, topic string) ([]int32, error) {
	m, err := r.metadata(ctx, topic)
	if err != nil {
		return nil, err
	}
	return m.PartitionIds(topic), nil
}

func (r *MetadataResolver) Leader(ctx context.Context, topic string, partition int32) (string, error) {
	m, err := r.metadata(ctx, topic)
	if err != nil {
		return "", err
	}
	if p := m.Partitions(topic)[partition]; p == nil {
		return "", fmt.Errorf("%w: %s-%d", ErrPartitionDoesNotExist, topic, partition)
	}
	leader := m.Leaders(topic)[partition]
	if leader == nil {
		r.Invalidate(topic)
		return "", fmt.Errorf("%w: %s-%d", ErrNoLeaderForPartition, topic, partition)
	}
	return leader.Addr(), nil
}

func (r *MetadataResolver) Coordinator(ctx context.Context, group string) (string, error) {
	if addr, ok := r.coordinators.Get(group); ok {
		return addr, nil
	}
	req := FindCoordinator.NewRequest(r.clientId, group)
	resp := &FindCoordinator.Response{}
	if err := r.Call(ctx, req, resp); err != nil {
		return "", fmt.Errorf("error finding coordinator for group %s: %w", group, err)
	}
	if err := simplekafka.ErrorForCode(api.FindCoordinator, "", 0, resp.ErrorCode); err != nil {
		return "", err
	}
	addr := resp.Addr()
	r.coordinators.Add(group, addr)
	level.Debug(r.logger).Log("msg", "found group coordinator", "group", group, "coordinator", addr)
	return addr, nil
}

// Invalidate cached metadata for topic. The next call for it asks the
// brokers again.
func (r *MetadataResolver) Invalidate(topic string) {
	r.topics.Remove(topic)
}

func (r *MetadataResolver) InvalidateCoordinator(group string) {
	r.coordinators.Remove(group)
}
