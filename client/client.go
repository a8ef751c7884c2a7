// Package client has code for making api calls to brokers. A Client owns a
// registry of broker connections (Brokers, one multiplexed Conn per broker
// address) and a Resolver which finds partition leaders and group
// coordinators. Client calls are safe for concurrent use; calls to the same
// broker share one connection and block only the calling goroutine.
//
// If an API call can't complete the request-response round trip the call
// returns an error wrapping simplekafka.ErrBrokerUnavailable and the broker
// connection is replaced on the next call. If the response is parsed
// successfully no error is returned but this means only that the round trip
// was completed: there could be an error code returned in the Kafka response
// itself. Checking for and interpreting that error is up to the user (the
// offset package does this for offset calls). Retries are up to the user.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/twmb/franz-go/pkg/kerr"

	"github.com/mkocikowski/simplekafka/api"
	"github.com/mkocikowski/simplekafka/api/ApiVersions"
	"github.com/mkocikowski/simplekafka/api/Fetch"
	"github.com/mkocikowski/simplekafka/api/FindCoordinator"
	"github.com/mkocikowski/simplekafka/api/ListOffsets"
	"github.com/mkocikowski/simplekafka/api/Metadata"
	"github.com/mkocikowski/simplekafka/api/OffsetCommit"
	"github.com/mkocikowski/simplekafka/api/OffsetFetch"
	"github.com/mkocikowski/simplekafka/api/Produce"
)

type Client struct {
	cfg      Config
	logger   log.Logger
	metrics  *Metrics
	brokers  *Brokers
	resolver Resolver
	metadata *MetadataResolver
}

type Option func(*Client)

// WithResolver replaces the MetadataResolver used to find leaders and
// coordinators.
func WithResolver(r Resolver) Option {
	return func(c *Client) { c.resolver = r }
}

// New client. Metrics are registered with reg, which may be nil. No
// connections are opened until the first call.
func New(cfg Config, logger log.Logger, reg prometheus.Registerer, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client config: %w", err)
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	logger = log.With(logger, "component", "kafka_client")
	metrics := NewMetrics(reg)
	brokers := NewBrokers(cfg, logger, metrics)
	metadata, err := NewMetadataResolver(cfg, brokers, logger)
	if err != nil {
		return nil, err
	}
	c := &Client{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		brokers:  brokers,
		resolver: metadata,
		metadata: metadata,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Client) Config() Config { return c.cfg }

func (c *Client) Brokers() *Brokers { return c.brokers }

func (c *Client) Resolver() Resolver { return c.resolver }

func (c *Client) ClientId() string { return c.cfg.clientId() }

// Close all broker connections. Calls waiting for responses fail.
func (c *Client) Close() error {
	return c.brokers.Close()
}

type invalidator interface {
	Invalidate(topic string)
}

type coordinatorInvalidator interface {
	InvalidateCoordinator(group string)
}

// drop cached leaders after errors which mean the leader moved
func (c *Client) checkLeader(topic string, code int16) {
	switch kerr.ErrorForCode(code) {
	case kerr.NotLeaderForPartition, kerr.UnknownTopicOrPartition, kerr.LeaderNotAvailable, kerr.FencedLeaderEpoch:
		if i, ok := c.resolver.(invalidator); ok {
			i.Invalidate(topic)
		}
	}
}

func (c *Client) checkCoordinator(group string, code int16) {
	switch kerr.ErrorForCode(code) {
	case kerr.NotCoordinator, kerr.CoordinatorNotAvailable:
		if i, ok := c.resolver.(coordinatorInvalidator); ok {
			i.InvalidateCoordinator(group)
		}
	}
}

func (c *Client) callLeader(ctx context.Context, topic string, partition int32, req *api.Request, v interface{}) error {
	addr, err := c.resolver.Leader(ctx, topic, partition)
	if err != nil {
		return fmt.Errorf("error getting partition leader: %w", err)
	}
	if err := c.brokers.Call(ctx, addr, req, v); err != nil {
		return fmt.Errorf("error making call to partition leader: %w", err)
	}
	return nil
}

func (c *Client) callCoordinator(ctx context.Context, group string, req *api.Request, v interface{}) error {
	addr, err := c.resolver.Coordinator(ctx, group)
	if err != nil {
		return fmt.Errorf("error getting group coordinator: %w", err)
	}
	if err := c.brokers.Call(ctx, addr, req, v); err != nil {
		return fmt.Errorf("error making call to group coordinator: %w", err)
	}
	return nil
}

// Produce recordSet to the partition leader with Config.ProduceAcks. With acks
// 0 the broker does not respond and the returned response is empty.
func (c *Client) Produce(ctx context.Context, topic string, partition int32, recordSet []byte) (*Produce.Response, error) {
	args := &Produce.Args{
		ClientId:  c.ClientId(),
		Topic:     topic,
		Partition: partition,
		Acks:      int16(c.cfg.ProduceAcks),
		TimeoutMs: int32(c.cfg.ProduceTimeout / time.Millisecond),
	}
	req := Produce.NewRequest(args, recordSet)
	resp := &Produce.Response{}
	if err := c.callLeader(ctx, topic, partition, req, resp); err != nil {
		return nil, err
	}
	for _, t := range resp.TopicResponses {
		for _, p := range t.PartitionResponses {
			c.checkLeader(t.Topic, p.ErrorCode)
		}
	}
	return resp, nil
}

// Fetch from topic partition starting at offset, with Config fetch settings.
func (c *Client) Fetch(ctx context.Context, topic string, partition int32, offset int64) (*Fetch.Response, error) {
	args := &Fetch.Args{
		ClientId:      c.ClientId(),
		Topic:         topic,
		Partition:     partition,
		Offset:        offset,
		MinBytes:      int32(c.cfg.FetchMinBytes),
		MaxBytes:      int32(c.cfg.FetchMaxBytes),
		MaxWaitTimeMs: int32(c.cfg.FetchMaxWait / time.Millisecond),
	}
	req := Fetch.NewRequest(args)
	resp := &Fetch.Response{}
	if err := c.callLeader(ctx, topic, partition, req, resp); err != nil {
		return nil, err
	}
	if p := resp.PartitionResponse(topic, partition); p != nil {
		c.checkLeader(topic, p.ErrorCode)
	}
	return resp, nil
}

// ListOffsets for topic partition. timestamp is milliseconds since epoch, or
// one of ListOffsets.Earliest, ListOffsets.Latest.
func (c *Client) ListOffsets(ctx context.Context, topic string, partition int32, timestamp int64) (*ListOffsets.Response, error) {
	req := ListOffsets.NewRequest(c.ClientId(), topic, partition, timestamp)
	resp := &ListOffsets.Response{}
	if err := c.callLeader(ctx, topic, partition, req, resp); err != nil {
		return nil, err
	}
	if p := resp.Partition(topic, partition); p != nil {
		c.checkLeader(topic, p.ErrorCode)
	}
	return resp, nil
}

// Metadata for topics from any bootstrap broker. Nil topics means all topics.
func (c *Client) Metadata(ctx context.Context, topics []string) (*Metadata.Response, error) {
	req := Metadata.NewRequest(c.ClientId(), topics)
	resp := &Metadata.Response{}
	if err := c.metadata.Call(ctx, req, resp); err != nil {
		return nil, fmt.Errorf("error making metadata call: %w", err)
	}
	return resp, nil
}

// FindCoordinator for group from any bootstrap broker.
func (c *Client) FindCoordinator(ctx context.Context, group string) (*FindCoordinator.Response, error) {
	req := FindCoordinator.NewRequest(c.ClientId(), group)
	resp := &FindCoordinator.Response{}
	if err := c.metadata.Call(ctx, req, resp); err != nil {
		return nil, fmt.Errorf("error making find coordinator call: %w", err)
	}
	return resp, nil
}

// ApiVersions supported by the broker at addr.
func (c *Client) ApiVersions(ctx context.Context, addr string) (*ApiVersions.Response, error) {
	req := ApiVersions.NewRequest(c.ClientId())
	resp := &ApiVersions.Response{}
	if err := c.brokers.Call(ctx, addr, req, resp); err != nil {
		return nil, fmt.Errorf("error making api versions call: %w", err)
	}
	return resp, nil
}

// OffsetFetch committed offsets of group for topic partitions from the group
// coordinator.
func (c *Client) OffsetFetch(ctx context.Context, group, topic string, partitions ...int32) (*OffsetFetch.Response, error) {
	req := OffsetFetch.NewRequest(c.ClientId(), group, topic, partitions...)
	resp := &OffsetFetch.Response{}
	if err := c.callCoordinator(ctx, group, req, resp); err != nil {
		return nil, err
	}
	c.checkCoordinator(group, resp.ErrorCode)
	return resp, nil
}

// OffsetCommit offsets for group in a single request to the group
// coordinator, retained for Config.CommitRetention.
func (c *Client) OffsetCommit(ctx context.Context, group string, offsets []OffsetCommit.Offset) (*OffsetCommit.Response, error) {
	req := OffsetCommit.NewRequest(c.ClientId(), group, offsets, c.cfg.commitRetentionMs())
	resp := &OffsetCommit.Response{}
	if err := c.callCoordinator(ctx, group, req, resp); err != nil {
		return nil, err
	}
	for _, t := range resp.Topics {
		for _, p := range t.Partitions {
			c.checkCoordinator(group, p.ErrorCode)
		}
	}
	return resp, nil
}
