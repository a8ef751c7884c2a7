// Package consumer implements a single partition Kafka consumer. The consumer
// resolves its starting offset with an offset.TopicSelector on the first
// Receive, advances past the messages it returns, and commits its progress
// for a consumer group on request. There is no group membership: partitions
// are assigned by the user.
package consumer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/mkocikowski/simplekafka"
	"github.com/mkocikowski/simplekafka/client"
	"github.com/mkocikowski/simplekafka/client/fetcher"
	"github.com/mkocikowski/simplekafka/offset"
	"github.com/mkocikowski/simplekafka/record"
)

type Message[K, V any] struct {
	Topic     string
	Partition int32
	Offset    int64
	Timestamp time.Time
	Key       K
	Value     V
	Headers   []record.Header
}

// Consumer of one topic partition for a consumer group. Safe for concurrent
// use, but calls are serialized.
type Consumer[K, V any] struct {
	group     string
	selector  offset.TopicSelector
	keys      simplekafka.Serializer[K]
	values    simplekafka.Serializer[V]
	fetcher   *fetcher.Fetcher
	resolver  *offset.Resolver
	committer *offset.Committer
	logger    log.Logger

	mu       sync.Mutex
	resolved bool
	next     int64 // offset of the next message to receive
	consumed int64 // offset of the last message received, or -1
}

// New consumer. The group is used by the NextUncommitted strategy and by
// Commit; it may be empty for consumers which do neither. The selector is
// validated here.
func New[K, V any](c *client.Client, group string, selector offset.TopicSelector, keys simplekafka.Serializer[K], values simplekafka.Serializer[V], logger log.Logger) (*Consumer[K, V], error) {
	if err := selector.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	logger = log.With(logger, "component", "consumer", "topic", selector.Topic, "partition", selector.Partition)
	return &Consumer[K, V]{
		group:     group,
		selector:  selector,
		keys:      keys,
		values:    values,
		fetcher:   fetcher.New(c),
		resolver:  offset.NewResolver(c, logger),
		committer: offset.NewCommitter(c, logger),
		logger:    logger,
		consumed:  -1,
	}, nil
}

// Offset of the next message to be received, and false if the starting offset
// has not been resolved yet.
func (c *Consumer[K, V]) Offset() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next, c.resolved
}

func (c *Consumer[K, V]) start(ctx context.Context) error {
	if c.resolved {
		return nil
	}
	o, err := c.resolver.Resolve(ctx, c.group, c.selector)
	if err != nil {
		return fmt.Errorf("error resolving starting offset: %w", err)
	}
	c.next = o.Offset
	c.resolved = true
	level.Debug(c.logger).Log("msg", "starting", "offset", o.Offset)
	return nil
}

// Receive the messages after the last received one (on the first call, from
// the offset the selector resolves to). A single fetch is made, so the call
// returns no messages when there are none within the client's fetch max
// wait. Broker error codes are returned as *simplekafka.Error; on any error
// the consumer's position does not change.
func (c *Consumer[K, V]) Receive(ctx context.Context) ([]Message[K, V], error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.start(ctx); err != nil {
		return nil, err
	}
	resp, err := c.fetcher.Fetch(ctx, c.selector.Topic, c.selector.Partition, c.next)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	records, err := resp.Records()
	if err != nil {
		return nil, err
	}
	var messages []Message[K, V]
	for _, r := range records {
		if r.Offset < c.next {
			continue // fetch starts at the batch holding the offset
		}
		key, err := c.keys.Deserialize(r.Key)
		if err != nil {
			return nil, fmt.Errorf("error deserializing key at offset %d: %w", r.Offset, err)
		}
		value, err := c.values.Deserialize(r.Value)
		if err != nil {
			return nil, fmt.Errorf("error deserializing value at offset %d: %w", r.Offset, err)
		}
		messages = append(messages, Message[K, V]{
			Topic:     resp.Topic,
			Partition: resp.Partition,
			Offset:    r.Offset,
			Timestamp: r.Timestamp,
			Key:       key,
			Value:     value,
			Headers:   r.Headers,
		})
	}
	if n := len(messages); n > 0 {
		c.consumed = messages[n-1].Offset
		c.next = c.consumed + 1
	}
	return messages, nil
}

// Commit the offset of the last received message for the group. Nothing is
// sent when no message has been received.
func (c *Consumer[K, V]) Commit(ctx context.Context) (*offset.CommitResult, error) {
	c.mu.Lock()
	consumed := c.consumed
	c.mu.Unlock()
	if consumed < 0 {
		return &offset.CommitResult{}, nil
	}
	return c.CommitOffset(ctx, consumed)
}

// CommitOffset commits o as the offset of the last consumed message of the
// partition for the group. The consumer's own position does not change.
func (c *Consumer[K, V]) CommitOffset(ctx context.Context, o int64) (*offset.CommitResult, error) {
	tpo := offset.TopicPartitionOffset{Topic: c.selector.Topic, Partition: c.selector.Partition, Offset: o}
	res, err := c.committer.Commit(ctx, c.group, tpo)
	if err != nil {
		return nil, err
	}
	return res, res.Err()
}
