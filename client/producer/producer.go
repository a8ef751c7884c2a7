// Package producer implements a Kafka producer which serializes messages,
// picks their partitions, and produces one record batch per partition.
package producer

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/mkocikowski/simplekafka"
	"github.com/mkocikowski/simplekafka/api"
	"github.com/mkocikowski/simplekafka/api/Produce"
	"github.com/mkocikowski/simplekafka/batch"
	"github.com/mkocikowski/simplekafka/client"
	"github.com/mkocikowski/simplekafka/partitioner"
	"github.com/mkocikowski/simplekafka/record"
)

func parseResponse(r *Produce.Response, topic string, partition int32) (*Response, error) {
	if len(r.TopicResponses) == 0 {
		// acks 0: the broker does not respond
		return &Response{Topic: topic, Partition: partition, BaseOffset: -1}, nil
	}
	if n := len(r.TopicResponses); n != 1 {
		return nil, fmt.Errorf("unexpected number of topic responses: %d", n)
	}
	tr := &(r.TopicResponses[0])
	if n := len(tr.PartitionResponses); n != 1 {
		return nil, fmt.Errorf("unexpected number of partition responses: %d", n)
	}
	pr := &(tr.PartitionResponses[0])
	return &Response{
		ThrottleTimeMs: r.ThrottleTimeMs,
		Topic:          tr.Topic,
		Partition:      pr.Partition,
		ErrorCode:      pr.ErrorCode,
		BaseOffset:     pr.BaseOffset,
		LogAppendTime:  pr.LogAppendTime,
		LogStartOffset: pr.LogStartOffset,
	}, nil
}

type Response struct {
	Topic          string
	Partition      int32
	ThrottleTimeMs int32
	ErrorCode      int16
	// BaseOffset is the offset of the first record of the batch, or -1
	// when produced with acks 0.
	BaseOffset     int64
	LogAppendTime  int64
	LogStartOffset int64
	NumRecords     int
}

// Err returns the error code in the response as *simplekafka.Error, or nil.
func (r *Response) Err() error {
	return simplekafka.ErrorForCode(api.Produce, r.Topic, r.Partition, r.ErrorCode)
}

// Message to produce. Key and Value are serialized with the producer's
// serializers.
type Message[K, V any] struct {
	Key     K
	Value   V
	Headers []record.Header
}

// Producer of messages with keys of type K and values of type V. Safe for
// concurrent use.
type Producer[K, V any] struct {
	client      *client.Client
	keys        simplekafka.Serializer[K]
	values      simplekafka.Serializer[V]
	partitioner partitioner.Partitioner
	logger      log.Logger
}

type Option[K, V any] func(*Producer[K, V])

// WithPartitioner replaces the default partitioner.LoadBalanced.
func WithPartitioner[K, V any](p partitioner.Partitioner) Option[K, V] {
	return func(producer *Producer[K, V]) { producer.partitioner = p }
}

// New producer. Use simplekafka.NullSerializer for messages with no keys.
func New[K, V any](c *client.Client, keys simplekafka.Serializer[K], values simplekafka.Serializer[V], logger log.Logger, opts ...Option[K, V]) *Producer[K, V] {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	p := &Producer[K, V]{
		client:      c,
		keys:        keys,
		values:      values,
		partitioner: &partitioner.LoadBalanced{},
		logger:      log.With(logger, "component", "producer"),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Produce messages to topic. Messages are assigned to partitions by the
// partitioner, and each partition gets a single batch with its messages in
// the order passed. Batches are produced one after another, in the order in
// which their partitions were first picked. There is one response per batch.
//
// On error the responses for batches already produced are returned with the
// error. It is possible that a batch was successfuly produced even when the
// call returns an error. This can happen when the connection is interrupted
// while the client is reading the response. Broker error codes are not
// returned as errors: see Response.Err.
func (p *Producer[K, V]) Produce(ctx context.Context, topic string, messages ...Message[K, V]) ([]*Response, error) {
	if len(messages) == 0 {
		return nil, batch.ErrEmpty
	}
	partitions, err := p.client.Resolver().Partitions(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("error getting partitions for topic %s: %w", topic, err)
	}
	now := time.Now()
	var order []int32
	builders := make(map[int32]*batch.Builder)
	for _, m := range messages {
		key, err := p.keys.Serialize(m.Key)
		if err != nil {
			return nil, fmt.Errorf("error serializing key: %w", err)
		}
		value, err := p.values.Serialize(m.Value)
		if err != nil {
			return nil, fmt.Errorf("error serializing value: %w", err)
		}
		partition, err := p.partitioner.Partition(topic, key, partitions)
		if err != nil {
			return nil, err
		}
		b, ok := builders[partition]
		if !ok {
			b = batch.NewBuilder(now)
			builders[partition] = b
			order = append(order, partition)
		}
		r := record.New(key, value)
		r.Headers = m.Headers
		b.Add(r)
	}
	var responses []*Response
	for _, partition := range order {
		b, err := builders[partition].Build(time.Now())
		if err != nil {
			return responses, err
		}
		resp, err := p.ProduceBatch(ctx, topic, partition, b)
		if err != nil {
			return responses, err
		}
		responses = append(responses, resp)
	}
	return responses, nil
}

// ProduceBatch sends a built batch to topic partition. Single request is made
// (no retries). The call is blocking.
func (p *Producer[K, V]) ProduceBatch(ctx context.Context, topic string, partition int32, b *batch.Batch) (*Response, error) {
	resp, err := p.client.Produce(ctx, topic, partition, b.Marshal())
	if err != nil {
		return nil, err
	}
	parsed, err := parseResponse(resp, topic, partition)
	if err != nil {
		return nil, err
	}
	parsed.NumRecords = int(b.NumRecords)
	if err := parsed.Err(); err != nil {
		level.Warn(p.logger).Log("msg", "produce failed", "topic", topic, "partition", partition, "err", err)
	}
	return parsed, nil
}
