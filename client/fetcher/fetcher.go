// Package fetcher implements a single partition Kafka fetcher. A "fetcher", in
// my nomenclature, is different from a "consumer" in that it does no offset
// management of its own: every fetch is made at an explicit offset, and the
// fetcher does not remember it. The reason for this is that there are many
// nuanced error scenarios (example: fetch response successful; 3rd out of 5
// returned batches is corrupted) and so it makes sense to push the error
// handling logic (and the logic responsible for advancing and storing offsets)
// to a higher level library or even to the user. The consumer package is one
// such library.
package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/mkocikowski/simplekafka"
	"github.com/mkocikowski/simplekafka/api"
	"github.com/mkocikowski/simplekafka/api/Fetch"
	"github.com/mkocikowski/simplekafka/api/ListOffsets"
	"github.com/mkocikowski/simplekafka/batch"
	"github.com/mkocikowski/simplekafka/record"
)

func parseResponse(r *Fetch.Response, topic string, partition int32, offset int64) (*Response, error) {
	if n := len(r.TopicResponses); n != 1 {
		return nil, fmt.Errorf("unexpected number of topic responses: %d", n)
	}
	p := r.PartitionResponse(topic, partition)
	if p == nil {
		return nil, fmt.Errorf("no response for %s-%d: %w", topic, partition, simplekafka.ErrMalformedResponse)
	}
	return &Response{
		Topic:            topic,
		Partition:        partition,
		Offset:           offset,
		ThrottleTimeMs:   r.ThrottleTimeMs,
		ErrorCode:        p.ErrorCode,
		HighWatermark:    p.HighWatermark,
		LastStableOffset: p.LastStableOffset,
		RecordSet:        batch.RecordSet(p.RecordSet),
	}, nil
}

type Response struct {
	Topic     string
	Partition int32
	// Offset the fetch was made at.
	Offset           int64
	ThrottleTimeMs   int32
	ErrorCode        int16
	HighWatermark    int64
	LastStableOffset int64
	RecordSet        batch.RecordSet `json:"-"`
}

// Err returns the error code in the response as *simplekafka.Error, or nil.
func (r *Response) Err() error {
	return simplekafka.ErrorForCode(api.Fetch, r.Topic, r.Partition, r.ErrorCode)
}

// Batches in the record set. A truncated last batch is left out (see
// batch.RecordSet).
func (r *Response) Batches() ([]*batch.Batch, error) {
	var batches []*batch.Batch
	for _, b := range r.RecordSet.Batches() {
		parsed, err := batch.Unmarshal(b)
		if err != nil {
			return nil, err
		}
		batches = append(batches, parsed)
	}
	return batches, nil
}

// Record is a record with its absolute offset and timestamp.
type Record struct {
	Offset    int64
	Timestamp time.Time
	Key       []byte
	Value     []byte
	Headers   []record.Header
}

// Records in the record set, in offset order. Records of control batches are
// left out. The record set starts at the batch holding Offset, so it may begin
// with records below Offset: they are returned too.
func (r *Response) Records() ([]*Record, error) {
	batches, err := r.Batches()
	if err != nil {
		return nil, err
	}
	var records []*Record
	for _, b := range batches {
		rs, err := b.Records()
		if err != nil {
			return nil, fmt.Errorf("error reading batch at offset %d: %w", b.BaseOffset, err)
		}
		for _, rec := range rs {
			ts := b.FirstTimestamp + rec.TimestampDelta
			if b.TimestampType() == batch.TimestampLogAppend {
				ts = b.MaxTimestamp
			}
			records = append(records, &Record{
				Offset:    b.BaseOffset + rec.OffsetDelta,
				Timestamp: time.UnixMilli(ts),
				Key:       rec.Key,
				Value:     rec.Value,
				Headers:   rec.Headers,
			})
		}
	}
	return records, nil
}

// Fetcher fetches from partitions through a client. Safe for concurrent use.
type Fetcher struct {
	Client Client
}

// Client makes the api calls for the fetcher. *client.Client implements it.
type Client interface {
	Fetch(ctx context.Context, topic string, partition int32, offset int64) (*Fetch.Response, error)
	ListOffsets(ctx context.Context, topic string, partition int32, timestamp int64) (*ListOffsets.Response, error)
}

func New(c Client) *Fetcher {
	return &Fetcher{Client: c}
}

// Fetch records from topic partition starting at offset. Single request is
// made (no retries). A broker error code in the response (for example
// kerr.OffsetOutOfRange) is not returned as an error: see Response.Err.
// Fetching at the high watermark waits for the client's fetch max wait and
// returns no records.
func (f *Fetcher) Fetch(ctx context.Context, topic string, partition int32, offset int64) (*Response, error) {
	resp, err := f.Client.Fetch(ctx, topic, partition, offset)
	if err != nil {
		return nil, err
	}
	return parseResponse(resp, topic, partition, offset)
}

var (
	MessageNewest = time.Unix(0, ListOffsets.Latest*1e6)
	MessageOldest = time.Unix(0, ListOffsets.Earliest*1e6)
)

// OffsetForTime returns the first offset with a timestamp at or after t. Pass
// MessageNewest for the high watermark and MessageOldest for the log start
// offset. When no message is that recent the broker returns -1.
func (f *Fetcher) OffsetForTime(ctx context.Context, topic string, partition int32, t time.Time) (int64, error) {
	resp, err := f.Client.ListOffsets(ctx, topic, partition, t.UnixMilli())
	if err != nil {
		return 0, err
	}
	p := resp.Partition(topic, partition)
	if p == nil {
		return 0, fmt.Errorf("no response for %s-%d: %w", topic, partition, simplekafka.ErrMalformedResponse)
	}
	if err := simplekafka.ErrorForCode(api.ListOffsets, topic, partition, p.ErrorCode); err != nil {
		return 0, err
	}
	return p.Offset, nil
}
