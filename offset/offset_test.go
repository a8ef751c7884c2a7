package offset

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kerr"
	"gopkg.in/yaml.v3"

	"github.com/mkocikowski/simplekafka"
	"github.com/mkocikowski/simplekafka/api/ListOffsets"
	"github.com/mkocikowski/simplekafka/api/OffsetCommit"
	"github.com/mkocikowski/simplekafka/api/OffsetFetch"
)

type tp struct {
	topic     string
	partition int32
}

// memBroker keeps partition boundaries and group commits in memory.
type memBroker struct {
	mu        sync.Mutex
	start     map[tp]int64
	end       map[tp]int64
	committed map[string]map[tp]int64
	// error codes to return
	listOffsetsError int16
	groupError       int16
	commitErrors     map[tp]int16
	// transport error
	err   error
	calls int
}

func newMemBroker() *memBroker {
	return &memBroker{
		start:        make(map[tp]int64),
		end:          make(map[tp]int64),
		committed:    make(map[string]map[tp]int64),
		commitErrors: make(map[tp]int16),
	}
}

func (b *memBroker) ListOffsets(_ context.Context, topic string, partition int32, timestamp int64) (*ListOffsets.Response, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.err != nil {
		return nil, b.err
	}
	k := tp{topic, partition}
	offset := b.end[k]
	if timestamp == ListOffsets.Earliest {
		offset = b.start[k]
	}
	return &ListOffsets.Response{
		Responses: []ListOffsets.TopicResponse{{
			Topic: topic,
			Partitions: []ListOffsets.PartitionResponse{{
				Partition: partition,
				ErrorCode: b.listOffsetsError,
				Timestamp: -1,
				Offset:    offset,
			}},
		}},
	}, nil
}

func (b *memBroker) OffsetFetch(_ context.Context, group, topic string, partitions ...int32) (*OffsetFetch.Response, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.err != nil {
		return nil, b.err
	}
	resp := &OffsetFetch.Response{ErrorCode: b.groupError}
	commits, ok := b.committed[group]
	if !ok && b.groupError == 0 {
		resp.ErrorCode = kerr.GroupIDNotFound.Code
		return resp, nil
	}
	t := OffsetFetch.TopicResponse{Name: topic}
	for _, p := range partitions {
		offset, ok := commits[tp{topic, p}]
		if !ok {
			offset = OffsetFetch.NoOffset
		}
		t.Partitions = append(t.Partitions, OffsetFetch.PartitionResponse{PartitionIndex: p, CommitedOffset: offset})
	}
	resp.Topics = []OffsetFetch.TopicResponse{t}
	return resp, nil
}

func (b *memBroker) OffsetCommit(_ context.Context, group string, offsets []OffsetCommit.Offset) (*OffsetCommit.Response, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.err != nil {
		return nil, b.err
	}
	if b.committed[group] == nil {
		b.committed[group] = make(map[tp]int64)
	}
	resp := &OffsetCommit.Response{}
	for _, o := range offsets {
		k := tp{o.Topic, o.Partition}
		code := b.commitErrors[k]
		if code == 0 {
			b.committed[group][k] = o.Offset
		}
		resp.Topics = append(resp.Topics, OffsetCommit.TopicResponse{
			Name:       o.Topic,
			Partitions: []OffsetCommit.PartitionResponse{{PartitionIndex: o.Partition, ErrorCode: code}},
		})
	}
	return resp, nil
}

func (b *memBroker) numCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func int64p(i int64) *int64 { return &i }

func TestUnitStrategyText(t *testing.T) {
	for s := Unset; s <= NextUncommitted; s++ {
		b, err := s.MarshalText()
		require.NoError(t, err)
		var got Strategy
		require.NoError(t, got.UnmarshalText(b))
		require.Equal(t, s, got)
	}
	var s Strategy
	require.NoError(t, s.UnmarshalText([]byte(" Next-Uncommitted ")))
	require.Equal(t, NextUncommitted, s)
	require.NoError(t, s.UnmarshalText(nil))
	require.Equal(t, Unset, s)
	require.Error(t, s.UnmarshalText([]byte("latest")))
	_, err := Strategy(42).MarshalText()
	require.Error(t, err)
	require.Equal(t, "Strategy(42)", Strategy(42).String())
}

func TestUnitSelectorYAML(t *testing.T) {
	in := `
topic: foo
partition: 2
default_offset_selection: next-uncommitted
failure_offset_selection: specified
offset: 10
`
	var s TopicSelector
	require.NoError(t, yaml.Unmarshal([]byte(in), &s))
	require.NoError(t, s.Validate())
	require.Equal(t, TopicSelector{
		Topic:                  "foo",
		Partition:              2,
		DefaultOffsetSelection: NextUncommitted,
		FailureOffsetSelection: Specified,
		Offset:                 int64p(10),
	}, s)
	require.Error(t, yaml.Unmarshal([]byte("default_offset_selection: newest"), &s))
}

func TestUnitSelectorValidate(t *testing.T) {
	tests := []struct {
		name  string
		s     TopicSelector
		valid bool
	}{
		{"default", TopicSelector{Topic: "foo"}, true},
		{"no topic", TopicSelector{}, false},
		{"negative partition", TopicSelector{Topic: "foo", Partition: -1}, false},
		{"specified", TopicSelector{Topic: "foo", DefaultOffsetSelection: Specified, Offset: int64p(0)}, true},
		{"specified no offset", TopicSelector{Topic: "foo", DefaultOffsetSelection: Specified}, false},
		{"specified negative", TopicSelector{Topic: "foo", DefaultOffsetSelection: Specified, Offset: int64p(-2)}, false},
		{"uncommitted", TopicSelector{Topic: "foo", DefaultOffsetSelection: NextUncommitted, FailureOffsetSelection: Earliest}, true},
		{"uncommitted no fallback", TopicSelector{Topic: "foo", DefaultOffsetSelection: NextUncommitted}, true},
		{"uncommitted recursive", TopicSelector{Topic: "foo", DefaultOffsetSelection: NextUncommitted, FailureOffsetSelection: NextUncommitted}, false},
		{"uncommitted specified no offset", TopicSelector{Topic: "foo", DefaultOffsetSelection: NextUncommitted, FailureOffsetSelection: Specified}, false},
		{"unknown strategy", TopicSelector{Topic: "foo", DefaultOffsetSelection: 9}, false},
		{"unknown failure strategy", TopicSelector{Topic: "foo", FailureOffsetSelection: -1}, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.s.Validate()
			if test.valid {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, simplekafka.ErrInvalidSelector)
		})
	}
}

func TestUnitResolve(t *testing.T) {
	b := newMemBroker()
	k := tp{"foo", 1}
	b.start[k] = 5
	b.end[k] = 8
	b.committed["g1"] = map[tp]int64{k: 6}
	r := NewResolver(b, nil)
	tests := []struct {
		name     string
		group    string
		selector TopicSelector
		want     int64
	}{
		{"unset", "", TopicSelector{}, 5},
		{"earliest", "", TopicSelector{DefaultOffsetSelection: Earliest}, 5},
		{"last", "", TopicSelector{DefaultOffsetSelection: Last}, 7},
		{"next", "", TopicSelector{DefaultOffsetSelection: Next}, 8},
		{"specified", "", TopicSelector{DefaultOffsetSelection: Specified, Offset: int64p(6)}, 6},
		{"uncommitted", "g1", TopicSelector{DefaultOffsetSelection: NextUncommitted}, 7},
		{"uncommitted fallback", "g2", TopicSelector{DefaultOffsetSelection: NextUncommitted, FailureOffsetSelection: Next}, 8},
		{"uncommitted fallback specified", "g2", TopicSelector{DefaultOffsetSelection: NextUncommitted, FailureOffsetSelection: Specified, Offset: int64p(3)}, 3},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			test.selector.Topic = "foo"
			test.selector.Partition = 1
			got, err := r.Resolve(context.Background(), test.group, test.selector)
			require.NoError(t, err)
			require.Equal(t, TopicPartitionOffset{Topic: "foo", Partition: 1, Offset: test.want}, got)
			// same broker state, same answer
			again, err := r.Resolve(context.Background(), test.group, test.selector)
			require.NoError(t, err)
			require.Equal(t, got, again)
		})
	}
}

func TestUnitResolveLastEmptyPartition(t *testing.T) {
	b := newMemBroker()
	r := NewResolver(b, nil)
	got, err := r.Resolve(context.Background(), "", TopicSelector{Topic: "foo", DefaultOffsetSelection: Last})
	require.NoError(t, err)
	require.Equal(t, int64(0), got.Offset)
}

func TestUnitResolveSpecifiedNoCall(t *testing.T) {
	b := newMemBroker()
	r := NewResolver(b, nil)
	_, err := r.Resolve(context.Background(), "", TopicSelector{Topic: "foo", DefaultOffsetSelection: Specified, Offset: int64p(3)})
	require.NoError(t, err)
	require.Equal(t, 0, b.numCalls())
}

func TestUnitResolveInvalidNoCall(t *testing.T) {
	b := newMemBroker()
	r := NewResolver(b, nil)
	_, err := r.Resolve(context.Background(), "g1", TopicSelector{Topic: "foo", DefaultOffsetSelection: Specified})
	require.ErrorIs(t, err, simplekafka.ErrInvalidSelector)
	_, err = r.Resolve(context.Background(), "", TopicSelector{Topic: "foo", DefaultOffsetSelection: NextUncommitted, FailureOffsetSelection: Earliest})
	require.ErrorIs(t, err, simplekafka.ErrInvalidSelector)
	require.Equal(t, 0, b.numCalls())
}

func TestUnitResolveUncommittedEqualsFallback(t *testing.T) {
	b := newMemBroker()
	k := tp{"foo", 0}
	b.start[k] = 2
	b.end[k] = 9
	r := NewResolver(b, nil)
	ctx := context.Background()
	for _, fallback := range []Strategy{Earliest, Last, Next} {
		want, err := r.Resolve(ctx, "", TopicSelector{Topic: "foo", DefaultOffsetSelection: fallback})
		require.NoError(t, err)
		got, err := r.Resolve(ctx, "g1", TopicSelector{Topic: "foo", DefaultOffsetSelection: NextUncommitted, FailureOffsetSelection: fallback})
		require.NoError(t, err)
		require.Equal(t, want, got, fallback.String())
	}
}

func TestUnitResolveNoCommitNoFallback(t *testing.T) {
	b := newMemBroker()
	b.committed["g1"] = map[tp]int64{{"foo", 1}: 4} // group exists, partition 0 not committed
	r := NewResolver(b, nil)
	ctx := context.Background()
	s := TopicSelector{Topic: "foo", DefaultOffsetSelection: NextUncommitted}
	_, err := r.Resolve(ctx, "g1", s)
	require.ErrorIs(t, err, simplekafka.ErrNoCommittedOffset)
	_, err = r.Resolve(ctx, "g2", s) // group does not exist
	require.ErrorIs(t, err, simplekafka.ErrNoCommittedOffset)
}

func TestUnitResolveBrokerErrors(t *testing.T) {
	b := newMemBroker()
	r := NewResolver(b, nil)
	ctx := context.Background()
	//
	b.listOffsetsError = kerr.NotLeaderForPartition.Code
	_, err := r.Resolve(ctx, "", TopicSelector{Topic: "foo", DefaultOffsetSelection: Next})
	require.ErrorIs(t, err, kerr.NotLeaderForPartition)
	var kafkaErr *simplekafka.Error
	require.True(t, errors.As(err, &kafkaErr))
	require.Equal(t, "foo", kafkaErr.Topic)
	require.True(t, kafkaErr.Retriable())
	b.listOffsetsError = 0
	//
	b.groupError = kerr.NotCoordinator.Code
	_, err = r.Resolve(ctx, "g1", TopicSelector{Topic: "foo", DefaultOffsetSelection: NextUncommitted, FailureOffsetSelection: Earliest})
	require.ErrorIs(t, err, kerr.NotCoordinator)
	b.groupError = 0
	//
	b.err = simplekafka.ErrBrokerUnavailable
	_, err = r.Resolve(ctx, "", TopicSelector{Topic: "foo"})
	require.ErrorIs(t, err, simplekafka.ErrBrokerUnavailable)
}

func TestUnitCommit(t *testing.T) {
	b := newMemBroker()
	b.commitErrors[tp{"bar", 0}] = kerr.UnknownTopicOrPartition.Code
	c := NewCommitter(b, nil)
	res, err := c.Commit(context.Background(), "g1",
		TopicPartitionOffset{"foo", 0, 3},
		TopicPartitionOffset{"bar", 0, 1},
		TopicPartitionOffset{"foo", 1, -1},
		TopicPartitionOffset{"foo", 0, 4}, // replaces foo-0@3
	)
	require.NoError(t, err)
	require.Equal(t, 1, b.numCalls())
	require.Equal(t, []TopicPartitionOffset{{"foo", 0, 4}}, res.Committed())
	failed := res.Failed()
	require.Len(t, failed, 2)
	require.Equal(t, TopicPartitionOffset{"bar", 0, 1}, failed[0].TopicPartitionOffset)
	require.ErrorIs(t, failed[0].Err, kerr.UnknownTopicOrPartition)
	require.Equal(t, TopicPartitionOffset{"foo", 1, -1}, failed[1].TopicPartitionOffset)
	require.ErrorIs(t, failed[1].Err, ErrNegativeOffset)
	require.ErrorIs(t, res.Err(), kerr.UnknownTopicOrPartition)
	require.ErrorIs(t, res.Err(), ErrNegativeOffset)
	require.Equal(t, map[tp]int64{{"foo", 0}: 4}, b.committed["g1"])
}

func TestUnitCommitIdempotent(t *testing.T) {
	b := newMemBroker()
	b.end[tp{"foo", 0}] = 10
	c := NewCommitter(b, nil)
	r := NewResolver(b, nil)
	ctx := context.Background()
	s := TopicSelector{Topic: "foo", DefaultOffsetSelection: NextUncommitted}
	o := TopicPartitionOffset{"foo", 0, 5}
	res, err := c.Commit(ctx, "g1", o)
	require.NoError(t, err)
	require.NoError(t, res.Err())
	once, err := r.Resolve(ctx, "g1", s)
	require.NoError(t, err)
	res, err = c.Commit(ctx, "g1", o)
	require.NoError(t, err)
	require.NoError(t, res.Err())
	twice, err := r.Resolve(ctx, "g1", s)
	require.NoError(t, err)
	require.Equal(t, once, twice)
	require.Equal(t, int64(6), twice.Offset)
}

func TestUnitCommitNothingToSend(t *testing.T) {
	b := newMemBroker()
	c := NewCommitter(b, nil)
	res, err := c.Commit(context.Background(), "g1")
	require.NoError(t, err)
	require.NoError(t, res.Err())
	res, err = c.Commit(context.Background(), "g1", TopicPartitionOffset{"foo", 0, -1})
	require.NoError(t, err)
	require.ErrorIs(t, res.Err(), ErrNegativeOffset)
	require.Equal(t, 0, b.numCalls())
	//
	_, err = c.Commit(context.Background(), "", TopicPartitionOffset{"foo", 0, 1})
	require.ErrorIs(t, err, simplekafka.ErrInvalidSelector)
}

func TestUnitCommitTransportError(t *testing.T) {
	b := newMemBroker()
	b.err = simplekafka.ErrBrokerUnavailable
	c := NewCommitter(b, nil)
	res, err := c.Commit(context.Background(), "g1", TopicPartitionOffset{"foo", 0, 1})
	require.ErrorIs(t, err, simplekafka.ErrBrokerUnavailable)
	require.Nil(t, res)
}
