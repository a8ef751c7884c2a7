package OffsetFetch

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kmsg"

	"github.com/mkocikowski/simplekafka/wire"
)

func TestUnitRequestMatchesReference(t *testing.T) {
	req := NewRequest("test", "g", "foo", 0, 1)
	b, err := wire.Marshal(req.Body)
	require.NoError(t, err)

	topic := kmsg.NewOffsetFetchRequestTopic()
	topic.Topic = "foo"
	topic.Partitions = []int32{0, 1}
	ref := kmsg.NewPtrOffsetFetchRequest()
	ref.Version = 3
	ref.Group = "g"
	ref.Topics = []kmsg.OffsetFetchRequestTopic{topic}
	require.Equal(t, ref.AppendTo(nil), b)
}

func TestUnitResponseFromReference(t *testing.T) {
	p0 := kmsg.NewOffsetFetchResponseTopicPartition()
	p0.Partition = 0
	p0.Offset = 41
	p1 := kmsg.NewOffsetFetchResponseTopicPartition()
	p1.Partition = 1
	p1.Offset = NoOffset
	topic := kmsg.NewOffsetFetchResponseTopic()
	topic.Topic = "foo"
	topic.Partitions = []kmsg.OffsetFetchResponseTopicPartition{p0, p1}
	ref := kmsg.NewPtrOffsetFetchResponse()
	ref.Version = 3
	ref.Topics = []kmsg.OffsetFetchResponseTopic{topic}

	resp := &Response{}
	require.NoError(t, wire.Unmarshal(ref.AppendTo(nil), resp))
	require.Equal(t, int64(41), resp.Partition("foo", 0).CommitedOffset)
	require.Equal(t, int64(NoOffset), resp.Partition("foo", 1).CommitedOffset)
	require.Nil(t, resp.Partition("foo", 2))
}
