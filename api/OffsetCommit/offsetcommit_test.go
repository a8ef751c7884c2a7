package OffsetCommit

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kmsg"

	"github.com/mkocikowski/simplekafka/wire"
)

func TestUnitRequestGroupsByTopic(t *testing.T) {
	req := NewRequest("test", "g", []Offset{
		{Topic: "b", Partition: 0, Offset: 10},
		{Topic: "a", Partition: 1, Offset: 20},
		{Topic: "b", Partition: 2, Offset: 30},
	}, -1)
	body := req.Body.(Request)
	require.Equal(t, int32(-1), body.GenerationId)
	require.Len(t, body.Topics, 2)
	require.Equal(t, "b", body.Topics[0].Name)
	require.Len(t, body.Topics[0].Partitions, 2)
	require.Equal(t, int64(30), body.Topics[0].Partitions[1].CommitedOffset)
	require.Equal(t, "a", body.Topics[1].Name)
}

func TestUnitRequestMatchesReference(t *testing.T) {
	req := NewRequest("test", "g", []Offset{{Topic: "foo", Partition: 2, Offset: 99}}, -1)
	b, err := wire.Marshal(req.Body)
	require.NoError(t, err)

	p := kmsg.NewOffsetCommitRequestTopicPartition()
	p.Partition = 2
	p.Offset = 99
	p.Metadata = kmsg.StringPtr("")
	topic := kmsg.NewOffsetCommitRequestTopic()
	topic.Topic = "foo"
	topic.Partitions = []kmsg.OffsetCommitRequestTopicPartition{p}
	ref := kmsg.NewPtrOffsetCommitRequest()
	ref.Version = 2
	ref.Group = "g"
	ref.Generation = -1
	ref.RetentionTimeMillis = -1
	ref.Topics = []kmsg.OffsetCommitRequestTopic{topic}
	require.Equal(t, ref.AppendTo(nil), b)
}

func TestUnitResponseErrorCode(t *testing.T) {
	resp := &Response{Topics: []TopicResponse{
		{Name: "foo", Partitions: []PartitionResponse{{PartitionIndex: 0, ErrorCode: 0}, {PartitionIndex: 1, ErrorCode: 25}}},
	}}
	code, ok := resp.ErrorCode("foo", 1)
	require.True(t, ok)
	require.Equal(t, int16(25), code)
	_, ok = resp.ErrorCode("foo", 2)
	require.False(t, ok)
}
