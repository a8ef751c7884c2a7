package Fetch

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kmsg"

	"github.com/mkocikowski/simplekafka/wire"
)

func TestUnitRequestMatchesReference(t *testing.T) {
	req := NewRequest(&Args{Topic: "foo", Partition: 2, Offset: 10, MinBytes: 1, MaxBytes: 1 << 20, MaxWaitTimeMs: 500})
	b, err := wire.Marshal(req.Body)
	require.NoError(t, err)

	p := kmsg.NewFetchRequestTopicPartition()
	p.Partition = 2
	p.FetchOffset = 10
	p.PartitionMaxBytes = 1 << 20
	topic := kmsg.NewFetchRequestTopic()
	topic.Topic = "foo"
	topic.Partitions = []kmsg.FetchRequestTopicPartition{p}
	ref := kmsg.NewPtrFetchRequest()
	ref.Version = 4
	ref.ReplicaID = -1
	ref.MaxWaitMillis = 500
	ref.MinBytes = 1
	ref.MaxBytes = 1 << 20
	ref.Topics = []kmsg.FetchRequestTopic{topic}
	require.Equal(t, ref.AppendTo(nil), b)
}

func TestUnitResponseFromReference(t *testing.T) {
	p := kmsg.NewFetchResponseTopicPartition()
	p.Partition = 2
	p.HighWatermark = 3
	p.LastStableOffset = 3
	p.RecordBatches = []byte{9, 9, 9}
	topic := kmsg.NewFetchResponseTopic()
	topic.Topic = "foo"
	topic.Partitions = []kmsg.FetchResponseTopicPartition{p}
	ref := kmsg.NewPtrFetchResponse()
	ref.Version = 4
	ref.Topics = []kmsg.FetchResponseTopic{topic}

	resp := &Response{}
	require.NoError(t, wire.Unmarshal(ref.AppendTo(nil), resp))
	got := resp.PartitionResponse("foo", 2)
	require.NotNil(t, got)
	require.Equal(t, int64(3), got.HighWatermark)
	require.Nil(t, got.AbortedTransactions)
	require.Equal(t, []byte{9, 9, 9}, got.RecordSet)
	require.Nil(t, resp.PartitionResponse("foo", 0))
}
