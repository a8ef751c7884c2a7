package Metadata

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kmsg"

	"github.com/mkocikowski/simplekafka/wire"
)

func TestUnitRequestMatchesReference(t *testing.T) {
	for _, topics := range [][]string{nil, {"foo", "bar"}} {
		req := NewRequest("test", topics)
		b, err := wire.Marshal(req.Body)
		require.NoError(t, err)
		ref := kmsg.NewPtrMetadataRequest()
		ref.Version = 5
		for _, topic := range topics {
			rt := kmsg.NewMetadataRequestTopic()
			rt.Topic = kmsg.StringPtr(topic)
			ref.Topics = append(ref.Topics, rt)
		}
		require.Equal(t, ref.AppendTo(nil), b)
	}
}

func referenceResponse() []byte {
	ref := kmsg.NewPtrMetadataResponse()
	ref.Version = 5
	for i, host := range []string{"a", "b"} {
		b := kmsg.NewMetadataResponseBroker()
		b.NodeID = int32(i + 1)
		b.Host = host
		b.Port = 9092
		ref.Brokers = append(ref.Brokers, b)
	}
	ref.ClusterID = kmsg.StringPtr("cluster")
	ref.ControllerID = 1
	topic := kmsg.NewMetadataResponseTopic()
	topic.Topic = kmsg.StringPtr("foo")
	for i, leader := range []int32{2, 1, 7} {
		p := kmsg.NewMetadataResponseTopicPartition()
		p.Partition = int32(2 - i)
		p.Leader = leader
		p.Replicas = []int32{leader}
		p.ISR = []int32{leader}
		topic.Partitions = append(topic.Partitions, p)
	}
	ref.Topics = append(ref.Topics, topic)
	return ref.AppendTo(nil)
}

func TestUnitResponseFromReference(t *testing.T) {
	resp := &Response{}
	require.NoError(t, wire.Unmarshal(referenceResponse(), resp))
	require.Len(t, resp.Brokers, 2)
	require.Equal(t, "b:9092", resp.Broker(2).Addr())
	require.Equal(t, "", resp.Brokers[0].Rack)
	require.Nil(t, resp.Broker(7))
	require.Equal(t, []int32{0, 1, 2}, resp.PartitionIds("foo"))
	leaders := resp.Leaders("foo")
	require.Len(t, leaders, 2) // broker 7 is not known
	require.Equal(t, int32(2), leaders[2].NodeId)
	require.Equal(t, int32(1), leaders[1].NodeId)
	require.Nil(t, resp.Topic("bar"))
	require.Empty(t, resp.Partitions("bar"))
}
