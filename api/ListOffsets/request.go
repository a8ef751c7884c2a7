package ListOffsets

import (
	"github.com/mkocikowski/simplekafka/api"
)

// Special timestamps. Earliest resolves to the log start offset, Latest to
// the high watermark (the offset the next produced message will get).
const (
	Latest   = -1
	Earliest = -2
)

// timestamp is milliseconds since epoch, or one of Latest, Earliest
func NewRequest(clientId, topic string, partition int32, timestamp int64) *api.Request {
	p := []RequestPartition{{Partition: partition, Timestamp: timestamp}}
	t := []RequestTopic{{Topic: topic, Partitions: p}}
	return &api.Request{
		ApiKey:     api.ListOffsets,
		ApiVersion: 2,
		ClientId:   clientId,
		Body: RequestBody{
			ReplicaId:      -1,
			IsolationLevel: 0,
			Topics:         t,
		},
	}
}

type RequestBody struct {
	ReplicaId      int32
	IsolationLevel int8
	Topics         []RequestTopic
}

type RequestTopic struct {
	Topic      string
	Partitions []RequestPartition
}

type RequestPartition struct {
	Partition int32
	Timestamp int64
}
