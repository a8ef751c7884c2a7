package OffsetFetch

// NoOffset is returned as CommitedOffset when nothing has been committed.
const NoOffset = -1

type Response struct {
	ThrottleTimeMs int32
	Topics         []TopicResponse
	ErrorCode      int16
}

type TopicResponse struct {
	Name       string
	Partitions []PartitionResponse
}

type PartitionResponse struct {
	PartitionIndex int32
	CommitedOffset int64
	Metadata       string
	ErrorCode      int16
}

// Partition returns the response for topic partition, or nil.
func (r *Response) Partition(topic string, partition int32) *PartitionResponse {
	for _, t := range r.Topics {
		if t.Name != topic {
			continue
		}
		for i := range t.Partitions {
			if t.Partitions[i].PartitionIndex == partition {
				return &(t.Partitions[i])
			}
		}
	}
	return nil
}
