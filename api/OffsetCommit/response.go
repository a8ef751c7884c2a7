package OffsetCommit

type Response struct {
	Topics []TopicResponse
}

type TopicResponse struct {
	Name       string
	Partitions []PartitionResponse
}

type PartitionResponse struct {
	PartitionIndex int32
	ErrorCode      int16
}

// ErrorCode for topic partition, and false if the partition is not in the
// response.
func (r *Response) ErrorCode(topic string, partition int32) (int16, bool) {
	for _, t := range r.Topics {
		if t.Name != topic {
			continue
		}
		for _, p := range t.Partitions {
			if p.PartitionIndex == partition {
				return p.ErrorCode, true
			}
		}
	}
	return 0, false
}
