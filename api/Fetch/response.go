package Fetch

type Response struct {
	ThrottleTimeMs int32
	TopicResponses []TopicResponse
}

// PartitionResponse returns the response for topic partition, or nil.
func (r *Response) PartitionResponse(topic string, partition int32) *PartitionResponse {
	for i := range r.TopicResponses {
		t := &(r.TopicResponses[i])
		if t.Topic != topic {
			continue
		}
		for j := range t.PartitionResponses {
			if p := &(t.PartitionResponses[j]); p.Partition == partition {
				return p
			}
		}
	}
	return nil
}

type TopicResponse struct {
	Topic              string
	PartitionResponses []PartitionResponse
}

type PartitionResponse struct {
	Partition           int32
	ErrorCode           int16
	HighWatermark       int64
	LastStableOffset    int64
	AbortedTransactions []AbortedTransaction
	RecordSet           []byte // NULLABLE_BYTES
}

type AbortedTransaction struct {
	ProducerId  int64
	FirstOffset int64
}
