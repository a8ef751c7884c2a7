package Metadata

import (
	"net"
	"sort"
	"strconv"
)

type Response struct {
	ThrottleTimeMs int32
	Brokers        []Broker
	ClusterId      string
	ControllerId   int32
	TopicMetadata  []TopicMetadata
}

type Broker struct {
	NodeId int32
	Host   string
	Port   int32
	Rack   string
}

func (b *Broker) Addr() string {
	return net.JoinHostPort(b.Host, strconv.Itoa(int(b.Port)))
}

type TopicMetadata struct {
	ErrorCode         int16
	Topic             string
	IsInternal        bool
	PartitionMetadata []PartitionMetadata
}

type PartitionMetadata struct {
	ErrorCode       int16
	Partition       int32
	Leader          int32
	Replicas        []int32
	Isr             []int32
	OfflineReplicas []int32
}

func (r *Response) Broker(id int32) *Broker {
	for i := range r.Brokers {
		if r.Brokers[i].NodeId == id {
			return &(r.Brokers[i])
		}
	}
	return nil
}

// Topic returns metadata for the topic, or nil if it is not in the response.
func (r *Response) Topic(topic string) *TopicMetadata {
	for i := range r.TopicMetadata {
		if r.TopicMetadata[i].Topic == topic {
			return &(r.TopicMetadata[i])
		}
	}
	return nil
}

// Partitions returns partition metadata keyed by partition id.
func (r *Response) Partitions(topic string) map[int32]*PartitionMetadata {
	partitions := make(map[int32]*PartitionMetadata)
	t := r.Topic(topic)
	if t == nil {
		return partitions
	}
	for i := range t.PartitionMetadata {
		p := &(t.PartitionMetadata[i])
		partitions[p.Partition] = p
	}
	return partitions
}

// PartitionIds returns sorted partition ids of the topic.
func (r *Response) PartitionIds(topic string) []int32 {
	var ids []int32
	for id := range r.Partitions(topic) {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Leaders returns the leader broker of each partition that has one.
func (r *Response) Leaders(topic string) map[int32]*Broker {
	leaders := make(map[int32]*Broker)
	for id, p := range r.Partitions(topic) {
		if broker := r.Broker(p.Leader); broker != nil {
			leaders[id] = broker
		}
	}
	return leaders
}
