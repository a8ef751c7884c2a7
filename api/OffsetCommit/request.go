package OffsetCommit

import (
	"github.com/mkocikowski/simplekafka/api"
)

// Offset to commit for a single topic partition.
type Offset struct {
	Topic     string
	Partition int32
	Offset    int64
}

// NewRequest commits offsets for group in a single request. Topics appear in
// the request in the order in which they are first seen in offsets. The
// commit is a "simple" (generation -1, no member id) commit, outside of group
// membership. retentionMs -1 means broker default.
func NewRequest(clientId, group string, offsets []Offset, retentionMs int64) *api.Request {
	var topics []Topic
	index := make(map[string]int)
	for _, o := range offsets {
		i, ok := index[o.Topic]
		if !ok {
			i = len(topics)
			index[o.Topic] = i
			topics = append(topics, Topic{Name: o.Topic, Partitions: []Partition{}})
		}
		topics[i].Partitions = append(topics[i].Partitions, Partition{
			PartitionIndex:   o.Partition,
			CommitedOffset:   o.Offset,
			CommitedMetadata: "",
		})
	}
	if topics == nil {
		topics = []Topic{}
	}
	return &api.Request{
		ApiKey:     api.OffsetCommit,
		ApiVersion: 2,
		ClientId:   clientId,
		Body: Request{
			GroupId:         group,
			GenerationId:    -1,
			MemberId:        "",
			RetentionTimeMs: retentionMs,
			Topics:          topics,
		},
	}
}

type Request struct {
	GroupId         string
	GenerationId    int32
	MemberId        string
	RetentionTimeMs int64
	Topics          []Topic
}

type Topic struct {
	Name       string
	Partitions []Partition
}

type Partition struct {
	PartitionIndex   int32
	CommitedOffset   int64
	CommitedMetadata string
}
