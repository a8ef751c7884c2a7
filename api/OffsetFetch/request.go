package OffsetFetch

import (
	"github.com/mkocikowski/simplekafka/api"
)

func NewRequest(clientId, group, topic string, partitions ...int32) *api.Request {
	if partitions == nil {
		partitions = []int32{}
	}
	t := Topic{
		Name:             topic,
		PartitionIndexes: partitions,
	}
	return &api.Request{
		ApiKey:     api.OffsetFetch,
		ApiVersion: 3,
		ClientId:   clientId,
		Body: Request{
			GroupId: group,
			Topics:  []Topic{t},
		},
	}
}

type Request struct {
	GroupId string
	Topics  []Topic
}

type Topic struct {
	Name             string
	PartitionIndexes []int32
}
