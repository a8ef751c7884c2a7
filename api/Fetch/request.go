package Fetch

import (
	"github.com/mkocikowski/simplekafka/api"
)

type Args struct {
	ClientId      string
	Topic         string
	Partition     int32
	Offset        int64
	MinBytes      int32
	MaxBytes      int32
	MaxWaitTimeMs int32
}

func NewRequest(args *Args) *api.Request {
	p := Partition{
		Partition:         args.Partition,
		FetchOffset:       args.Offset,
		PartitionMaxBytes: args.MaxBytes,
	}
	t := Topic{
		Topic:      args.Topic,
		Partitions: []Partition{p},
	}
	return &api.Request{
		ApiKey:     api.Fetch,
		ApiVersion: 4,
		ClientId:   args.ClientId,
		Body: Request{
			ReplicaId:      -1,
			MaxWaitTimeMs:  args.MaxWaitTimeMs,
			MinBytes:       args.MinBytes,
			MaxBytes:       args.MaxBytes,
			IsolationLevel: 0, // read uncommitted
			Topics:         []Topic{t},
		},
	}
}

type Request struct {
	ReplicaId      int32
	MaxWaitTimeMs  int32
	MinBytes       int32
	MaxBytes       int32
	IsolationLevel int8
	Topics         []Topic
}

type Topic struct {
	Topic      string
	Partitions []Partition
}

type Partition struct {
	Partition         int32
	FetchOffset       int64
	PartitionMaxBytes int32
}
