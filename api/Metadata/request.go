package Metadata

import (
	"github.com/mkocikowski/simplekafka/api"
)

// NewRequest for metadata of topics. Nil topics means all topics.
func NewRequest(clientId string, topics []string) *api.Request {
	return &api.Request{
		ApiKey:     api.Metadata,
		ApiVersion: 5,
		ClientId:   clientId,
		Body: Request{
			Topics:                 topics,
			AllowAutoTopicCreation: false,
		},
	}
}

type Request struct {
	Topics                 []string
	AllowAutoTopicCreation bool
}
