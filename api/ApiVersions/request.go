package ApiVersions

import (
	"github.com/mkocikowski/simplekafka/api"
)

func NewRequest(clientId string) *api.Request {
	return &api.Request{
		ApiKey:     api.ApiVersions,
		ApiVersion: 0,
		ClientId:   clientId,
		Body:       Request{},
	}
}

type Request struct{}
