package FindCoordinator

import (
	"github.com/mkocikowski/simplekafka/api"
)

const (
	CoordinatorGroup = iota
	CoordinatorTransaction
)

func NewRequest(clientId, groupId string) *api.Request {
	return &api.Request{
		ApiKey:     api.FindCoordinator,
		ApiVersion: 1,
		ClientId:   clientId,
		Body: Request{
			Key:     groupId,
			KeyType: CoordinatorGroup,
		},
	}
}

type Request struct {
	Key     string // groupId
	KeyType int8
}
