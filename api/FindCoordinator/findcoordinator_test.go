package FindCoordinator

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kmsg"

	"github.com/mkocikowski/simplekafka/wire"
)

func TestUnitRequestMatchesReference(t *testing.T) {
	req := NewRequest("test", "my-group")
	b, err := wire.Marshal(req.Body)
	require.NoError(t, err)
	ref := kmsg.NewPtrFindCoordinatorRequest()
	ref.Version = 1
	ref.CoordinatorKey = "my-group"
	ref.CoordinatorType = CoordinatorGroup
	require.Equal(t, ref.AppendTo(nil), b)
}

func TestUnitResponseFromReference(t *testing.T) {
	ref := kmsg.NewPtrFindCoordinatorResponse()
	ref.Version = 1
	ref.NodeID = 3
	ref.Host = "::1"
	ref.Port = 9092
	resp := &Response{}
	require.NoError(t, wire.Unmarshal(ref.AppendTo(nil), resp))
	require.Nil(t, resp.ErrorMessage)
	require.Equal(t, int32(3), resp.NodeId)
	require.Equal(t, "[::1]:9092", resp.Addr())
}
