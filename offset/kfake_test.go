package offset

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kfake"

	"github.com/mkocikowski/simplekafka/batch"
	"github.com/mkocikowski/simplekafka/client"
)

// newTestClient returns a client connected to an in-process cluster with a
// single partition topic.
func newTestClient(t *testing.T, topic string) *client.Client {
	t.Helper()
	cluster, err := kfake.NewCluster(kfake.NumBrokers(1), kfake.SeedTopics(1, topic))
	require.NoError(t, err)
	t.Cleanup(cluster.Close)
	cfg := client.DefaultConfig()
	cfg.Bootstrap = strings.Join(cluster.ListenAddrs(), ",")
	cfg.FetchMaxWait = 50 * time.Millisecond
	c, err := client.New(cfg, log.NewNopLogger(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func produceStrings(t *testing.T, c *client.Client, topic string, values ...string) {
	t.Helper()
	now := time.Now()
	b, err := batch.NewBuilder(now).AddStrings(values...).Build(now)
	require.NoError(t, err)
	resp, err := c.Produce(context.Background(), topic, 0, b.Marshal())
	require.NoError(t, err)
	require.Equal(t, int16(0), resp.TopicResponses[0].PartitionResponses[0].ErrorCode)
}

func TestIntegrationResolveAndCommit(t *testing.T) {
	const topic = "test-offsets"
	c := newTestClient(t, topic)
	ctx := context.Background()
	r := NewResolver(c, nil)
	committer := NewCommitter(c, nil)
	// empty partition
	last, err := r.Resolve(ctx, "", TopicSelector{Topic: topic, DefaultOffsetSelection: Last})
	require.NoError(t, err)
	require.Equal(t, int64(0), last.Offset)
	//
	produceStrings(t, c, topic, "1", "2", "3")
	for strategy, want := range map[Strategy]int64{Earliest: 0, Last: 2, Next: 3} {
		got, err := r.Resolve(ctx, "", TopicSelector{Topic: topic, DefaultOffsetSelection: strategy})
		require.NoError(t, err)
		require.Equal(t, want, got.Offset, strategy.String())
	}
	//
	s := TopicSelector{Topic: topic, DefaultOffsetSelection: NextUncommitted, FailureOffsetSelection: Earliest}
	got, err := r.Resolve(ctx, "g1", s)
	require.NoError(t, err)
	require.Equal(t, int64(0), got.Offset)
	_, err = r.Resolve(ctx, "g1", TopicSelector{Topic: topic, DefaultOffsetSelection: NextUncommitted})
	require.Error(t, err)
	//
	for _, committed := range []int64{0, 0, 2} {
		res, err := committer.Commit(ctx, "g1", TopicPartitionOffset{Topic: topic, Partition: 0, Offset: committed})
		require.NoError(t, err)
		require.NoError(t, res.Err())
		got, err := r.Resolve(ctx, "g1", s)
		require.NoError(t, err)
		require.Equal(t, committed+1, got.Offset)
	}
	// other groups are not affected
	got, err = r.Resolve(ctx, "g2", s)
	require.NoError(t, err)
	require.Equal(t, int64(0), got.Offset)
}
