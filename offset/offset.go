// Package offset resolves where a consumer starts reading a partition and
// commits consumer group progress.
//
// Committed offsets are the offsets of the last consumed messages: a group
// that committed offset N resumes reading at N+1 (see NextUncommitted). The
// commits are "simple" commits, made outside of group membership (there is no
// join, sync, or heartbeat), so nothing stops two consumers in the same group
// from committing over each other.
package offset

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/twmb/franz-go/pkg/kerr"

	"github.com/mkocikowski/simplekafka"
	"github.com/mkocikowski/simplekafka/api"
	"github.com/mkocikowski/simplekafka/api/ListOffsets"
	"github.com/mkocikowski/simplekafka/api/OffsetCommit"
	"github.com/mkocikowski/simplekafka/api/OffsetFetch"
)

// ErrNegativeOffset is returned for commits of offsets below 0. Nothing is
// sent for them.
var ErrNegativeOffset = errors.New("negative offset")

// Broker makes the api calls offsets are resolved and committed with.
// *client.Client implements it.
type Broker interface {
	ListOffsets(ctx context.Context, topic string, partition int32, timestamp int64) (*ListOffsets.Response, error)
	OffsetFetch(ctx context.Context, group, topic string, partitions ...int32) (*OffsetFetch.Response, error)
	OffsetCommit(ctx context.Context, group string, offsets []OffsetCommit.Offset) (*OffsetCommit.Response, error)
}

type TopicPartitionOffset struct {
	Topic     string
	Partition int32
	Offset    int64
}

func (o TopicPartitionOffset) String() string {
	return fmt.Sprintf("%s-%d@%d", o.Topic, o.Partition, o.Offset)
}

// TopicSelector identifies a partition and how to pick the offset to start
// reading it at.
type TopicSelector struct {
	Topic     string `yaml:"topic"`
	Partition int32  `yaml:"partition"`
	// DefaultOffsetSelection is the strategy. Unset means Earliest.
	DefaultOffsetSelection Strategy `yaml:"default_offset_selection"`
	// FailureOffsetSelection is used by NextUncommitted when the group has
	// no committed offset. It can't be NextUncommitted. Unset means there is
	// no fallback and resolution fails with simplekafka.ErrNoCommittedOffset.
	FailureOffsetSelection Strategy `yaml:"failure_offset_selection"`
	// Offset for the Specified strategy.
	Offset *int64 `yaml:"offset"`
}

func (s *TopicSelector) strategy() Strategy {
	if s.DefaultOffsetSelection == Unset {
		return Earliest
	}
	return s.DefaultOffsetSelection
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", simplekafka.ErrInvalidSelector, fmt.Sprintf(format, args...))
}

// Validate the selector. Errors wrap simplekafka.ErrInvalidSelector.
func (s *TopicSelector) Validate() error {
	if s.Topic == "" {
		return invalid("empty topic")
	}
	if s.Partition < 0 {
		return invalid("negative partition %d", s.Partition)
	}
	if !s.DefaultOffsetSelection.valid() {
		return invalid("unknown strategy %v", s.DefaultOffsetSelection)
	}
	if !s.FailureOffsetSelection.valid() {
		return invalid("unknown failure strategy %v", s.FailureOffsetSelection)
	}
	if s.FailureOffsetSelection == NextUncommitted {
		return invalid("failure strategy can not be %v", NextUncommitted)
	}
	needOffset := s.strategy() == Specified ||
		(s.strategy() == NextUncommitted && s.FailureOffsetSelection == Specified)
	if needOffset {
		if s.Offset == nil {
			return invalid("%v strategy with no offset", Specified)
		}
		if *s.Offset < 0 {
			return invalid("negative offset %d", *s.Offset)
		}
	}
	return nil
}

// Resolver resolves TopicSelectors to offsets. Every resolution asks the
// brokers: nothing is cached. Safe for concurrent use.
type Resolver struct {
	broker Broker
	logger log.Logger
}

func NewResolver(broker Broker, logger log.Logger) *Resolver {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Resolver{broker: broker, logger: log.With(logger, "component", "offset_resolver")}
}

// Resolve the offset for the selector. The group is needed only for the
// NextUncommitted strategy. The selector is validated before any call is
// made. Broker error codes are returned as *simplekafka.Error.
func (r *Resolver) Resolve(ctx context.Context, group string, s TopicSelector) (TopicPartitionOffset, error) {
	result := TopicPartitionOffset{Topic: s.Topic, Partition: s.Partition}
	if err := s.Validate(); err != nil {
		return result, err
	}
	strategy := s.strategy()
	if strategy == NextUncommitted && group == "" {
		return result, invalid("%v strategy with no group", NextUncommitted)
	}
	offset, err := r.resolve(ctx, group, &s, strategy)
	if err != nil {
		return result, err
	}
	result.Offset = offset
	level.Debug(r.logger).Log("msg", "resolved offset", "topic", s.Topic, "partition", s.Partition, "strategy", strategy, "offset", offset)
	return result, nil
}

func (r *Resolver) resolve(ctx context.Context, group string, s *TopicSelector, strategy Strategy) (int64, error) {
	switch strategy {
	case Earliest:
		return r.listOffset(ctx, s.Topic, s.Partition, ListOffsets.Earliest)
	case Last:
		latest, err := r.listOffset(ctx, s.Topic, s.Partition, ListOffsets.Latest)
		if err != nil {
			return 0, err
		}
		if latest == 0 {
			return 0, nil // empty partition
		}
		return latest - 1, nil
	case Next:
		return r.listOffset(ctx, s.Topic, s.Partition, ListOffsets.Latest)
	case Specified:
		return *s.Offset, nil
	case NextUncommitted:
		committed, ok, err := r.committed(ctx, group, s.Topic, s.Partition)
		if err != nil {
			return 0, err
		}
		if ok {
			return committed + 1, nil
		}
		// resolved at most once: Validate rejects NextUncommitted here
		fallback := s.FailureOffsetSelection
		if fallback == Unset {
			return 0, fmt.Errorf("group %s for %s-%d: %w", group, s.Topic, s.Partition, simplekafka.ErrNoCommittedOffset)
		}
		level.Debug(r.logger).Log("msg", "no committed offset, using failure strategy", "group", group, "topic", s.Topic, "partition", s.Partition, "strategy", fallback)
		return r.resolve(ctx, group, s, fallback)
	}
	return 0, invalid("unknown strategy %v", strategy)
}

func (r *Resolver) listOffset(ctx context.Context, topic string, partition int32, timestamp int64) (int64, error) {
	resp, err := r.broker.ListOffsets(ctx, topic, partition, timestamp)
	if err != nil {
		return 0, err
	}
	p := resp.Partition(topic, partition)
	if p == nil {
		return 0, fmt.Errorf("%s-%d missing from list offsets response: %w", topic, partition, simplekafka.ErrMalformedResponse)
	}
	if err := simplekafka.ErrorForCode(api.ListOffsets, topic, partition, p.ErrorCode); err != nil {
		return 0, err
	}
	return p.Offset, nil
}

// committed offset of group for the partition, and false if there is none.
func (r *Resolver) committed(ctx context.Context, group, topic string, partition int32) (int64, bool, error) {
	resp, err := r.broker.OffsetFetch(ctx, group, topic, partition)
	if err != nil {
		return 0, false, err
	}
	if resp.ErrorCode == kerr.GroupIDNotFound.Code {
		return 0, false, nil // group never committed
	}
	if err := simplekafka.ErrorForCode(api.OffsetFetch, "", 0, resp.ErrorCode); err != nil {
		return 0, false, err
	}
	p := resp.Partition(topic, partition)
	if p == nil {
		return 0, false, nil
	}
	if err := simplekafka.ErrorForCode(api.OffsetFetch, topic, partition, p.ErrorCode); err != nil {
		return 0, false, err
	}
	if p.CommitedOffset < 0 {
		return 0, false, nil
	}
	return p.CommitedOffset, true, nil
}

// PartitionResult is the outcome of committing a single offset. Err is nil
// when the offset was committed.
type PartitionResult struct {
	TopicPartitionOffset
	Err error
}

// CommitResult reports each offset of a commit as committed or failed.
type CommitResult struct {
	Results []PartitionResult
}

func (c *CommitResult) Committed() []TopicPartitionOffset {
	var committed []TopicPartitionOffset
	for _, r := range c.Results {
		if r.Err == nil {
			committed = append(committed, r.TopicPartitionOffset)
		}
	}
	return committed
}

func (c *CommitResult) Failed() []PartitionResult {
	var failed []PartitionResult
	for _, r := range c.Results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}

// Err joins the errors of the failed offsets, and is nil when every offset was
// committed.
func (c *CommitResult) Err() error {
	var errs []error
	for _, r := range c.Failed() {
		errs = append(errs, fmt.Errorf("%v: %w", r.TopicPartitionOffset, r.Err))
	}
	return errors.Join(errs...)
}

// Committer commits consumer group offsets. Safe for concurrent use.
type Committer struct {
	broker Broker
	logger log.Logger
}

func NewCommitter(broker Broker, logger log.Logger) *Committer {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Committer{broker: broker, logger: log.With(logger, "component", "offset_committer")}
}

// Commit offsets for group in a single request. Each offset is the offset of
// the last message consumed from its partition. When a partition appears
// more than once the last offset for it is committed. Offsets below 0 fail
// with ErrNegativeOffset and are not sent. Committing the same offset again
// has no further effect, so failed offsets can be retried.
//
// A returned error means the request did not complete and it is not known
// which offsets were committed. Otherwise the result reports each offset;
// see CommitResult.Err.
func (c *Committer) Commit(ctx context.Context, group string, offsets ...TopicPartitionOffset) (*CommitResult, error) {
	if group == "" {
		return nil, invalid("commit with no group")
	}
	type tp struct {
		topic     string
		partition int32
	}
	index := make(map[tp]int)
	result := &CommitResult{}
	for _, o := range offsets {
		k := tp{o.Topic, o.Partition}
		if i, ok := index[k]; ok {
			result.Results[i].TopicPartitionOffset = o
			continue
		}
		index[k] = len(result.Results)
		result.Results = append(result.Results, PartitionResult{TopicPartitionOffset: o})
	}
	var send []OffsetCommit.Offset
	for i := range result.Results {
		r := &result.Results[i]
		if r.Offset < 0 {
			r.Err = fmt.Errorf("%w %d", ErrNegativeOffset, r.Offset)
			continue
		}
		send = append(send, OffsetCommit.Offset{Topic: r.Topic, Partition: r.Partition, Offset: r.Offset})
	}
	if len(send) == 0 {
		return result, nil
	}
	resp, err := c.broker.OffsetCommit(ctx, group, send)
	if err != nil {
		return nil, fmt.Errorf("error committing offsets for group %s: %w", group, err)
	}
	for i := range result.Results {
		r := &result.Results[i]
		if r.Err != nil {
			continue
		}
		code, ok := resp.ErrorCode(r.Topic, r.Partition)
		if !ok {
			r.Err = fmt.Errorf("missing from offset commit response: %w", simplekafka.ErrMalformedResponse)
			continue
		}
		r.Err = simplekafka.ErrorForCode(api.OffsetCommit, r.Topic, r.Partition, code)
	}
	if failed := result.Failed(); len(failed) > 0 {
		level.Warn(c.logger).Log("msg", "offsets not committed", "group", group, "failed", len(failed), "of", len(result.Results), "err", result.Err())
	} else {
		level.Debug(c.logger).Log("msg", "committed offsets", "group", group, "n", len(result.Results))
	}
	return result, nil
}
