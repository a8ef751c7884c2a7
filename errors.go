package simplekafka

import (
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kerr"

	"github.com/mkocikowski/simplekafka/api"
	"github.com/mkocikowski/simplekafka/wire"
)

var (
	// ErrMalformedResponse is wrapped by every decode failure: truncated
	// frames, lengths exceeding the remaining bytes, unknown enum values.
	ErrMalformedResponse = wire.ErrMalformedResponse
	// ErrBrokerUnavailable is returned to every caller waiting on a
	// connection that failed or was closed, and when a broker can not be
	// dialed.
	ErrBrokerUnavailable = errors.New("broker unavailable")
	// ErrInvalidSelector is returned for topic selectors that can not be
	// resolved. No request is sent.
	ErrInvalidSelector = errors.New("invalid topic selector")
	// ErrNoCommittedOffset is returned when a group has no committed offset
	// for a partition and the selector has no fallback strategy.
	ErrNoCommittedOffset = errors.New("no committed offset")
)

// Error is a broker error code returned in a response body. It unwraps to the
// matching kerr error, so callers can branch with errors.Is:
//
//	errors.Is(err, kerr.NotLeaderForPartition)
type Error struct {
	Api       api.Key
	Topic     string
	Partition int32
	Code      int16
}

func (e *Error) Error() string {
	var name string
	if err := kerr.ErrorForCode(e.Code); err != nil {
		name = err.Error()
	}
	switch {
	case e.Topic == "":
		return fmt.Sprintf("%v error code %d: %s", e.Api, e.Code, name)
	case e.Partition < 0:
		return fmt.Sprintf("%v error code %d for %s: %s", e.Api, e.Code, e.Topic, name)
	}
	return fmt.Sprintf("%v error code %d for %s-%d: %s", e.Api, e.Code, e.Topic, e.Partition, name)
}

func (e *Error) Unwrap() error {
	return kerr.ErrorForCode(e.Code)
}

// Retriable reports whether the broker marks the error code as retriable.
func (e *Error) Retriable() bool {
	return kerr.IsRetriable(kerr.ErrorForCode(e.Code))
}

// ErrorForCode returns nil for code 0 (no error) and *Error otherwise.
func ErrorForCode(apiKey api.Key, topic string, partition int32, code int16) error {
	if code == 0 {
		return nil
	}
	return &Error{Api: apiKey, Topic: topic, Partition: partition, Code: code}
}
