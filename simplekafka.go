/*
Package simplekafka is a low level client library for the Kafka wire protocol.
It is not modeled on the Java client.


Project Scope

The library speaks a closed set of api versions (see api.Supported): Produce,
Fetch, ListOffsets, Metadata, OffsetCommit, OffsetFetch, FindCoordinator, and
ApiVersions. It resolves consumer starting offsets under the strategies in the
offset package and commits consumer group progress outside of group
membership. It does not implement compression codecs, transactions, or group
rebalancing.


Get Started

Create a client.Client, then use the producer, fetcher, and consumer packages
under client/. The offset package resolves and commits consumer group offsets
directly.


Design Decisions

1. One connection per broker, multiplexed. Many callers share a single
client.Conn per broker address. Requests are written under a write lock and
responses are matched back to callers by correlation id by a single reader
goroutine. Responses may arrive in any order.

2. Wide use of reflection. All API calls (requests and responses) are defined
as structs and marshaled using reflection. This is not a performance problem,
because API calls are not frequent. Marshaling and unmarshaling of individual
records within record batches is done inline.

3. No retries. Connection failures surface as ErrBrokerUnavailable and broker
error codes as *Error. Callers decide whether to retry.

4. Limited use of data hiding. Most internal structures are exposed to make
debugging and metrics collection easier.
*/
package simplekafka

import (
	"github.com/mkocikowski/simplekafka/batch"
	"github.com/mkocikowski/simplekafka/record"
)

// DefaultClientId is sent in request headers when no client id is configured.
const DefaultClientId = "simplekafka"

func NewRecord(key, value []byte) *Record {
	return record.New(key, value)
}

type Record = record.Record

type Batch = batch.Batch
