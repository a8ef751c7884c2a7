/*
Package batch implements functions for building, marshaling, and unmarshaling
Kafka (magic 2) record batches.

Producing

When producing messages, call NewBuilder, and Add records to it. Call
Builder.Build and Marshal the returned Batch into the Produce request record
set.

Fetching ("consuming")

Fetch result (if successful) will contain a RecordSet. Call its Batches method
to get byte slices containing individual batches. Unmarshal each batch
individually. To get individual records, call Batch.Records. Compressed batches
are not supported and fail with ErrCompressed. Control batches (transaction
markers) carry no user records.
*/
package batch

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"reflect"
	"time"

	"github.com/mkocikowski/simplekafka/record"
	"github.com/mkocikowski/simplekafka/wire"
)

const (
	// HeaderBytes is the size of the marshaled batch header.
	HeaderBytes = 61
	// bytes of the header not counted in BatchLengthBytes (BaseOffset and
	// BatchLengthBytes itself)
	lengthOffset = 12
	crcOffset    = 17
	// first byte covered by the crc (Attributes)
	crcStart = 21
)

const (
	CompressionNone = 0
	compressionMask = 0b111

	TimestampCreate    = 0b0000
	TimestampLogAppend = 0b1000

	transactionalFlag = 0b10000
	controlFlag       = 0b100000
)

func NewBuilder(now time.Time) *Builder {
	return &Builder{t: now}
}

// Builder is used for building record batches. There is no limit on the number
// of records (up to the user). Not safe for concurrent use.
type Builder struct {
	t       time.Time
	records []*record.Record
}

// Add records to the batch. References to added records are not released on
// call to Build.
func (b *Builder) Add(records ...*record.Record) *Builder {
	b.records = append(b.records, records...)
	return b
}

func (b *Builder) AddStrings(values ...string) *Builder {
	for _, s := range values {
		b.records = append(b.records, record.New(nil, []byte(s)))
	}
	return b
}

// NumRecords that have been added to the builder.
func (b *Builder) NumRecords() int {
	return len(b.records)
}

var (
	ErrEmpty     = errors.New("empty batch")
	ErrNilRecord = errors.New("nil record in batch")
	// ErrCorrupted is returned when the batch crc does not match its bytes.
	ErrCorrupted = fmt.Errorf("batch crc does not match bytes: %w", wire.ErrMalformedResponse)
	// ErrCompressed is returned by Records for batches with compressed
	// records. Compression codecs are not implemented.
	ErrCompressed = errors.New("compressed record batches are not supported")
	crc32c        = crc32.MakeTable(crc32.Castagnoli)
)

// Build a record batch (marshal individual records and set batch metadata).
// Returns ErrEmpty if batch has no records and ErrNilRecord if any of the
// records is nil. Batch FirstTimestamp is set to the time when the builder was
// created and MaxTimestamp to the time passed to Build. Record offset deltas
// are set to their position in the batch. Idempotent.
func (b *Builder) Build(now time.Time) (*Batch, error) {
	if len(b.records) == 0 {
		return nil, ErrEmpty
	}
	var marshaledRecords []byte
	for i, r := range b.records {
		if r == nil {
			return nil, ErrNilRecord
		}
		r.OffsetDelta = int64(i)
		marshaledRecords = r.AppendTo(marshaledRecords)
	}
	return &Batch{
		BatchLengthBytes:     int32(HeaderBytes - lengthOffset + len(marshaledRecords)),
		PartitionLeaderEpoch: -1, // set by the broker; produced batches must carry -1
		Magic:                2,
		Attributes:           CompressionNone,
		LastOffsetDelta:      int32(len(b.records) - 1),
		FirstTimestamp:       b.t.UnixMilli(),
		MaxTimestamp:         now.UnixMilli(),
		ProducerId:           -1,
		ProducerEpoch:        -1,
		BaseSequence:         -1,
		NumRecords:           int32(len(b.records)),
		MarshaledRecords:     marshaledRecords,
	}, nil
}

// Unmarshal the batch. On error batch is nil. Errors wrap
// wire.ErrMalformedResponse; ErrCorrupted if the crc does not match.
func Unmarshal(b []byte) (*Batch, error) {
	if len(b) < HeaderBytes {
		return nil, fmt.Errorf("batch of %d bytes shorter than header: %w", len(b), wire.ErrMalformedResponse)
	}
	d := wire.NewDecoder(b)
	batch := &Batch{}
	if err := d.Value(reflect.ValueOf(batch)); err != nil {
		return nil, fmt.Errorf("error reading batch header: %w", err)
	}
	if batch.Magic != 2 {
		return nil, fmt.Errorf("unsupported batch magic %d: %w", batch.Magic, wire.ErrMalformedResponse)
	}
	if n := int(batch.BatchLengthBytes) + lengthOffset; n != len(b) {
		return nil, fmt.Errorf("batch length %d does not match %d bytes: %w", n, len(b), wire.ErrMalformedResponse)
	}
	batch.MarshaledRecords = d.Rest() // the remainder is the message bodies
	if crc := crc32.Checksum(b[crcStart:], crc32c); crc != batch.Crc {
		return nil, ErrCorrupted
	}
	return batch, nil
}

// Batch defines Kafka record batch in wire format. Not safe for concurrent use.
type Batch struct {
	BaseOffset           int64
	BatchLengthBytes     int32
	PartitionLeaderEpoch int32
	Magic                int8 // this should be =2
	Crc                  uint32
	Attributes           int16
	LastOffsetDelta      int32
	FirstTimestamp       int64 // ms since epoch
	MaxTimestamp         int64 // ms since epoch
	ProducerId           int64 // for transactions only see KIP-360
	ProducerEpoch        int16 // for transactions only see KIP-360
	BaseSequence         int32
	NumRecords           int32
	//
	MarshaledRecords []byte `wire:"omit" json:"-"`
}

func (batch *Batch) CompressionType() int16 {
	return batch.Attributes & compressionMask
}

func (batch *Batch) TimestampType() int16 {
	return batch.Attributes & TimestampLogAppend
}

func (batch *Batch) IsTransactional() bool {
	return batch.Attributes&transactionalFlag != 0
}

// IsControl is true for batches holding transaction markers.
func (batch *Batch) IsControl() bool {
	return batch.Attributes&controlFlag != 0
}

func (batch *Batch) LastOffset() int64 {
	return batch.BaseOffset + int64(batch.LastOffsetDelta)
}

// Marshal batch header and append marshaled records. Mutates the batch Crc.
func (batch *Batch) Marshal() RecordSet {
	e := wire.NewEncoder().Value(reflect.ValueOf(batch))
	if err := e.Err(); err != nil {
		panic(err) // fixed width fields only
	}
	b := append(e.Bytes(), batch.MarshaledRecords...)
	batch.Crc = crc32.Checksum(b[crcStart:], crc32c)
	binary.BigEndian.PutUint32(b[crcOffset:], batch.Crc)
	return b
}

// Records unmarshals individual records from the batch. Control batches have
// no user records and return nil.
func (batch *Batch) Records() ([]*record.Record, error) {
	if batch.CompressionType() != CompressionNone {
		return nil, ErrCompressed
	}
	if batch.IsControl() {
		return nil, nil
	}
	var records []*record.Record
	for b := batch.MarshaledRecords; len(b) > 0; {
		n, err := record.Len(b)
		if err != nil {
			return nil, err
		}
		r, err := record.Unmarshal(b[:n])
		if err != nil {
			return nil, err
		}
		records = append(records, r)
		b = b[n:]
	}
	return records, nil
}

// RecordSet is composed of 1 or more record batches. Fetch API calls respond
// with record sets. Byte representation of a record set with only one record
// batch is identical to the record batch.
type RecordSet []byte

// Batches returns the batches in the record set. Because Kafka limits response
// byte sizes, the last record batch in the set may be truncated (bytes will be
// missing from the end). In such case the last batch is discarded.
func (b RecordSet) Batches() [][]byte {
	var batches [][]byte
	for len(b) >= lengthOffset {
		length := int32(binary.BigEndian.Uint32(b[8:lengthOffset]))
		if length < 0 {
			break
		}
		n := int(length) + lengthOffset
		if len(b) < n {
			break // "incomplete" batch
		}
		batches = append(batches, b[:n])
		b = b[n:]
	}
	return batches
}
