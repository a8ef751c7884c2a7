// Package record implements functions for marshaling and unmarshaling
// individual Kafka records (the entries of a magic 2 record batch).
package record

import (
	"fmt"

	"github.com/mkocikowski/simplekafka/varint"
	"github.com/mkocikowski/simplekafka/wire"
)

// New record with key and value. A nil key (or value) is marshaled as null.
func New(key, value []byte) *Record {
	return &Record{
		Key:   key,
		Value: value,
	}
}

type Record struct {
	Attributes     int8
	TimestampDelta int64
	OffsetDelta    int64
	Key            []byte
	Value          []byte
	Headers        []Header
}

type Header struct {
	Key   string
	Value []byte
}

func appendBytes(b, v []byte) []byte {
	if v == nil {
		return varint.AppendZigZag64(b, -1)
	}
	b = varint.AppendZigZag64(b, int64(len(v)))
	return append(b, v...)
}

// Marshal the record, including its leading varint length.
func (r *Record) Marshal() []byte {
	return r.AppendTo(nil)
}

// AppendTo appends the marshaled record to dst.
func (r *Record) AppendTo(dst []byte) []byte {
	b := make([]byte, 0, 16+len(r.Key)+len(r.Value))
	b = append(b, byte(r.Attributes))
	b = varint.AppendZigZag64(b, r.TimestampDelta)
	b = varint.AppendZigZag64(b, r.OffsetDelta)
	b = appendBytes(b, r.Key)
	b = appendBytes(b, r.Value)
	b = varint.AppendZigZag64(b, int64(len(r.Headers)))
	for _, h := range r.Headers {
		b = appendBytes(b, []byte(h.Key))
		b = appendBytes(b, h.Value)
	}
	dst = varint.AppendZigZag64(dst, int64(len(b)))
	return append(dst, b...)
}

type reader struct {
	b   []byte
	off int
	err error
}

func (r *reader) varint(what string) int64 {
	if r.err != nil {
		return 0
	}
	x, n, err := varint.DecodeZigZag64(r.b[r.off:])
	if err != nil {
		r.err = fmt.Errorf("error reading record %s: %w", what, err)
		return 0
	}
	r.off += n
	return x
}

func (r *reader) bytes(what string) []byte {
	n := r.varint(what + " length")
	if r.err != nil || n == -1 {
		return nil
	}
	if n < -1 || n > int64(len(r.b)-r.off) {
		r.err = fmt.Errorf("record %s length %d outside of [-1, %d]: %w", what, n, len(r.b)-r.off, wire.ErrMalformedResponse)
		return nil
	}
	v := make([]byte, n)
	r.off += copy(v, r.b[r.off:])
	return v
}

// Unmarshal one record. b must start with the record's varint length; bytes
// past the declared length are ignored. Errors wrap wire.ErrMalformedResponse.
func Unmarshal(b []byte) (*Record, error) {
	length, n, err := varint.DecodeZigZag64(b)
	if err != nil {
		return nil, fmt.Errorf("error reading record length: %w", err)
	}
	if length < 1 || length > int64(len(b)-n) {
		return nil, fmt.Errorf("record length %d outside of [1, %d]: %w", length, len(b)-n, wire.ErrMalformedResponse)
	}
	rd := &reader{b: b[n : n+int(length)]}
	r := &Record{}
	r.Attributes = int8(rd.b[0])
	rd.off = 1
	r.TimestampDelta = rd.varint("timestamp delta")
	r.OffsetDelta = rd.varint("offset delta")
	r.Key = rd.bytes("key")
	r.Value = rd.bytes("value")
	numHeaders := rd.varint("header count")
	if rd.err == nil && (numHeaders < 0 || numHeaders > int64(len(rd.b)-rd.off)) {
		rd.err = fmt.Errorf("record header count %d: %w", numHeaders, wire.ErrMalformedResponse)
	}
	for i := int64(0); rd.err == nil && i < numHeaders; i++ {
		k := rd.bytes("header key")
		r.Headers = append(r.Headers, Header{Key: string(k), Value: rd.bytes("header value")})
	}
	if rd.err != nil {
		return nil, rd.err
	}
	return r, nil
}

// Len returns the number of bytes the record occupies at the start of b
// (its varint length prefix plus body), without unmarshaling it.
func Len(b []byte) (int, error) {
	length, n, err := varint.DecodeZigZag64(b)
	if err != nil {
		return 0, fmt.Errorf("error reading record length: %w", err)
	}
	if length < 1 || length > int64(len(b)-n) {
		return 0, fmt.Errorf("record length %d outside of [1, %d]: %w", length, len(b)-n, wire.ErrMalformedResponse)
	}
	return n + int(length), nil
}
