// Package varint implements the zigzag varint encoding used by Kafka record
// fields.
package varint

import (
	"fmt"

	"github.com/mkocikowski/simplekafka/wire"
)

var (
	ErrTruncated = fmt.Errorf("truncated varint: %w", wire.ErrMalformedResponse)
	ErrOverflow  = fmt.Errorf("varint overflows 64 bits: %w", wire.ErrMalformedResponse)
)

// AppendZigZag64 appends zigzag encoded x to dst.
func AppendZigZag64(dst []byte, x int64) []byte {
	// use signed number to get arithmetic right shift.
	return AppendVarint(dst, uint64(x<<1^(x>>63)))
}

// DecodeZigZag64 returns the decoded value and the number of bytes read.
// https://github.com/gogo/protobuf/blob/master/proto/decode.go#L242
func DecodeZigZag64(buf []byte) (int64, int, error) {
	x, n, err := DecodeVarint(buf)
	if err != nil {
		return 0, 0, err
	}
	x = (x >> 1) ^ uint64((int64(x&1)<<63)>>63)
	return int64(x), n, nil
}

// Based on https://github.com/golang/protobuf/blob/master/proto/encode.go#L72
func AppendVarint(dst []byte, x uint64) []byte {
	for x > 127 {
		dst = append(dst, 0x80|uint8(x&0x7F))
		x >>= 7
	}
	return append(dst, uint8(x))
}

// https://github.com/golang/protobuf/blob/master/proto/decode.go#L57
func DecodeVarint(buf []byte) (x uint64, n int, err error) {
	for shift := uint(0); shift < 64; shift += 7 {
		if n >= len(buf) {
			return 0, 0, ErrTruncated
		}
		b := uint64(buf[n])
		n++
		x |= (b & 0x7F) << shift
		if (b & 0x80) == 0 {
			return x, n, nil
		}
	}
	return 0, 0, ErrOverflow
}
