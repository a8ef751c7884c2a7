// Package wire implements the primitive encoding of the Kafka protocol and
// functions for marshaling and unmarshaling requests and responses.
//
// All integers are big endian. Strings are prefixed with an int16 length and
// byte arrays and arrays with an int32 length; -1 encodes null in all three
// cases. Request and response structs are marshaled using reflection: exported
// fields are written in declaration order, fields tagged `wire:"omit"` are
// skipped. A *string field is a nullable string.
package wire

import (
	"encoding/binary"
	"io"
	"reflect"

	"github.com/pkg/errors"
)

var ord = binary.BigEndian

// ErrMalformedResponse is returned (wrapped) by every decoding failure:
// truncated input, a declared length that exceeds the remaining bytes, bytes
// left over after decoding, or an unknown enum value.
var ErrMalformedResponse = errors.New("malformed response")

func malformed(format string, args ...interface{}) error {
	return errors.Wrapf(ErrMalformedResponse, format, args...)
}

// Marshal v (pointer to struct, or struct) into its wire representation.
func Marshal(v interface{}) ([]byte, error) {
	e := NewEncoder()
	if err := e.Value(reflect.ValueOf(v)).Err(); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// Unmarshal b into v, which must be a pointer. All of b must be consumed.
func Unmarshal(b []byte, v interface{}) error {
	d := NewDecoder(b)
	if err := d.Value(reflect.ValueOf(v)); err != nil {
		return err
	}
	if n := d.Remaining(); n != 0 {
		return malformed("%d unexpected trailing bytes", n)
	}
	return nil
}

// Frame prefixes payload with its int32 length.
func Frame(payload []byte) []byte {
	b := make([]byte, 4, 4+len(payload))
	ord.PutUint32(b, uint32(len(payload)))
	return append(b, payload...)
}

// ReadFrame reads a single length prefixed frame from r and returns the
// payload. Frames larger than maxBytes (or with negative length) are
// malformed; in that case nothing past the length prefix has been read and
// the stream can not be resynchronized.
func ReadFrame(r io.Reader, maxBytes int32) ([]byte, error) {
	var size [4]byte
	if _, err := io.ReadFull(r, size[:]); err != nil {
		return nil, err
	}
	n := int32(ord.Uint32(size[:]))
	if n < 0 || (maxBytes > 0 && n > maxBytes) {
		return nil, malformed("frame size %d outside of [0, %d]", n, maxBytes)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
