package wire

import (
	"math"
	"reflect"

	"github.com/pkg/errors"
)

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder {
	return &Encoder{b: make([]byte, 0, 64)}
}

// Encoder appends primitives to a growable buffer. All Write methods return
// the encoder so calls can be chained. The first error is sticky: once set,
// subsequent writes are no-ops and Err returns it.
type Encoder struct {
	b   []byte
	err error
}

func (e *Encoder) Bytes() []byte { return e.b }
func (e *Encoder) Len() int      { return len(e.b) }
func (e *Encoder) Err() error    { return e.err }

func (e *Encoder) WriteInt8(i int8) *Encoder {
	if e.err == nil {
		e.b = append(e.b, byte(i))
	}
	return e
}

func (e *Encoder) WriteInt16(i int16) *Encoder {
	if e.err == nil {
		e.b = ord.AppendUint16(e.b, uint16(i))
	}
	return e
}

func (e *Encoder) WriteInt32(i int32) *Encoder {
	if e.err == nil {
		e.b = ord.AppendUint32(e.b, uint32(i))
	}
	return e
}

func (e *Encoder) WriteUint32(i uint32) *Encoder {
	if e.err == nil {
		e.b = ord.AppendUint32(e.b, i)
	}
	return e
}

func (e *Encoder) WriteInt64(i int64) *Encoder {
	if e.err == nil {
		e.b = ord.AppendUint64(e.b, uint64(i))
	}
	return e
}

func (e *Encoder) WriteBool(v bool) *Encoder {
	if v {
		return e.WriteInt8(1)
	}
	return e.WriteInt8(0)
}

// WriteString writes a non null string. Strings longer than math.MaxInt16
// bytes can not be represented.
func (e *Encoder) WriteString(s string) *Encoder {
	if e.err != nil {
		return e
	}
	if len(s) > math.MaxInt16 {
		e.err = errors.Errorf("string length %d exceeds %d", len(s), math.MaxInt16)
		return e
	}
	e.WriteInt16(int16(len(s)))
	e.b = append(e.b, s...)
	return e
}

// WriteNullableString writes -1 for nil.
func (e *Encoder) WriteNullableString(s *string) *Encoder {
	if s == nil {
		return e.WriteInt16(-1)
	}
	return e.WriteString(*s)
}

// WriteBytes writes -1 for nil, 0 for an empty non nil slice.
func (e *Encoder) WriteBytes(b []byte) *Encoder {
	if b == nil {
		return e.WriteInt32(-1)
	}
	if e.err != nil {
		return e
	}
	if int64(len(b)) > math.MaxInt32 {
		e.err = errors.Errorf("byte array length %d exceeds %d", len(b), math.MaxInt32)
		return e
	}
	e.WriteInt32(int32(len(b)))
	e.b = append(e.b, b...)
	return e
}

// WriteArrayLen writes the length prefix of an array; -1 is null.
func (e *Encoder) WriteArrayLen(n int) *Encoder {
	return e.WriteInt32(int32(n))
}

// Write a single value. Primitive types are written directly, everything
// else goes through Value.
func (e *Encoder) Write(v interface{}) *Encoder {
	switch x := v.(type) {
	case int8:
		return e.WriteInt8(x)
	case int16:
		return e.WriteInt16(x)
	case int32:
		return e.WriteInt32(x)
	case uint32:
		return e.WriteUint32(x)
	case int64:
		return e.WriteInt64(x)
	case bool:
		return e.WriteBool(x)
	case string:
		return e.WriteString(x)
	case *string:
		return e.WriteNullableString(x)
	case []byte:
		return e.WriteBytes(x)
	}
	return e.Value(reflect.ValueOf(v))
}

// Value marshals val using reflection.
func (e *Encoder) Value(val reflect.Value) *Encoder {
	if e.err != nil {
		return e
	}
	switch val.Kind() {
	case reflect.Interface:
		if val.IsNil() {
			e.err = errors.New("can not marshal nil interface")
			return e
		}
		return e.Value(val.Elem())
	case reflect.Ptr:
		if val.Type().Elem().Kind() == reflect.String {
			if val.IsNil() {
				return e.WriteInt16(-1)
			}
			return e.WriteString(val.Elem().String())
		}
		if val.IsNil() {
			e.err = errors.Errorf("can not marshal nil %s", val.Type())
			return e
		}
		return e.Value(val.Elem())
	case reflect.Struct:
		typ := val.Type()
		for i := 0; i < val.NumField(); i++ {
			f := typ.Field(i)
			if !f.IsExported() || f.Tag.Get("wire") == "omit" {
				continue
			}
			e.Value(val.Field(i))
		}
		return e
	case reflect.Slice:
		if val.Type().Elem().Kind() == reflect.Uint8 { // []byte
			return e.WriteBytes(val.Bytes())
		}
		if val.IsNil() {
			return e.WriteArrayLen(-1)
		}
		e.WriteArrayLen(val.Len())
		for i := 0; i < val.Len(); i++ {
			e.Value(val.Index(i))
		}
		return e
	case reflect.String:
		return e.WriteString(val.String())
	case reflect.Int8:
		return e.WriteInt8(int8(val.Int()))
	case reflect.Int16:
		return e.WriteInt16(int16(val.Int()))
	case reflect.Int32:
		return e.WriteInt32(int32(val.Int()))
	case reflect.Uint32:
		return e.WriteUint32(uint32(val.Uint()))
	case reflect.Int64:
		return e.WriteInt64(val.Int())
	case reflect.Bool:
		return e.WriteBool(val.Bool())
	}
	e.err = errors.Errorf("can not marshal %s", val.Type())
	return e
}
