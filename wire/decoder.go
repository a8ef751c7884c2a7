package wire

import (
	"reflect"

	"github.com/pkg/errors"
)

func NewDecoder(b []byte) *Decoder {
	return &Decoder{b: b}
}

// Decoder reads primitives from a byte slice. The first error is sticky:
// after it, all reads return zero values and Err returns the error. Every
// error wraps ErrMalformedResponse.
type Decoder struct {
	b   []byte
	off int
	err error
}

func (d *Decoder) Err() error { return d.err }

// Remaining number of bytes not yet consumed.
func (d *Decoder) Remaining() int { return len(d.b) - d.off }

// Rest returns the bytes not yet consumed and consumes them.
func (d *Decoder) Rest() []byte {
	if d.err != nil {
		return nil
	}
	b := d.b[d.off:]
	d.off = len(d.b)
	return b
}

func (d *Decoder) next(n int, what string) []byte {
	if d.err != nil {
		return nil
	}
	if n > d.Remaining() {
		d.err = malformed("reading %s: need %d bytes, have %d", what, n, d.Remaining())
		return nil
	}
	b := d.b[d.off : d.off+n]
	d.off += n
	return b
}

func (d *Decoder) ReadInt8() int8 {
	if b := d.next(1, "int8"); b != nil {
		return int8(b[0])
	}
	return 0
}

func (d *Decoder) ReadInt16() int16 {
	if b := d.next(2, "int16"); b != nil {
		return int16(ord.Uint16(b))
	}
	return 0
}

func (d *Decoder) ReadInt32() int32 {
	if b := d.next(4, "int32"); b != nil {
		return int32(ord.Uint32(b))
	}
	return 0
}

func (d *Decoder) ReadUint32() uint32 {
	if b := d.next(4, "uint32"); b != nil {
		return ord.Uint32(b)
	}
	return 0
}

func (d *Decoder) ReadInt64() int64 {
	if b := d.next(8, "int64"); b != nil {
		return int64(ord.Uint64(b))
	}
	return 0
}

func (d *Decoder) ReadBool() bool {
	return d.ReadInt8() != 0
}

// ReadNullableString returns nil for a null (-1 length) string.
func (d *Decoder) ReadNullableString() *string {
	n := d.ReadInt16()
	if d.err != nil {
		return nil
	}
	if n == -1 {
		return nil
	}
	if n < -1 {
		d.err = malformed("invalid string length %d", n)
		return nil
	}
	b := d.next(int(n), "string")
	if b == nil {
		return nil
	}
	s := string(b)
	return &s
}

// ReadString returns "" for a null string.
func (d *Decoder) ReadString() string {
	if s := d.ReadNullableString(); s != nil {
		return *s
	}
	return ""
}

// ReadBytes returns nil for a null (-1 length) byte array and an empty non nil
// slice for a zero length one. The returned slice is a copy.
func (d *Decoder) ReadBytes() []byte {
	n := d.ReadInt32()
	if d.err != nil || n == -1 {
		return nil
	}
	if n < -1 {
		d.err = malformed("invalid byte array length %d", n)
		return nil
	}
	b := d.next(int(n), "byte array")
	if b == nil {
		return nil
	}
	return append(make([]byte, 0, len(b)), b...)
}

// ReadArrayLen returns the number of elements in the array that follows, or
// -1 for a null array. Every element takes at least one byte, so a count
// larger than the remaining bytes is malformed.
func (d *Decoder) ReadArrayLen() int {
	n := d.ReadInt32()
	if d.err != nil {
		return 0
	}
	if n < -1 {
		d.err = malformed("invalid array length %d", n)
		return 0
	}
	if int(n) > d.Remaining() {
		d.err = malformed("array length %d exceeds remaining %d bytes", n, d.Remaining())
		return 0
	}
	return int(n)
}

// Value unmarshals into val, which must be a pointer or settable.
func (d *Decoder) Value(val reflect.Value) error {
	if d.err != nil {
		return d.err
	}
	switch val.Kind() {
	case reflect.Interface:
		if val.IsNil() {
			return errors.New("can not unmarshal into nil interface")
		}
		return d.Value(val.Elem())
	case reflect.Ptr:
		if val.Type().Elem().Kind() == reflect.String {
			if !val.CanSet() {
				if val.IsNil() {
					return errors.Errorf("can not unmarshal into nil %s", val.Type())
				}
				val.Elem().SetString(d.ReadString())
				return d.err
			}
			val.Set(reflect.ValueOf(d.ReadNullableString()))
			return d.err
		}
		if val.IsNil() {
			if !val.CanSet() {
				return errors.Errorf("can not unmarshal into nil %s", val.Type())
			}
			val.Set(reflect.New(val.Type().Elem()))
		}
		return d.Value(val.Elem())
	case reflect.Struct:
		typ := val.Type()
		for i := 0; i < val.NumField(); i++ {
			f := typ.Field(i)
			if !f.IsExported() || f.Tag.Get("wire") == "omit" {
				continue
			}
			if err := d.Value(val.Field(i)); err != nil {
				return errors.WithMessagef(err, "%s.%s", typ.Name(), f.Name)
			}
		}
		return nil
	case reflect.Slice:
		if val.Type().Elem().Kind() == reflect.Uint8 { // []byte
			val.SetBytes(d.ReadBytes())
			return d.err
		}
		n := d.ReadArrayLen()
		if d.err != nil {
			return d.err
		}
		if n == -1 {
			val.Set(reflect.Zero(val.Type())) // nil slice
			return nil
		}
		s := reflect.MakeSlice(val.Type(), n, n)
		for i := 0; i < n; i++ {
			if err := d.Value(s.Index(i)); err != nil {
				return err
			}
		}
		val.Set(s)
		return nil
	case reflect.String:
		val.SetString(d.ReadString())
	case reflect.Int8:
		val.SetInt(int64(d.ReadInt8()))
	case reflect.Int16:
		val.SetInt(int64(d.ReadInt16()))
	case reflect.Int32:
		val.SetInt(int64(d.ReadInt32()))
	case reflect.Uint32:
		val.SetUint(uint64(d.ReadUint32()))
	case reflect.Int64:
		val.SetInt(d.ReadInt64())
	case reflect.Bool:
		val.SetBool(d.ReadBool())
	default:
		return errors.Errorf("can not unmarshal %s", val.Type())
	}
	return d.err
}
