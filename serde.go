package simplekafka

// Serializer converts keys or values to and from the bytes carried in
// records. Producers and consumers treat record keys and values as opaque bytes
// produced and consumed through a Serializer.
type Serializer[V any] interface {
	Serialize(V) ([]byte, error)
	Deserialize([]byte) (V, error)
}

// NullSerializer serializes every value to null. Use it for keys to get
// round-robin partitioning.
type NullSerializer[V any] struct{}

func (NullSerializer[V]) Serialize(V) ([]byte, error) { return nil, nil }

func (NullSerializer[V]) Deserialize([]byte) (V, error) {
	var v V
	return v, nil
}

type StringSerializer struct{}

func (StringSerializer) Serialize(s string) ([]byte, error) { return []byte(s), nil }

func (StringSerializer) Deserialize(b []byte) (string, error) { return string(b), nil }

// BytesSerializer passes bytes through unchanged. A nil slice stays null.
type BytesSerializer struct{}

func (BytesSerializer) Serialize(b []byte) ([]byte, error) { return b, nil }

func (BytesSerializer) Deserialize(b []byte) ([]byte, error) { return b, nil }

var (
	_ Serializer[string] = StringSerializer{}
	_ Serializer[[]byte] = BytesSerializer{}
	_ Serializer[int]    = NullSerializer[int]{}
)
