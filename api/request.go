package api

import (
	"fmt"
	"io"

	"github.com/mkocikowski/simplekafka/wire"
)

// https://kafka.apache.org/protocol
// https://kafka.apache.org/documentation/#messageformat
// https://cwiki.apache.org/confluence/display/KAFKA/A+Guide+To+The+Kafka+Protocol#AGuideToTheKafkaProtocol-Messagesets

// Request is marshaled as the request header followed by the Body. The
// CorrelationId is set by the connection when the request is sent.
type Request struct {
	ApiKey        Key
	ApiVersion    int16
	CorrelationId int32
	ClientId      string
	Body          interface{}
}

// Body types that return false here (Produce with no acks) get no response
// from the broker.
type responseExpecter interface {
	ExpectResponse() bool
}

func (r *Request) ExpectResponse() bool {
	if e, ok := r.Body.(responseExpecter); ok {
		return e.ExpectResponse()
	}
	return true
}

// Validate that the request is for one of the Supported apis and versions.
func (r *Request) Validate() error {
	v, ok := Supported[r.ApiKey]
	if !ok {
		return fmt.Errorf("unsupported api %v", r.ApiKey)
	}
	if v != r.ApiVersion {
		return fmt.Errorf("unsupported %v version %d (supported: %d)", r.ApiKey, r.ApiVersion, v)
	}
	if r.Body == nil {
		return fmt.Errorf("nil %v request body", r.ApiKey)
	}
	return nil
}

// Bytes returns the request frame: int32 size followed by header and body.
func (r *Request) Bytes() ([]byte, error) {
	b, err := wire.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("error marshaling %v request: %w", r.ApiKey, err)
	}
	return wire.Frame(b), nil
}

// Header of a request frame as read by ReadRequest.
type Header struct {
	ApiKey        Key
	ApiVersion    int16
	CorrelationId int32
	ClientId      *string
}

// ReadRequest reads one request frame and parses its header. The body is
// returned as raw bytes. Unknown api keys are malformed.
func ReadRequest(r io.Reader, maxBytes int32) (*Header, []byte, error) {
	b, err := wire.ReadFrame(r, maxBytes)
	if err != nil {
		return nil, nil, err
	}
	d := wire.NewDecoder(b)
	k := d.ReadInt16()
	h := &Header{
		ApiVersion:    d.ReadInt16(),
		CorrelationId: d.ReadInt32(),
		ClientId:      d.ReadNullableString(),
	}
	if err := d.Err(); err != nil {
		return nil, nil, fmt.Errorf("error reading request header: %w", err)
	}
	if h.ApiKey, err = ParseKey(k); err != nil {
		return nil, nil, err
	}
	return h, d.Rest(), nil
}
