package api

import (
	"fmt"
	"io"

	"github.com/mkocikowski/simplekafka/wire"
)

// ReadResponse reads one response frame from r. Frames larger than maxBytes
// are malformed (0 means no limit).
func ReadResponse(r io.Reader, maxBytes int32) (*Response, error) {
	b, err := wire.ReadFrame(r, maxBytes)
	if err != nil {
		return nil, err
	}
	d := wire.NewDecoder(b)
	c := d.ReadInt32()
	if err := d.Err(); err != nil {
		return nil, fmt.Errorf("error reading response correlation id: %w", err)
	}
	return &Response{CorrelationId: c, body: d.Rest()}, nil
}

type Response struct {
	CorrelationId int32
	body          []byte
}

// Bytes returns the response body (without the correlation id).
func (r *Response) Bytes() []byte {
	return r.body
}

// Unmarshal the response body into v. All of the body must be consumed. The
// request is used only to identify the api in the returned *DecodeError.
func (r *Response) Unmarshal(req *Request, v interface{}) error {
	if err := wire.Unmarshal(r.body, v); err != nil {
		return &DecodeError{
			Api:           req.ApiKey,
			Version:       req.ApiVersion,
			CorrelationId: r.CorrelationId,
			Err:           err,
		}
	}
	return nil
}

// MarshalResponse returns a response frame for body. Brokers (and fake
// brokers in tests) use it.
func MarshalResponse(correlationId int32, body interface{}) ([]byte, error) {
	e := wire.NewEncoder().WriteInt32(correlationId).Write(body)
	if err := e.Err(); err != nil {
		return nil, err
	}
	return wire.Frame(e.Bytes()), nil
}

// DecodeError is returned when a response body can not be decoded. It
// unwraps to wire.ErrMalformedResponse.
type DecodeError struct {
	Api           Key
	Version       int16
	CorrelationId int32
	Err           error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("error decoding %v v%d response (correlation id %d): %v", e.Api, e.Version, e.CorrelationId, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
