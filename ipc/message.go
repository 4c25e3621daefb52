package ipc

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/vpd/types"
)

// ProtocolVersion is stamped on every request.
const ProtocolVersion = 1

// Op names a parser request.
type Op string

// Parser operations.
const (
	OpRead    Op = "read"
	OpWrite   Op = "write"
	OpCollect Op = "collect"
)

// Request is the single frame written to the parser's stdin.
type Request struct {
	Version int                `msgpack:"version"`
	ID      string             `msgpack:"id"`
	Op      Op                 `msgpack:"op"`
	Path    types.Path         `msgpack:"path"`
	Record  string             `msgpack:"record,omitempty"`
	Keyword string             `msgpack:"keyword,omitempty"`
	Value   types.BinaryVector `msgpack:"value,omitempty"`
}

// ErrorKind classifies a parser-reported failure.
type ErrorKind string

// Parser error kinds.
const (
	ErrorKindIO       ErrorKind = "io"
	ErrorKindParse    ErrorKind = "parse"
	ErrorKindNotFound ErrorKind = "not_found"
	ErrorKindBusy     ErrorKind = "busy"
	ErrorKindInternal ErrorKind = "internal"
)

// ResponseError describes why the parser could not serve a request.
// Errno is the raw errno observed on the device, zero if none.
type ResponseError struct {
	Kind    ErrorKind `msgpack:"kind"`
	Errno   int       `msgpack:"errno,omitempty"`
	Message string    `msgpack:"message"`
}

// Response is the single frame read from the parser's stdout.
// Exactly one of Error or the op-specific result is meaningful.
type Response struct {
	ID           string             `msgpack:"id"`
	Error        *ResponseError     `msgpack:"error,omitempty"`
	Value        types.BinaryVector `msgpack:"value,omitempty"`
	BytesWritten int                `msgpack:"bytes_written,omitempty"`
	VPD          types.ParsedVPD    `msgpack:"vpd,omitempty"`
}

// EncodeRequest marshals req.
func EncodeRequest(req *Request) ([]byte, error) {
	return encode(req, "failed to encode request")
}

// DecodeRequest unmarshals a request payload.
func DecodeRequest(payload []byte) (*Request, error) {
	var req Request
	if err := decode(payload, &req, "failed to decode request"); err != nil {
		return nil, err
	}
	return &req, nil
}

// EncodeResponse marshals resp.
func EncodeResponse(resp *Response) ([]byte, error) {
	return encode(resp, "failed to encode response")
}

// DecodeResponse unmarshals a response payload.
func DecodeResponse(payload []byte) (*Response, error) {
	var resp Response
	if err := decode(payload, &resp, "failed to decode response"); err != nil {
		return nil, err
	}
	return &resp, nil
}

func encode(v any, msg string) ([]byte, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, &FrameError{Kind: FrameErrorEncode, Msg: msg, Err: err}
	}
	return b, nil
}

func decode(payload []byte, v any, msg string) error {
	if err := msgpack.Unmarshal(payload, v); err != nil {
		return &FrameError{Kind: FrameErrorDecode, Msg: msg, Err: err}
	}
	return nil
}
