// Package decoder turns a captured request body into a language-neutral JSON value
// (map[string]interface{}, []interface{} or a scalar). Numbers are kept as
// json.Number so 64-bit ids survive. It never returns an error to its caller:
// failures are reported through Result so a single malformed request cannot break
// the capture pipeline.
package decoder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	cerrors "github.com/PratikDhanave/analytics-capture/internal/errors"
)

// DefaultMaxSize bounds the decompressed size of a single body.
const DefaultMaxSize = 32 << 20

// maxDepth bounds nested unwrapping (form field -> base64 -> compressed -> JSON).
const maxDepth = 4

// Status describes the outcome of a decode.
type Status int

const (
	StatusOK Status = iota
	StatusEmpty
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusEmpty:
		return "empty"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Body is a request body as the host hands it over: raw bytes, or a value the
// host already parsed. Parsed takes precedence when both are set.
type Body struct {
	Raw    []byte
	Parsed interface{}
}

// Result is the decoder outcome. Payload is set only for StatusOK; Err only for
// StatusFailed. Encoding lists the layers that were removed, outermost first.
type Result struct {
	Payload  interface{}
	Status   Status
	Err      error
	Encoding []string
	Size     int
}

// OK reports whether the decode produced a payload.
func (r Result) OK() bool { return r.Status == StatusOK }

// Decoder holds decode limits. The zero value is not usable; use New.
type Decoder struct {
	maxSize int64
}

// New returns a Decoder that refuses bodies inflating beyond maxSize bytes.
// maxSize <= 0 selects DefaultMaxSize.
func New(maxSize int64) *Decoder {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Decoder{maxSize: maxSize}
}

var defaultDecoder = New(DefaultMaxSize)

// Decode decodes body with the default limits.
func Decode(body Body, hint string) Result {
	return defaultDecoder.Decode(body, hint)
}

// Decode parses body. hint is a Content-Encoding header value or an SDK
// compression marker such as "gzip-js"; an empty hint relies on sniffing.
func (d *Decoder) Decode(body Body, hint string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{
				Status: StatusFailed,
				Err:    cerrors.NewDecode(cerrors.CodeInvalidJSON, "decoder panic", fmt.Errorf("%v", r)),
			}
		}
	}()

	if body.Parsed != nil {
		switch v := body.Parsed.(type) {
		case []byte:
			body.Raw = v
		case string:
			body.Raw = []byte(v)
		case json.RawMessage:
			body.Raw = v
		default:
			return fromParsed(v)
		}
	}

	res.Size = len(body.Raw)
	if len(bytes.TrimSpace(body.Raw)) == 0 {
		res.Status = StatusEmpty
		return res
	}

	payload, layers, err := d.decodeBytes(body.Raw, hint, 0)
	res.Encoding = layers
	if err != nil {
		res.Status = StatusFailed
		res.Err = err
		return res
	}
	if payload == nil {
		res.Status = StatusEmpty
		return res
	}
	res.Payload = payload
	res.Status = StatusOK
	return res
}

// fromParsed converts a host-materialized value into plain JSON types.
func fromParsed(v interface{}) Result {
	switch t := v.(type) {
	case map[string]interface{}:
		if t == nil {
			return Result{Status: StatusEmpty}
		}
		return Result{Payload: t, Status: StatusOK}
	case []interface{}:
		if t == nil {
			return Result{Status: StatusEmpty}
		}
		return Result{Payload: t, Status: StatusOK}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return Result{
			Status: StatusFailed,
			Err:    cerrors.NewDecode(cerrors.CodeInvalidJSON, "parsed body is not JSON-representable", err),
		}
	}
	out, err := parseJSON(data)
	if err != nil {
		return Result{
			Status: StatusFailed,
			Err:    cerrors.NewDecode(cerrors.CodeInvalidJSON, "parsed body round trip", err),
		}
	}
	if out == nil {
		return Result{Status: StatusEmpty}
	}
	return Result{Payload: out, Status: StatusOK, Size: len(data)}
}

func (d *Decoder) decodeBytes(data []byte, hint string, depth int) (interface{}, []string, error) {
	if depth > maxDepth {
		return nil, nil, cerrors.NewDecode(cerrors.CodeInvalidJSON, "too many nested encodings", nil)
	}

	var layers []string
	enc := detectEncoding(data, hint)
	if enc != encodingIdentity {
		inflated, err := d.decompress(enc, data)
		if err != nil {
			return nil, []string{enc}, err
		}
		layers = append(layers, enc)
		data = inflated
	}

	data = bytes.TrimPrefix(data, utf8BOM)
	text := bytes.TrimSpace(data)
	if len(text) == 0 {
		return nil, layers, nil
	}

	// a JSON scalar is decoded as such; "null" ends up as an empty body
	if text[0] == '{' || text[0] == '[' || json.Valid(text) {
		out, err := parseJSON(text)
		if err != nil {
			return nil, layers, cerrors.NewDecode(cerrors.CodeInvalidJSON, "body is not valid JSON", err)
		}
		return out, layers, nil
	}

	if field, compression, ok := formData(string(text)); ok {
		payload, inner, err := d.decodeBytes([]byte(field), compression, depth+1)
		return payload, append(append(layers, "form"), inner...), err
	}

	if raw, ok := decodeBase64(string(text)); ok {
		payload, inner, err := d.decodeBytes(raw, hintAfterBase64(hint), depth+1)
		return payload, append(append(layers, "base64"), inner...), err
	}

	return nil, layers, cerrors.NewDecode(cerrors.CodeInvalidJSON, "body is neither JSON, form data nor base64", nil).
		WithDetail("prefix", preview(text))
}

// parseJSON decodes exactly one JSON value with numbers kept as json.Number.
func parseJSON(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out interface{}
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after JSON value at offset %d", dec.InputOffset())
	}
	return out, nil
}

// hintAfterBase64 keeps SDK compression markers that apply to the decoded bytes.
func hintAfterBase64(hint string) string {
	switch normalizeHint(hint) {
	case encodingGzip, encodingDeflate, encodingZstd, encodingSnappy:
		return hint
	}
	return ""
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func preview(b []byte) string {
	const n = 32
	if len(b) > n {
		return strings.ToValidUTF8(string(b[:n]), "?") + "..."
	}
	return strings.ToValidUTF8(string(b), "?")
}
