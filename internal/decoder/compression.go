package decoder

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"

	cerrors "github.com/PratikDhanave/analytics-capture/internal/errors"
)

const (
	encodingIdentity = "identity"
	encodingGzip     = "gzip"
	encodingDeflate  = "deflate"
	encodingZstd     = "zstd"
	encodingSnappy   = "snappy"
	encodingLZ64     = "lz64"
)

var (
	gzipMagic         = []byte{0x1f, 0x8b}
	zstdMagic         = []byte{0x28, 0xb5, 0x2f, 0xfd}
	snappyStreamMagic = []byte("\xff\x06\x00\x00sNaPpY")
)

// normalizeHint maps header values and SDK markers onto the encodings we know.
func normalizeHint(hint string) string {
	hint = strings.ToLower(strings.TrimSpace(hint))
	// "gzip, identity" style lists: the first coding is the outermost
	if i := strings.IndexByte(hint, ','); i >= 0 {
		hint = strings.TrimSpace(hint[:i])
	}
	switch hint {
	case "gzip", "gzip-js", "x-gzip":
		return encodingGzip
	case "deflate", "zlib":
		return encodingDeflate
	case "zstd":
		return encodingZstd
	case "snappy", "x-snappy-framed", "x-snappy":
		return encodingSnappy
	case "lz64", "lz-string":
		return encodingLZ64
	default:
		return encodingIdentity
	}
}

// detectEncoding trusts magic bytes over the hint: hosts frequently report the
// original Content-Encoding for bodies they already inflated.
func detectEncoding(data []byte, hint string) string {
	switch {
	case bytes.HasPrefix(data, gzipMagic):
		return encodingGzip
	case bytes.HasPrefix(data, zstdMagic):
		return encodingZstd
	case bytes.HasPrefix(data, snappyStreamMagic):
		return encodingSnappy
	}

	h := normalizeHint(hint)
	switch h {
	case encodingGzip, encodingZstd:
		// both formats always carry their magic
		return encodingIdentity
	case encodingDeflate, encodingSnappy, encodingLZ64:
		if looksLikeText(data) {
			return encodingIdentity
		}
		return h
	}

	if isZlibHeader(data) && !looksLikeText(data) {
		return encodingDeflate
	}
	return encodingIdentity
}

func isZlibHeader(data []byte) bool {
	if len(data) < 2 || data[0]&0x0f != 8 {
		return false
	}
	return (uint16(data[0])<<8|uint16(data[1]))%31 == 0
}

func looksLikeText(data []byte) bool {
	t := bytes.TrimSpace(bytes.TrimPrefix(data, utf8BOM))
	if len(t) == 0 {
		return true
	}
	switch t[0] {
	case '{', '[':
		return true
	}
	_, ok := decodeBase64(string(t))
	if ok {
		return true
	}
	_, _, ok = formData(string(t))
	return ok
}

func (d *Decoder) decompress(enc string, data []byte) ([]byte, error) {
	var (
		r   io.Reader
		err error
	)
	switch enc {
	case encodingGzip:
		var zr *gzip.Reader
		if zr, err = gzip.NewReader(bytes.NewReader(data)); err == nil {
			defer zr.Close()
			r = zr
		}
	case encodingDeflate:
		var zr io.ReadCloser
		if zr, err = zlib.NewReader(bytes.NewReader(data)); err == nil {
			defer zr.Close()
			r = zr
		} else {
			// raw DEFLATE without the zlib wrapper is common in the wild
			fr := flate.NewReader(bytes.NewReader(data))
			defer fr.Close()
			r, err = fr, nil
		}
	case encodingZstd:
		var zr *zstd.Decoder
		if zr, err = zstd.NewReader(bytes.NewReader(data), zstd.WithDecoderMaxMemory(uint64(d.maxSize))); err == nil {
			defer zr.Close()
			r = zr
		}
	case encodingSnappy:
		if bytes.HasPrefix(data, snappyStreamMagic) {
			r = snappy.NewReader(bytes.NewReader(data))
			break
		}
		n, lerr := snappy.DecodedLen(data)
		if lerr != nil {
			return nil, cerrors.NewDecode(cerrors.CodeDecompressFailed, "snappy block header", lerr)
		}
		if int64(n) > d.maxSize {
			return nil, cerrors.NewDecode(cerrors.CodeBodyTooLarge, "snappy body exceeds size limit", nil).
				WithDetail("decoded_len", n)
		}
		out, derr := snappy.Decode(nil, data)
		if derr != nil {
			return nil, cerrors.NewDecode(cerrors.CodeDecompressFailed, "snappy block", derr)
		}
		return out, nil
	case encodingLZ64:
		return nil, cerrors.NewDecode(cerrors.CodeDecompressFailed, "lz64 compression is not supported", nil)
	default:
		return data, nil
	}
	if err != nil {
		return nil, cerrors.NewDecode(cerrors.CodeDecompressFailed, enc+" header", err)
	}

	out, err := io.ReadAll(io.LimitReader(r, d.maxSize+1))
	if err != nil {
		return nil, cerrors.NewDecode(cerrors.CodeDecompressFailed, enc+" stream", err)
	}
	if int64(len(out)) > d.maxSize {
		return nil, cerrors.NewDecode(cerrors.CodeBodyTooLarge, fmt.Sprintf("%s body exceeds %d bytes", enc, d.maxSize), nil)
	}
	return out, nil
}

// formData extracts the data field of an application/x-www-form-urlencoded body,
// along with its compression marker.
func formData(text string) (string, string, bool) {
	if !strings.Contains(text, "data=") {
		return "", "", false
	}
	values, err := url.ParseQuery(text)
	if err != nil {
		return "", "", false
	}
	data := values.Get("data")
	if data == "" {
		return "", "", false
	}
	return data, values.Get("compression"), true
}

var base64Encodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.RawStdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

func decodeBase64(text string) ([]byte, bool) {
	if len(text) < 4 {
		return nil, false
	}
	for _, c := range text {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '+', c == '/', c == '-', c == '_', c == '=':
		default:
			return nil, false
		}
	}
	for _, enc := range base64Encodings {
		if out, err := enc.DecodeString(text); err == nil && len(out) > 0 {
			return out, true
		}
	}
	return nil, false
}
