package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCaptureErrorFormatting(t *testing.T) {
	err := NewUsage(CodeInvalidQuery, "timeout must not be negative")
	assert.Equal(t, "[USAGE:INVALID_QUERY] timeout must not be negative", err.Error())

	cause := fmt.Errorf("unexpected EOF")
	dec := NewDecode(CodeDecompressFailed, "gzip body", cause)
	assert.Equal(t, "[DECODE:DECOMPRESS_FAILED] gzip body: unexpected EOF", dec.Error())
	assert.ErrorIs(t, dec, cause)
}

func TestCaptureErrorIsMatchesCategoryAndCode(t *testing.T) {
	a := NewSession(CodeSessionNotFound, "session abc")
	b := NewSession(CodeSessionNotFound, "session xyz")
	c := NewSession(CodeSessionClosed, "session abc")

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
	assert.True(t, IsSessionNotFound(fmt.Errorf("lookup: %w", a)))
	assert.False(t, IsSessionNotFound(c))
}

func TestIsUsage(t *testing.T) {
	assert.True(t, IsUsage(NewUsage(CodeInvalidConfig, "bad")))
	assert.False(t, IsUsage(NewDecode(CodeInvalidJSON, "bad", nil)))
	assert.False(t, IsUsage(errors.New("plain")))
	assert.False(t, IsUsage(nil))
}

func TestWithDetail(t *testing.T) {
	err := NewUsage(CodeInvalidQuery, "bad poll interval").WithDetail("poll_interval", "0s")
	assert.Equal(t, "0s", err.Details["poll_interval"])
}
