package resilience

import (
	"fmt"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestIsTransient_ExplicitMarker(t *testing.T) {
	err := Transient(eris.New("detector returned 503"), 503)
	assert.True(t, IsTransient(err))

	// Marker survives wrapping.
	wrapped := fmt.Errorf("calling upstream: %w", err)
	assert.True(t, IsTransient(wrapped))
}

func TestIsTransient_PlainErrorsAreNot(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(eris.New("invalid website")))
	assert.False(t, IsTransient(eris.New("record not found")))
}

func TestIsTransient_ConnectionErrors(t *testing.T) {
	assert.True(t, IsTransient(fmt.Errorf("dial: %w", syscall.ECONNREFUSED)))
	assert.True(t, IsTransient(fmt.Errorf("write: %w", syscall.ECONNRESET)))
}

func TestIsTransient_WireHints(t *testing.T) {
	assert.True(t, IsTransient(eris.New("Get \"https://x\": TLS handshake timeout")))
	assert.True(t, IsTransient(eris.New("read tcp: i/o timeout")))
	assert.False(t, IsTransient(eris.New("unexpected end of JSON input")))
}

func TestRetryableStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, RetryableStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 201, 301, 400, 401, 403, 404, 422} {
		assert.False(t, RetryableStatus(code), "status %d", code)
	}
}

func TestClassifyError(t *testing.T) {
	assert.Equal(t, "transient", ClassifyError(Transient(eris.New("x"), 502)))
	assert.Equal(t, "permanent", ClassifyError(eris.New("no such site")))
}
