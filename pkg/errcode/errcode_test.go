package errcode

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOfWalksWrapChain(t *testing.T) {
	base := New(CodeNotFound, "conversation not found")
	wrapped := fmt.Errorf("load conversation: %w", base)
	assert.Equal(t, CodeNotFound, CodeOf(wrapped))
	assert.True(t, Is(wrapped, CodeNotFound))
}

func TestCodeOfPlainErrorIsInternal(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
}

func TestMessageOfHidesInternalDetail(t *testing.T) {
	assert.Equal(t, "internal error", MessageOf(errors.New("pq: connection refused")))
	assert.Equal(t, "internal error", MessageOf(Wrap(CodeInternal, "db query failed", errors.New("pq: down"))))
	assert.Equal(t, "session expired", MessageOf(New(CodeUnauthenticated, "session expired")))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Wrap(CodeUnavailable, "model generation failed", cause)
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "model generation failed")
}

func TestHTTPStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(CodeInvalidArgument))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(CodeNotFound))
	assert.Equal(t, http.StatusPreconditionFailed, HTTPStatus(CodeFailedPrecondition))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(CodeUnauthenticated))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(CodePermissionDenied))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(CodeUnavailable))
	assert.Equal(t, http.StatusConflict, HTTPStatus(CodeConflict))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(CodeInternal))
}
