package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{Validation("canteen is required"), http.StatusBadRequest, "validation_failed"},
		{NotFound("order %s", "o1"), http.StatusNotFound, "not_found"},
		{Conflict("payment mismatch"), http.StatusConflict, "conflict"},
		{Expired("order o1"), http.StatusGone, "expired"},
		{fmt.Errorf("webhook: %w", ErrSignature), http.StatusBadRequest, "invalid_signature"},
		{Unavailable(errors.New("smtp down"), "send otp"), http.StatusServiceUnavailable, "service_unavailable"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		status, code := Status(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}

func TestUnavailableKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := Unavailable(cause, "create intent for %s", "o1")

	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "create intent for o1")
}
