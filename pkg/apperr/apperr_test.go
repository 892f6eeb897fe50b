package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{Validation("bad input"), http.StatusBadRequest},
		{Unauthenticated("no token"), http.StatusUnauthorized},
		{Forbidden("not yours"), http.StatusForbidden},
		{NotFound("missing"), http.StatusNotFound},
		{Conflict("taken"), http.StatusConflict},
		{Internal(errors.New("db down")), http.StatusInternalServerError},
		{errors.New("untyped"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, StatusOf(tc.err))
	}
}

func TestInternalNeverLeaksCause(t *testing.T) {
	cause := errors.New("connection string with password")
	err := Internal(cause)

	assert.Equal(t, "Internal server error", MessageOf(err))
	assert.ErrorIs(t, err, cause)
}

func TestWrappedErrorsKeepTheirKind(t *testing.T) {
	err := fmt.Errorf("handler: %w", NotFound("Message not found"))

	assert.True(t, IsKind(err, KindNotFound))
	assert.Equal(t, "Message not found", MessageOf(err))
	assert.Equal(t, http.StatusNotFound, StatusOf(err))
}
