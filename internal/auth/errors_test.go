package auth

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorHTTPStatus(t *testing.T) {
	tests := []struct {
		err    *Error
		status int
	}{
		{Invalid("bad input"), http.StatusBadRequest},
		{Unauthorized("no"), http.StatusUnauthorized},
		{Conflict("exists"), http.StatusConflict},
		{NotFound("missing"), http.StatusNotFound},
		{Unavailable(errors.New("down")), http.StatusServiceUnavailable},
		{Internal(errors.New("boom")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, tt.err.HTTPStatus(), "kind %s", tt.err.Kind)
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindConflict, KindOf(Conflict("exists")))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, KindAuth, KindOf(fmt.Errorf("wrapped: %w", Unauthorized("no"))))

	assert.True(t, IsKind(Unauthorized("no"), KindAuth))
	assert.False(t, IsKind(Unauthorized("no"), KindValidation))
}

func TestAsError_WrapsUnknownAsInternal(t *testing.T) {
	cause := errors.New("db exploded")
	ae := AsError(cause)

	require.NotNil(t, ae)
	assert.Equal(t, KindInternal, ae.Kind)
	assert.Equal(t, "Internal server error.", ae.Message)
	assert.ErrorIs(t, ae, cause)
}

func TestAsError_PreservesTypedErrors(t *testing.T) {
	orig := NotFound("User not found.")
	assert.Same(t, orig, AsError(orig))
	assert.Same(t, orig, AsError(fmt.Errorf("ctx: %w", orig)))
}

func TestWithDetail(t *testing.T) {
	e := Invalid("Invalid email format.").WithDetail("field", "email")
	assert.Equal(t, "email", e.Details["field"])

	e.WithDetail("hint", "use a real address")
	assert.Len(t, e.Details, 2)
}

func TestErrorStringOmitsNilCause(t *testing.T) {
	assert.Equal(t, "auth: Invalid email or password.", Unauthorized("Invalid email or password.").Error())

	wrapped := Internal(errors.New("boom"))
	assert.Contains(t, wrapped.Error(), "boom")
}
