package gwerr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindStatus(t *testing.T) {
	cases := map[Kind]int{
		InvalidRequest:     400,
		Unauthenticated:    401,
		Forbidden:          403,
		NotFound:           404,
		Timeout:            408,
		Conflict:           409,
		PreconditionFailed: 412,
		Unprocessable:      422,
		Locked:             423,
		TooManyRequests:    429,
		Internal:           500,
		NotImplemented:     501,
		Unavailable:        503,
		Partial:            207,
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.Status(), "kind %s", kind)
	}
}

func TestErrorWithField(t *testing.T) {
	err := New(InvalidRequest, "missing value").WithField("param")
	require.Equal(t, "param", err.Field)
	assert.Contains(t, err.Error(), "param")
	assert.Contains(t, err.Error(), "missing value")
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, 200, StatusOf(nil))
	assert.Equal(t, 404, StatusOf(New(NotFound, "gone")))
	assert.Equal(t, 500, StatusOf(assertError{}))
}

type assertError struct{}

func (assertError) Error() string { return "boom" }
