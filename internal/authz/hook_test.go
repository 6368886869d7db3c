package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenzoki/agen/paramgw/internal/config"
	"github.com/tenzoki/agen/paramgw/internal/gwerr"
)

func TestDefaultRulePermitsReadRequiresAuthForWrite(t *testing.T) {
	h := NewHook(nil)

	err := h.Check("Device.Anything", PermRead, AuthContext{})
	assert.NoError(t, err)

	err = h.Check("Device.Anything", PermWrite, AuthContext{})
	require.Error(t, err)
	ge, _ := gwerr.As(err)
	assert.Equal(t, gwerr.Unauthenticated, ge.Kind)
}

func TestExactPatternMatch(t *testing.T) {
	h := NewHook([]config.ACLRule{
		{Pattern: "Device.Secret", RequireAuth: true},
	})
	err := h.Check("Device.Secret", PermRead, AuthContext{})
	require.Error(t, err)

	err = h.Check("Device.Secret", PermRead, AuthContext{Authenticated: true})
	assert.NoError(t, err)
}

func TestPrefixPatternFirstMatchWins(t *testing.T) {
	h := NewHook([]config.ACLRule{
		{Pattern: "Device.Admin.*", RequireAuth: true, MinimumRole: "admin"},
		{Pattern: "Device.*", RequireAuth: false},
	})

	err := h.Check("Device.Admin.Reset", PermWrite, AuthContext{Authenticated: true, Role: "user"})
	require.Error(t, err)
	ge, _ := gwerr.As(err)
	assert.Equal(t, gwerr.Forbidden, ge.Kind)

	err = h.Check("Device.Admin.Reset", PermWrite, AuthContext{Authenticated: true, Role: "admin"})
	assert.NoError(t, err)

	err = h.Check("Device.Other", PermRead, AuthContext{})
	assert.NoError(t, err)
}

func TestRequiredPermissionMask(t *testing.T) {
	h := NewHook([]config.ACLRule{
		{Pattern: "Device.ReadOnly", RequiredPermission: int(PermRead)},
	})
	err := h.Check("Device.ReadOnly", PermWrite, AuthContext{Authenticated: true})
	require.Error(t, err)
	ge, _ := gwerr.As(err)
	assert.Equal(t, gwerr.Forbidden, ge.Kind)
}
