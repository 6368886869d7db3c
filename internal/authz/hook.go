// Package authz implements the Authorization Hook: ACL pattern matching
// invoked by the Protocol Translator before every dispatch, plus a
// default JWT-backed resolver for deployments that need real
// authentication instead of a static rule list.
//
// The resolver verifies a bearer token against a JWKS endpoint, then
// derives role/subject for the permission check, with an optional
// short-TTL Redis cache of verified tokens fronting the verification and
// fail-closed behavior on error.
package authz

import (
	"strings"

	"github.com/tenzoki/agen/paramgw/internal/config"
	"github.com/tenzoki/agen/paramgw/internal/gwerr"
)

// Permission is a bitmask of the read/write access a caller requests.
type Permission int

const (
	PermRead  Permission = 1 << 0
	PermWrite Permission = 1 << 1
)

// Role is the caller's minimum-role requirement under a rule.
type Role string

const (
	RoleAny   Role = ""
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

var roleRank = map[Role]int{RoleAny: 0, RoleUser: 1, RoleAdmin: 2}

// AuthContext carries the caller identity resolved from the inbound
// request (e.g. a verified JWT's subject and role claim).
type AuthContext struct {
	Subject       string
	Role          Role
	Authenticated bool
}

// Rule is one ACL entry: (pattern, required permission mask, minimum
// role, require-auth).
type Rule struct {
	Pattern            string
	RequiredPermission Permission
	MinimumRole        Role
	RequireAuth        bool
}

// Hook evaluates a resource/permission check against an ordered rule
// list, first-match-wins.
type Hook struct {
	rules []Rule
}

// NewHook builds a Hook from the gateway's configured ACL rules.
func NewHook(rules []config.ACLRule) *Hook {
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		out = append(out, Rule{
			Pattern:            r.Pattern,
			RequiredPermission: Permission(r.RequiredPermission),
			MinimumRole:        Role(r.MinimumRole),
			RequireAuth:        r.RequireAuth,
		})
	}
	return &Hook{rules: out}
}

// Check evaluates resource against the rule list for the requested
// permission. Absence of any matching rule permits reads and requires
// authentication for writes. Denials return a *gwerr.Error with Kind
// Forbidden or Unauthenticated; the caller must not touch the parambus
// on a non-nil return.
func (h *Hook) Check(resource string, permission Permission, ctx AuthContext) error {
	for _, r := range h.rules {
		if !matchPattern(r.Pattern, resource) {
			continue
		}
		return h.evaluate(r, permission, ctx)
	}
	return h.evaluateDefault(permission, ctx)
}

func (h *Hook) evaluate(r Rule, permission Permission, ctx AuthContext) error {
	if r.RequireAuth && !ctx.Authenticated {
		return gwerr.New(gwerr.Unauthenticated, "authentication required for "+r.Pattern)
	}
	if r.MinimumRole != RoleAny && roleRank[ctx.Role] < roleRank[r.MinimumRole] {
		return gwerr.New(gwerr.Forbidden, "role "+string(ctx.Role)+" below minimum "+string(r.MinimumRole))
	}
	if r.RequiredPermission != 0 && permission&r.RequiredPermission != r.RequiredPermission {
		return gwerr.New(gwerr.Forbidden, "insufficient permission for rule pattern "+r.Pattern)
	}
	return nil
}

func (h *Hook) evaluateDefault(permission Permission, ctx AuthContext) error {
	if permission&PermWrite != 0 && !ctx.Authenticated {
		return gwerr.New(gwerr.Unauthenticated, "authentication required for write")
	}
	return nil
}

// matchPattern implements exact equality or a trailing '*' prefix
// match.
func matchPattern(pattern, resource string) bool {
	if pattern == resource {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(resource, strings.TrimSuffix(pattern, "*"))
	}
	return false
}
