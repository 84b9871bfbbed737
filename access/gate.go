/*
Package access implements role-based authorization of privileged bank
operations.

Roles are flat capabilities granted per identity. There is no role hierarchy:
Admin does not imply TokenManager, so the owner is granted every role
explicitly at construction.
*/
package access

import (
	"bytes"
	"errors"
	"fmt"
	"slices"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

// Role is a capability that can be granted to an identity.
type Role uint8

const (
	// Admin manages roles, adjusts balances and sweeps stuck funds.
	Admin Role = iota + 1
	// TokenManager adds and removes supported assets.
	TokenManager
)

// Roles lists all known roles.
var Roles = []Role{Admin, TokenManager}

var (
	// ErrUnauthorized is returned when an identity lacks the required role.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrLastAdmin is returned on attempt to revoke Admin from the only
	// identity holding it.
	ErrLastAdmin = errors.New("can't revoke the last admin")
	// ErrUnknownRole is returned for roles outside of Roles.
	ErrUnknownRole = errors.New("unknown role")
)

// String implements fmt.Stringer.
func (r Role) String() string {
	switch r {
	case Admin:
		return "admin"
	case TokenManager:
		return "token-manager"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

func (r Role) valid() bool {
	return slices.Contains(Roles, r)
}

// Gate stores role assignments.
type Gate struct {
	members map[util.Uint160]map[Role]struct{}
}

// New returns Gate with all roles granted to the owner.
func New(owner util.Uint160) *Gate {
	g := &Gate{members: make(map[util.Uint160]map[Role]struct{})}
	for _, r := range Roles {
		g.grant(owner, r)
	}

	return g
}

// HasRole checks whether id holds r.
func (g *Gate) HasRole(id util.Uint160, r Role) bool {
	_, ok := g.members[id][r]
	return ok
}

// Require returns ErrUnauthorized if id doesn't hold r.
func (g *Gate) Require(id util.Uint160, r Role) error {
	if !g.HasRole(id, r) {
		return fmt.Errorf("%w: %s is not %s", ErrUnauthorized, address.Uint160ToString(id), r)
	}

	return nil
}

// Grant gives r to id. The caller must be Admin. Granting an already held
// role is a no-op and reports false.
func (g *Gate) Grant(caller, id util.Uint160, r Role) (bool, error) {
	if err := g.check(caller, r); err != nil {
		return false, err
	}

	if g.HasRole(id, r) {
		return false, nil
	}

	g.grant(id, r)

	return true, nil
}

// Revoke takes r away from id. The caller must be Admin. Revoking a role
// that is not held is a no-op and reports false.
func (g *Gate) Revoke(caller, id util.Uint160, r Role) (bool, error) {
	if err := g.check(caller, r); err != nil {
		return false, err
	}

	if !g.HasRole(id, r) {
		return false, nil
	}

	if r == Admin && len(g.Members(Admin)) == 1 {
		return false, ErrLastAdmin
	}

	delete(g.members[id], r)
	if len(g.members[id]) == 0 {
		delete(g.members, id)
	}

	return true, nil
}

// Members returns identities holding r sorted by their big-endian
// representation.
func (g *Gate) Members(r Role) []util.Uint160 {
	var res []util.Uint160

	for id, roles := range g.members {
		if _, ok := roles[r]; ok {
			res = append(res, id)
		}
	}

	slices.SortFunc(res, func(a, b util.Uint160) int {
		return bytes.Compare(a[:], b[:])
	})

	return res
}

func (g *Gate) check(caller util.Uint160, r Role) error {
	if !r.valid() {
		return fmt.Errorf("%w: %d", ErrUnknownRole, uint8(r))
	}

	return g.Require(caller, Admin)
}

func (g *Gate) grant(id util.Uint160, r Role) {
	roles, ok := g.members[id]
	if !ok {
		roles = make(map[Role]struct{}, len(Roles))
		g.members[id] = roles
	}

	roles[r] = struct{}{}
}
