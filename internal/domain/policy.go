package domain

// Role is a privilege an identity may hold.
type Role string

const (
	// RoleOperator manages the registries and the fee policy.
	RoleOperator Role = "operator"
	// RoleArbiter resolves disputed trades.
	RoleArbiter Role = "arbiter"
)

// Policy decides whether an identity holds a role. Implementations must be
// safe for concurrent use.
type Policy interface {
	Allowed(identity string, role Role) bool
}

// OwnerPolicy grants every role to a single owner identity.
type OwnerPolicy struct {
	Owner string
}

// Allowed reports whether identity is the owner.
func (p OwnerPolicy) Allowed(identity string, _ Role) bool {
	return identity != "" && identity == p.Owner
}

// RolePolicy maps each role to an explicit member set. It is immutable after
// construction.
type RolePolicy struct {
	members map[Role]map[string]struct{}
}

// NewRolePolicy builds a RolePolicy from role → identities.
func NewRolePolicy(roles map[Role][]string) *RolePolicy {
	p := &RolePolicy{members: make(map[Role]map[string]struct{}, len(roles))}
	for role, ids := range roles {
		set := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			if id != "" {
				set[id] = struct{}{}
			}
		}
		p.members[role] = set
	}
	return p
}

// Allowed reports whether identity is a member of role.
func (p *RolePolicy) Allowed(identity string, role Role) bool {
	_, ok := p.members[role][identity]
	return ok
}

// Members returns the identities holding role, in no particular order.
func (p *RolePolicy) Members(role Role) []string {
	out := make([]string, 0, len(p.members[role]))
	for id := range p.members[role] {
		out = append(out, id)
	}
	return out
}
