// Package access decides whether a principal may run a monster action.
package access

import "github.com/monstermash/monstermash/model"

// Action names a controller action
type Action string

const (
	ActionIndex  Action = "index"
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Decision is the outcome of a policy check
type Decision int

const (
	Allow Decision = iota
	DenyForbidden
	DenyUnauthenticated
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case DenyForbidden:
		return "deny-forbidden"
	case DenyUnauthenticated:
		return "deny-unauthenticated"
	}
	return "unknown"
}

// Principal is the actor of a request. The zero value is an anonymous visitor.
type Principal struct {
	ID            int64
	Name          string
	Role          string
	Gender        string
	Authenticated bool
}

// PrincipalFromMonster builds an authenticated principal
func PrincipalFromMonster(m model.Monster) Principal {
	return Principal{
		ID:            m.ID,
		Name:          m.Name,
		Role:          m.Role,
		Gender:        m.Gender,
		Authenticated: true,
	}
}

// rule grants an action to the listed roles
type rule struct {
	action Action
	roles  []string
}

// rules only covers gated actions. Actions absent from the table are open.
var rules = []rule{
	{action: ActionUpdate, roles: []string{model.RoleMember}},
	{action: ActionDelete, roles: []string{model.RoleAdmin}},
}

// inherits lists the roles implied by a role
var inherits = map[string][]string{
	model.RoleAdmin: {model.RoleMember},
}

// HasRole reports whether the principal holds role directly or through inheritance
func (p Principal) HasRole(role string) bool {
	if !p.Authenticated {
		return false
	}
	if p.Role == role {
		return true
	}
	for _, r := range inherits[p.Role] {
		if r == role {
			return true
		}
	}
	return false
}

// Evaluate returns the decision for a principal attempting an action.
// delete is always forbidden to non admins, anonymous visitors included.
// Other gated actions send anonymous visitors to the login page.
func Evaluate(action Action, p Principal) Decision {
	for _, r := range rules {
		if r.action != action {
			continue
		}
		for _, role := range r.roles {
			if p.HasRole(role) {
				return Allow
			}
		}
		if action == ActionDelete || p.Authenticated {
			return DenyForbidden
		}
		return DenyUnauthenticated
	}
	return Allow
}

// ForbiddenMessage is shown to principals denied an action
func ForbiddenMessage(action Action) string {
	if action == ActionDelete {
		return "Only administrators can delete users."
	}
	return "You are not allowed to perform this action."
}
