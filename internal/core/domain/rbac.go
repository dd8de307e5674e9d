package domain

import "strings"

// Role is a named capability tag.
type Role string

const (
	RoleRepresentative Role = "Reprezentant"
	RoleTechnical      Role = "Techniczna"
	RoleFinancial      Role = "Finansowa"
)

// AllRoles is the full role set a merchant implicitly holds.
func AllRoles() []Role {
	return []Role{RoleRepresentative, RoleTechnical, RoleFinancial}
}

// RoleNames converts roles to their string form.
func RoleNames(roles []Role) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, string(r))
	}
	return out
}

// ParseRoles trims and de-duplicates raw role names, dropping empty entries.
func ParseRoles(raw []string) []Role {
	seen := make(map[string]struct{}, len(raw))
	out := make([]Role, 0, len(raw))
	for _, name := range raw {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, Role(name))
	}
	return out
}

// JoinRoles renders roles as the comma separated form used by the provisioning store.
func JoinRoles(roles []Role) string {
	return strings.Join(RoleNames(roles), ",")
}

// IntersectsRoles reports whether any role in have appears in want.
func IntersectsRoles(have []Role, want []Role) bool {
	if len(have) == 0 || len(want) == 0 {
		return false
	}
	set := make(map[Role]struct{}, len(want))
	for _, r := range want {
		set[r] = struct{}{}
	}
	for _, r := range have {
		if _, ok := set[r]; ok {
			return true
		}
	}
	return false
}
