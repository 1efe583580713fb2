package types

// Role is a user's authorization level. Roles form a strict total order;
// every comparison goes through HasRole so unknown values fail closed.
type Role string

const (
	RolePlayer     Role = "player"
	RoleVIP        Role = "vip"
	RoleModerator  Role = "moderator"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

var roleRank = map[Role]int{
	RolePlayer:     1,
	RoleVIP:        2,
	RoleModerator:  3,
	RoleAdmin:      4,
	RoleSuperadmin: 5,
}

// Valid reports whether the role is one of the known levels.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// HasRole reports whether actual satisfies required, i.e. ranks at or above
// it. An unrecognized actual role satisfies nothing; an unrecognized required
// role is satisfiable by nothing.
func HasRole(actual, required Role) bool {
	actualRank, ok := roleRank[actual]
	if !ok {
		return false
	}
	requiredRank, ok := roleRank[required]
	if !ok {
		return false
	}
	return actualRank >= requiredRank
}
