package token

// Role is the coarse access level derived from a verified token's groups.
type Role string

const (
	RoleAnonymous Role = "anonymous"
	RoleBasic     Role = "basic"
	RoleElevated  Role = "elevated"
)

var roleOrder = map[Role]int{
	RoleAnonymous: 0,
	RoleBasic:     1,
	RoleElevated:  2,
}

// RoleFromGroups maps provider group membership to a role. Any verified user
// is at least basic.
func RoleFromGroups(groups []string) Role {
	for _, g := range groups {
		if g == string(RoleElevated) {
			return RoleElevated
		}
	}
	return RoleBasic
}

// HasMinRole reports whether user (nil means unauthenticated) meets the
// minimum role.
func HasMinRole(user *VerifiedUser, min Role) bool {
	if user == nil {
		return min == RoleAnonymous
	}
	return roleOrder[user.Role] >= roleOrder[min]
}
