package auth

import "fmt"

const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

type RoleAssignmentError struct {
	Role string
}

func (e *RoleAssignmentError) Error() string {
	return fmt.Sprintf("unknown role %q", e.Role)
}

func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

// The evaluators below are pure functions over verified claims. They never
// touch storage: a role change made after issuance is only visible once
// the subject obtains a fresh token.

func IsAdmin(claims *Claims) bool {
	for _, entry := range claims.Roles {
		if entry.Role == RoleAdmin {
			return true
		}
	}
	return false
}

// CanApprove reports whether the actor may act on groupID. Admins may act
// on any group; teachers only on groups inside one of their scopes;
// students never.
func CanApprove(claims *Claims, groupID string) bool {
	if IsAdmin(claims) {
		return true
	}
	for _, entry := range claims.Roles {
		if entry.Role != RoleTeacher {
			continue
		}
		for _, id := range entry.Groups {
			if id == groupID {
				return true
			}
		}
	}
	return false
}

// ApprovalGroups returns the groups the actor may act on. all is true for
// admins, in which case groups is nil.
func ApprovalGroups(claims *Claims) (groups []string, all bool) {
	if IsAdmin(claims) {
		return nil, true
	}
	seen := make(map[string]struct{})
	for _, entry := range claims.Roles {
		if entry.Role != RoleTeacher {
			continue
		}
		for _, id := range entry.Groups {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			groups = append(groups, id)
		}
	}
	return groups, false
}

// HighestRole returns the most privileged role across all entries, or ""
// when the claims carry none. Precedence: admin > teacher > student.
func HighestRole(claims *Claims) string {
	best := ""
	for _, entry := range claims.Roles {
		switch entry.Role {
		case RoleAdmin:
			return RoleAdmin
		case RoleTeacher:
			best = RoleTeacher
		case RoleStudent:
			if best == "" {
				best = RoleStudent
			}
		}
	}
	return best
}
