// Package authz decides whether a principal may perform an action on a
// project's tasks. Decide is a pure function of (global role, membership
// role, action, changed fields) — it reads no storage and holds no state, so
// the whole permission matrix is checkable as a truth table.
package authz

import "github.com/taskforge-dev/taskforge/internal/models"

type Role int

const (
	RoleNone Role = iota
	RoleTester
	RoleDeveloper
	RoleManager
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleTester:
		return models.ProjectRoleTester
	case RoleDeveloper:
		return models.ProjectRoleDeveloper
	case RoleManager:
		return models.ProjectRoleManager
	case RoleAdmin:
		return models.GlobalRoleAdmin
	default:
		return "none"
	}
}

// ParseRole maps a stored role string onto the closed enum. Unknown or empty
// strings mean no role at all.
func ParseRole(s string) Role {
	switch s {
	case models.ProjectRoleTester:
		return RoleTester
	case models.ProjectRoleDeveloper:
		return RoleDeveloper
	case models.ProjectRoleManager:
		return RoleManager
	case models.GlobalRoleAdmin:
		return RoleAdmin
	default:
		return RoleNone
	}
}

type Action int

const (
	ActionCreate Action = iota
	ActionUpdate
	ActionDelete
	ActionRestore
	ActionForceDelete
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	case ActionRestore:
		return "restore"
	case ActionForceDelete:
		return "force-delete"
	default:
		return "unknown"
	}
}

// Principal is the authenticated actor. GlobalRole is RoleAdmin for global
// admins and RoleNone for everyone else; project-level roles live on the
// membership row, not here.
type Principal struct {
	UserID     uint
	GlobalRole Role
}

func (p Principal) IsAdmin() bool {
	return p.GlobalRole == RoleAdmin
}

type Decision struct {
	Allowed bool
	Reason  string
}

func Allow() Decision {
	return Decision{Allowed: true}
}

func Deny(reason string) Decision {
	return Decision{Reason: reason}
}

// Denial reasons. Kept specific on purpose so the permission matrix is
// self-documenting to API clients.
const (
	ReasonNotMember       = "You are not a member of this project."
	ReasonManagersCreate  = "Only managers can create a new task."
	ReasonDeveloperStatus = "Developers can only update the status of tasks."
	ReasonTesterNotes     = "Testers can only add notes to tasks."
	ReasonAdminForce      = "Only admins can permanently delete tasks."
	ReasonNoPermission    = "You do not have permission to perform this action."
)

// Decide applies the permission rules in order:
//
//  1. A global admin is allowed anything, membership or not.
//  2. Without an active membership every action is denied.
//  3. create/delete/restore are manager-only.
//  4. update: managers change any field, developers exactly {status},
//     testers exactly {notes}.
//  5. force-delete never passes for non-admins, whatever their project role.
//
// fields are the names of the fields an update intends to change; they are
// ignored for every other action.
func Decide(principal Principal, memberRole Role, action Action, fields []string) Decision {
	if principal.GlobalRole == RoleAdmin {
		return Allow()
	}

	if memberRole == RoleNone || memberRole == RoleAdmin {
		return Deny(ReasonNotMember)
	}

	switch action {
	case ActionCreate:
		if memberRole == RoleManager {
			return Allow()
		}
		return Deny(ReasonManagersCreate)
	case ActionDelete, ActionRestore:
		if memberRole == RoleManager {
			return Allow()
		}
		return Deny(ReasonNoPermission)
	case ActionUpdate:
		switch memberRole {
		case RoleManager:
			return Allow()
		case RoleDeveloper:
			if exactlyOne(fields, "status") {
				return Allow()
			}
			return Deny(ReasonDeveloperStatus)
		case RoleTester:
			if exactlyOne(fields, "notes") {
				return Allow()
			}
			return Deny(ReasonTesterNotes)
		}
		return Deny(ReasonNoPermission)
	case ActionForceDelete:
		return Deny(ReasonAdminForce)
	}

	return Deny(ReasonNoPermission)
}

func exactlyOne(fields []string, name string) bool {
	return len(fields) == 1 && fields[0] == name
}
