package access

import "github.com/erezmus/crewdesk/internal/identity"

// CanView reports whether the user may see an entity guarded by view.
func CanView(u identity.User, view Spec) bool {
	return view.Allows(u)
}

// CanEdit reports whether the user may edit an entity. The declared
// spec is bypassed entirely for admins and for the entity's owner; this
// is a deliberate override, not a fallback.
func CanEdit(u identity.User, ownerID string, edit Spec) bool {
	if u.Role == identity.RoleAdmin {
		return true
	}
	if ownerID != "" && u.ID == ownerID {
		return true
	}
	return edit.Allows(u)
}

// CanComment reports whether the user may comment on an entity guarded
// by comment.
func CanComment(u identity.User, comment Spec) bool {
	return comment.Allows(u)
}
