// Package access implements the layered permission model for portal
// entities. A Spec is a tagged union — everyone, admins only, managers
// (which includes admins), or an explicit user-id list — attached
// independently to the view, edit and comment actions of an entity.
// Resolution is a pure predicate with no error path: anything the union
// does not recognise denies.
package access

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/erezmus/crewdesk/internal/identity"
)

// Kind discriminates the Spec union.
type Kind int

const (
	// KindInvalid is the zero value. It denies everyone, so an
	// unrecognised or missing spec is always most-restrictive.
	KindInvalid Kind = iota
	KindAll
	KindAdmin
	KindManager
	KindUsers
)

const (
	literalAll     = "all"
	literalAdmin   = "admin"
	literalManager = "manager"
)

// Spec is one arm of the permission union. The zero value denies all.
type Spec struct {
	kind  Kind
	users []string
	raw   string // unrecognised literal, kept for round-tripping
}

// All allows every user.
func All() Spec { return Spec{kind: KindAll} }

// AdminOnly allows only admins.
func AdminOnly() Spec { return Spec{kind: KindAdmin} }

// Managers allows admins and managers.
func Managers() Spec { return Spec{kind: KindManager} }

// Users allows exactly the listed user ids.
func Users(ids ...string) Spec {
	return Spec{kind: KindUsers, users: append([]string(nil), ids...)}
}

// Kind returns the union discriminant.
func (s Spec) Kind() Kind { return s.kind }

// UserIDs returns a copy of the explicit id list (nil for other kinds).
func (s Spec) UserIDs() []string {
	if s.kind != KindUsers {
		return nil
	}
	return append([]string(nil), s.users...)
}

// Allows resolves the spec for the given user. Exhaustive over the
// union; an invalid spec denies rather than failing.
func (s Spec) Allows(u identity.User) bool {
	switch s.kind {
	case KindAll:
		return true
	case KindAdmin:
		return u.Role == identity.RoleAdmin
	case KindManager:
		return u.Role.IsManagerial()
	case KindUsers:
		for _, id := range s.users {
			if id == u.ID {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func (s Spec) String() string {
	switch s.kind {
	case KindAll:
		return literalAll
	case KindAdmin:
		return literalAdmin
	case KindManager:
		return literalManager
	case KindUsers:
		return fmt.Sprintf("users%v", s.users)
	default:
		if s.raw != "" {
			return s.raw
		}
		return "invalid"
	}
}

func specFromLiteral(lit string) Spec {
	switch lit {
	case literalAll:
		return All()
	case literalAdmin:
		return AdminOnly()
	case literalManager:
		return Managers()
	}
	return Spec{raw: lit}
}

// MarshalJSON encodes the union as the wire shape the portal stores:
// a bare literal for the role arms, an id array for the explicit list.
func (s Spec) MarshalJSON() ([]byte, error) {
	switch s.kind {
	case KindAll:
		return json.Marshal(literalAll)
	case KindAdmin:
		return json.Marshal(literalAdmin)
	case KindManager:
		return json.Marshal(literalManager)
	case KindUsers:
		ids := s.users
		if ids == nil {
			ids = []string{}
		}
		return json.Marshal(ids)
	default:
		return json.Marshal(s.raw)
	}
}

// UnmarshalJSON accepts a literal string or an id array. Unknown
// literals decode to an invalid (deny-all) spec, never an error.
func (s *Spec) UnmarshalJSON(data []byte) error {
	var lit string
	if err := json.Unmarshal(data, &lit); err == nil {
		*s = specFromLiteral(lit)
		return nil
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return fmt.Errorf("access: permission spec must be a literal or id list: %w", err)
	}
	*s = Users(ids...)
	return nil
}

// UnmarshalYAML mirrors UnmarshalJSON for seed files.
func (s *Spec) UnmarshalYAML(value *yaml.Node) error {
	var lit string
	if err := value.Decode(&lit); err == nil {
		*s = specFromLiteral(lit)
		return nil
	}
	var ids []string
	if err := value.Decode(&ids); err != nil {
		return fmt.Errorf("access: permission spec must be a literal or id list: %w", err)
	}
	*s = Users(ids...)
	return nil
}
