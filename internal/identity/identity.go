// Package identity defines portal users and roles, plus the read-only
// directory the rest of the system resolves ids against. Authentication
// itself lives with the login collaborator; this package only models the
// identity consumers depend on.
package identity

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// Role classifies a user's access level in the portal.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleUser    Role = "user"
)

// ParseRole validates a raw role string.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleAdmin, RoleManager, RoleUser:
		return Role(raw), nil
	}
	return "", fmt.Errorf("identity: unknown role %q", raw)
}

// IsManagerial reports whether the role carries manager-level access.
// Admins are managerial by definition.
func (r Role) IsManagerial() bool {
	return r == RoleAdmin || r == RoleManager
}

// User is a portal identity. Immutable once issued. PasswordHash is a
// bcrypt hash seeded from the users file and never serialized outward.
type User struct {
	ID           string `yaml:"id" json:"id"`
	Username     string `yaml:"username" json:"username"`
	Name         string `yaml:"name" json:"name"`
	Role         Role   `yaml:"role" json:"role"`
	Avatar       string `yaml:"avatar,omitempty" json:"avatar,omitempty"`
	PasswordHash string `yaml:"passwordHash,omitempty" json:"-"`
}

// Validate checks required fields.
func (u *User) Validate() error {
	if u.ID == "" {
		return fmt.Errorf("identity: user id is required")
	}
	if _, err := ParseRole(string(u.Role)); err != nil {
		return fmt.Errorf("identity: user %s: %w", u.ID, err)
	}
	if u.Name == "" {
		u.Name = u.Username
	}
	return nil
}

// Directory is a read-only user registry seeded at startup.
type Directory struct {
	mu    sync.RWMutex
	byID  map[string]User
	order []string
}

// NewDirectory builds a directory from the given users.
// Duplicate ids are rejected.
func NewDirectory(users []User) (*Directory, error) {
	d := &Directory{byID: make(map[string]User, len(users))}
	for i := range users {
		u := users[i]
		if err := u.Validate(); err != nil {
			return nil, err
		}
		if _, exists := d.byID[u.ID]; exists {
			return nil, fmt.Errorf("identity: duplicate user id %q", u.ID)
		}
		d.byID[u.ID] = u
		d.order = append(d.order, u.ID)
	}
	return d, nil
}

// LoadDirectory reads a YAML seed file with a top-level "users" list.
func LoadDirectory(path string) (*Directory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("identity: reading seed file: %w", err)
	}
	var doc struct {
		Users []User `yaml:"users"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("identity: parsing seed file: %w", err)
	}
	return NewDirectory(doc.Users)
}

// Get returns the user with the given id.
func (d *Directory) Get(id string) (User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.byID[id]
	return u, ok
}

// GetByUsername returns the user with the given username.
func (d *Directory) GetByUsername(username string) (User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, id := range d.order {
		if d.byID[id].Username == username {
			return d.byID[id], true
		}
	}
	return User{}, false
}

// CheckPassword verifies a username/password pair against the seeded
// bcrypt hash. Users without a hash can never sign in locally.
func (d *Directory) CheckPassword(username, password string) bool {
	u, ok := d.GetByUsername(username)
	if !ok || u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// DisplayName resolves an id to a name for snapshotting into messages
// and comments. Unknown ids resolve to the id itself.
func (d *Directory) DisplayName(id string) string {
	if u, ok := d.Get(id); ok && u.Name != "" {
		return u.Name
	}
	return id
}

// List returns all users in seed order.
func (d *Directory) List() []User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]User, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.byID[id])
	}
	return out
}

// Count returns the number of registered users.
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byID)
}
