/*
identity.go - Application users and roles

PURPOSE:
  User accounts for the REST API. Roles are coarse labels consumed by the
  auth layer; there is no per-role permission matrix yet, every
  authenticated user can reach every protected route.

PASSWORDS:
  bcrypt with the default-ish cost of 10, matching what the data already
  in production was hashed with.
*/
package identity

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Role is a user's coarse access label.
type Role string

const (
	RoleAdmin    Role = "Admin"
	RolePlanner  Role = "Planner"
	RoleReporter Role = "Reporter"
	RoleField    Role = "Field"
)

// DefaultRole is assigned at registration when none is given.
const DefaultRole = RolePlanner

const bcryptCost = 10

// User is an application account.
type User struct {
	ID        int64
	Username  string
	Role      Role
	CreatedAt time.Time
}

// ValidRole reports whether s is one of the known roles.
func ValidRole(s string) bool {
	switch Role(s) {
	case RoleAdmin, RolePlanner, RoleReporter, RoleField:
		return true
	}
	return false
}

// NormalizeRole returns the role for s, or DefaultRole when s is empty or
// unknown. Registration is forgiving here on purpose: a bad role label
// should not block account creation.
func NormalizeRole(s string) Role {
	if ValidRole(s) {
		return Role(s)
	}
	return DefaultRole
}

// HashPassword hashes a plaintext password for storage.
func HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckPassword reports whether plain matches the stored hash.
func CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
