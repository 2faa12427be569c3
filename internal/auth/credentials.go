package auth

import "fmt"

// Permission is a coarse capability gate for the REST surface.
type Permission string

const (
	PermissionView     Permission = "view"
	PermissionOperate  Permission = "operate"
	PermissionAdmin    Permission = "admin"
)

// rolePermissions mirrors the teacher's roleToPermissions lookup, with
// the roles narrowed to this product's three operator tiers.
var rolePermissions = map[string][]Permission{
	"viewer":   {PermissionView},
	"operator": {PermissionView, PermissionOperate},
	"admin":    {PermissionView, PermissionOperate, PermissionAdmin},
}

func PermissionsForRole(role string) []Permission {
	return rolePermissions[role]
}

// Credential is one statically configured operator account. There is
// no database: the deployment's config file is the operator registry
// (spec §4.5 decided against a storage layer for user management).
type Credential struct {
	Username     string
	PasswordHash string
	Role         string
}

// CredentialStore holds the operator accounts loaded from config and
// answers login checks against them.
type CredentialStore struct {
	byUsername map[string]Credential
	hasher     *PasswordHasher
}

func NewCredentialStore(creds []Credential) *CredentialStore {
	s := &CredentialStore{
		byUsername: make(map[string]Credential, len(creds)),
		hasher:     NewPasswordHasher(),
	}
	for _, c := range creds {
		s.byUsername[c.Username] = c
	}
	return s
}

// Authenticate verifies a username/password pair and returns the
// matching role on success.
func (s *CredentialStore) Authenticate(username, password string) (string, error) {
	cred, ok := s.byUsername[username]
	if !ok {
		return "", fmt.Errorf("unknown operator")
	}
	ok, err := s.hasher.VerifyPassword(password, cred.PasswordHash)
	if err != nil {
		return "", fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("invalid credentials")
	}
	return cred.Role, nil
}
