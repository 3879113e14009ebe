package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Role is the access level of a caller. Each role includes the routes of
// the roles ranked below it.
type Role string

const (
	// RoleReadonly runs the means test and reads demandas, analyses and stats.
	RoleReadonly Role = "readonly"
	// RoleAdmin also registers demandas, analyses, intake sessions and documents.
	RoleAdmin Role = "admin"
	// RoleSuperadmin also reads and exports the audit trail.
	RoleSuperadmin Role = "superadmin"
)

var roleRank = map[Role]int{
	RoleReadonly:   1,
	RoleAdmin:      2,
	RoleSuperadmin: 3,
}

// ParseRole accepts one of the role names, case-insensitively.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := roleRank[r]; !ok {
		return "", fmt.Errorf("unknown role %q (use readonly, admin or superadmin)", s)
	}
	return r, nil
}

// Allows reports whether r may call a route guarded by required.
func (r Role) Allows(required Role) bool {
	have, ok := roleRank[r]
	return ok && have >= roleRank[required]
}

const (
	keyPrefix = "tgm_"
	keyBytes  = 32
	hashCost  = 12
)

// NewKey generates a random API key for role together with the
// API_KEY_HASHES entry ("role:bcrypt-hash") that admits it.
func NewKey(role Role) (key, entry string, err error) {
	if _, ok := roleRank[role]; !ok {
		return "", "", fmt.Errorf("unknown role %q", role)
	}
	buf := make([]byte, keyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to generate key: %w", err)
	}
	key = keyPrefix + base64.RawURLEncoding.EncodeToString(buf)

	hash, err := bcrypt.GenerateFromPassword([]byte(key), hashCost)
	if err != nil {
		return "", "", fmt.Errorf("failed to hash key: %w", err)
	}
	return key, string(role) + ":" + string(hash), nil
}

// ParseKeyHash splits an API_KEY_HASHES entry of the form "role:bcrypt-hash".
// bcrypt hashes contain '$' but never ':', so the first colon is the separator.
func ParseKeyHash(entry string) (Role, string, error) {
	name, hash, ok := strings.Cut(strings.TrimSpace(entry), ":")
	if !ok || hash == "" {
		return "", "", fmt.Errorf("key hash entry must have the form role:hash")
	}
	role, err := ParseRole(name)
	if err != nil {
		return "", "", err
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return "", "", fmt.Errorf("invalid bcrypt hash for role %s: %w", role, err)
	}
	return role, hash, nil
}

// bearerToken returns the token of an Authorization header. A bare token
// without the scheme is accepted too.
func bearerToken(header string) string {
	token := strings.TrimSpace(header)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}

func matchesKey(token, key string) bool {
	return subtle.ConstantTimeCompare([]byte(token), []byte(key)) == 1
}

func matchesHash(token, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil
}
