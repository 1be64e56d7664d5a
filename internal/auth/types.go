package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/baes-monitor/baes-core/internal/access"
	"github.com/baes-monitor/baes-core/internal/fault"
)

const maxLoginLength = 50

// User is an account that can log in.
type User struct {
	ID           int64     `json:"id"`
	Login        string    `json:"login"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SiteGrant is one site of a login response with the roles held there.
type SiteGrant struct {
	ID    int64         `json:"id"`
	Name  string        `json:"name"`
	Roles []access.Role `json:"roles"`
}

// Session is the result of a successful login.
type Session struct {
	Token       string        `json:"token"`
	ExpiresAt   time.Time     `json:"expires_at"`
	User        *User         `json:"user"`
	Sites       []SiteGrant   `json:"sites"`
	GlobalRoles []access.Role `json:"global_roles,omitempty"`
}

// Profile is the current user as returned by /auth/me.
type Profile struct {
	ID    int64         `json:"id"`
	Login string        `json:"login"`
	Roles []string      `json:"roles"`
	Sites []ProfileSite `json:"sites"`
}

// ProfileSite is a site reference inside a Profile.
type ProfileSite struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// UserInput creates a user with its role associations. RolesBySite maps a
// site id to one role id on that site.
type UserInput struct {
	Login       string
	Password    string
	RolesBySite map[int64]int64
	GlobalRoles []int64
}

// RelationsUpdate changes a user and its associations. Nil fields are kept.
// With Replace set every existing association is removed first; otherwise
// each listed site's associations are replaced and other sites are kept.
type RelationsUpdate struct {
	Login       *string
	Password    *string
	RolesBySite map[int64]int64
	Replace     bool
}

var (
	// ErrUserNotFound is returned when a user id or login does not exist.
	ErrUserNotFound = fmt.Errorf("auth: user %w", fault.ErrNotFound)

	// ErrLoginExists is returned when another user has the login.
	ErrLoginExists = fmt.Errorf("auth: login already exists: %w", fault.ErrConflict)

	// ErrInvalidCredentials is returned for a wrong login or password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrTokenInvalid is returned for malformed, expired or forged tokens.
	ErrTokenInvalid = errors.New("auth: invalid token")

	// ErrTokenRevoked is returned for tokens whose session was logged out.
	ErrTokenRevoked = errors.New("auth: session revoked")
)

// ValidateLogin trims login and checks its length.
func ValidateLogin(login string) (string, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return "", fault.Validation("login is required")
	}
	if len(login) > maxLoginLength {
		return "", fault.Validation("login exceeds %d characters", maxLoginLength)
	}
	return login, nil
}

// ValidatePassword rejects empty passwords.
func ValidatePassword(password string) error {
	if password == "" {
		return fault.Validation("password is required")
	}
	return nil
}
