package domain

import "time"

// Role enumerates the authorization levels a user can hold.
type Role string

const (
	RoleUser      Role = "USER"
	RoleModerator Role = "MODERATOR"
	RoleAdmin     Role = "ADMIN"
)

// Authority returns the wire representation of the role claim.
func (r Role) Authority() string {
	return "ROLE_" + string(r)
}

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// User mirrors the persisted representation in the users table.
// Username is the immutable identity; email is a secondary lookup key.
type User struct {
	Username           string
	PasswordHash       string
	Email              string
	Role               Role
	Enabled            bool
	AccountLocked      bool
	AccountExpired     bool
	CredentialsExpired bool
	LastLoginAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// AccountStatus is the evaluated state of an account, derived once from the
// individual flags so flows check a single value instead of four booleans.
type AccountStatus string

const (
	AccountActive             AccountStatus = "active"
	AccountDisabled           AccountStatus = "disabled"
	AccountLocked             AccountStatus = "locked"
	AccountExpired            AccountStatus = "expired"
	AccountCredentialsExpired AccountStatus = "credentials_expired"
)

// EvaluateAccountStatus collapses the account flags into one status.
// Disabled takes precedence over locked, locked over expired, expired over
// credentials-expired.
func EvaluateAccountStatus(u User) AccountStatus {
	switch {
	case !u.Enabled:
		return AccountDisabled
	case u.AccountLocked:
		return AccountLocked
	case u.AccountExpired:
		return AccountExpired
	case u.CredentialsExpired:
		return AccountCredentialsExpired
	}
	return AccountActive
}
