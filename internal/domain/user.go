package domain

import "errors"

// User is the authenticated caller attached to a request by the session layer.
type User struct {
	ID   string
	Role Role
}

// Role represents a user's access level
type Role string

const (
	// RoleAdmin can manage accounts and run recovery and reconciliation.
	RoleAdmin Role = "admin"
	// RoleCustomer can move money between the accounts it owns.
	RoleCustomer Role = "customer"
)

// IsValid checks if the role is a valid role
func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleCustomer
}

// CanAdminister checks if the role can manage accounts and the engine.
func (r Role) CanAdminister() bool {
	return r == RoleAdmin
}

// Authentication errors
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInsufficientRole = errors.New("insufficient role for this operation")
	ErrNotAccountOwner  = errors.New("caller does not own the source account")
)
