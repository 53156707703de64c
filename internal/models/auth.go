package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the roles carried by access tokens.
type UserRole string

const (
	RoleAdmin        UserRole = "ADMIN"
	RoleSalesManager UserRole = "SALES_MANAGER"
	RoleCEO          UserRole = "CEO"
	RoleStaff        UserRole = "STAFF"
)

// Known reports whether r is one of the roles this service serves.
func (r UserRole) Known() bool {
	switch r {
	case RoleAdmin, RoleSalesManager, RoleCEO, RoleStaff:
		return true
	default:
		return false
	}
}

// CanActAt reports whether the role may submit decisions at the given level.
func (r UserRole) CanActAt(level ApprovalLevel) bool {
	switch level {
	case ApprovalLevelFirst:
		return r == RoleSalesManager || r == RoleAdmin
	case ApprovalLevelSecond:
		return r == RoleCEO || r == RoleAdmin
	default:
		return false
	}
}

// JWTClaims represents the JWT payload for access tokens issued by the identity provider.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}
