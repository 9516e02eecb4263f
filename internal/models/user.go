package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the roles issued by the campus portal.
type UserRole string

const (
	RoleRegistrar UserRole = "REGISTRAR"
	RolePrincipal UserRole = "PRINCIPAL"
	RoleDirector  UserRole = "DIRECTOR"
	RoleLecturer  UserRole = "LECTURER"
	RoleStudent   UserRole = "STUDENT"
)

// JWTClaims is the access token payload minted by the campus portal.
type JWTClaims struct {
	UserID    string   `json:"user_id"`
	Role      UserRole `json:"role"`
	CollegeID string   `json:"college_id"`
	Username  string   `json:"username"`
	jwt.RegisteredClaims
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
