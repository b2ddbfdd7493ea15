package model

import "github.com/golang-jwt/jwt/v5"

// UserClaims are JWT claims for a logged-in player
type UserClaims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// RegisterRequest is the request body for account creation
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

// LoginRequest is the request body for login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned after register or login
type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// UpdateUserRequest changes the display name and/or password; empty fields are left alone
type UpdateUserRequest struct {
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
}
