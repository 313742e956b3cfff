// Package authapi exposes the user-facing HTTP endpoints: signup, login,
// refresh rotation, logout, profile and password management, and account
// deletion. Refresh tokens travel only in an HttpOnly cookie.
package authapi
