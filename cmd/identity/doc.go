// Package identity owns user records, their credentials, and the profile
// data bag. It exposes a Directory persistence boundary with Postgres and
// in-memory implementations.
package identity
