// Package session implements the authentication session lifecycle:
// issuing access/refresh token pairs, single-use refresh rotation backed by
// a server-side record store, and credential-bound account operations.
//
// A refresh token is valid only when its signature verifies AND its hash is
// still present in the store. Rotation deletes the presented record first,
// so concurrent rotations of the same token elect exactly one winner.
package session
