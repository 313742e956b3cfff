// Package token provides server-side hashing for bearer tokens.
//
// Refresh tokens are stored only as 64-char hex digests; the plain token
// lives exclusively on the client. HMAC mode binds stored digests to a
// deployment secret so a leaked sessions table cannot be replayed alone.
package token
