// Package password implements credential hashing for loft.
//
// Passwords are hashed with Argon2id and stored as PHC-encoded strings.
// Cost parameters and the length policy are env-tunable; verification is
// bounded to reject attacker-supplied hashes with pathological parameters.
package password
