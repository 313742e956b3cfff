// Package room implements shared room documents: caller-keyed records that
// hold a member list and free-form planning content. Rooms reference members
// by username only, so user renames or deletions do not cascade here.
package room
