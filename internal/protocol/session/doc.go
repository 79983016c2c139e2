// Package session owns connection reliability knobs shared by both peer
// roles.
//
// Ownership boundary:
// - retry policy and retry delay schedule
// - connect/read/write timeouts
package session
