// Package session owns conversion sessions: the per-session directory tree
// under the sessions root and the SQLite index describing each session's
// lifecycle. Identifiers and slide filenames pass allow-list validation
// before they touch any path; that validation is the only traversal defense
// and therefore rejects everything outside a closed charset.
//
// Sessions do not survive a daemon restart. Expiry deadlines are persisted
// on the index row and an external sweeper removes sessions past their
// deadline; the daemon purges everything on startup.
package session
