package session

import "regexp"

// Identifiers and slide filenames arrive from URLs and are later joined into
// filesystem paths. These predicates are the sole traversal defense: both
// charsets exclude path separators, NUL, and leading dots entirely, so
// nothing that passes can escape the session directory.

var (
	idPattern        = regexp.MustCompile(`^[0-9a-f][0-9a-f-]{7,63}$`)
	slideNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}\.png$`)
)

// ValidID reports whether id is an acceptable session identifier: lowercase
// hex with hyphens, 8 to 64 characters, starting with a hex digit. Every
// identifier NewID mints passes.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// ValidSlideName reports whether name is an acceptable slide filename: a
// .png name from a closed charset with no separators, starting with an
// alphanumeric character.
func ValidSlideName(name string) bool {
	return slideNamePattern.MatchString(name)
}
