package id

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a fresh 32-character lowercase hex identifier.
func New() string {
	u := uuid.New()
	return strings.ReplaceAll(u.String(), "-", "")
}

// Valid reports whether s looks like an identifier produced by New.
func Valid(s string) bool {
	if len(s) != 32 {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

// Disambiguate renames an account being moved so it cannot collide with a
// sibling: "Checking" with id "ab12..." becomes "Checking.ab12...".
func Disambiguate(name, id string) string {
	return name + "." + id
}
