package speechsession

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// idPattern matches the opaque 32-character lowercase-hex identifiers used
// for session, request, connection, and auth-fetch ids.
var idPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// newID mints an opaque 32-character lowercase-hex identifier.
func newID() string {
	return strings.ToLower(strings.ReplaceAll(uuid.New().String(), "-", ""))
}

// isValidID reports whether s matches the required id format.
func isValidID(s string) bool {
	return idPattern.MatchString(s)
}
