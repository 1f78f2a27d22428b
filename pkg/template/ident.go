package template

import (
	"fmt"
	"strings"
)

// Identifier turns a word name into a target-language identifier. Word names
// are case-insensitive, so the result is lowercase; characters outside
// [a-z0-9] are spelled as _xx hex escapes.
func Identifier(prefix, name string) string {
	var sb strings.Builder
	sb.WriteString(prefix)
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			fmt.Fprintf(&sb, "_%02x", r)
		}
	}
	return sb.String()
}
