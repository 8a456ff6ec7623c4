package slug

import (
	"strings"
	"unicode"
)

// Make lowercases input and collapses each run of characters that are not
// letters or digits into one dash. "Write Report!" becomes "write-report".
func Make(input string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(input)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	return b.String()
}

// Equal reports whether two task references name the same task.
func Equal(a, b string) bool {
	return Make(a) == Make(b)
}
