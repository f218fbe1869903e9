package vault

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxFilenameLen = 200

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SanitizeFilename reduces a client supplied name to a plain ASCII file name
// without directory components. Accents are folded ("résumé" -> "resume"),
// whitespace runs become "_", anything else outside [A-Za-z0-9_.-] is dropped,
// and leading or trailing dots and underscores are trimmed. The result may be
// empty.
func SanitizeFilename(name string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	ascii, _, err := transform.String(t, name)
	if err != nil {
		return ""
	}

	ascii = strings.NewReplacer("/", " ", `\`, " ").Replace(ascii)
	ascii = strings.Join(strings.Fields(ascii), "_")
	ascii = unsafeFilenameChars.ReplaceAllString(ascii, "")
	ascii = strings.Trim(ascii, "._")

	if len(ascii) > maxFilenameLen {
		ascii = strings.TrimRight(ascii[:maxFilenameLen], "._")
	}
	return ascii
}
