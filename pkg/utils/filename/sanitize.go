// Package filename turns untrusted upload names into names that are safe to
// store on disk.
package filename

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const defaultMaxLen = 120

var (
	// Stored names end up in ffmpeg's image2 pattern, so only the portable
	// set survives; '%', '[' and '*' never do.
	unsafeRe  = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	multiDash = regexp.MustCompile(`[-_]{2,}`)
	dotJoin   = regexp.MustCompile(`[-_]*\.+[-_]*`)
	extRe     = regexp.MustCompile(`^\.[a-z0-9]{1,10}$`)
)

// stripMarks folds accented letters to their base letter ("é" -> "e").
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Sanitize converts name into a slug of [A-Za-z0-9._-] truncated to maxLen
// bytes (defaultMaxLen when maxLen <= 0). Path components are discarded, so
// "../../etc/passwd" becomes "passwd", and accents are folded.
func Sanitize(name string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = defaultMaxLen
	}

	s := strings.TrimSpace(name)
	s = s[strings.LastIndexAny(s, `/\`)+1:]
	if folded, _, err := transform.String(stripMarks, s); err == nil {
		s = folded
	}
	s = unsafeRe.ReplaceAllString(s, "-")
	s = multiDash.ReplaceAllString(s, "-")
	s = dotJoin.ReplaceAllString(s, ".")
	s = strings.Trim(s, "-._")

	if len(s) > maxLen {
		s = strings.TrimRight(s[:maxLen], "-._")
	}
	return s
}

// Ext returns the lower-cased extension of name when it looks like a real
// one ("clip.MP4" -> ".mp4"), or "".
func Ext(name string) string {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(name)))
	if !extRe.MatchString(ext) {
		return ""
	}
	return ext
}

// Stem strips the extension from a stored name.
func Stem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// StoredName builds "<id>-<sanitized stem><ext>" for an uploaded file. The id
// prefix keeps names unique; the slug keeps them readable.
func StoredName(id uuid.UUID, original string) string {
	ext := Ext(original)
	stem := Sanitize(strings.TrimSuffix(strings.TrimSpace(original), filepath.Ext(strings.TrimSpace(original))), 80)
	if stem == "" {
		return id.String() + ext
	}
	return id.String() + "-" + stem + ext
}
