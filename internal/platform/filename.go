package platform

import (
	"mime"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultTitle is used when a title cannot be resolved or sanitizes to nothing
const DefaultTitle = "audio_track"

// Disposition type for streamed files
const DispositionAttachment = "attachment"

// SanitizeFilename reduces a title to letters, digits, underscore, whitespace,
// hyphen and dot. Accented letters are folded to their ASCII base first so
// "Canción" becomes "Cancion" rather than "Cancin".
func SanitizeFilename(name string) string {
	fold := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '_' || r == '-' || r == '.':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}

	clean := strings.TrimSpace(b.String())
	if clean == "" {
		return DefaultTitle
	}
	return clean
}

// ContentDisposition returns an attachment header value for filename. Non
// ASCII names are emitted in the RFC 2231 extended form.
func ContentDisposition(filename string) string {
	value := mime.FormatMediaType(DispositionAttachment, map[string]string{"filename": filename})
	if value == "" {
		return DispositionAttachment
	}
	return value
}
