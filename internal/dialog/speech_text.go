package dialog

import (
	"regexp"
	"strings"
	"unicode"
)

const DefaultReplyLimit = 290

var (
	speechURLPattern          = regexp.MustCompile(`https?://\S+`)
	speechFencedCodePattern   = regexp.MustCompile("(?s)```.*?```")
	speechInlineCodePattern   = regexp.MustCompile("`[^`]*`")
	speechMarkdownLinkPattern = regexp.MustCompile(`\[(.*?)\]\((.*?)\)`)
	uuidPattern               = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
)

// englishLeakPatterns maps English fragments the model occasionally emits
// inside otherwise-Italian text to their Italian equivalents. This is a
// guard against a known defect class, not a translation layer.
var englishLeakPatterns = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`(?i)\bthank you\b`), "grazie"},
	{regexp.MustCompile(`(?i)\bappointment\b`), "appuntamento"},
	{regexp.MustCompile(`(?i)\bunavailable\b`), "non disponibile"},
	{regexp.MustCompile(`(?i)\bavailable\b`), "disponibile"},
	{regexp.MustCompile(`(?i)\btomorrow\b`), "domani"},
	{regexp.MustCompile(`(?i)\btoday\b`), "oggi"},
	{regexp.MustCompile(`(?i)\bsorry\b`), "mi dispiace"},
	{regexp.MustCompile(`(?i)\bhello\b`), "buongiorno"},
	{regexp.MustCompile(`(?i)\bgoodbye\b`), "arrivederci"},
	{regexp.MustCompile(`(?i)\bbooked\b`), "prenotato"},
}

// Sanitize prepares reply text for the speech channel: markup and symbol
// noise is stripped, UUID-shaped identifiers are removed, English leaks are
// replaced with Italian, whitespace collapses, and the result is capped at
// limit runes ending on a word boundary with an ellipsis. Pure and
// idempotent: sanitizing already-clean text is a no-op.
func Sanitize(raw string, limit int) string {
	if limit <= 0 {
		limit = DefaultReplyLimit
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	raw = speechFencedCodePattern.ReplaceAllString(raw, " ")
	raw = speechInlineCodePattern.ReplaceAllString(raw, " ")
	raw = speechMarkdownLinkPattern.ReplaceAllString(raw, "$1")
	raw = speechURLPattern.ReplaceAllString(raw, " ")
	raw = uuidPattern.ReplaceAllString(raw, " ")

	for _, leak := range englishLeakPatterns {
		raw = leak.pattern.ReplaceAllString(raw, leak.replacement)
	}

	raw = strings.NewReplacer(
		"*", " ",
		"_", " ",
		"\\", " ",
		"/", " ",
		"|", " ",
		"#", " ",
		"~", " ",
		"<", " ",
		">", " ",
	).Replace(raw)

	var b strings.Builder
	b.Grow(len(raw))
	prevSpace := true

	for _, r := range raw {
		switch {
		case r == '\u200d' || r == '\ufe0f' || r == '\u20e3':
			continue
		case r == '\n' || r == '\r' || r == '\t' || unicode.IsSpace(r):
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
		case unicode.IsControl(r):
			continue
		case unicode.In(r, unicode.So, unicode.Sm, unicode.Sk):
			// Drops emoji and symbol-heavy glyphs that sound unnatural when spoken.
			continue
		case isSpeechSafePunctuation(r):
			b.WriteRune(r)
			prevSpace = false
		case unicode.IsPunct(r):
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
		default:
			b.WriteRune(r)
			prevSpace = false
		}
	}

	return truncateClean(strings.TrimSpace(b.String()), limit)
}

func isSpeechSafePunctuation(r rune) bool {
	switch r {
	case '.', ',', '!', '?', ':', ';', '\'', '"', '-', '(', ')', '…':
		return true
	default:
		return false
	}
}

// truncateClean caps the text at limit runes, cutting on the last word
// boundary and marking the cut with an ellipsis, never mid-word silently.
func truncateClean(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	cut := limit - 1
	for i := cut; i > 0; i-- {
		if runes[i] == ' ' {
			cut = i
			break
		}
	}
	return strings.TrimSpace(string(runes[:cut])) + "…"
}
