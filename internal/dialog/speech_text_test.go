package dialog

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitizeStripsMarkupAndSymbols(t *testing.T) {
	in := "✅ *Appuntamento* prenotato!\n\n📅 Data: 2026-08-29\n🕐 Orario: 15:00"
	out := Sanitize(in, DefaultReplyLimit)
	if strings.ContainsAny(out, "*#`✅📅🕐\n") {
		t.Fatalf("markup survived sanitization: %q", out)
	}
	if !strings.Contains(out, "Appuntamento prenotato!") {
		t.Fatalf("content lost: %q", out)
	}
	if strings.Contains(out, "  ") {
		t.Fatalf("whitespace not collapsed: %q", out)
	}
}

func TestSanitizeRedactsUUIDTokens(t *testing.T) {
	in := "La tua prenotazione 6f9619ff-8b86-4d01-b42d-00cf4fc964ff è confermata."
	out := Sanitize(in, DefaultReplyLimit)
	if strings.Contains(out, "6f9619ff") {
		t.Fatalf("uuid survived sanitization: %q", out)
	}
	if !strings.Contains(out, "confermata") {
		t.Fatalf("content lost: %q", out)
	}
}

func TestSanitizeReplacesEnglishLeaks(t *testing.T) {
	in := "Il tuo appointment è confermato per tomorrow. Thank you!"
	out := Sanitize(in, DefaultReplyLimit)
	for _, english := range []string{"appointment", "tomorrow", "Thank you"} {
		if strings.Contains(strings.ToLower(out), strings.ToLower(english)) {
			t.Fatalf("english leak %q survived: %q", english, out)
		}
	}
	if !strings.Contains(out, "appuntamento") || !strings.Contains(out, "domani") {
		t.Fatalf("italian replacements missing: %q", out)
	}
}

func TestSanitizeCapsLengthOnWordBoundary(t *testing.T) {
	in := strings.Repeat("parola assai lunga davvero ", 30)
	out := Sanitize(in, DefaultReplyLimit)
	if n := utf8.RuneCountInString(out); n > DefaultReplyLimit {
		t.Fatalf("length = %d runes, want <= %d", n, DefaultReplyLimit)
	}
	if !strings.HasSuffix(out, "…") {
		t.Fatalf("truncated text must end with ellipsis: %q", out)
	}
	trimmed := strings.TrimSuffix(out, "…")
	lastWord := trimmed[strings.LastIndex(trimmed, " ")+1:]
	switch lastWord {
	case "parola", "assai", "lunga", "davvero":
	default:
		t.Fatalf("truncation cut mid-word: %q", lastWord)
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"Buongiorno, come posso aiutarti?",
		"✅ *Confermato* per domani alle 15:00! 🎉",
		"Riferimento 6f9619ff-8b86-4d01-b42d-00cf4fc964ff, thank you.",
		strings.Repeat("frase piuttosto lunga che sfora il limite ", 20),
	}
	for _, in := range inputs {
		once := Sanitize(in, DefaultReplyLimit)
		twice := Sanitize(once, DefaultReplyLimit)
		if once != twice {
			t.Fatalf("not idempotent:\n once: %q\ntwice: %q", once, twice)
		}
	}
}
