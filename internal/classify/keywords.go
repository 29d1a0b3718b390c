package classify

import (
	"regexp"
	"strings"

	"github.com/studiogamma/centralino/internal/domain"
)

// Keyword sets for the deterministic fast path. Matching is case-insensitive
// substring search; entries are stems so inflected forms match too
// ("prenotare", "prenotazione" both hit "prenot").
var (
	taxTerms = []string{
		"iva", "ires", "irap", "tasse", "fiscal", "scadenz", "dichiarazion", "730", "f24",
	}
	bookingTerms = []string{
		"appuntament", "prenot", "fissare", "disdire", "spostare",
	}
	officeTerms = []string{
		"orari", "aperto", "chiuso", "chiusura", "indirizzo", "dove siete",
		"contatt", "telefono", "email", "sede",
	}
	routingTerms = []string{
		"parlare con", "passami", "dott", "commercialista", "ragionier",
	}
	leadTerms = []string{
		"nuovo cliente", "diventare client", "preventivo", "informazioni per aprire",
	}
)

var (
	datePattern      = regexp.MustCompile(`(?i)\b(oggi|domani|dopodomani|\d{4}-\d{2}-\d{2})\b`)
	timePattern      = regexp.MustCompile(`(?i)\b(?:alle\s+(?:ore\s+)?)?(\d{1,2}):(\d{2})\b|\balle\s+(?:ore\s+)?(\d{1,2})\b`)
	titleNamePattern = regexp.MustCompile(`(?i)\b(?:dott\.?(?:ssa)?|ragionier[ae]?)\s+([A-Za-zÀ-ÿ]+)`)
	withNamePattern  = regexp.MustCompile(`(?i)\b(?:parlare\s+con|passami)\s+(?:il\s+|la\s+|lo\s+)?([A-Za-zÀ-ÿ]+)`)
	taxTypePattern   = regexp.MustCompile(`(?i)\b(iva|ires|irap)\b`)
)

// fastPath scans the utterance against the five keyword sets in priority
// order: tax, booking, office info, routing, lead. Tax matches first so a
// booking request that mentions a tax term is still refused, never booked.
func fastPath(utterance string) (Result, bool) {
	lower := strings.ToLower(utterance)

	if matchesAny(lower, taxTerms) {
		res := Result{
			Intent:     domain.IntentUnknown,
			Confidence: 0.95,
			TaxFlag:    true,
			Slots:      extractSlots(utterance),
			Path:       PathFast,
		}
		return res, true
	}

	for _, set := range []struct {
		terms  []string
		intent domain.Intent
	}{
		{bookingTerms, domain.IntentBooking},
		{officeTerms, domain.IntentOfficeInfo},
		{routingTerms, domain.IntentRouting},
		{leadTerms, domain.IntentLead},
	} {
		if matchesAny(lower, set.terms) {
			return Result{
				Intent:     set.intent,
				Confidence: 0.92,
				Slots:      extractSlots(utterance),
				Path:       PathFast,
			}, true
		}
	}
	return Result{}, false
}

func matchesAny(lower string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// extractSlots pulls date, time, name and tax-type slots with deterministic
// regexes. Values stay raw strings; resolution happens in the booking layer.
func extractSlots(utterance string) map[string]string {
	slots := make(map[string]string, 4)

	if m := datePattern.FindStringSubmatch(utterance); m != nil {
		slots[domain.SlotDate] = strings.ToLower(m[1])
	}
	if m := timePattern.FindStringSubmatch(utterance); m != nil {
		switch {
		case m[1] != "":
			slots[domain.SlotTime] = m[1] + ":" + m[2]
		case m[3] != "":
			slots[domain.SlotTime] = m[3] + ":00"
		}
	}
	if m := titleNamePattern.FindStringSubmatch(utterance); m != nil {
		slots[domain.SlotAccountantName] = m[1]
	} else if m := withNamePattern.FindStringSubmatch(utterance); m != nil {
		slots[domain.SlotAccountantName] = m[1]
	}
	if m := taxTypePattern.FindStringSubmatch(utterance); m != nil {
		slots[domain.SlotTaxType] = strings.ToUpper(m[1])
	}

	if len(slots) == 0 {
		return nil
	}
	return slots
}
