package httpapi

import "strings"

// Words that end a call when they make up a short closing turn. Substring
// matching keeps inflected greetings covered ("arrivederla").
var farewellTerms = []string{
	"arrivederci",
	"arrivederla",
	"buonasera",
	"buonanotte",
	"a presto",
	"grazie",
	"ciao",
	"saluti",
}

// IsFarewell reports whether an utterance is a goodbye rather than a
// request. Long sentences never match: "grazie, vorrei anche prenotare" is a
// new request, not a hangup.
func IsFarewell(utterance string) bool {
	trimmed := strings.TrimSpace(strings.ToLower(utterance))
	if trimmed == "" {
		return false
	}
	if len(strings.Fields(trimmed)) > 4 {
		return false
	}
	for _, term := range farewellTerms {
		if strings.Contains(trimmed, term) {
			return true
		}
	}
	return false
}
