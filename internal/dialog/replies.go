package dialog

import (
	"fmt"
	"strings"
	"time"

	"github.com/studiogamma/centralino/internal/store"
)

// Fixed Italian reply texts. Everything user-visible stays short, polite and
// offers a concrete next step.
const (
	replyGreeting = "Buongiorno, sono l'assistente virtuale dello studio. Come posso aiutarti?"

	replyApology = "Mi dispiace, si è verificato un errore. Riprova o chiama direttamente lo studio al +39 02 1234567."

	replyTaxRejected = "Per domande fiscali specifiche è necessario parlare con un commercialista. Posso fissarti un appuntamento con uno dei nostri specialisti?"

	replyTaxDisclaimer = "Questa è un'informazione generale. Per la tua situazione specifica, consulta un commercialista."

	replyClarification = "Mi dispiace, non ho capito bene la tua richiesta. Posso aiutarti a prenotare un appuntamento, parlare con un commercialista o darti informazioni sullo studio. Cosa ti serve?"

	replyBookingImpossible = "Al momento non riesco a completare la prenotazione. Posso prendere il tuo numero e farti richiamare dalla segreteria?"

	replyLead = "Benvenuto! Per offrirti la migliore consulenza: sei un privato o hai un'azienda? Oppure preferisci fissare un appuntamento conoscitivo gratuito?"

	// ReplyFarewell is spoken by the transport layer when it ends the call.
	ReplyFarewell = "Grazie per aver chiamato lo Studio Commercialista. Arrivederci!"
)

func greetingFor(clientName string) string {
	name := strings.TrimSpace(clientName)
	if name == "" {
		return replyGreeting
	}
	return fmt.Sprintf("Buongiorno %s, sono l'assistente virtuale dello studio. Come posso aiutarti?", name)
}

func replyNeedsInfo(missing []string) string {
	return fmt.Sprintf(
		"Per prenotare un appuntamento ho ancora bisogno di: %s. Ad esempio: vorrei un appuntamento domani alle 15.",
		strings.Join(missing, " e "),
	)
}

func replyOutOfHours(hour, openHour, closeHour int) string {
	return fmt.Sprintf(
		"Lo studio riceve dalle %d alle %d, quindi le %d non sono disponibili. Vuoi proporre un altro orario?",
		openHour, closeHour, hour,
	)
}

func replyConflict(candidates []time.Time) string {
	if len(candidates) == 0 {
		return "Mi dispiace, per quella giornata non ci sono orari liberi. Vuoi provare con un altro giorno?"
	}
	parts := make([]string, 0, len(candidates))
	for _, c := range candidates {
		parts = append(parts, c.Format("15:04"))
	}
	return fmt.Sprintf(
		"L'orario richiesto non è disponibile. Potrei proporti: %s. Quale preferisci?",
		strings.Join(parts, ", "),
	)
}

func replyCreated(appt store.Appointment, staffName string, adjusted, dateAssumed bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Appuntamento prenotato per %s alle %s",
		appt.StartTime.Format("02-01-2006"), appt.StartTime.Format("15:04"))
	if staffName != "" {
		fmt.Fprintf(&b, " con %s", staffName)
	}
	b.WriteString(".")
	if adjusted {
		b.WriteString(" L'orario richiesto era occupato, ho scelto il più vicino disponibile.")
	}
	if dateAssumed {
		b.WriteString(" Non ho riconosciuto la data, ho fissato per domani: dimmi pure se preferisci un altro giorno.")
	}
	b.WriteString(" Riceverai una conferma.")
	return b.String()
}

func replyStaffLocated(staff store.Accountant) string {
	return fmt.Sprintf(
		"%s è disponibile. Posso prenotarti un appuntamento o inviargli un messaggio: cosa preferisci?",
		staff.Name,
	)
}

func replyStaffSuggestions(suggestions []store.Accountant) string {
	if len(suggestions) == 0 {
		return "Con quale commercialista vorresti parlare?"
	}
	names := make([]string, 0, len(suggestions))
	for _, s := range suggestions {
		names = append(names, s.Name)
	}
	return fmt.Sprintf(
		"Con quale commercialista vorresti parlare? Alcuni dei nostri specialisti: %s.",
		strings.Join(names, ", "),
	)
}
