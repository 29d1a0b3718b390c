package dialog

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/studiogamma/centralino/internal/classify"
	"github.com/studiogamma/centralino/internal/directory"
	"github.com/studiogamma/centralino/internal/domain"
	"github.com/studiogamma/centralino/internal/store"
)

type classifierFunc func(ctx context.Context, utterance string) classify.Result

func (f classifierFunc) Classify(ctx context.Context, utterance string) classify.Result {
	return f(ctx, utterance)
}

type fallbackFunc func(ctx context.Context, utterance string) (classify.Result, error)

func (f fallbackFunc) Classify(ctx context.Context, utterance string) (classify.Result, error) {
	return f(ctx, utterance)
}

var orchestratorNow = time.Date(2026, 8, 28, 11, 0, 0, 0, time.UTC)

func newTestOrchestrator(t *testing.T, cls classify.Classifier, st store.Store) *Orchestrator {
	t.Helper()
	orc := NewOrchestrator(cls, st, nil, Options{})
	orc.now = func() time.Time { return orchestratorNow }
	return orc
}

func seededStore() *store.InMemoryStore {
	st := store.NewInMemoryStore()
	st.SeedAccountant(store.Accountant{Name: "Paolo Bianchi", Specialization: store.SpecializationTax})
	st.SeedAccountant(store.Accountant{Name: "Laura Verdi", Specialization: store.SpecializationPayroll})
	st.SeedClient(store.Client{CompanyName: "Rossi SRL", Phone: "+390255501", TaxCode: "12345678901"})
	st.SeedClient(store.Client{CompanyName: "Brambilla SNC", Phone: "+390255502", TaxCode: "12345678902"})
	st.SeedOfficeValue(directory.KeyHours, "Siamo aperti dal lunedì al venerdì, dalle 9 alle 18.")
	return st
}

func TestOfficeInfoFastPathSkipsFallback(t *testing.T) {
	called := false
	engine := classify.NewEngine(fallbackFunc(func(context.Context, string) (classify.Result, error) {
		called = true
		return classify.Result{}, errors.New("fallback must not run")
	}), time.Second)
	st := seededStore()
	orc := newTestOrchestrator(t, engine, st)

	res, _ := orc.Process(context.Background(), domain.TurnRequest{
		Utterance: "Quali sono i vostri orari di apertura?",
		SessionID: "call-1",
	}, domain.Context{})

	if called {
		t.Fatalf("keyword-answerable turn reached the fallback classifier")
	}
	if res.Action != domain.ActionOfficeInfo {
		t.Fatalf("action = %s, want %s", res.Action, domain.ActionOfficeInfo)
	}
	if !strings.Contains(res.ReplyText, "dalle 9 alle 18") {
		t.Fatalf("reply missing office hours: %q", res.ReplyText)
	}
}

func TestBookingOutOfHoursNeverWrites(t *testing.T) {
	st := seededStore()
	orc := newTestOrchestrator(t, classify.NewEngine(nil, time.Second), st)

	res, _ := orc.Process(context.Background(), domain.TurnRequest{
		Utterance:   "Vorrei prenotare domani alle 20",
		SessionID:   "call-1",
		CallerPhone: "+390255501",
	}, domain.Context{})

	if res.Action != domain.ActionSlotUnavailable {
		t.Fatalf("action = %s, want %s", res.Action, domain.ActionSlotUnavailable)
	}
	if !strings.Contains(res.ReplyText, "dalle 9 alle 18") {
		t.Fatalf("reply must state business hours: %q", res.ReplyText)
	}
	if n := st.AppointmentCount(); n != 0 {
		t.Fatalf("appointments = %d, want 0 after out-of-hours request", n)
	}
}

func TestBookingCreatedThenConflictSuggestions(t *testing.T) {
	st := seededStore()
	orc := newTestOrchestrator(t, classify.NewEngine(nil, time.Second), st)
	ctx := context.Background()

	res, _ := orc.Process(ctx, domain.TurnRequest{
		Utterance:   "Vorrei un appuntamento domani alle 15:00",
		SessionID:   "call-1",
		CallerPhone: "+390255501",
	}, domain.Context{})
	if res.Action != domain.ActionBookingCreated {
		t.Fatalf("first booking action = %s (%q), want %s", res.Action, res.ReplyText, domain.ActionBookingCreated)
	}
	if !strings.Contains(res.ReplyText, "29-08-2026") || !strings.Contains(res.ReplyText, "15:00") {
		t.Fatalf("confirmation must carry date and time: %q", res.ReplyText)
	}

	res2, _ := orc.Process(ctx, domain.TurnRequest{
		Utterance:   "Vorrei un appuntamento domani alle 15:00",
		SessionID:   "call-2",
		CallerPhone: "+390255502",
	}, domain.Context{})
	if res2.Action != domain.ActionSlotUnavailable {
		t.Fatalf("second booking action = %s, want %s", res2.Action, domain.ActionSlotUnavailable)
	}
	if strings.Contains(res2.ReplyText, "15:00") {
		t.Fatalf("taken slot offered as alternative: %q", res2.ReplyText)
	}
	for _, alt := range []string{"14:00", "16:00"} {
		if !strings.Contains(res2.ReplyText, alt) {
			t.Fatalf("reply missing alternative %s: %q", alt, res2.ReplyText)
		}
	}
	if n := st.AppointmentCount(); n != 1 {
		t.Fatalf("appointments = %d, want 1", n)
	}
}

func TestTaxTermRejectsEvenWithBookingWords(t *testing.T) {
	st := seededStore()
	orc := newTestOrchestrator(t, classify.NewEngine(nil, time.Second), st)

	res, _ := orc.Process(context.Background(), domain.TurnRequest{
		Utterance:   "Quanto devo pagare di IVA? Vorrei anche un appuntamento",
		SessionID:   "call-1",
		CallerPhone: "+390255501",
	}, domain.Context{})

	if res.Action != domain.ActionTaxRejected {
		t.Fatalf("action = %s, want %s", res.Action, domain.ActionTaxRejected)
	}
	if !strings.Contains(res.ReplyText, "commercialista") {
		t.Fatalf("rejection must offer a human specialist: %q", res.ReplyText)
	}
	if n := st.AppointmentCount(); n != 0 {
		t.Fatalf("appointments = %d, want 0: tax turns never book", n)
	}
}

func TestEmptyFirstTurnGreetsWithoutClassifying(t *testing.T) {
	st := seededStore()
	orc := newTestOrchestrator(t, classifierFunc(func(context.Context, string) classify.Result {
		panic("classifier must not run on the pickup turn")
	}), st)

	res, out := orc.Process(context.Background(), domain.TurnRequest{
		Utterance:   "  ",
		SessionID:   "call-1",
		CallerPhone: "+390255501",
	}, domain.Context{})

	if res.Action != domain.ActionGreeting {
		t.Fatalf("action = %s, want %s", res.Action, domain.ActionGreeting)
	}
	if !strings.Contains(res.ReplyText, "Rossi SRL") {
		t.Fatalf("known caller must be greeted by name: %q", res.ReplyText)
	}
	if len(out.History) != 2 {
		t.Fatalf("history entries = %d, want 2", len(out.History))
	}
	if out.History[1].Action != domain.ActionGreeting {
		t.Fatalf("assistant history entry action = %s", out.History[1].Action)
	}
}

func TestTurnSurvivesClassifierPanic(t *testing.T) {
	st := seededStore()
	orc := newTestOrchestrator(t, classifierFunc(func(context.Context, string) classify.Result {
		panic("boom")
	}), st)

	res, out := orc.Process(context.Background(), domain.TurnRequest{
		Utterance: "Vorrei un appuntamento",
		SessionID: "call-1",
	}, domain.Context{})

	if res.ReplyText == "" {
		t.Fatalf("a panicking turn must still produce a reply")
	}
	if res.Action != domain.ActionClarification {
		t.Fatalf("action = %s, want %s", res.Action, domain.ActionClarification)
	}
	if !strings.Contains(res.Err, "panic") {
		t.Fatalf("error field must carry the cause: %q", res.Err)
	}
	if len(out.History) != 2 {
		t.Fatalf("history entries = %d, want 2", len(out.History))
	}
}

func TestSlotsAccumulateAcrossTurns(t *testing.T) {
	st := seededStore()
	orc := newTestOrchestrator(t, classify.NewEngine(nil, time.Second), st)
	ctx := context.Background()
	req := func(u string) domain.TurnRequest {
		return domain.TurnRequest{Utterance: u, SessionID: "call-1", CallerPhone: "+390255501"}
	}

	res, conv := orc.Process(ctx, req("Vorrei prenotare un appuntamento domani"), domain.Context{})
	if res.Action != domain.ActionClarification {
		t.Fatalf("incomplete booking action = %s, want clarification", res.Action)
	}
	if !strings.Contains(res.ReplyText, "orario") {
		t.Fatalf("clarification must name the missing field: %q", res.ReplyText)
	}

	res, conv = orc.Process(ctx, req("alle 15:00"), conv)
	if res.Action != domain.ActionBookingCreated {
		t.Fatalf("follow-up time action = %s (%q), want %s", res.Action, res.ReplyText, domain.ActionBookingCreated)
	}
	if conv.Slots[domain.SlotTime] != "15:00" || conv.Slots[domain.SlotDate] != "domani" {
		t.Fatalf("accumulated slots = %v", conv.Slots)
	}

	res, conv = orc.Process(ctx, req("Vorrei prenotare anche dopodomani alle 16:00"), conv)
	if res.Action != domain.ActionBookingCreated {
		t.Fatalf("second booking action = %s (%q)", res.Action, res.ReplyText)
	}
	if conv.Slots[domain.SlotTime] != "16:00" || conv.Slots[domain.SlotDate] != "dopodomani" {
		t.Fatalf("slots must be overwritten by the newest values: %v", conv.Slots)
	}
	if n := st.AppointmentCount(); n != 2 {
		t.Fatalf("appointments = %d, want 2", n)
	}
}

func TestRoutingUnknownNameSuggests(t *testing.T) {
	st := seededStore()
	orc := newTestOrchestrator(t, classify.NewEngine(nil, time.Second), st)

	res, _ := orc.Process(context.Background(), domain.TurnRequest{
		Utterance: "Vorrei parlare con il Dott. Esposito",
		SessionID: "call-1",
	}, domain.Context{})

	if res.Action != domain.ActionClarification {
		t.Fatalf("action = %s, want clarification for unknown staff", res.Action)
	}
	for _, name := range []string{"Paolo Bianchi", "Laura Verdi"} {
		if !strings.Contains(res.ReplyText, name) {
			t.Fatalf("suggestions missing %s: %q", name, res.ReplyText)
		}
	}
}

func TestRoutingKnownNameLocatesStaff(t *testing.T) {
	st := seededStore()
	orc := newTestOrchestrator(t, classify.NewEngine(nil, time.Second), st)

	res, out := orc.Process(context.Background(), domain.TurnRequest{
		Utterance: "Posso parlare con la Dott.ssa Verdi?",
		SessionID: "call-1",
	}, domain.Context{})

	if res.Action != domain.ActionStaffLocated {
		t.Fatalf("action = %s (%q), want %s", res.Action, res.ReplyText, domain.ActionStaffLocated)
	}
	if out.KnownAccountantID == "" {
		t.Fatalf("located staff must be remembered in context")
	}
}

func TestLeadCapturedAndPersisted(t *testing.T) {
	st := seededStore()
	orc := newTestOrchestrator(t, classify.NewEngine(nil, time.Second), st)

	res, _ := orc.Process(context.Background(), domain.TurnRequest{
		Utterance:   "Buongiorno, vorrei un preventivo per la mia nuova attività",
		SessionID:   "call-1",
		CallerPhone: "+390299999",
	}, domain.Context{})

	if res.Action != domain.ActionLeadCaptured {
		t.Fatalf("action = %s, want %s", res.Action, domain.ActionLeadCaptured)
	}
	if n := st.LeadCount(); n != 1 {
		t.Fatalf("leads = %d, want 1", n)
	}
	if !strings.Contains(res.ReplyText, "azienda") {
		t.Fatalf("lead reply must qualify the prospect: %q", res.ReplyText)
	}
}

func TestTaxAnswerModeAppendsDisclaimer(t *testing.T) {
	st := seededStore()
	orc := NewOrchestrator(classify.NewEngine(nil, time.Second), st, nil, Options{AnswerTaxQueries: true})
	orc.now = func() time.Time { return orchestratorNow }
	orc.SetAnswerEngine(answerFunc(func(context.Context, string) (string, error) {
		return "La scadenza ordinaria del 730 è a settembre.", nil
	}))

	res, _ := orc.Process(context.Background(), domain.TurnRequest{
		Utterance: "Quando scade il 730?",
		SessionID: "call-1",
	}, domain.Context{})

	if res.Action != domain.ActionTaxAnswered {
		t.Fatalf("action = %s, want %s", res.Action, domain.ActionTaxAnswered)
	}
	if !strings.Contains(res.ReplyText, "settembre") || !strings.Contains(res.ReplyText, "consulta un commercialista") {
		t.Fatalf("answer must carry content plus disclaimer: %q", res.ReplyText)
	}
}

func TestFinalTurnSaysGoodbyeWithoutClassifying(t *testing.T) {
	st := seededStore()
	orc := newTestOrchestrator(t, classifierFunc(func(context.Context, string) classify.Result {
		panic("classifier must not run on the closing turn")
	}), st)

	res, _ := orc.Process(context.Background(), domain.TurnRequest{
		Utterance: "grazie, arrivederci",
		SessionID: "call-1",
		FinalTurn: true,
	}, domain.Context{LastIntent: domain.IntentOfficeInfo})

	if res.Action != domain.ActionCallEnded {
		t.Fatalf("action = %s, want %s", res.Action, domain.ActionCallEnded)
	}
	if !strings.Contains(res.ReplyText, "Arrivederci") {
		t.Fatalf("closing reply = %q", res.ReplyText)
	}
}

type answerFunc func(ctx context.Context, question string) (string, error)

func (f answerFunc) Answer(ctx context.Context, question string) (string, error) {
	return f(ctx, question)
}
