package dialog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/studiogamma/centralino/internal/booking"
	"github.com/studiogamma/centralino/internal/classify"
	"github.com/studiogamma/centralino/internal/directory"
	"github.com/studiogamma/centralino/internal/domain"
	"github.com/studiogamma/centralino/internal/observability"
	"github.com/studiogamma/centralino/internal/policy"
	"github.com/studiogamma/centralino/internal/store"
)

// AnswerEngine produces a general answer for a tax question. It is optional:
// when absent, tax questions are always deflected to a human.
type AnswerEngine interface {
	Answer(ctx context.Context, question string) (string, error)
}

// Options tunes the orchestrator. Zero values fall back to the firm's
// defaults.
type Options struct {
	OpenHour               int
	CloseHour              int
	ReplyCharLimit         int
	DefaultDurationMinutes int
	AnswerTaxQueries       bool
}

// Orchestrator runs one conversation turn end to end: identify the caller,
// classify, dispatch to the matching resolver, then normalize the reply for
// the voice channel. Every turn produces a reply and an action marker, even
// when a downstream component fails.
type Orchestrator struct {
	classifier classify.Classifier
	booking    *booking.Resolver
	directory  *directory.Resolver
	store      store.Store
	answers    AnswerEngine
	metrics    *observability.Metrics

	replyLimit      int
	defaultDuration int
	openHour        int
	closeHour       int
	answerTax       bool

	now func() time.Time
}

func NewOrchestrator(cls classify.Classifier, st store.Store, metrics *observability.Metrics, opts Options) *Orchestrator {
	if opts.CloseHour <= opts.OpenHour {
		opts.OpenHour, opts.CloseHour = 9, 18
	}
	if opts.ReplyCharLimit <= 0 {
		opts.ReplyCharLimit = DefaultReplyLimit
	}
	if !store.ValidDuration(opts.DefaultDurationMinutes) {
		opts.DefaultDurationMinutes = 60
	}
	return &Orchestrator{
		classifier:      cls,
		booking:         booking.NewResolver(st, opts.OpenHour, opts.CloseHour),
		directory:       directory.NewResolver(st),
		store:           st,
		metrics:         metrics,
		replyLimit:      opts.ReplyCharLimit,
		defaultDuration: opts.DefaultDurationMinutes,
		openHour:        opts.OpenHour,
		closeHour:       opts.CloseHour,
		answerTax:       opts.AnswerTaxQueries,
		now:             time.Now,
	}
}

// SetAnswerEngine wires the optional general-answer backend for tax queries.
func (o *Orchestrator) SetAnswerEngine(engine AnswerEngine) {
	o.answers = engine
}

// Process handles one utterance against the accumulated conversation context
// and returns both the turn result and the updated context. The input
// context is never mutated.
func (o *Orchestrator) Process(ctx context.Context, req domain.TurnRequest, conv domain.Context) (domain.TurnResult, domain.Context) {
	started := o.now()
	out := conv.Clone()

	o.identifyCaller(ctx, req.CallerPhone, &out)

	utterance := strings.TrimSpace(req.Utterance)
	out.History = append(out.History, domain.HistoryEntry{
		Role:      "user",
		Text:      utterance,
		Timestamp: started.UTC(),
	})

	res := o.runTurn(ctx, req, utterance, &out)

	res.ReplyText = Sanitize(res.ReplyText, o.replyLimit)
	if res.ReplyText == "" {
		res.ReplyText = Sanitize(replyClarification, o.replyLimit)
	}
	if res.Action == "" {
		res.Action = domain.ActionClarification
	}
	if res.Intent == "" {
		res.Intent = domain.IntentUnknown
	}

	out.LastIntent = res.Intent
	out.LastConfidence = res.Confidence
	out.History = append(out.History, domain.HistoryEntry{
		Role:      "assistant",
		Text:      res.ReplyText,
		Timestamp: o.now().UTC(),
		Intent:    res.Intent,
		Action:    res.Action,
	})

	o.metrics.ObserveTurn(string(res.Intent), string(res.Action), o.now().Sub(started))
	return res, out
}

// runTurn contains every step that may touch external systems; a panic in
// any of them degrades to an apology instead of dropping the turn.
func (o *Orchestrator) runTurn(ctx context.Context, req domain.TurnRequest, utterance string, out *domain.Context) (res domain.TurnResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("dialog: recovered from turn panic (session=%s): %v", req.SessionID, r)
			res = domain.TurnResult{
				ReplyText: replyApology,
				Action:    domain.ActionClarification,
				Intent:    domain.IntentUnknown,
				Err:       fmt.Sprintf("turn panic: %v", r),
			}
		}
	}()

	// The transport marks the closing turn; say goodbye without spending a
	// classification on it.
	if req.FinalTurn {
		return domain.TurnResult{
			ReplyText: ReplyFarewell,
			Action:    domain.ActionCallEnded,
			Intent:    domain.IntentUnknown,
		}
	}

	// An empty or near-empty opening turn is the call pickup: greet without
	// spending a classification on it.
	if informativeLength(utterance) < 3 && len(out.History) <= 1 {
		return domain.TurnResult{
			ReplyText: greetingFor(out.KnownClientName),
			Action:    domain.ActionGreeting,
			Intent:    domain.IntentUnknown,
		}
	}

	clsStart := o.now()
	cls := o.classifier.Classify(ctx, utterance)
	o.metrics.ObserveStage(observability.StageClassify, o.now().Sub(clsStart))
	o.metrics.ObserveClassifierPath(cls.Path)
	if cls.Err != nil {
		log.Printf("dialog: classifier degraded (session=%s): %v", req.SessionID, cls.Err)
	}

	out.MergeSlots(cls.Slots)

	if cls.TaxFlag {
		return o.handleTax(ctx, utterance, cls)
	}

	execStart := o.now()
	defer func() {
		o.metrics.ObserveStage(observability.StageResolve, o.now().Sub(execStart))
	}()

	// A slot-bearing turn with no recognizable intent continues a booking
	// already in progress ("alle 15" after "vorrei un appuntamento domani").
	intent := cls.Intent
	if intent == domain.IntentUnknown && len(cls.Slots) > 0 && out.LastIntent == domain.IntentBooking {
		intent = domain.IntentBooking
	}

	switch intent {
	case domain.IntentBooking:
		return o.handleBooking(ctx, req, utterance, out, cls)
	case domain.IntentRouting:
		return o.handleRouting(ctx, out, cls)
	case domain.IntentOfficeInfo:
		return o.handleOfficeInfo(ctx, utterance, cls)
	case domain.IntentLead:
		return o.handleLead(ctx, req, utterance, cls)
	default:
		return domain.TurnResult{
			ReplyText:  replyClarification,
			Action:     domain.ActionClarification,
			Intent:     domain.IntentUnknown,
			Confidence: cls.Confidence,
		}
	}
}

// identifyCaller resolves a known client from the caller's phone number once
// per call. Lookup failures are silent: an unknown caller is a normal case.
func (o *Orchestrator) identifyCaller(ctx context.Context, phone string, out *domain.Context) {
	if phone == "" || out.KnownClientID != "" {
		return
	}
	client, err := o.store.FindClientByPhone(ctx, phone)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		log.Printf("dialog: caller lookup failed: %v", err)
		return
	}
	out.KnownClientID = client.ID
	out.KnownClientName = client.CompanyName
	out.KnownAccountantID = client.AccountantID
}

func (o *Orchestrator) handleTax(ctx context.Context, utterance string, cls classify.Result) domain.TurnResult {
	if o.answerTax && o.answers != nil {
		answer, err := o.answers.Answer(ctx, utterance)
		if err == nil && strings.TrimSpace(answer) != "" {
			return domain.TurnResult{
				ReplyText:  answer + " " + replyTaxDisclaimer,
				Action:     domain.ActionTaxAnswered,
				Intent:     domain.IntentUnknown,
				Confidence: cls.Confidence,
			}
		}
		if err != nil {
			log.Printf("dialog: tax answer engine failed, deflecting: %v", err)
			o.metrics.ProviderError("answers", "error")
		}
	}
	return domain.TurnResult{
		ReplyText:  replyTaxRejected,
		Action:     domain.ActionTaxRejected,
		Intent:     domain.IntentUnknown,
		Confidence: cls.Confidence,
	}
}

func (o *Orchestrator) handleBooking(ctx context.Context, req domain.TurnRequest, utterance string, out *domain.Context, cls classify.Result) domain.TurnResult {
	base := domain.TurnResult{Intent: domain.IntentBooking, Confidence: cls.Confidence}

	accountantID, staffName, err := o.resolveBookingStaff(ctx, out)
	if err != nil {
		log.Printf("dialog: booking staff resolution failed: %v", err)
		base.ReplyText = replyBookingImpossible
		base.Action = domain.ActionClarification
		base.Err = err.Error()
		return base
	}

	notes, _ := policy.RedactPII("Prenotazione telefonica: " + utterance)
	outcome, err := o.booking.Resolve(ctx, booking.Request{
		Slots:           out.Slots,
		ClientID:        out.KnownClientID,
		AccountantID:    accountantID,
		DurationMinutes: o.defaultDuration,
		ExplicitTime:    out.Slots[domain.SlotTime] != "",
		Today:           o.now(),
		Notes:           notes,
	})
	if errors.Is(err, booking.ErrMissingParty) {
		base.ReplyText = replyBookingImpossible
		base.Action = domain.ActionClarification
		return base
	}
	if err != nil {
		log.Printf("dialog: booking failed (session=%s): %v", req.SessionID, err)
		base.ReplyText = replyBookingImpossible
		base.Action = domain.ActionClarification
		base.Err = err.Error()
		return base
	}

	switch outcome.Kind {
	case booking.OutcomeCreated:
		base.ReplyText = replyCreated(outcome.Appointment, staffName, outcome.Adjusted, outcome.DateAssumed)
		base.Action = domain.ActionBookingCreated
	case booking.OutcomeNeedsInfo:
		base.ReplyText = replyNeedsInfo(outcome.Missing)
		base.Action = domain.ActionClarification
	case booking.OutcomeOutOfHours:
		base.ReplyText = replyOutOfHours(outcome.Hour, o.openHour, o.closeHour)
		base.Action = domain.ActionSlotUnavailable
	case booking.OutcomeConflict:
		base.ReplyText = replyConflict(outcome.Candidates)
		base.Action = domain.ActionSlotUnavailable
	default:
		base.ReplyText = replyBookingImpossible
		base.Action = domain.ActionClarification
	}
	return base
}

// resolveBookingStaff picks the accountant an appointment attaches to: a
// named one first, then the client's assigned one, then any active staff.
func (o *Orchestrator) resolveBookingStaff(ctx context.Context, out *domain.Context) (id, name string, err error) {
	if named := out.Slots[domain.SlotAccountantName]; named != "" {
		staff, ferr := o.store.FindAccountantByName(ctx, named)
		if ferr == nil {
			return staff.ID, staff.Name, nil
		}
		if !errors.Is(ferr, store.ErrNotFound) {
			return "", "", fmt.Errorf("accountant lookup: %w", ferr)
		}
	}
	if out.KnownAccountantID != "" {
		return out.KnownAccountantID, "", nil
	}
	active, err := o.store.ListActiveAccountants(ctx)
	if err != nil {
		return "", "", fmt.Errorf("list staff: %w", err)
	}
	if len(active) == 0 {
		return "", "", nil
	}
	return active[0].ID, active[0].Name, nil
}

func (o *Orchestrator) handleRouting(ctx context.Context, out *domain.Context, cls classify.Result) domain.TurnResult {
	base := domain.TurnResult{Intent: domain.IntentRouting, Confidence: cls.Confidence}

	route, err := o.directory.Route(ctx, out.Slots[domain.SlotAccountantName])
	if err != nil {
		log.Printf("dialog: routing failed: %v", err)
		base.ReplyText = replyApology
		base.Action = domain.ActionClarification
		base.Err = err.Error()
		return base
	}
	if route.Found {
		out.KnownAccountantID = route.Staff.ID
		base.ReplyText = replyStaffLocated(route.Staff)
		base.Action = domain.ActionStaffLocated
		return base
	}
	base.ReplyText = replyStaffSuggestions(route.Suggestions)
	base.Action = domain.ActionClarification
	return base
}

func (o *Orchestrator) handleOfficeInfo(ctx context.Context, utterance string, cls classify.Result) domain.TurnResult {
	base := domain.TurnResult{Intent: domain.IntentOfficeInfo, Confidence: cls.Confidence}

	info, err := o.directory.OfficeInfo(ctx, utterance)
	if err != nil {
		log.Printf("dialog: office info failed: %v", err)
		base.ReplyText = replyApology
		base.Action = domain.ActionClarification
		base.Err = err.Error()
		return base
	}
	base.ReplyText = info
	base.Action = domain.ActionOfficeInfo
	return base
}

func (o *Orchestrator) handleLead(ctx context.Context, req domain.TurnRequest, utterance string, cls classify.Result) domain.TurnResult {
	base := domain.TurnResult{
		ReplyText:  replyLead,
		Action:     domain.ActionLeadCaptured,
		Intent:     domain.IntentLead,
		Confidence: cls.Confidence,
	}

	redacted, _ := policy.RedactPII(utterance)
	if _, err := o.store.CreateLead(ctx, store.Lead{
		Phone:        req.CallerPhone,
		Category:     store.LeadInformation,
		Source:       "phone",
		InitialQuery: redacted,
	}); err != nil {
		// The caller still gets the qualification prompt; only the record is lost.
		log.Printf("dialog: lead persistence failed (session=%s): %v", req.SessionID, err)
		base.Err = err.Error()
	}
	return base
}

func informativeLength(s string) int {
	n := 0
	for _, r := range s {
		if !strings.ContainsRune(" \t\n\r", r) {
			n++
		}
	}
	return n
}
