package domain

import "time"

// Intent is the coarse category of what the caller wants.
type Intent string

const (
	IntentBooking    Intent = "booking"
	IntentRouting    Intent = "routing"
	IntentOfficeInfo Intent = "office_info"
	IntentLead       Intent = "lead"
	IntentUnknown    Intent = "unknown"
)

// Action marks what a turn actually did. It is the audit trail of the
// conversation and is set on every turn without exception.
type Action string

const (
	ActionGreeting        Action = "greeting"
	ActionBookingCreated  Action = "booking_created"
	ActionSlotUnavailable Action = "slot_unavailable"
	ActionStaffLocated    Action = "accountant_located"
	ActionOfficeInfo      Action = "office_info_provided"
	ActionLeadCaptured    Action = "lead_captured"
	ActionTaxRejected     Action = "tax_query_rejected"
	ActionTaxAnswered     Action = "tax_query_answered"
	ActionClarification   Action = "clarification_requested"
	ActionCallEnded       Action = "call_ended"
)

// Slot names produced by the extractor and accumulated in Context.Slots.
const (
	SlotDate           = "date"
	SlotTime           = "time"
	SlotAccountantName = "accountant_name"
	SlotTaxType        = "tax_type"
)

// HistoryEntry records one side of one turn.
type HistoryEntry struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Intent    Intent    `json:"intent,omitempty"`
	Action    Action    `json:"action,omitempty"`
}

// Context is the accumulated cross-turn state for one call. It is passed by
// value into the orchestrator and replaced wholesale with the returned copy;
// nothing mutates it concurrently.
type Context struct {
	History           []HistoryEntry    `json:"history"`
	Slots             map[string]string `json:"slots"`
	KnownClientID     string            `json:"known_client_id,omitempty"`
	KnownClientName   string            `json:"known_client_name,omitempty"`
	KnownAccountantID string            `json:"known_accountant_id,omitempty"`
	LastIntent        Intent            `json:"last_intent,omitempty"`
	LastConfidence    float64           `json:"last_confidence"`
}

// Clone returns a deep copy so registry reads never alias live state.
func (c Context) Clone() Context {
	out := c
	if c.History != nil {
		out.History = make([]HistoryEntry, len(c.History))
		copy(out.History, c.History)
	}
	if c.Slots != nil {
		out.Slots = make(map[string]string, len(c.Slots))
		for k, v := range c.Slots {
			out.Slots[k] = v
		}
	}
	return out
}

// MergeSlots overlays fresh slot values onto the cumulative set,
// last write wins per key. Empty values never clobber prior ones.
func (c *Context) MergeSlots(fresh map[string]string) {
	if len(fresh) == 0 {
		return
	}
	if c.Slots == nil {
		c.Slots = make(map[string]string, len(fresh))
	}
	for k, v := range fresh {
		if v == "" {
			continue
		}
		c.Slots[k] = v
	}
}

// TurnRequest is one inbound utterance.
type TurnRequest struct {
	Utterance   string
	SessionID   string
	CallerPhone string
	FinalTurn   bool
}

// TurnResult is what one processed turn produced.
type TurnResult struct {
	ReplyText  string
	Action     Action
	Intent     Intent
	Confidence float64
	Err        string
}
