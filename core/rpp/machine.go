package rpp

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/trezcool/kinerja/core"
)

// Events
const (
	EventSubmit  = "submit"
	EventApprove = "approve"
	EventReject  = "reject"
	EventRevise  = "revise" // send back to draft
)

// Decisions are the events a reviewer may apply.
var Decisions = []string{EventApprove, EventReject, EventRevise}

// transitions is the only place where status changes are defined: {from: {event: to}}.
var transitions = map[string]map[string]string{
	StatusDraft: {
		EventSubmit: StatusPending,
	},
	StatusPending: {
		EventApprove: StatusApproved,
		EventReject:  StatusRejected,
		EventRevise:  StatusDraft,
	},
	StatusRejected: {
		EventSubmit: StatusPending,
	},
}

// Transition returns the status reached by applying event to from,
// or a core.ConflictError when the event is not allowed in that status.
func Transition(from, event string) (string, error) {
	if to, ok := transitions[from][event]; ok {
		return to, nil
	}
	return "", core.NewConflictError(fmt.Sprintf("cannot %s a %s submission", event, from))
}

// Reachable returns the statuses reachable from status in one event.
func Reachable(status string) []string {
	var out []string
	for _, to := range transitions[status] {
		out = append(out, to)
	}
	return out
}

// CanBeSubmitted reports whether s may be submitted: it must be a draft or rejected,
// and every required RPP type must be uploaded.
func CanBeSubmitted(s Submission, items []Item) bool {
	if _, err := Transition(s.Status, EventSubmit); err != nil {
		return false
	}
	return allUploaded(items)
}

func allUploaded(items []Item) bool {
	uploaded := make(map[string]bool, len(RequiredTypes))
	for _, it := range items {
		if it.IsUploaded() {
			uploaded[it.Type] = true
		}
	}
	for _, typ := range RequiredTypes {
		if !uploaded[typ] {
			return false
		}
	}
	return len(uploaded) == len(RequiredTypes)
}

// CompletionPercentage is the share of uploaded items, rounded to 2 decimals. It is 0 without items.
func CompletionPercentage(items []Item) float64 {
	if len(items) == 0 {
		return 0
	}
	var uploaded int64
	for _, it := range items {
		if it.IsUploaded() {
			uploaded++
		}
	}
	pct, _ := decimal.NewFromInt(uploaded * 100).Div(decimal.NewFromInt(int64(len(items)))).Round(2).Float64()
	return pct
}

func notesRequired(decision string) bool {
	return decision == EventReject || decision == EventRevise
}

func checkReviewNotes(decision, notes string) error {
	if notesRequired(decision) && notes == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "notes", Error: "notes are required to " + decision + " a submission"})
	}
	return nil
}

func isRequiredType(typ string) bool {
	for _, t := range RequiredTypes {
		if t == typ {
			return true
		}
	}
	return false
}

func isDecision(d string) bool {
	for _, dd := range Decisions {
		if dd == d {
			return true
		}
	}
	return false
}

// computeStats builds Stats from status counts.
func computeStats(counts map[string]int) Stats {
	st := Stats{
		Draft:    counts[StatusDraft],
		Pending:  counts[StatusPending],
		Approved: counts[StatusApproved],
		Rejected: counts[StatusRejected],
	}
	st.Total = st.Draft + st.Pending + st.Approved + st.Rejected
	if st.Total > 0 {
		reviewed := decimal.NewFromInt(int64(st.Approved+st.Rejected) * 100)
		st.CompletionRate, _ = reviewed.Div(decimal.NewFromInt(int64(st.Total))).Round(2).Float64()
	}
	return st
}
