// Package nlu extracts structured booking hints from free-form Spanish
// customer messages using an LLM, with a provider fallback chain. Hints are
// advisory: the conversation engine validates every field against the catalog
// before trusting it.
package nlu

import "context"

// Intent classifies the customer's overall goal for the message.
type Intent string

const (
	IntentBook    Intent = "book"
	IntentCancel  Intent = "cancel"
	IntentGreet   Intent = "greet"
	IntentOther   Intent = "other"
	IntentUnknown Intent = ""
)

// StaffIntent distinguishes "with Carmen" from "anyone works" from silence.
type StaffIntent string

const (
	StaffRequested   StaffIntent = "requested"
	StaffAny         StaffIntent = "any"
	StaffUnspecified StaffIntent = ""
)

// Hint carries the fields the model extracted from one message. Every field
// may be empty; empty means the model saw nothing for it.
type Hint struct {
	Intent      Intent      `json:"intent"`
	Salon       string      `json:"salon"`
	Category    string      `json:"category"`
	Service     string      `json:"service"`
	StaffName   string      `json:"staff_name"`
	StaffIntent StaffIntent `json:"staff_intent"`
	ASAP        bool        `json:"asap"`
}

// Turn is the extraction input: the new message plus a short transcript of
// the recent conversation for context.
type Turn struct {
	Message    string
	Transcript []string
	Salons     []string
	Categories []string
	StaffNames []string
}

// Extractor turns a customer message into a Hint.
type Extractor interface {
	Extract(ctx context.Context, turn Turn) (Hint, error)
}
