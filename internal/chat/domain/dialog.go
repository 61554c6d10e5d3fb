package domain

import (
	"fmt"
	"time"

	maindomain "github.com/boddenberg/sellernotes-bot-go/internal/domain"
)

// ============================================================
// Session: per user state that survives between turns
// ============================================================

// Session is keyed by channel + user identity.
// AccessToken empty means unauthenticated. Dialog is nil when no
// conversation is in progress; the next message starts a new one.
type Session struct {
	Key         string       `json:"key"`
	AccessToken string       `json:"access_token,omitempty"`
	Dialog      *DialogState `json:"dialog,omitempty"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// ============================================================
// Dialog state: every suspension point is a tag below
// ============================================================

// MainStage is the step of the orchestrating flow that is suspended.
type MainStage string

const (
	StageLogin  MainStage = "login"
	StageSearch MainStage = "search"
	StageForm   MainStage = "form"
)

// LoginStage tracks the authentication flow.
type LoginStage string

const (
	LoginAwaitingToken LoginStage = "awaiting_token"
	LoginAwaitingCode  LoginStage = "awaiting_code"
	LoginAuthenticated LoginStage = "authenticated"
)

// SearchStage tracks the customer search flow.
type SearchStage string

const (
	SearchPrompting      SearchStage = "prompting"
	SearchAwaitingQuery  SearchStage = "awaiting_query"
	SearchAwaitingChoice SearchStage = "awaiting_choice"
	SearchResolved       SearchStage = "resolved"
	SearchUnresolved     SearchStage = "unresolved"
)

// FormField names a field of the contact form, in prompt order.
type FormField string

const (
	FieldMeetingToday FormField = "meeting_today"
	FieldDate         FormField = "date"
	FieldChannel      FormField = "channel"
	FieldPersonName   FormField = "person_name"
	FieldDetails      FormField = "details"
)

// LoginState is the persisted state of the authentication flow.
type LoginState struct {
	Stage LoginStage `json:"stage"`
}

// SearchState is the persisted state of the search flow.
// Candidates is only populated while awaiting a choice.
type SearchState struct {
	Stage      SearchStage           `json:"stage"`
	Attempt    int                   `json:"attempt"`
	Candidates []maindomain.Customer `json:"candidates,omitempty"`
}

// FormState is the persisted state of the contact form flow.
type FormState struct {
	Field FormField   `json:"field"`
	Form  ContactForm `json:"form"`
}

// DialogState is the state of one end-to-end conversation.
type DialogState struct {
	Stage     MainStage            `json:"stage"`
	Login     *LoginState          `json:"login,omitempty"`
	Search    *SearchState         `json:"search,omitempty"`
	Form      *FormState           `json:"form,omitempty"`
	Customer  *maindomain.Customer `json:"customer,omitempty"`
	StartedAt time.Time            `json:"started_at"`
}

// ErrUnknownStage is returned when persisted state carries a tag this
// build does not know, e.g. after a rollback.
type ErrUnknownStage struct {
	Flow  string
	Stage string
}

func (e *ErrUnknownStage) Error() string {
	return fmt.Sprintf("unknown %s stage: %q", e.Flow, e.Stage)
}
