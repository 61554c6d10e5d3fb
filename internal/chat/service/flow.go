// Package service implements the conversational flows of the seller notes
// bot and the turn processor that drives them.
//
// ============================================================
// FLOW MODEL
// ============================================================
//
// Every flow is a state machine whose state is plain data stored in the
// session (chat/domain.DialogState). A flow exposes two entry points:
//
//	Start(ctx, sess, state, out)        → Step[T]
//	Resume(ctx, sess, state, text, out) → Step[T]
//
// Start runs when a caller enters the flow, Resume when the next user
// message arrives while the flow is suspended. Both mutate the state
// in place, post user-visible text to the Outbox and return a Step:
//
//	Continue → suspended, waiting for the next message
//	Done     → finished with a value, the caller takes over
//	Failed   → finished with an error the caller decides about
//
// The orchestrator (MainFlow) composes flows by inspecting Steps instead
// of nesting calls across turns, so nothing lives on the call stack
// between messages.
package service

import (
	"fmt"

	"go.opentelemetry.io/otel"
)

var chatTracer = otel.Tracer("chat/service")

// StepStatus tells the caller what a flow did with the turn.
type StepStatus int

const (
	StepContinue StepStatus = iota
	StepDone
	StepFailed
)

func (s StepStatus) String() string {
	switch s {
	case StepContinue:
		return "continue"
	case StepDone:
		return "done"
	case StepFailed:
		return "failed"
	}
	return "unknown"
}

// Step is the outcome of one Start or Resume call.
type Step[T any] struct {
	Status StepStatus
	Value  T
	Err    error
}

// Continue suspends the flow until the next message.
func Continue[T any]() Step[T] {
	return Step[T]{Status: StepContinue}
}

// Done resolves the flow with v.
func Done[T any](v T) Step[T] {
	return Step[T]{Status: StepDone, Value: v}
}

// Failed resolves the flow with err.
func Failed[T any](err error) Step[T] {
	return Step[T]{Status: StepFailed, Err: err}
}

// Outbox collects the messages posted during a turn, in order.
type Outbox struct {
	messages []string
}

// Post appends a message.
func (o *Outbox) Post(text string) {
	o.messages = append(o.messages, text)
}

// Postf appends a formatted message.
func (o *Outbox) Postf(format string, args ...any) {
	o.Post(fmt.Sprintf(format, args...))
}

// Messages returns everything posted so far.
func (o *Outbox) Messages() []string {
	return o.messages
}

// ============================================================
// User facing texts (cs-CZ)
// ============================================================

const (
	msgLoginPrompt    = "Pro pokračování je nutné se přihlásit. Přejděte prosím do systému přes [tento odkaz](%s) a přihlaste se. Následně prosím zadejte kód z webu."
	msgLoginEmptyCode = "Kód nesmí být prázdný. Zadejte prosím kód z webu."
	msgLoginDone      = "Díky, vše je v pořádku a můžete pokračovat."

	msgSearchPrompt        = "Zadejte kód obchodního partnera, jeho DIČ nebo část názvu, ke kterému chcete připojit záznam o kontaktu."
	msgSearchNotFound      = "Nenalezen žádný partner, prosím zkuste hledat znovu"
	msgSearchChoose        = "Nalezeno více partnerů, prosím vyberete jednoho:"
	msgSearchTooMany       = "Nalezeno příliš mnoho partnerů, upřesněte prosím hledaný výraz"
	msgSearchFailed        = "Nic jsme nenašli nebo se nepodařilo získat seznam partnerů."
	msgSearchInvalidChoice = "Této volbě nerozumím."

	msgCustomerSummary = "Pracujete s partnerem:\n - %s\n - DIČ: %s\n - Kód: %d"

	msgFormMeetingToday = "Konala se schůzka dnes? (Ano/Ne)"
	msgFormDate         = "Který den proběhla schůzka? Zadejte den v týdnu nebo konkrétní datum:"
	msgFormChannel      = "Vyberte prosím komunikační kanál:"
	msgFormPersonName   = "Zadejte jméno kontaktované osoby:"
	msgFormDetails      = "Zapište podrobnosti kontaktní schůzky:"
	msgFormBadYesNo     = "Odpovězte prosím ano, nebo ne."
	msgFormBadChannel   = "Této volbě nerozumím."
	msgFormEmpty        = "Hodnota nesmí být prázdná."
	msgFormBadDate      = "Formát data není správný. Zadejte přímo datum (např. 3. 11. 2016) nebo den v týdnu (např. pondělí) nebo dnes/včera."
	msgFormDateInferred = "Používám datum %s"
	msgFormHelp         = "Formulář můžete kdykoliv ukončit slovem \"zrušit\"."
	msgFormCanceled     = "Formulář byl zrušen, záznam o kontaktu nebyl uložen."

	msgSaveFailed = "Došlo k problému při uložení"
	msgSaved      = "Kontakt byl v pořádku uložen.\n Díky za spolupráci."
)
