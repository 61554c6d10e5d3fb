package domain

import (
	"fmt"

	maindomain "github.com/boddenberg/sellernotes-bot-go/internal/domain"
)

// ============================================================
// Contact form
// ============================================================

// CommChannel is the channel as offered in the form. Values are
// one-based so the zero value means "not chosen yet".
type CommChannel int

const (
	CommInPerson CommChannel = iota + 1
	CommPhone
	CommEmail
)

// ContactForm accumulates the answers turn by turn.
// UTCDateTicks must be set before the form is finalized.
type ContactForm struct {
	MeetingToday bool        `json:"meeting_today"`
	Date         string      `json:"date,omitempty"`
	UTCDateTicks int64       `json:"utc_date_ticks,omitempty"`
	Channel      CommChannel `json:"channel,omitempty"`
	PersonName   string      `json:"person_name,omitempty"`
	Details      string      `json:"details,omitempty"`
	CustomerID   int         `json:"customer_id,omitempty"`
}

// ToMessage converts a finished form into the persisted record.
func (f *ContactForm) ToMessage() (*maindomain.ContactMessage, error) {
	if f.UTCDateTicks <= 0 {
		return nil, &maindomain.ErrValidation{Field: string(FieldDate), Message: "date not resolved"}
	}
	if f.Channel < CommInPerson || f.Channel > CommEmail {
		return nil, &maindomain.ErrValidation{Field: string(FieldChannel), Message: fmt.Sprintf("invalid channel %d", f.Channel)}
	}
	return &maindomain.ContactMessage{
		CustomerID:       f.CustomerID,
		UTCDateTicks:     f.UTCDateTicks,
		Text:             f.Details,
		PersonOfCustomer: f.PersonName,
		Channel:          maindomain.Channel(f.Channel - 1),
	}, nil
}

// ErrFormCanceled is returned by the form flow when the user quits.
// Partial holds whatever had been filled in.
type ErrFormCanceled struct {
	Field   FormField
	Partial ContactForm
}

func (e *ErrFormCanceled) Error() string {
	return fmt.Sprintf("form canceled at field %s", e.Field)
}
