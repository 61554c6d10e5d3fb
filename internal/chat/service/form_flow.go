package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	chatdomain "github.com/boddenberg/sellernotes-bot-go/internal/chat/domain"
	"github.com/boddenberg/sellernotes-bot-go/internal/domain"
	"github.com/boddenberg/sellernotes-bot-go/internal/infra/observability"
	"github.com/boddenberg/sellernotes-bot-go/internal/textfold"

	"go.uber.org/zap"
)

// ============================================================
// FormFlow: the contact event form
// ============================================================
//
// Fields are asked one at a time in the order of formFields. A field may
// be inactive for the current answers (the date is skipped when the
// meeting happened today) and may reject input; a rejected answer keeps
// the flow on the same field.

// formField describes one question of the form.
type formField struct {
	name chatdomain.FormField
	// prompt is the question text.
	prompt func() string
	// active reports whether the field is asked; nil means always.
	active func(form *chatdomain.ContactForm) bool
	// skip runs when the field is not active.
	skip func(f *FormFlow, form *chatdomain.ContactForm)
	// apply validates text and stores it. The returned string is optional
	// feedback posted after a valid answer.
	apply func(f *FormFlow, form *chatdomain.ContactForm, text string) (string, error)
}

// channelOption is one selectable communication channel.
type channelOption struct {
	channel chatdomain.CommChannel
	label   string
	terms   []string
}

var channelOptions = []channelOption{
	{channel: chatdomain.CommInPerson, label: "Osobně", terms: []string{"osobne", "o"}},
	{channel: chatdomain.CommPhone, label: "Telefonicky", terms: []string{"telefon", "tel", "t"}},
	{channel: chatdomain.CommEmail, label: "E-mailem", terms: []string{"email", "mail", "e"}},
}

var (
	yesWords    = []string{"ano", "a", "jo", "yes", "y"}
	noWords     = []string{"ne", "n", "no"}
	cancelWords = []string{"zrusit", "konec", "quit", "cancel"}
	helpWords   = []string{"pomoc", "napoveda", "help", "?"}
)

var formFields = []formField{
	{
		name:   chatdomain.FieldMeetingToday,
		prompt: func() string { return msgFormMeetingToday },
		apply: func(_ *FormFlow, form *chatdomain.ContactForm, text string) (string, error) {
			key := textfold.Fold(text)
			switch {
			case oneOf(key, yesWords):
				form.MeetingToday = true
			case oneOf(key, noWords):
				form.MeetingToday = false
			default:
				return "", &domain.ErrValidation{Field: string(chatdomain.FieldMeetingToday), Message: msgFormBadYesNo}
			}
			return "", nil
		},
	},
	{
		name:   chatdomain.FieldDate,
		prompt: func() string { return msgFormDate },
		active: func(form *chatdomain.ContactForm) bool { return !form.MeetingToday },
		skip: func(f *FormFlow, form *chatdomain.ContactForm) {
			now := f.now().In(f.loc)
			form.Date = FormatCzechDateTime(now)
			form.UTCDateTicks = domain.UTCTicks(now)
		},
		apply: func(f *FormFlow, form *chatdomain.ContactForm, text string) (string, error) {
			if t, ok := ParseStrictDate(text, f.now().In(f.loc)); ok {
				form.Date = FormatCzechDateTime(t)
				form.UTCDateTicks = domain.UTCTicks(t)
				return "", nil
			}
			if t, ok := ResolveDayPhrase(text, f.now().In(f.loc)); ok {
				form.Date = FormatCzechDateTime(t)
				form.UTCDateTicks = domain.UTCTicks(t)
				return fmt.Sprintf(msgFormDateInferred, FormatCzechDate(t)), nil
			}
			return "", &domain.ErrValidation{Field: string(chatdomain.FieldDate), Message: msgFormBadDate}
		},
	},
	{
		name:   chatdomain.FieldChannel,
		prompt: channelPrompt,
		apply: func(_ *FormFlow, form *chatdomain.ContactForm, text string) (string, error) {
			c, ok := parseChannel(text)
			if !ok {
				return "", &domain.ErrValidation{Field: string(chatdomain.FieldChannel), Message: msgFormBadChannel}
			}
			form.Channel = c
			return "", nil
		},
	},
	{
		name:   chatdomain.FieldPersonName,
		prompt: func() string { return msgFormPersonName },
		apply: func(_ *FormFlow, form *chatdomain.ContactForm, text string) (string, error) {
			v := strings.TrimSpace(text)
			if v == "" {
				return "", &domain.ErrValidation{Field: string(chatdomain.FieldPersonName), Message: msgFormEmpty}
			}
			form.PersonName = v
			return "", nil
		},
	},
	{
		name:   chatdomain.FieldDetails,
		prompt: func() string { return msgFormDetails },
		apply: func(_ *FormFlow, form *chatdomain.ContactForm, text string) (string, error) {
			v := strings.TrimSpace(text)
			if v == "" {
				return "", &domain.ErrValidation{Field: string(chatdomain.FieldDetails), Message: msgFormEmpty}
			}
			form.Details = v
			return "", nil
		},
	},
}

// FormFlow implements the contact form dialog.
type FormFlow struct {
	now     func() time.Time
	loc     *time.Location
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewFormFlow creates the form flow. now is the clock used for "today";
// loc is the user's time zone for parsing dates.
func NewFormFlow(now func() time.Time, loc *time.Location, metrics *observability.Metrics, logger *zap.Logger) *FormFlow {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &FormFlow{
		now:     now,
		loc:     loc,
		metrics: metrics,
		logger:  logger,
	}
}

// Start creates an empty form and asks the first question.
func (f *FormFlow) Start(ctx context.Context, sess *chatdomain.Session, st *chatdomain.FormState, out *Outbox) Step[*chatdomain.ContactForm] {
	st.Form = chatdomain.ContactForm{}
	return f.advance(st, 0, out)
}

// Resume applies the answer to the current field.
func (f *FormFlow) Resume(ctx context.Context, sess *chatdomain.Session, st *chatdomain.FormState, text string, out *Outbox) Step[*chatdomain.ContactForm] {
	idx := fieldIndex(st.Field)
	if idx < 0 {
		return Failed[*chatdomain.ContactForm](&chatdomain.ErrUnknownStage{Flow: "form", Stage: string(st.Field)})
	}
	field := formFields[idx]

	key := textfold.Fold(text)
	switch {
	case oneOf(key, cancelWords):
		f.logger.Info("form canceled",
			zap.String("session", sess.Key),
			zap.String("field", string(st.Field)),
		)
		return Failed[*chatdomain.ContactForm](&chatdomain.ErrFormCanceled{Field: st.Field, Partial: st.Form})
	case oneOf(key, helpWords):
		out.Post(msgFormHelp)
		out.Post(field.prompt())
		return Continue[*chatdomain.ContactForm]()
	}

	feedback, err := field.apply(f, &st.Form, text)
	if err != nil {
		f.metrics.IncrFormRejection(string(field.name))
		out.Post(validationMessage(err))
		out.Post(field.prompt())
		return Continue[*chatdomain.ContactForm]()
	}
	if feedback != "" {
		out.Post(feedback)
	}
	return f.advance(st, idx+1, out)
}

// advance moves to the first active field at or after from, running skip
// hooks on the way. When no field is left the form is complete.
func (f *FormFlow) advance(st *chatdomain.FormState, from int, out *Outbox) Step[*chatdomain.ContactForm] {
	for i := from; i < len(formFields); i++ {
		field := formFields[i]
		if field.active != nil && !field.active(&st.Form) {
			if field.skip != nil {
				field.skip(f, &st.Form)
			}
			continue
		}
		st.Field = field.name
		out.Post(field.prompt())
		return Continue[*chatdomain.ContactForm]()
	}

	st.Field = ""
	form := st.Form
	return Done(&form)
}

func fieldIndex(name chatdomain.FormField) int {
	for i, f := range formFields {
		if f.name == name {
			return i
		}
	}
	return -1
}

func channelPrompt() string {
	var b strings.Builder
	b.WriteString(msgFormChannel)
	for i, o := range channelOptions {
		b.WriteString("\n")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(o.label)
	}
	return b.String()
}

// parseChannel accepts the option number, its label or one of its terms.
func parseChannel(text string) (chatdomain.CommChannel, bool) {
	key := textfold.Fold(strings.TrimSuffix(strings.TrimSpace(text), "."))
	if n, err := strconv.Atoi(key); err == nil {
		if n >= 1 && n <= len(channelOptions) {
			return channelOptions[n-1].channel, true
		}
		return 0, false
	}
	for _, o := range channelOptions {
		if key == textfold.Fold(o.label) {
			return o.channel, true
		}
		for _, t := range o.terms {
			if key == textfold.Fold(t) {
				return o.channel, true
			}
		}
	}
	return 0, false
}

func validationMessage(err error) string {
	var v *domain.ErrValidation
	if errors.As(err, &v) {
		return v.Message
	}
	return err.Error()
}

func oneOf(key string, words []string) bool {
	for _, w := range words {
		if key == w {
			return true
		}
	}
	return false
}
