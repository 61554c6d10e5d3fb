package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	chatdomain "github.com/boddenberg/sellernotes-bot-go/internal/chat/domain"
	"github.com/boddenberg/sellernotes-bot-go/internal/domain"
)

// fillForm starts the form and feeds answers one by one. It returns the
// last step and everything posted after the last answer.
func fillForm(t *testing.T, h *harness, st *chatdomain.FormState, answers ...string) (Step[*chatdomain.ContactForm], *Outbox) {
	t.Helper()
	sess := authedSession()
	out := &Outbox{}
	step := h.form.Start(context.Background(), sess, st, out)
	if out.Messages()[0] != msgFormMeetingToday {
		t.Fatalf("unexpected first prompt %q", out.Messages()[0])
	}
	for _, a := range answers {
		out = &Outbox{}
		step = h.form.Resume(context.Background(), sess, st, a, out)
	}
	return step, out
}

func TestFormFlow_MeetingTodaySkipsDate(t *testing.T) {
	h := newHarness(t)
	st := &chatdomain.FormState{}

	step, out := fillForm(t, h, st, "Ano")

	if step.Status != StepContinue || st.Field != chatdomain.FieldChannel {
		t.Fatalf("expected channel prompt, got %+v field %s", step, st.Field)
	}
	if !strings.HasPrefix(out.Messages()[0], msgFormChannel) {
		t.Errorf("unexpected prompt %q", out.Messages()[0])
	}
	if st.Form.Date != "3. 11. 2016 14:30:15" {
		t.Errorf("unexpected date %q", st.Form.Date)
	}
	if st.Form.UTCDateTicks != domain.UTCTicks(thursday) {
		t.Errorf("unexpected ticks %d", st.Form.UTCDateTicks)
	}
}

func TestFormFlow_Complete(t *testing.T) {
	h := newHarness(t)
	st := &chatdomain.FormState{}

	step, _ := fillForm(t, h, st, "ne", "1. 11. 2016", "3", "Jan Novák", "Poptávka na servis")

	if step.Status != StepDone || step.Value == nil {
		t.Fatalf("expected Done, got %+v", step)
	}
	form := step.Value
	if form.MeetingToday {
		t.Error("meeting today must be false")
	}
	want := time.Date(2016, 11, 1, 0, 0, 0, 0, prague)
	if form.Date != "1. 11. 2016 00:00:00" || form.UTCDateTicks != domain.UTCTicks(want) {
		t.Errorf("unexpected date %q / %d", form.Date, form.UTCDateTicks)
	}
	if form.Channel != chatdomain.CommEmail {
		t.Errorf("expected e-mail, got %d", form.Channel)
	}
	if form.PersonName != "Jan Novák" || form.Details != "Poptávka na servis" {
		t.Errorf("unexpected texts %+v", form)
	}
	if st.Field != "" {
		t.Errorf("field must be cleared, got %s", st.Field)
	}
}

func TestFormFlow_DayPhraseFeedback(t *testing.T) {
	h := newHarness(t)
	st := &chatdomain.FormState{}

	step, out := fillForm(t, h, st, "ne", "pondělí")

	if step.Status != StepContinue || st.Field != chatdomain.FieldChannel {
		t.Fatalf("expected channel prompt, got %+v field %s", step, st.Field)
	}
	msgs := out.Messages()
	if len(msgs) != 2 || msgs[0] != "Používám datum 31. 10. 2016" {
		t.Fatalf("expected inferred date feedback, got %v", msgs)
	}
	if st.Form.Date != "31. 10. 2016 00:00:00" {
		t.Errorf("unexpected date %q", st.Form.Date)
	}
}

func TestFormFlow_DateWithoutYear(t *testing.T) {
	h := newHarness(t)
	st := &chatdomain.FormState{}

	step, _ := fillForm(t, h, st, "ne", "2. 11.")

	if step.Status != StepContinue || st.Field != chatdomain.FieldChannel {
		t.Fatalf("expected channel prompt, got %+v field %s", step, st.Field)
	}
	if st.Form.Date != "2. 11. 2016 00:00:00" {
		t.Errorf("unexpected date %q", st.Form.Date)
	}
	if st.Form.UTCDateTicks != domain.UTCTicks(time.Date(2016, 11, 2, 0, 0, 0, 0, prague)) {
		t.Errorf("unexpected ticks %d", st.Form.UTCDateTicks)
	}
}

func TestFormFlow_Rejections(t *testing.T) {
	tests := []struct {
		name      string
		answers   []string
		wantField chatdomain.FormField
		wantMsg   string
	}{
		{"yes no garbage", []string{"možná"}, chatdomain.FieldMeetingToday, msgFormBadYesNo},
		{"date garbage", []string{"ne", "někdy"}, chatdomain.FieldDate, msgFormBadDate},
		{"bare number is not a date", []string{"ne", "12"}, chatdomain.FieldDate, msgFormBadDate},
		{"slash date without year", []string{"ne", "2/3"}, chatdomain.FieldDate, msgFormBadDate},
		{"year zero", []string{"ne", "1.2.3"}, chatdomain.FieldDate, msgFormBadDate},
		{"channel out of range", []string{"ano", "4"}, chatdomain.FieldChannel, msgFormBadChannel},
		{"channel unknown", []string{"ano", "fax"}, chatdomain.FieldChannel, msgFormBadChannel},
		{"empty person", []string{"ano", "1", "   "}, chatdomain.FieldPersonName, msgFormEmpty},
		{"empty details", []string{"ano", "1", "Jan", ""}, chatdomain.FieldDetails, msgFormEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			st := &chatdomain.FormState{}

			step, out := fillForm(t, h, st, tt.answers...)

			if step.Status != StepContinue {
				t.Fatalf("expected Continue, got %s", step.Status)
			}
			if st.Field != tt.wantField {
				t.Errorf("expected to stay on %s, got %s", tt.wantField, st.Field)
			}
			msgs := out.Messages()
			if len(msgs) != 2 || msgs[0] != tt.wantMsg {
				t.Errorf("expected validation message then prompt, got %v", msgs)
			}
			if h.metrics.GetDialogSnapshot().FormRejections[string(tt.wantField)] != 1 {
				t.Error("expected rejection to be counted")
			}
		})
	}
}

func TestParseChannel(t *testing.T) {
	tests := []struct {
		input string
		want  chatdomain.CommChannel
		ok    bool
	}{
		{"1", chatdomain.CommInPerson, true},
		{"2.", chatdomain.CommPhone, true},
		{"3", chatdomain.CommEmail, true},
		{"Osobně", chatdomain.CommInPerson, true},
		{"telefonicky", chatdomain.CommPhone, true},
		{"tel", chatdomain.CommPhone, true},
		{"E-MAILEM", chatdomain.CommEmail, true},
		{"mail", chatdomain.CommEmail, true},
		{"0", 0, false},
		{"4", 0, false},
		{"dopis", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := parseChannel(tt.input)
			if ok != tt.ok || got != tt.want {
				t.Errorf("parseChannel(%q) = %d, %v; want %d, %v", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestFormFlow_Cancel(t *testing.T) {
	h := newHarness(t)
	st := &chatdomain.FormState{}

	step, _ := fillForm(t, h, st, "ano", "2", "Zrušit")

	if step.Status != StepFailed {
		t.Fatalf("expected Failed, got %s", step.Status)
	}
	var canceled *chatdomain.ErrFormCanceled
	if !errors.As(step.Err, &canceled) {
		t.Fatalf("expected ErrFormCanceled, got %v", step.Err)
	}
	if canceled.Field != chatdomain.FieldPersonName {
		t.Errorf("expected cancel at person_name, got %s", canceled.Field)
	}
	if canceled.Partial.Channel != chatdomain.CommPhone {
		t.Errorf("partial form must be kept, got %+v", canceled.Partial)
	}
}

func TestFormFlow_Help(t *testing.T) {
	h := newHarness(t)
	st := &chatdomain.FormState{}

	step, out := fillForm(t, h, st, "nápověda")

	if step.Status != StepContinue || st.Field != chatdomain.FieldMeetingToday {
		t.Fatalf("help must not advance, got %+v field %s", step, st.Field)
	}
	msgs := out.Messages()
	if len(msgs) != 2 || msgs[0] != msgFormHelp || msgs[1] != msgFormMeetingToday {
		t.Errorf("unexpected messages %v", msgs)
	}
}

func TestFormFlow_UnknownField(t *testing.T) {
	h := newHarness(t)
	st := &chatdomain.FormState{Field: "fax_number"}

	step := h.form.Resume(context.Background(), authedSession(), st, "x", &Outbox{})

	var unknown *chatdomain.ErrUnknownStage
	if !errors.As(step.Err, &unknown) {
		t.Fatalf("expected ErrUnknownStage, got %+v", step)
	}
}

func TestContactForm_ToMessage(t *testing.T) {
	h := newHarness(t)
	st := &chatdomain.FormState{}
	step, _ := fillForm(t, h, st, "ano", "telefon", "Jan", "Hovor")
	step.Value.CustomerID = 7

	msg, err := step.Value.ToMessage()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Channel != domain.ChannelPhone || msg.CustomerID != 7 || msg.PersonOfCustomer != "Jan" || msg.Text != "Hovor" {
		t.Errorf("unexpected message %+v", msg)
	}
}

func TestContactForm_ToMessageRejectsUnresolvedDate(t *testing.T) {
	for _, ticks := range []int64{0, -263554640000000} {
		form := &chatdomain.ContactForm{UTCDateTicks: ticks, Channel: chatdomain.CommPhone, PersonName: "Jan", Details: "Hovor"}
		_, err := form.ToMessage()
		var v *domain.ErrValidation
		if !errors.As(err, &v) || v.Field != string(chatdomain.FieldDate) {
			t.Errorf("ticks %d: expected date validation error, got %v", ticks, err)
		}
	}
}
