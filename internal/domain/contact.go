package domain

import "time"

// ============================================================
// Contact events
// ============================================================

// Channel is the persisted communication channel of a contact event.
// Values are zero-based on the wire.
type Channel int

const (
	ChannelInPerson Channel = iota
	ChannelPhone
	ChannelByEmail
)

func (c Channel) String() string {
	switch c {
	case ChannelInPerson:
		return "in_person"
	case ChannelPhone:
		return "phone"
	case ChannelByEmail:
		return "email"
	}
	return "unknown"
}

// ContactMessage is the record handed to the persistence sink.
type ContactMessage struct {
	CustomerID       int     `json:"customer_id"`
	UTCDateTicks     int64   `json:"utc_date_ticks"`
	Text             string  `json:"text"`
	PersonOfCustomer string  `json:"person_of_customer"`
	Channel          Channel `json:"channel"`
}

// SaveResult is what the sink reports back after a save.
type SaveResult struct {
	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// HasErrors reports whether the sink attached an error message.
func (r *SaveResult) HasErrors() bool {
	return r.ErrorMessage != ""
}

// LoginResult is returned by the identity exchange.
type LoginResult struct {
	Token   string `json:"id_token"`
	Success bool   `json:"success"`
}

// ============================================================
// Ticks: 100ns intervals since 0001-01-01 00:00:00 UTC
// ============================================================

const (
	ticksPerSecond = 10_000_000
	// seconds between 0001-01-01 and the Unix epoch
	epochOffsetSeconds = 62_135_596_800
)

// UTCTicks converts t into the tick count stored in ContactMessage.
func UTCTicks(t time.Time) int64 {
	u := t.UTC()
	return (u.Unix()+epochOffsetSeconds)*ticksPerSecond + int64(u.Nanosecond())/100
}

// FromUTCTicks is the inverse of UTCTicks.
func FromUTCTicks(ticks int64) time.Time {
	secs := ticks/ticksPerSecond - epochOffsetSeconds
	nanos := (ticks % ticksPerSecond) * 100
	return time.Unix(secs, nanos).UTC()
}
