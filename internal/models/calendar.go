package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Date and clock layouts used by calendar actions.
const (
	DayLayout   = "2006-01-02"
	StartLayout = "15:04"
)

// CalendarEvent is a class template: what is held, for how long, for how
// many people and at what price. Capacity 0 means unlimited.
type CalendarEvent struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	ShortDes    string          `json:"shortdes"`
	Description string          `json:"description"`
	ImageURL    string          `json:"imageurl"`
	Duration    int             `json:"duration"`
	Capacity    int             `json:"capacity"`
	Price       decimal.Decimal `json:"price"`
}

// CalendarAction is one scheduled occurrence of an event.
// Quantity is the number of booked places.
type CalendarAction struct {
	ID       int64          `json:"id"`
	Day      string         `json:"day"`
	Start    string         `json:"start"`
	EventID  int64          `json:"event_id"`
	Quantity int            `json:"quantity"`
	Periodic bool           `json:"periodic"`
	Dubbed   bool           `json:"dubbed"`
	Event    *CalendarEvent `json:"calendar_events,omitempty"`
}

// CalendarRecord is a user's booking for an action. Amount is what was
// charged at booking time and is refunded on cancellation.
type CalendarRecord struct {
	ActionID  int64           `json:"action_id"`
	UserID    int64           `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
	User      *User           `json:"users,omitempty"`
	Action    *CalendarAction `json:"calendar_actions,omitempty"`
}

// Booking is the outcome of booking or cancelling a record.
type Booking struct {
	Record  CalendarRecord  `json:"record"`
	Entry   *Transaction    `json:"transaction,omitempty"`
	Balance decimal.Decimal `json:"balance"`
}

// Rollover reports what a periodic schedule pass did.
type Rollover struct {
	Created int64 `json:"created"`
	Removed int64 `json:"removed"`
}
