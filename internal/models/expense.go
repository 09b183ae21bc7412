package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// Expense represents a financial expense record owned by a single user.
// Date is always in the canonical form produced by dates.Normalize.
type Expense struct {
	ID             int64          `json:"id"`
	UserID         int64          `json:"user_id"`
	Amount         float64        `json:"amount"`
	Description    string         `json:"description"`
	Date           string         `json:"date"`
	Category       string         `json:"category"`
	RecurrenceFlag RecurrenceFlag `json:"recurrence_flag,omitempty"`
}

// User represents a user account.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// RecurrenceFlag marks how often an expense repeats.
type RecurrenceFlag string

const (
	RecurrenceNone    RecurrenceFlag = "none"
	RecurrenceDaily   RecurrenceFlag = "daily"
	RecurrenceWeekly  RecurrenceFlag = "weekly"
	RecurrenceMonthly RecurrenceFlag = "monthly"
	RecurrenceYearly  RecurrenceFlag = "yearly"
)

// Valid reports whether f is one of the known recurrence flags.
func (f RecurrenceFlag) Valid() bool {
	switch f {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly, RecurrenceYearly:
		return true
	}
	return false
}

// ExpenseFilter narrows a listing of one owner's expenses. Empty fields do not
// constrain the result. StartDate and EndDate must be canonical dates.
type ExpenseFilter struct {
	StartDate string
	EndDate   string
	Category  string
}

// Optional is a request field that distinguishes "absent" from "null" from a
// concrete value.
type Optional[T any] struct {
	Value   T
	Present bool
	Null    bool
}

// Some returns a present, non-null Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Present: true}
}

// IsSet reports whether the field carries a usable value.
func (o Optional[T]) IsSet() bool {
	return o.Present && !o.Null
}

// UnmarshalJSON records presence and decodes the value. A JSON null leaves
// Value at its zero value and sets Null.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Present = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Null = true
		var zero T
		o.Value = zero
		return nil
	}
	o.Null = false
	return json.Unmarshal(data, &o.Value)
}

// ExpensePatch is a partial update. Only set fields are applied.
type ExpensePatch struct {
	Amount         Optional[float64]
	Description    Optional[string]
	Date           Optional[string]
	Category       Optional[string]
	RecurrenceFlag Optional[RecurrenceFlag]
}

// Apply copies every set field of p onto e.
func (p ExpensePatch) Apply(e *Expense) {
	if p.Amount.IsSet() {
		e.Amount = p.Amount.Value
	}
	if p.Description.IsSet() {
		e.Description = p.Description.Value
	}
	if p.Date.IsSet() {
		e.Date = p.Date.Value
	}
	if p.Category.IsSet() {
		e.Category = p.Category.Value
	}
	if p.RecurrenceFlag.IsSet() {
		e.RecurrenceFlag = p.RecurrenceFlag.Value
	}
}
