package domain

import (
	"time"
)

// Transaction is one financial transaction record held by the store.
// Values are copied in and out of the store; callers never share memory with it.
// ID is the external identifier issued by the identifier registry.
type Transaction struct {
	ID            string    // issued by idregistry, decimal string
	FromAccountID int64     // debited account
	ToAccountID   int64     // credited account
	Amount        int64     // minor units
	Currency      string    // ISO 4217 code, at most 3 chars
	Remark        string    // free text
	Type          int       // business type code
	Status        int       // business status code
	CreateTime    time.Time // ordering key, millisecond precision
	UpdateTime    time.Time
	Creator       int64
	Updater       int64
}

// Truncate returns a copy with both timestamps reduced to UTC millisecond
// precision, the resolution carried by cursors.
func (t Transaction) Truncate() Transaction {
	t.CreateTime = ToMillisTime(t.CreateTime)
	t.UpdateTime = ToMillisTime(t.UpdateTime)
	return t
}

// SortKey returns the position of the record in the time-ordered index.
func (t Transaction) SortKey() SortKey {
	return SortKey{Millis: Millis(t.CreateTime), ID: t.ID}
}

// Millis converts a timestamp to epoch milliseconds. The zero time maps to 0.
func Millis(ts time.Time) int64 {
	if ts.IsZero() {
		return 0
	}
	return ts.UnixMilli()
}

// ToMillisTime truncates ts to millisecond precision in UTC.
// The zero time is returned unchanged.
func ToMillisTime(ts time.Time) time.Time {
	if ts.IsZero() {
		return ts
	}
	return time.UnixMilli(ts.UnixMilli()).UTC()
}

// FromMillis is the inverse of Millis.
func FromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
