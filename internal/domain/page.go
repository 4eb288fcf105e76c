package domain

import "strings"

// SortKey orders records by creation time, then by identifier.
type SortKey struct {
	Millis int64
	ID     string
}

// Compare returns -1, 0 or +1 depending on whether k sorts before, equal to,
// or after other.
func (k SortKey) Compare(other SortKey) int {
	switch {
	case k.Millis < other.Millis:
		return -1
	case k.Millis > other.Millis:
		return 1
	}
	return strings.Compare(k.ID, other.ID)
}

// Less reports whether k sorts strictly before other.
func (k SortKey) Less(other SortKey) bool {
	return k.Compare(other) < 0
}

// Cursor is a decoded pagination position. A listing resumes strictly after it.
type Cursor struct {
	Millis int64
	ID     string
}

// InitialCursor sorts before every record.
var InitialCursor = Cursor{}

// IsInitial reports whether c is the start-of-listing cursor.
func (c Cursor) IsInitial() bool {
	return c.Millis == 0 && c.ID == ""
}

// Key converts the cursor to the index position it points at.
func (c Cursor) Key() SortKey {
	return SortKey{Millis: c.Millis, ID: c.ID}
}

// Page is one slice of a listing.
type Page struct {
	Items      []Transaction
	HasNext    bool
	NextCursor string // empty when HasNext is false
}
