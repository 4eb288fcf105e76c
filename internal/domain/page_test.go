package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSortKey_Compare(t *testing.T) {
	tests := []struct {
		name string
		a, b SortKey
		want int
	}{
		{"earlier time", SortKey{1, "9"}, SortKey{2, "1"}, -1},
		{"later time", SortKey{3, "1"}, SortKey{2, "9"}, 1},
		{"tie broken by id", SortKey{5, "1001"}, SortKey{5, "1002"}, -1},
		{"lexicographic not numeric", SortKey{5, "10010"}, SortKey{5, "1002"}, -1},
		{"equal", SortKey{5, "1001"}, SortKey{5, "1001"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Compare(tt.b))
			assert.Equal(t, tt.want < 0, tt.a.Less(tt.b))
		})
	}
}

func TestCursor_IsInitial(t *testing.T) {
	assert.True(t, InitialCursor.IsInitial())
	assert.False(t, Cursor{Millis: 1}.IsInitial())
	assert.False(t, Cursor{ID: "1001"}.IsInitial())
	assert.True(t, InitialCursor.Key().Less(SortKey{Millis: 0, ID: "1"}))
}

func TestTransaction_Truncate(t *testing.T) {
	ts := time.Date(2025, 2, 18, 10, 41, 9, 376_999_999, time.FixedZone("X", 3600))
	tx := Transaction{ID: "1001", CreateTime: ts}.Truncate()

	assert.Equal(t, 376_000_000, tx.CreateTime.Nanosecond())
	assert.Equal(t, time.UTC, tx.CreateTime.Location())
	assert.True(t, tx.UpdateTime.IsZero())
	assert.Equal(t, ts.UnixMilli(), tx.SortKey().Millis)
	assert.Equal(t, "1001", tx.SortKey().ID)
}

func TestMillisRoundTrip(t *testing.T) {
	assert.Equal(t, int64(0), Millis(time.Time{}))
	assert.True(t, FromMillis(0).IsZero())
	assert.Equal(t, int64(1739875669376), Millis(FromMillis(1739875669376)))
}
