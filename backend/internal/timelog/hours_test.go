package timelog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterInput(t *testing.T) {
	tests := []struct {
		name     string
		current  string
		proposed string
		want     string
	}{
		{"digits", "", "7", "7"},
		{"one decimal point", "7", "7.5", "7.5"},
		{"leading point", "", ".5", ".5"},
		{"second point rejected", "7.5", "7.5.", "7.5"},
		{"letter rejected", "7", "7a", "7"},
		{"minus rejected", "", "-1", ""},
		{"comma rejected", "7", "7,5", "7"},
		{"space rejected", "7", "7 ", "7"},
		{"clear", "7.5", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterInput(tt.current, tt.proposed))
		})
	}
}

func TestCommitHours(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"7", "7.00"},
		{"7.0", "7.00"},
		{"7.5", "7.50"},
		{"7.", "7.00"},
		{".5", "0.50"},
		{"", "0.00"},
		{".", "0.00"},
		{"  8 ", "8.00"},
		{"24", "24.00"},
		{"30", "24.00"},
		{"24.01", "24.00"},
		{"1.005", "1.01"},
		{"2.344", "2.34"},
		{"-3", "0.00"},
		{"abc", "0.00"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatHours(CommitHours(tt.raw)))
		})
	}
}

func TestParseStoredHours(t *testing.T) {
	v, err := ParseStoredHours("7.50")
	require.NoError(t, err)
	assert.Equal(t, "7.50", FormatHours(v))

	v, err = ParseStoredHours("")
	require.NoError(t, err)
	assert.True(t, v.IsZero())

	_, err = ParseStoredHours("24.5")
	assert.True(t, errors.Is(err, ErrHoursOutOfRange))

	_, err = ParseStoredHours("-1")
	assert.True(t, errors.Is(err, ErrHoursOutOfRange))

	_, err = ParseStoredHours("1.234")
	assert.True(t, errors.Is(err, ErrHoursPrecision))

	_, err = ParseStoredHours("seven")
	assert.True(t, errors.Is(err, ErrHoursFormat))
}

func TestParseAllocatedHours(t *testing.T) {
	v, err := ParseAllocatedHours("40.00")
	require.NoError(t, err)
	assert.Equal(t, "40.00", FormatHours(v))

	_, err = ParseAllocatedHours("-5")
	assert.True(t, errors.Is(err, ErrHoursOutOfRange))

	_, err = ParseAllocatedHours("")
	assert.True(t, errors.Is(err, ErrHoursFormat))
}

func TestHourCell_TypeAndCommit(t *testing.T) {
	var events []CellChange
	cell := NewHourCell("a1", Monday, d("0"), func(c CellChange) error {
		events = append(events, c)
		return nil
	})
	assert.Equal(t, "0.00", cell.Draft())

	cell.Type("")
	cell.Type("7")
	cell.Type("7x") // 非法字符被静默拒绝
	assert.Equal(t, "7", cell.Draft())

	change, changed := cell.Commit()
	require.True(t, changed)
	assert.Equal(t, "7.00", cell.Draft())
	assert.True(t, change.OldValue.IsZero())
	assert.Equal(t, "7.00", FormatHours(change.NewValue))
	require.Len(t, events, 1)

	// 同值再次提交不产生事件
	cell.Type("7.0")
	_, changed = cell.Commit()
	assert.False(t, changed)
	assert.Len(t, events, 1)
}

func TestHourCell_Disabled(t *testing.T) {
	called := false
	cell := NewHourCell("a1", Tuesday, d("3"), func(CellChange) error {
		called = true
		return nil
	})
	cell.SetDisabled(true)

	cell.Type("9")
	_, changed := cell.Commit()
	assert.False(t, changed)
	assert.False(t, called)
	assert.Equal(t, "3.00", cell.Draft())
	assert.Equal(t, "3.00", FormatHours(cell.Value()))
}

func TestHourCell_OnChangeErrorReverts(t *testing.T) {
	cell := NewHourCell("a1", Friday, d("2"), func(CellChange) error {
		return ErrWeekSubmitted
	})
	cell.Type("5")
	_, changed := cell.Commit()
	assert.False(t, changed)
	assert.Equal(t, "2.00", cell.Draft())
	assert.Equal(t, "2.00", FormatHours(cell.Value()))
}

func TestParseDay(t *testing.T) {
	for _, in := range []string{"monday", "Monday", "mondayHours", "mon"} {
		day, err := ParseDay(in)
		require.NoError(t, err, in)
		assert.Equal(t, Monday, day)
	}
	day, err := ParseDay("sundayHours")
	require.NoError(t, err)
	assert.Equal(t, Sunday, day)
	assert.Equal(t, "sundayHours", day.Field())

	_, err = ParseDay("someday")
	assert.ErrorIs(t, err, ErrInvalidDay)
}

func TestParseWeekStart(t *testing.T) {
	w, err := ParseWeekStart("2026-10-12")
	require.NoError(t, err)
	assert.Equal(t, testWeek, w)

	_, err = ParseWeekStart("2026-10-13")
	assert.ErrorIs(t, err, ErrWeekStartNotMon)

	_, err = ParseWeekStart("12/10/2026")
	assert.ErrorIs(t, err, ErrInvalidWeekStart)

	assert.Equal(t, "2026-10-12", FormatWeek(WeekStartOf(testWeek.AddDate(0, 0, 6))))
}
