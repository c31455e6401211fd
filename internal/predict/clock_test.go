package predict

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMarketCalendar(t *testing.T) {
	cal, err := NewMarketCalendar("14:30", "21:00")
	require.NoError(t, err)
	assert.Equal(t, DefaultMarketCalendar(), cal)

	_, err = NewMarketCalendar("half past two", "21:00")
	assert.Error(t, err)
}

func TestIsOpen(t *testing.T) {
	cal := DefaultMarketCalendar()

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"weekday before open", time.Date(2025, 11, 20, 14, 29, 0, 0, time.UTC), false},
		{"weekday at open", time.Date(2025, 11, 20, 14, 30, 0, 0, time.UTC), true},
		{"weekday mid session", time.Date(2025, 11, 20, 18, 0, 0, 0, time.UTC), true},
		{"weekday at close", time.Date(2025, 11, 20, 21, 0, 0, 0, time.UTC), false},
		{"saturday mid session", time.Date(2025, 11, 22, 18, 0, 0, 0, time.UTC), false},
		{"sunday mid session", time.Date(2025, 11, 23, 18, 0, 0, 0, time.UTC), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cal.IsOpen(tt.now))
		})
	}
}

func TestShouldLock(t *testing.T) {
	cal := DefaultMarketCalendar()

	tests := []struct {
		name string
		date string
		now  time.Time
		want bool
	}{
		{"past date always locks", "2025-11-19", time.Date(2025, 11, 20, 3, 0, 0, 0, time.UTC), true},
		{"past weekend date locks", "2025-11-22", time.Date(2025, 11, 24, 3, 0, 0, 0, time.UTC), true},
		{"future date never locks", "2025-11-21", time.Date(2025, 11, 20, 18, 0, 0, 0, time.UTC), false},
		{"same day before open", "2025-11-20", time.Date(2025, 11, 20, 14, 29, 59, 0, time.UTC), false},
		{"same day at open", "2025-11-20", time.Date(2025, 11, 20, 14, 30, 0, 0, time.UTC), true},
		{"same day after close still locked", "2025-11-20", time.Date(2025, 11, 20, 22, 0, 0, 0, time.UTC), true},
		{"same day weekend stays unlocked", "2025-11-22", time.Date(2025, 11, 22, 18, 0, 0, 0, time.UTC), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cal.ShouldLock(tt.date, tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := cal.ShouldLock("November 20th", time.Now())
	assert.Error(t, err)
}
