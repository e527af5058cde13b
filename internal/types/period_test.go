package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var bogota = time.FixedZone("COT", -5*60*60)

func TestNewMonthlyPeriod(t *testing.T) {
	tests := []struct {
		name      string
		at        time.Time
		loc       *time.Location
		wantStart time.Time
		wantEnd   time.Time
		wantDays  int
	}{
		{
			name:      "mid month utc",
			at:        time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC),
			loc:       time.UTC,
			wantStart: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, time.March, 31, 23, 59, 59, 0, time.UTC),
			wantDays:  31,
		},
		{
			name:      "leap february",
			at:        time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC),
			loc:       time.UTC,
			wantStart: time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, time.February, 29, 23, 59, 59, 0, time.UTC),
			wantDays:  29,
		},
		{
			name:      "utc instant that is still the previous month locally",
			at:        time.Date(2024, time.May, 1, 3, 0, 0, 0, time.UTC),
			loc:       bogota,
			wantStart: time.Date(2024, time.April, 1, 0, 0, 0, 0, bogota),
			wantEnd:   time.Date(2024, time.April, 30, 23, 59, 59, 0, bogota),
			wantDays:  30,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewMonthlyPeriod(tt.at, tt.loc)
			assert.True(t, tt.wantStart.Equal(p.Start), "start %s", p.Start)
			assert.True(t, tt.wantEnd.Equal(p.End), "end %s", p.End)
			assert.Equal(t, tt.wantDays, p.Days())
			assert.NoError(t, p.Validate())
		})
	}
}

func TestBillingPeriod_DayIndex(t *testing.T) {
	p := NewMonthlyPeriodFor(time.June, 2024, time.UTC)

	assert.Equal(t, 1, p.DayIndex(time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 15, p.DayIndex(time.Date(2024, time.June, 15, 18, 30, 0, 0, time.UTC)))
	assert.Equal(t, 30, p.DayIndex(time.Date(2024, time.June, 30, 23, 59, 59, 0, time.UTC)))
	assert.Equal(t, 0, p.DayIndex(time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 0, p.DayIndex(time.Date(2024, time.May, 31, 23, 0, 0, 0, time.UTC)))
}

func TestBillingPeriod_Overlaps(t *testing.T) {
	june := NewMonthlyPeriodFor(time.June, 2024, time.UTC)
	july := june.Next()

	assert.Equal(t, "2024-07", july.Key())
	assert.False(t, june.Overlaps(july))
	assert.True(t, june.Overlaps(june))

	straddle := BillingPeriod{
		Start: time.Date(2024, time.June, 20, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, time.July, 5, 0, 0, 0, 0, time.UTC),
	}
	assert.True(t, june.Overlaps(straddle))
	assert.True(t, july.Overlaps(straddle))
}

func TestBillingPeriod_Next_YearBoundary(t *testing.T) {
	dec := NewMonthlyPeriodFor(time.December, 2024, bogota)
	jan := dec.Next()

	assert.Equal(t, BillingMonth{Month: 1, Year: 2025}, jan.Month())
	assert.Equal(t, 31, jan.Days())
	assert.Equal(t, bogota, jan.Start.Location())
}
