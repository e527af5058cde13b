package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	loc, err := time.LoadLocation("America/Mexico_City")
	require.NoError(t, err)

	tests := []struct {
		name    string
		input   string
		loc     *time.Location
		want    time.Time
		wantErr bool
	}{
		{
			name:  "utc when no location",
			input: "2024-03-15",
			want:  time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "midnight in the billing zone",
			input: "2024-03-15",
			loc:   loc,
			want:  time.Date(2024, time.March, 15, 0, 0, 0, 0, loc),
		},
		{
			name:    "rejects other layouts",
			input:   "15/03/2024",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.input, tt.loc)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestStartOfDay(t *testing.T) {
	loc, err := time.LoadLocation("America/Mexico_City")
	require.NoError(t, err)

	in := time.Date(2024, time.March, 15, 23, 59, 59, 999, loc)
	got := StartOfDay(in)
	assert.Equal(t, time.Date(2024, time.March, 15, 0, 0, 0, 0, loc), got)
	assert.Equal(t, loc, got.Location())
}

func TestFormatTime(t *testing.T) {
	ts := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-15T10:00:00Z", FormatTime(ts))

	parsed, err := ParseTime("2024-03-15T10:00:00Z")
	require.NoError(t, err)
	assert.True(t, ts.Equal(parsed))
}
