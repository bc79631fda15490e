package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeLabels(t *testing.T) {
	labels := TimeLabels()
	require.Len(t, labels, 18)
	assert.Equal(t, "09:00", labels[0])
	assert.Equal(t, "17:30", labels[len(labels)-1])

	labels[0] = "mutated"
	assert.Equal(t, "09:00", TimeLabels()[0])
}

func TestNormalizeTimeLabel(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "09:00", want: "09:00"},
		{in: " 17:30 ", want: "17:30"},
		{in: "9:30", want: "09:30"},
		{in: "01:30 PM", want: "13:30"},
		{in: "9:00 am", want: "09:00"},
		{in: "05:30PM", want: "17:30"},
		{in: "08:30", wantErr: true},
		{in: "18:00", wantErr: true},
		{in: "09:15", wantErr: true},
		{in: "06:00 PM", wantErr: true},
		{in: "noon", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeTimeLabel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDate_JSONAndScan(t *testing.T) {
	d, err := ParseDate("2024-06-10")
	require.NoError(t, err)

	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2024-06-10"`, string(b))

	var back Date
	require.NoError(t, json.Unmarshal([]byte(`"2024-06-10"`), &back))
	assert.True(t, back.Equal(d.Time))

	var scanned Date
	require.NoError(t, scanned.Scan(time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-06-10", scanned.String())

	require.NoError(t, scanned.Scan([]byte("2024-06-11T00:00:00Z")))
	assert.Equal(t, "2024-06-11", scanned.String())

	assert.Error(t, scanned.Scan(42))
	_, err = ParseDate("10/06/2024")
	assert.Error(t, err)
}

func TestToday_UsesLocation(t *testing.T) {
	loc := time.FixedZone("ahead", 14*3600)
	today := Today(loc)
	assert.Equal(t, NewDate(time.Now().In(loc)).String(), today.String())
	assert.Equal(t, time.UTC, today.Location())
}
