package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOffset(t *testing.T) {
	tests := []struct {
		name     string
		offset   string
		wantSecs int
		wantErr  bool
	}{
		{name: "empty is utc", offset: "", wantSecs: 0},
		{name: "positive", offset: "+03:00", wantSecs: 3 * 3600},
		{name: "negative with minutes", offset: "-05:30", wantSecs: -(5*3600 + 30*60)},
		{name: "garbage", offset: "moscow", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := ParseOffset(tt.offset)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			_, secs := time.Date(2024, 1, 1, 0, 0, 0, 0, loc).Zone()
			assert.Equal(t, tt.wantSecs, secs)
		})
	}
}

func TestFixedToday(t *testing.T) {
	loc := time.FixedZone("+03:00", 3*3600)
	c := &Fixed{T: time.Date(2024, 1, 1, 22, 30, 0, 0, time.UTC).In(loc)}
	assert.Equal(t, "2024-01-02", Today(c))

	c.Advance(24 * time.Hour)
	assert.Equal(t, "2024-01-03", Today(c))
}
