package envelope

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		Duration time.Duration
		Expected string
	}{
		{0, "00:00:00.000"},
		{1500 * time.Millisecond, "00:00:01.500"},
		{59*time.Second + 999*time.Millisecond, "00:00:59.999"},
		{1234567 * time.Microsecond, "00:00:01.234567"},
		{1234567800 * time.Nanosecond, "00:00:01.2345678"},
		{1234567890 * time.Nanosecond, "00:00:01.2345678"},
		{90 * time.Minute, "01:30:00.000"},
		{26*time.Hour + 3*time.Minute + 4500*time.Millisecond, "1.02:03:04.500"},
		{-time.Second, "00:00:00.000"},
	}

	for _, tc := range cases {
		t.Run(tc.Expected, func(t *testing.T) {
			require.Equal(t, tc.Expected, FormatDuration(tc.Duration))
		})
	}
}

func TestFormatTime(t *testing.T) {
	local := time.FixedZone("CET", 3600)
	ts := time.Date(2024, 1, 2, 4, 5, 6, 789_123_456, local)

	require.Equal(t, "2024-01-02T03:05:06.789Z", formatTime(ts))
}
