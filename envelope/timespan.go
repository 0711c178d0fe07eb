package envelope

import (
	"fmt"
	"strings"
	"time"
)

// FormatDuration renders d the way the ingestion endpoint parses a TimeSpan:
// [d.]hh:mm:ss.fffffff with up to four trailing zeros of the fraction dropped.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second
	d -= seconds * time.Second
	ticks := d / 100 // 100ns

	fraction := fmt.Sprintf("%07d", ticks)
	for i := 0; i < 4 && strings.HasSuffix(fraction, "0"); i++ {
		fraction = fraction[:len(fraction)-1]
	}

	sb := strings.Builder{}
	if days > 0 {
		fmt.Fprintf(&sb, "%d.", days)
	}
	fmt.Fprintf(&sb, "%02d:%02d:%02d.%s", hours, minutes, seconds, fraction)

	return sb.String()
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
