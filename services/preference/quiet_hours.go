package preference

import (
	"fmt"
	"time"

	"beacon/models"
)

// ParseClock converts "HH:MM" (24h) to minutes after midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil || len(s) != 5 {
		return 0, fmt.Errorf("invalid clock time %q, expected HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// IsInQuietHours reports whether now falls inside the user's quiet window. Both ends are
// inclusive; a window whose start is after its end wraps past midnight.
func IsInQuietHours(p *models.Preference, now time.Time) bool {
	if p == nil || !p.QuietHours.Enabled {
		return false
	}
	start, err := ParseClock(p.QuietHours.Start)
	if err != nil {
		return false
	}
	end, err := ParseClock(p.QuietHours.End)
	if err != nil {
		return false
	}

	if tz := p.QuietHours.Timezone; tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			now = now.In(loc)
		}
	}
	minute := now.Hour()*60 + now.Minute()

	if start <= end {
		return start <= minute && minute <= end
	}
	return minute >= start || minute <= end
}
