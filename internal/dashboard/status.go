package dashboard

import (
	"math"
	"time"
)

// Renewal is an entity's renewal status.
type Renewal string

const (
	RenewalSafe    Renewal = "safe"
	RenewalWarning Renewal = "warning"
	RenewalExpired Renewal = "expired"
	RenewalUnknown Renewal = "unknown"
)

var dateLayouts = []string{"2006-01-02", "2006/01/02", "2006-1-2", time.RFC3339}

// Classify compares a renewal date against today. days is negative once
// expired and zero for unparseable dates.
func Classify(date string, warningDays int, now time.Time) (Renewal, int) {
	var renew time.Time
	parsed := false
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, date, now.Location()); err == nil {
			renew, parsed = t, true
			break
		}
	}
	if !parsed {
		return RenewalUnknown, 0
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	day := time.Date(renew.Year(), renew.Month(), renew.Day(), 0, 0, 0, 0, now.Location())
	days := int(math.Round(day.Sub(today).Hours() / 24))

	switch {
	case days < 0:
		return RenewalExpired, days
	case days <= warningDays:
		return RenewalWarning, days
	default:
		return RenewalSafe, days
	}
}
