package utils

import (
	"time"

	"optscore/internal/models"
)

// Market time zones. Loaded once; fixed-offset fallbacks keep the binary usable
// on hosts without tzdata.
var (
	NewYorkLocation  *time.Location
	HongKongLocation *time.Location
	ShanghaiLocation *time.Location
)

func init() {
	NewYorkLocation = loadLocation("America/New_York", "EST", -5*60*60)
	HongKongLocation = loadLocation("Asia/Hong_Kong", "HKT", 8*60*60)
	ShanghaiLocation = loadLocation("Asia/Shanghai", "CST", 8*60*60)
}

func loadLocation(name, abbr string, offset int) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone(abbr, offset)
	}
	return loc
}

// MarketLocation returns the exchange time zone of a market.
func MarketLocation(code models.MarketCode) *time.Location {
	switch code {
	case models.MarketHK:
		return HongKongLocation
	case models.MarketCN, models.MarketCommodity:
		return ShanghaiLocation
	default:
		return NewYorkLocation
	}
}

// DateIn truncates t to midnight of its calendar date in loc.
func DateIn(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// CalendarDaysBetween returns the whole calendar days from from's date to to's
// date, both taken in loc. Negative when to is earlier.
func CalendarDaysBetween(from, to time.Time, loc *time.Location) int {
	a := DateIn(from, loc)
	b := DateIn(to, loc)
	// Compare as UTC dates so DST transitions do not shave an hour off a day.
	au := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bu := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bu.Sub(au).Hours() / 24)
}
