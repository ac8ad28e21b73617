package spotify

import (
	"errors"
	"fmt"
	"time"
)

// Release date precisions reported by the catalog.
const (
	PrecisionYear  = "year"
	PrecisionMonth = "month"
	PrecisionDay   = "day"
)

// ErrInvalidReleaseDate is returned for an unknown precision or unparsable date.
var ErrInvalidReleaseDate = errors.New("invalid release date")

// ReleaseDate parses a catalog release date and zeroes the components finer
// than its precision: year gives Jan 1, month gives the 1st of the month.
func ReleaseDate(date, precision string) (time.Time, error) {
	parsed, err := parseDate(date)
	if err != nil {
		return time.Time{}, err
	}

	switch precision {
	case PrecisionYear:
		return time.Date(parsed.Year(), time.January, 1, 0, 0, 0, 0, time.UTC), nil
	case PrecisionMonth:
		return time.Date(parsed.Year(), parsed.Month(), 1, 0, 0, 0, 0, time.UTC), nil
	case PrecisionDay:
		return parsed, nil
	default:
		return time.Time{}, fmt.Errorf("%w: unknown precision %q", ErrInvalidReleaseDate, precision)
	}
}

// parseDate accepts the three shapes the catalog emits: YYYY, YYYY-MM and YYYY-MM-DD.
func parseDate(date string) (time.Time, error) {
	for _, layout := range []string{time.DateOnly, "2006-01", "2006"} {
		if t, err := time.ParseInLocation(layout, date, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidReleaseDate, date)
}
