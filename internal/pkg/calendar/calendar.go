// Package calendar turns a bins.FetchResult into dated, all-day calendar
// entries and writes them as an iCalendar file.
package calendar

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adiazny/bin-calendar/internal/pkg/bins"
)

var ErrInvalidDate = errors.New("invalid collection date")

var months = map[string]time.Month{}

func init() {
	for m := time.January; m <= time.December; m++ {
		months[strings.ToLower(m.String())] = m
	}
}

// ResolveDate gives the event a year. Events are assumed to be upcoming, so a
// day and month that fall before ref's calendar day belong to the next year.
// The result is midnight UTC on the collection day.
func ResolveDate(event bins.CollectionEvent, ref time.Time) (time.Time, error) {
	fields := strings.Fields(event.Day)
	if len(fields) == 0 {
		return time.Time{}, fmt.Errorf("%w: missing day", ErrInvalidDate)
	}

	day, err := strconv.Atoi(fields[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: day %q", ErrInvalidDate, event.Day)
	}

	month, ok := months[strings.ToLower(strings.TrimSpace(event.Month))]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: month %q", ErrInvalidDate, event.Month)
	}

	today := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC)

	date, err := dateIn(ref.Year(), month, day)
	if err != nil || date.Before(today) {
		return dateIn(ref.Year()+1, month, day)
	}

	return date, nil
}

// dateIn rejects days that time.Date would normalise into another month.
func dateIn(year int, month time.Month, day int) (time.Time, error) {
	date := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if day < 1 || date.Month() != month {
		return time.Time{}, fmt.Errorf("%w: %d %s %d", ErrInvalidDate, day, month, year)
	}
	return date, nil
}

// Summary is the title used for an event in every calendar output.
func Summary(event bins.CollectionEvent) string {
	return fmt.Sprintf("%s bin collection", event.BinType)
}

// Description names the bin and links to the council page.
func Description(event bins.CollectionEvent, missingLink string) string {
	link := event.InfoLink
	if link == "" {
		link = missingLink
	}
	return fmt.Sprintf("Bin collection day for: %s (%s bin).\nLink: %s", event.BinType, event.BinColour, link)
}
