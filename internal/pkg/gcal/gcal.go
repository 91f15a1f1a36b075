// Package gcal upserts bin collections into a Google Calendar.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	googlecalendar "google.golang.org/api/calendar/v3"

	"github.com/adiazny/bin-calendar/internal/pkg/bins"
	"github.com/adiazny/bin-calendar/internal/pkg/calendar"
)

const (
	DefaultTimezone = "Europe/London"

	isoDate = "2006-01-02"

	// 19:00 the evening before.
	reminderMinutes = 300
	missingLink     = "N/A"
)

var (
	ErrNoCalendarID  = errors.New("google calendar id is not configured")
	ErrNoCredentials = errors.New("google credentials are not configured")
)

type Config struct {
	CalendarID      string
	CredentialsJSON string
	CredentialsFile string
	Timezone        string
}

type Exporter struct {
	Log        *logrus.Entry
	Events     EventsService
	CalendarID string
	Location   *time.Location
}

// UploadSummary counts what happened to each collection.
type UploadSummary struct {
	Inserted int
	Skipped  int
	Failed   int
}

func NewExporter(ctx context.Context, log *logrus.Entry, config Config) (*Exporter, error) {
	if config.CalendarID == "" {
		return nil, ErrNoCalendarID
	}

	location, err := loadLocation(config.Timezone)
	if err != nil {
		return nil, err
	}

	events, err := NewEventsService(ctx, config.CredentialsJSON, config.CredentialsFile)
	if err != nil {
		return nil, err
	}

	return &Exporter{
		Log:        log.WithField("component", "gcal"),
		Events:     events,
		CalendarID: config.CalendarID,
		Location:   location,
	}, nil
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultTimezone
	}
	location, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("error loading timezone %s %w", name, err)
	}
	return location, nil
}

// Upload inserts every collection not already present on the calendar.
// Existing events with the same summary on the same day are left alone.
// Failures for individual collections do not stop the rest and are returned
// joined.
func (e *Exporter) Upload(ctx context.Context, result bins.FetchResult, ref time.Time) (UploadSummary, error) {
	var (
		summary UploadSummary
		errs    []error
	)

	if len(result.Collections) == 0 {
		e.Log.Info("no upcoming collections, nothing to upload")
		return summary, nil
	}

	ref = ref.In(e.Location)

	for _, collection := range result.Collections {
		log := e.Log.WithFields(logrus.Fields{
			"bin_type": collection.BinType,
			"day":      collection.Day,
			"month":    collection.Month,
		})

		date, err := calendar.ResolveDate(collection, ref)
		if err != nil {
			log.WithError(err).Warn("skipping collection without a usable date")
			continue
		}

		title := calendar.Summary(collection)

		exists, err := e.exists(ctx, title, date)
		if err != nil {
			log.WithError(err).Error("error checking for existing event")
			summary.Failed++
			errs = append(errs, fmt.Errorf("error checking for %q on %s %w", title, date.Format(isoDate), err))
			continue
		}
		if exists {
			log.Info("event already on calendar, skipping")
			summary.Skipped++
			continue
		}

		created, err := e.Events.Insert(ctx, e.CalendarID, e.event(collection, result.AddressText, date))
		if err != nil {
			log.WithError(err).Error("error creating event")
			summary.Failed++
			errs = append(errs, fmt.Errorf("error creating %q on %s %w", title, date.Format(isoDate), err))
			continue
		}

		link := ""
		if created != nil {
			link = created.HtmlLink
		}
		log.WithField("link", link).Info("event created")
		summary.Inserted++
	}

	return summary, errors.Join(errs...)
}

func (e *Exporter) exists(ctx context.Context, title string, date time.Time) (bool, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, e.Location)
	dayEnd := dayStart.AddDate(0, 0, 1)

	events, err := e.Events.List(ctx, e.CalendarID, title, dayStart, dayEnd)
	if err != nil {
		return false, err
	}

	want := date.Format(isoDate)
	for _, existing := range events {
		if existing == nil || existing.Summary != title || existing.Start == nil {
			continue
		}
		if startDate(existing.Start) == want {
			return true, nil
		}
	}

	return false, nil
}

func startDate(start *googlecalendar.EventDateTime) string {
	if start.Date != "" {
		return start.Date
	}
	day, _, _ := strings.Cut(start.DateTime, "T")
	return day
}

func (e *Exporter) event(collection bins.CollectionEvent, address string, date time.Time) *googlecalendar.Event {
	timezone := e.Location.String()

	return &googlecalendar.Event{
		Summary:     calendar.Summary(collection),
		Location:    address,
		Description: calendar.Description(collection, missingLink),
		Start: &googlecalendar.EventDateTime{
			Date:     date.Format(isoDate),
			TimeZone: timezone,
		},
		End: &googlecalendar.EventDateTime{
			Date:     date.AddDate(0, 0, 1).Format(isoDate),
			TimeZone: timezone,
		},
		Reminders: &googlecalendar.EventReminders{
			UseDefault: false,
			Overrides: []*googlecalendar.EventReminder{
				{Method: "popup", Minutes: reminderMinutes},
			},
			ForceSendFields: []string{"UseDefault"},
		},
		Transparency: "transparent",
	}
}
