package gcal

import (
	"context"
	"fmt"
	"time"

	googlecalendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const maxLookupResults = 10

// EventsService is the part of the Google Calendar API the exporter needs.
type EventsService interface {
	// List returns events matching summary that start within [timeMin, timeMax).
	List(ctx context.Context, calendarID, summary string, timeMin, timeMax time.Time) ([]*googlecalendar.Event, error)
	Insert(ctx context.Context, calendarID string, event *googlecalendar.Event) (*googlecalendar.Event, error)
}

type googleEvents struct {
	events *googlecalendar.EventsService
}

// NewEventsService authenticates with a service account. Inline JSON
// credentials win over a credentials file.
func NewEventsService(ctx context.Context, credentialsJSON, credentialsFile string) (EventsService, error) {
	opts := []option.ClientOption{option.WithScopes(googlecalendar.CalendarScope)}

	switch {
	case credentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	case credentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	default:
		return nil, ErrNoCredentials
	}

	svc, err := googlecalendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating google calendar service %w", err)
	}

	return &googleEvents{events: svc.Events}, nil
}

func (g *googleEvents) List(ctx context.Context, calendarID, summary string, timeMin, timeMax time.Time) ([]*googlecalendar.Event, error) {
	res, err := g.events.List(calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		Q(summary).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(maxLookupResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

func (g *googleEvents) Insert(ctx context.Context, calendarID string, event *googlecalendar.Event) (*googlecalendar.Event, error) {
	return g.events.Insert(calendarID, event).Context(ctx).Do()
}
