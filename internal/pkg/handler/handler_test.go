package handler_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/adiazny/bin-calendar/internal/pkg/bins"
	"github.com/adiazny/bin-calendar/internal/pkg/calendar"
	"github.com/adiazny/bin-calendar/internal/pkg/handler"
)

var now = time.Date(2026, time.October, 15, 9, 0, 0, 0, time.UTC)

type fakeFactory struct {
	fetcher bins.Fetcher
	err     error

	source   string
	useCache bool
}

func (f *fakeFactory) Create(source string, useCache bool) (bins.Fetcher, error) {
	f.source, f.useCache = source, useCache
	if f.err != nil {
		return nil, f.err
	}
	return f.fetcher, nil
}

type fakeNotifier struct {
	calls int
	err   error
}

func (n *fakeNotifier) PublishNext(context.Context, bins.FetchResult, time.Time) error {
	n.calls++
	return n.err
}

type fetchArgs struct {
	postcode, house string
}

func newHandler(factory handler.FetcherFactory, notifier handler.Notifier, config handler.Config) *handler.Handler {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	log := logrus.NewEntry(logger)

	writer := calendar.NewWriter(log)
	writer.Now = func() time.Time { return now }

	h := &handler.Handler{
		Log:      log,
		Config:   config,
		Fetchers: factory,
		Calendar: writer,
		Now:      func() time.Time { return now },
	}
	if notifier != nil {
		h.Notifier = notifier
	}
	return h
}

func schedule() bins.FetchResult {
	return bins.FetchResult{
		AddressText: "22 Oak Street, NE8 1HH",
		Collections: []bins.CollectionEvent{
			{Day: "23 Friday", Month: "October", BinType: "Household Waste", BinColour: "green"},
		},
	}
}

func errorMessage(t *testing.T, res events.APIGatewayProxyResponse) string {
	t.Helper()

	require.Equal(t, "application/json", res.Headers["Content-Type"])
	require.False(t, res.IsBase64Encoded)

	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(res.Body), &body))
	return body["error"]
}

func TestHandler_Handle(t *testing.T) {
	tests := []struct {
		name        string
		params      map[string]string
		config      handler.Config
		result      bins.FetchResult
		fetchErr    error
		factoryErr  error
		wantStatus  int
		wantMessage string
		wantArgs    *fetchArgs
	}{
		{
			name:       "path parameters",
			params:     map[string]string{"postcode": "NE8 1HH", "housenumber": "22"},
			config:     handler.Config{Source: "gateshead"},
			result:     schedule(),
			wantStatus: http.StatusOK,
			wantArgs:   &fetchArgs{"NE8 1HH", "22"},
		},
		{
			name:       "path parameters override environment",
			params:     map[string]string{"postcode": "NE8 1HH", "housenumber": "22"},
			config:     handler.Config{Source: "gateshead", DefaultPostcode: "NE9 5AB", DefaultHouseNumber: "7"},
			result:     schedule(),
			wantStatus: http.StatusOK,
			wantArgs:   &fetchArgs{"NE8 1HH", "22"},
		},
		{
			name:       "environment fallback",
			config:     handler.Config{Source: "gateshead", DefaultPostcode: "NE9 5AB", DefaultHouseNumber: "7"},
			result:     schedule(),
			wantStatus: http.StatusOK,
			wantArgs:   &fetchArgs{"NE9 5AB", "7"},
		},
		{
			name:        "missing both",
			config:      handler.Config{Source: "gateshead"},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Missing required parameters: postcode and housenumber",
		},
		{
			name:        "missing postcode",
			params:      map[string]string{"housenumber": "22"},
			config:      handler.Config{Source: "gateshead"},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Missing required path parameter: postcode",
		},
		{
			name:        "missing house number",
			params:      map[string]string{"postcode": "NE8 1HH"},
			config:      handler.Config{Source: "gateshead"},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Missing required path parameter: housenumber",
		},
		{
			name:        "unknown source",
			params:      map[string]string{"postcode": "NE8 1HH", "housenumber": "22"},
			config:      handler.Config{Source: "newcastle"},
			factoryErr:  fmt.Errorf("%w %q", bins.ErrUnknownSource, "newcastle"),
			wantStatus:  http.StatusBadRequest,
			wantMessage: `Invalid configuration: unknown data source "newcastle"`,
		},
		{
			name:        "fetcher construction fails",
			params:      map[string]string{"postcode": "NE8 1HH", "housenumber": "22"},
			factoryErr:  errors.New("bad cookie jar"),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "Internal server error creating fetcher.",
		},
		{
			name:        "no address",
			params:      map[string]string{"postcode": "NE8 1HH", "housenumber": "22"},
			fetchErr:    fmt.Errorf("%w for postcode NE8 1HH", bins.ErrNoAddressFound),
			wantStatus:  http.StatusNotFound,
			wantMessage: "Could not find bin schedule for the specified address.",
			wantArgs:    &fetchArgs{"NE8 1HH", "22"},
		},
		{
			name:        "upstream failure",
			params:      map[string]string{"postcode": "NE8 1HH", "housenumber": "22"},
			fetchErr:    bins.ErrSessionInit,
			wantStatus:  http.StatusBadGateway,
			wantMessage: "Error fetching data from upstream source.",
			wantArgs:    &fetchArgs{"NE8 1HH", "22"},
		},
		{
			name:        "no collections",
			params:      map[string]string{"postcode": "NE8 1HH", "housenumber": "22"},
			result:      bins.FetchResult{AddressText: "22 Oak Street, NE8 1HH", Collections: []bins.CollectionEvent{}},
			wantStatus:  http.StatusNotFound,
			wantMessage: "Found address '22 Oak Street, NE8 1HH' but no upcoming collections.",
			wantArgs:    &fetchArgs{"NE8 1HH", "22"},
		},
	}
	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			var got *fetchArgs
			factory := &fakeFactory{
				err: tt.factoryErr,
				fetcher: bins.FetcherFunc(func(_ context.Context, postcode, house string) (bins.FetchResult, error) {
					got = &fetchArgs{postcode, house}
					return tt.result, tt.fetchErr
				}),
			}
			notifier := &fakeNotifier{}

			res, err := newHandler(factory, notifier, tt.config).Handle(context.Background(), events.APIGatewayProxyRequest{
				PathParameters: tt.params,
			})
			require.NoError(t, err)
			require.Equal(t, tt.wantStatus, res.StatusCode)
			require.Equal(t, tt.wantArgs, got)

			if tt.wantStatus != http.StatusOK {
				require.Equal(t, tt.wantMessage, errorMessage(t, res))
				require.Zero(t, notifier.calls)
				return
			}

			require.False(t, factory.useCache)
			require.Equal(t, 1, notifier.calls)
			require.Equal(t, "text/calendar", res.Headers["Content-Type"])
			require.Equal(t, `attachment; filename="bin_collections.ics"`, res.Headers["Content-Disposition"])
			require.True(t, res.IsBase64Encoded)

			ics, err := base64.StdEncoding.DecodeString(res.Body)
			require.NoError(t, err)
			require.True(t, strings.HasPrefix(string(ics), "BEGIN:VCALENDAR\r\n"))
			require.Contains(t, string(ics), "DTSTART;VALUE=DATE:20261023\r\n")
		})
	}
}

func TestHandler_HandleNotifierFailureStillServes(t *testing.T) {
	factory := &fakeFactory{
		fetcher: bins.FetcherFunc(func(context.Context, string, string) (bins.FetchResult, error) {
			return schedule(), nil
		}),
	}
	notifier := &fakeNotifier{err: errors.New("throttled")}

	res, err := newHandler(factory, notifier, handler.Config{Source: "gateshead"}).Handle(context.Background(), events.APIGatewayProxyRequest{
		PathParameters: map[string]string{"postcode": "NE8 1HH", "housenumber": "22"},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, 1, notifier.calls)
}

func TestHandler_HandleWithoutNotifier(t *testing.T) {
	factory := &fakeFactory{
		fetcher: bins.FetcherFunc(func(context.Context, string, string) (bins.FetchResult, error) {
			return schedule(), nil
		}),
	}

	res, err := newHandler(factory, nil, handler.Config{Source: "gateshead"}).Handle(context.Background(), events.APIGatewayProxyRequest{
		PathParameters: map[string]string{"postcode": "NE8 1HH", "housenumber": "22"},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
}
