package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sirupsen/logrus"

	"github.com/adiazny/bin-calendar/internal/pkg/bins"
	"github.com/adiazny/bin-calendar/internal/pkg/cache"
	"github.com/adiazny/bin-calendar/internal/pkg/calendar"
	"github.com/adiazny/bin-calendar/internal/pkg/config"
	"github.com/adiazny/bin-calendar/internal/pkg/gcal"
)

var errNoPostcode = errors.New("a postcode is required, pass --postcode or set MY_POSTCODE")

type options struct {
	configPath string

	postcode       string
	postcodeSet    bool
	houseNumber    string
	houseNumberSet bool
	source         string
	sourceSet      bool

	useCache     bool
	saveICS      bool
	uploadGoogle bool
	notify       bool
	jsonOutput   bool
}

type fetcherFactory interface {
	Create(source string, useCache bool) (bins.Fetcher, error)
}

type uploader interface {
	Upload(ctx context.Context, result bins.FetchResult, ref time.Time) (gcal.UploadSummary, error)
}

type publisher interface {
	PublishNext(ctx context.Context, result bins.FetchResult, ref time.Time) error
}

type app struct {
	Log         *logrus.Entry
	Config      config.Config
	Fetchers    fetcherFactory
	Calendar    *calendar.Writer
	NewUploader func(ctx context.Context) (uploader, error)
	NewNotifier func(ctx context.Context) (publisher, error)
	Out         io.Writer
	Now         func() time.Time
}

// run fetches the schedule, prints it and fans it out to the requested
// outputs. Outputs are skipped when there is nothing scheduled.
func (a *app) run(ctx context.Context, opts options) error {
	postcode := a.Config.Postcode
	if opts.postcodeSet {
		postcode = opts.postcode
	}
	houseNumber := a.Config.HouseNumber
	if opts.houseNumberSet {
		houseNumber = opts.houseNumber
	}
	source := a.Config.Source
	if opts.sourceSet {
		source = opts.source
	}

	if strings.TrimSpace(postcode) == "" {
		return errNoPostcode
	}

	fetcher, err := a.Fetchers.Create(source, opts.useCache)
	if err != nil {
		return err
	}

	result, err := fetcher.Fetch(ctx, postcode, houseNumber)
	if err != nil {
		return fmt.Errorf("error fetching bin schedule %w", err)
	}

	now := a.Now()

	if err := a.print(result, now, opts.jsonOutput); err != nil {
		return err
	}

	if len(result.Collections) == 0 {
		a.Log.WithField("address", result.AddressText).Info("no upcoming collections, skipping outputs")
		return nil
	}

	var errs []error

	if opts.saveICS {
		if err := a.Calendar.WriteFile(a.Config.ICSFile, result, now); err != nil {
			errs = append(errs, err)
		}
	}

	if opts.uploadGoogle {
		if err := a.upload(ctx, result, now); err != nil {
			errs = append(errs, err)
		}
	}

	if opts.notify {
		if err := a.publish(ctx, result, now); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (a *app) upload(ctx context.Context, result bins.FetchResult, now time.Time) error {
	up, err := a.NewUploader(ctx)
	if err != nil {
		return fmt.Errorf("error setting up google calendar %w", err)
	}

	summary, err := up.Upload(ctx, result, now)
	a.Log.WithFields(logrus.Fields{
		"inserted": summary.Inserted,
		"skipped":  summary.Skipped,
		"failed":   summary.Failed,
	}).Info("google calendar upload finished")

	return err
}

func (a *app) publish(ctx context.Context, result bins.FetchResult, now time.Time) error {
	pub, err := a.NewNotifier(ctx)
	if err != nil {
		return err
	}
	return pub.PublishNext(ctx, result, now)
}

func (a *app) print(result bins.FetchResult, now time.Time, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(a.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(cache.Encode(result))
	}

	if _, err := fmt.Fprintf(a.Out, "Bin collections for %s\n", result.AddressText); err != nil {
		return err
	}

	if len(result.Collections) == 0 {
		_, err := fmt.Fprintln(a.Out, "No upcoming collections.")
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(a.Out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Date", "Bin", "Colour", "Link"})

	for _, event := range result.Collections {
		date := fmt.Sprintf("%s %s", event.Day, event.Month)
		if resolved, err := calendar.ResolveDate(event, now); err == nil {
			date = resolved.Format("Mon 02 Jan 2006")
		}
		t.AppendRow(table.Row{date, event.BinType, event.BinColour, event.InfoLink})
	}

	t.Render()

	return nil
}
