package gateshead

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/adiazny/bin-calendar/internal/pkg/bins"
)

// Fetcher runs the full bin-checker flow against the council site.
type Fetcher struct {
	Log    *logrus.Entry
	Config Config
	// Intn picks the random address when no house identifier matches.
	Intn func(n int) int
}

func NewFetcher(log *logrus.Entry, config Config) *Fetcher {
	return &Fetcher{
		Log:    log.WithField("source", "gateshead"),
		Config: config.withDefaults(),
		Intn:   rand.IntN,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, postcode, houseIdentifier string) (bins.FetchResult, error) {
	postcode = strings.TrimSpace(postcode)
	houseIdentifier = strings.TrimSpace(houseIdentifier)

	log := f.Log.WithFields(logrus.Fields{
		"postcode": postcode,
		"house":    houseIdentifier,
	})

	client, err := NewClient(log, f.Config)
	if err != nil {
		return bins.FetchResult{}, err
	}

	tokens, err := client.OpenSession(ctx)
	if err != nil {
		return bins.FetchResult{}, err
	}

	candidates, err := client.LookupAddresses(ctx, postcode, tokens)
	if err != nil {
		return bins.FetchResult{}, err
	}

	address, err := ResolveAddress(log, candidates, houseIdentifier, f.Intn)
	if err != nil {
		return bins.FetchResult{}, fmt.Errorf("%w for postcode %s", err, postcode)
	}

	html, err := client.SubmitAddress(ctx, tokens, postcode, address)
	if err != nil {
		return bins.FetchResult{}, err
	}

	events, err := ParseSchedule(log, client.baseURL, html)
	if err != nil {
		return bins.FetchResult{}, err
	}

	log.WithFields(logrus.Fields{
		"address":     address.Text,
		"collections": len(events),
	}).Info("bin schedule fetched")

	return bins.FetchResult{
		AddressText: address.Text,
		Collections: events,
	}, nil
}
