// Package bins holds the normalized bin collection records shared by every
// fetcher, the cache and the calendar outputs.
package bins

import "context"

// CollectionEvent is one bin pickup as presented by the council site.
type CollectionEvent struct {
	// Day is the ordinal and weekday as displayed, e.g. "10 Thursday".
	Day string
	// Month is the month name as displayed, e.g. "April".
	Month string
	// BinType is always a canonical category name.
	BinType string
	// BinColour is derived from BinType.
	BinColour string
	// InfoLink is empty when the source carries no link.
	InfoLink string
}

// FetchResult is the outcome of a successful fetch. An empty Collections slice
// means the address has no scheduled collections.
type FetchResult struct {
	AddressText string
	Collections []CollectionEvent
}

// Fetcher retrieves the schedule for a postcode. An empty houseIdentifier
// means any address at the postcode may be used.
type Fetcher interface {
	Fetch(ctx context.Context, postcode, houseIdentifier string) (FetchResult, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, postcode, houseIdentifier string) (FetchResult, error)

func (f FetcherFunc) Fetch(ctx context.Context, postcode, houseIdentifier string) (FetchResult, error) {
	return f(ctx, postcode, houseIdentifier)
}
