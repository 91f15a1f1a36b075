package cache

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/adiazny/bin-calendar/internal/pkg/bins"
)

var errIncompleteEntry = errors.New("cache entry missing address_text or collections")

// Entry is the on-disk form of a bins.FetchResult.
type Entry struct {
	AddressText *string       `json:"address_text"`
	Collections *[]EntryEvent `json:"collections"`
}

type EntryEvent struct {
	Date      string  `json:"date"`
	Month     string  `json:"month"`
	BinType   string  `json:"bin_type"`
	BinColour string  `json:"bin_colour"`
	BinLink   *string `json:"bin_link"`
}

func Encode(result bins.FetchResult) Entry {
	events := make([]EntryEvent, 0, len(result.Collections))
	for _, ev := range result.Collections {
		entry := EntryEvent{
			Date:      ev.Day,
			Month:     ev.Month,
			BinType:   ev.BinType,
			BinColour: ev.BinColour,
		}
		if ev.InfoLink != "" {
			link := ev.InfoLink
			entry.BinLink = &link
		}
		events = append(events, entry)
	}

	address := result.AddressText
	return Entry{
		AddressText: &address,
		Collections: &events,
	}
}

// Decode parses a cache file. Files without both top-level fields are
// rejected.
func Decode(data []byte) (bins.FetchResult, error) {
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return bins.FetchResult{}, fmt.Errorf("error decoding cache entry %w", err)
	}

	if entry.AddressText == nil || entry.Collections == nil {
		return bins.FetchResult{}, errIncompleteEntry
	}

	collections := make([]bins.CollectionEvent, 0, len(*entry.Collections))
	for _, ev := range *entry.Collections {
		event := bins.CollectionEvent{
			Day:       ev.Date,
			Month:     ev.Month,
			BinType:   ev.BinType,
			BinColour: ev.BinColour,
		}
		if ev.BinLink != nil {
			event.InfoLink = *ev.BinLink
		}
		collections = append(collections, event)
	}

	return bins.FetchResult{
		AddressText: *entry.AddressText,
		Collections: collections,
	}, nil
}
