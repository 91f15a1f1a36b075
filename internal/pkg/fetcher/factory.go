// Package fetcher maps data source identifiers to bins.Fetcher constructors.
package fetcher

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/adiazny/bin-calendar/internal/pkg/bins"
	"github.com/adiazny/bin-calendar/internal/pkg/cache"
	"github.com/adiazny/bin-calendar/internal/pkg/gateshead"
)

const (
	SourceGateshead = "gateshead"

	DefaultCacheDir = "cache"
)

// Options carries everything a constructor may need.
type Options struct {
	Log       *logrus.Entry
	Gateshead gateshead.Config
	CacheDir  string
}

type Constructor func(opts Options) (bins.Fetcher, error)

type Factory struct {
	Options      Options
	constructors map[string]Constructor
}

// NewFactory returns a factory with every built-in source registered.
func NewFactory(opts Options) *Factory {
	if opts.CacheDir == "" {
		opts.CacheDir = DefaultCacheDir
	}

	f := &Factory{
		Options:      opts,
		constructors: map[string]Constructor{},
	}

	f.Register(SourceGateshead, func(opts Options) (bins.Fetcher, error) {
		return gateshead.NewFetcher(opts.Log, opts.Gateshead), nil
	})

	return f
}

// Register adds or replaces the constructor for a source.
func (f *Factory) Register(source string, constructor Constructor) {
	f.constructors[normalize(source)] = constructor
}

// Create builds the fetcher for source, wrapped in the file cache when
// useCache is set.
func (f *Factory) Create(source string, useCache bool) (bins.Fetcher, error) {
	constructor, ok := f.constructors[normalize(source)]
	if !ok {
		return nil, fmt.Errorf("%w %q, available sources: %s", bins.ErrUnknownSource, source, strings.Join(f.Sources(), ", "))
	}

	fetcher, err := constructor(f.Options)
	if err != nil {
		return nil, fmt.Errorf("error creating %s fetcher %w", source, err)
	}

	if !useCache {
		return fetcher, nil
	}

	return cache.New(f.Options.Log, f.Options.CacheDir, fetcher), nil
}

// Sources lists the registered identifiers in sorted order.
func (f *Factory) Sources() []string {
	sources := make([]string, 0, len(f.constructors))
	for source := range f.constructors {
		sources = append(sources, source)
	}
	sort.Strings(sources)
	return sources
}

func normalize(source string) string {
	return strings.ToLower(strings.TrimSpace(source))
}
