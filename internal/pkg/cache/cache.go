// Package cache wraps a bins.Fetcher with a file-per-key JSON cache.
//
// Entries never expire and are never evicted by this package; removing a file
// is the only way to force a refetch. Concurrent writers to the same key are
// not coordinated.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/adiazny/bin-calendar/internal/pkg/bins"
)

const (
	fileExtension   = ".json"
	tmpSuffix       = ".tmp"
	filePermissions = 0o644
	dirPermissions  = 0o755

	randomHouseKey = "random"
)

var tracer = otel.Tracer("bins/cache")

// Cache is a read-through, write-through bins.Fetcher.
type Cache struct {
	Log  *logrus.Entry
	Dir  string
	Next bins.Fetcher
}

func New(log *logrus.Entry, dir string, next bins.Fetcher) *Cache {
	return &Cache{
		Log:  log.WithField("component", "cache"),
		Dir:  dir,
		Next: next,
	}
}

// Key derives the cache key for a fetch. Postcodes ignore case and
// whitespace, house identifiers ignore case and repeated whitespace, and an
// absent house identifier gets its own key so random selections are never
// served for a specific house.
func Key(postcode, houseIdentifier string) string {
	postcode = strings.ToUpper(strings.Join(strings.Fields(postcode), ""))
	house := strings.ToLower(strings.Join(strings.Fields(houseIdentifier), " "))

	// "+" and "=" cannot survive QueryEscape, so the separators keep keys
	// unambiguous.
	key := url.QueryEscape(postcode) + "+"
	if house == "" {
		return key + randomHouseKey
	}
	return key + "house=" + url.QueryEscape(house)
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.Dir, key+fileExtension)
}

func (c *Cache) Fetch(ctx context.Context, postcode, houseIdentifier string) (bins.FetchResult, error) {
	key := Key(postcode, houseIdentifier)
	log := c.Log.WithField("key", key)

	if result, ok := c.load(ctx, log, key); ok {
		log.Info("cache hit")
		return result, nil
	}

	log.Info("cache miss, fetching from source")

	result, err := c.Next.Fetch(ctx, postcode, houseIdentifier)
	if err != nil {
		return bins.FetchResult{}, err
	}

	if err := c.save(ctx, key, result); err != nil {
		log.WithError(err).Error("error saving schedule to cache")
	}

	return result, nil
}

func (c *Cache) load(ctx context.Context, log *logrus.Entry, key string) (bins.FetchResult, bool) {
	_, span := tracer.Start(ctx, "load")
	defer span.End()
	span.SetAttributes(attribute.String("cache_key", key))

	path := c.path(key)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return bins.FetchResult{}, false
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read cache file")
		log.WithError(err).WithField("path", path).Warn("error reading cache file")
		return bins.FetchResult{}, false
	}

	result, err := Decode(data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid cache file")
		log.WithError(err).WithField("path", path).Warn("ignoring invalid cache file")
		return bins.FetchResult{}, false
	}

	return result, true
}

func (c *Cache) save(ctx context.Context, key string, result bins.FetchResult) error {
	_, span := tracer.Start(ctx, "save")
	defer span.End()
	span.SetAttributes(attribute.String("cache_key", key))

	data, err := json.MarshalIndent(Encode(result), "", "    ")
	if err != nil {
		return fmt.Errorf("error marshalling cache entry %w", err)
	}

	if err := os.MkdirAll(c.Dir, dirPermissions); err != nil {
		span.RecordError(err)
		return fmt.Errorf("error creating cache directory %w", err)
	}

	path := c.path(key)
	tmpPath := path + tmpSuffix
	if err := os.WriteFile(tmpPath, data, filePermissions); err != nil {
		span.RecordError(err)
		return fmt.Errorf("error writing cache file %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		span.RecordError(err)
		_ = os.Remove(tmpPath)
		return fmt.Errorf("error replacing cache file %w", err)
	}

	c.Log.WithField("path", path).Info("schedule saved to cache")

	return nil
}
