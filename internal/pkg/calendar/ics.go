package calendar

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/adiazny/bin-calendar/internal/pkg/bins"
)

const (
	DefaultProductID = "-//Bin Calendar//Gateshead//EN"
	DefaultFileName  = "bin_collections.ics"

	dateFormat      = "20060102"
	timestampFormat = "20060102T150405Z"
	uidDomain       = "bin-calendar"

	// The day before collection at 19:30.
	alarmTrigger = "-PT4H30M"
	missingLink  = "Link not found"

	maxLineOctets = 75
)

// Writer renders collections as an RFC 5545 calendar.
type Writer struct {
	Log       *logrus.Entry
	ProductID string
	Now       func() time.Time
}

func NewWriter(log *logrus.Entry) *Writer {
	return &Writer{
		Log:       log.WithField("component", "ics"),
		ProductID: DefaultProductID,
		Now:       time.Now,
	}
}

// Write emits one all-day event per collection. Collections whose date cannot
// be resolved against ref are skipped.
func (wr *Writer) Write(w io.Writer, result bins.FetchResult, ref time.Time) error {
	out := &icsWriter{w: bufio.NewWriter(w)}
	stamp := wr.Now().UTC().Format(timestampFormat)

	out.line("BEGIN:VCALENDAR")
	out.line("VERSION:2.0")
	out.line("PRODID:" + wr.ProductID)
	out.line("CALSCALE:GREGORIAN")

	written := 0
	for _, event := range result.Collections {
		date, err := ResolveDate(event, ref)
		if err != nil {
			wr.Log.WithError(err).WithField("event", event).Warn("skipping collection without a usable date")
			continue
		}

		out.line("BEGIN:VEVENT")
		out.line("UID:" + uid(date, event))
		out.line("DTSTAMP:" + stamp)
		out.line("DTSTART;VALUE=DATE:" + date.Format(dateFormat))
		out.line("DTEND;VALUE=DATE:" + date.AddDate(0, 0, 1).Format(dateFormat))
		out.line("SUMMARY:" + escapeText(Summary(event)))
		out.line("DESCRIPTION:" + escapeText(Description(event, missingLink)))
		out.line("LOCATION:" + escapeText(result.AddressText))
		out.line("TRANSP:TRANSPARENT")
		out.line("BEGIN:VALARM")
		out.line("ACTION:DISPLAY")
		out.line("DESCRIPTION:" + escapeText(fmt.Sprintf("Put out %s (%s bin) tomorrow", event.BinType, event.BinColour)))
		out.line("TRIGGER:" + alarmTrigger)
		out.line("END:VALARM")
		out.line("END:VEVENT")
		written++
	}

	out.line("END:VCALENDAR")

	if out.err != nil {
		return fmt.Errorf("error writing calendar %w", out.err)
	}
	if err := out.w.Flush(); err != nil {
		return fmt.Errorf("error writing calendar %w", err)
	}

	wr.Log.WithField("events", written).Debug("calendar written")

	return nil
}

// WriteFile replaces path with the rendered calendar. Readers see either the
// old file or the complete new one.
func (wr *Writer) WriteFile(path string, result bins.FetchResult, ref time.Time) error {
	var buf bytes.Buffer
	if err := wr.Write(&buf, result, ref); err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("error creating calendar directory %w", err)
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("error writing calendar file %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("error replacing calendar file %w", err)
	}

	wr.Log.WithField("path", path).Info("calendar file written")

	return nil
}

func uid(date time.Time, event bins.CollectionEvent) string {
	slug := strings.Join(strings.FieldsFunc(strings.ToLower(event.BinType), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), "-")
	return fmt.Sprintf("%s-%s@%s", date.Format(dateFormat), slug, uidDomain)
}

var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	";", `\;`,
	",", `\,`,
	"\r\n", `\n`,
	"\n", `\n`,
)

func escapeText(s string) string {
	return textEscaper.Replace(strings.ToValidUTF8(s, "\uFFFD"))
}

// icsWriter folds content lines and keeps the first write error.
type icsWriter struct {
	w   *bufio.Writer
	err error
}

func (o *icsWriter) line(s string) {
	if o.err != nil {
		return
	}
	for _, part := range fold(s) {
		if _, err := o.w.WriteString(part + "\r\n"); err != nil {
			o.err = err
			return
		}
	}
}

// fold splits a content line into chunks of at most 75 octets without
// breaking a UTF-8 sequence. Continuation chunks start with a space. Invalid
// input is cut at the octet limit so every chunk makes progress.
func fold(s string) []string {
	var parts []string
	for len(s) > maxLineOctets {
		cut := maxLineOctets
		for cut > maxLineOctets-utf8.UTFMax && !utf8.RuneStart(s[cut]) {
			cut--
		}
		if !utf8.RuneStart(s[cut]) {
			cut = maxLineOctets
		}
		parts = append(parts, s[:cut])
		s = " " + s[cut:]
	}
	return append(parts, s)
}
