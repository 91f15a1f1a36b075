package gateshead

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/adiazny/bin-calendar/internal/pkg/bins"
)

const (
	scheduleTableSelector = "table.bincollections__table"
	binLinkSelector       = "a.bincollections__link"

	noCollectionsMessage = "no collection dates found"
)

// ParseSchedule reads the collection table out of the schedule page. Rows that
// cannot be read are logged and skipped. The only failure is a page without
// the table, unless the page says there are no collection dates, which yields
// an empty schedule.
func ParseSchedule(log *logrus.Entry, baseURL *url.URL, html string) ([]bins.CollectionEvent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", bins.ErrScheduleParse, err)
	}

	table := doc.Find(scheduleTableSelector).First()
	if table.Length() == 0 {
		if hasNoCollectionsMessage(doc) {
			log.Info("schedule page reports no collection dates")
			return []bins.CollectionEvent{}, nil
		}
		return nil, fmt.Errorf("%w: %s not found", bins.ErrScheduleParse, scheduleTableSelector)
	}

	events := []bins.CollectionEvent{}
	month := ""

	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		rowLog := log.WithField("row", i)

		if headers := row.Find("th"); headers.Length() > 0 {
			if headers.Length() == 1 {
				month = cleanText(headers.Text())
			}
			return
		}

		cells := row.Find("td")
		switch {
		case cells.Length() == 0:
			return
		case cells.Length() != 3:
			rowLog.WithField("cells", cells.Length()).Warn("skipping schedule row with unexpected cell count")
			return
		case month == "":
			rowLog.Warn("skipping schedule row before any month heading")
			return
		}

		day := cleanText(cells.Eq(0).Text())
		weekday := cleanText(cells.Eq(1).Text())
		if day == "" || weekday == "" {
			rowLog.Warn("skipping schedule row without a day")
			return
		}

		links := cells.Eq(2).Find(binLinkSelector)
		if links.Length() == 0 {
			rowLog.Warn("skipping schedule row without a bin type")
			return
		}

		links.Each(func(_ int, link *goquery.Selection) {
			raw := cleanText(link.Text())
			if raw == "" {
				rowLog.Warn("skipping empty bin type link")
				return
			}

			binType := CanonicalBinType(raw)
			events = append(events, bins.CollectionEvent{
				Day:       day + " " + weekday,
				Month:     month,
				BinType:   binType,
				BinColour: BinColour(binType),
				InfoLink:  resolveLink(baseURL, link.AttrOr("href", "")),
			})
		})
	})

	log.WithField("collections", len(events)).Debug("schedule parsed")

	return events, nil
}

func hasNoCollectionsMessage(doc *goquery.Document) bool {
	found := false
	doc.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		found = strings.Contains(strings.ToLower(p.Text()), noCollectionsMessage)
		return !found
	})
	return found
}

func resolveLink(baseURL *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}

	link, err := url.Parse(href)
	if err != nil {
		return ""
	}

	if baseURL == nil {
		return link.String()
	}

	return baseURL.ResolveReference(link).String()
}
