// Package gateshead fetches bin collection schedules from the Gateshead Council
// bin-checker form.
package gateshead

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/adiazny/bin-calendar/internal/pkg/bins"
)

const (
	DefaultBaseURL = "https://www.gateshead.gov.uk"

	checkerPath    = "/article/3150/Bin-collection-day-checker"
	lookupPath     = "/apiserver/postcode"
	submissionPath = "/apiserver/formsservice/http/processsubmission"

	formPrefix         = "BINCOLLECTIONCHECKER_"
	pageSessionIDField = formPrefix + "PAGESESSIONID"
	sessionIDField     = formPrefix + "SESSIONID"
	nonceField         = formPrefix + "NONCE"

	lookupCallback = "getAddresses"

	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

var tracer = otel.Tracer("bins/gateshead")

type Config struct {
	BaseURL              string
	Timeout              time.Duration
	UserAgent            string
	MaxRequestsPerSecond int
	BrowserTransport     bool
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	return c
}

// SessionTokens are the hidden form identifiers scraped from the landing page.
type SessionTokens struct {
	PageSessionID string
	SessionID     string
	Nonce         string
}

func (t SessionTokens) queryParams() map[string]string {
	return map[string]string{
		"pageSessionId": t.PageSessionID,
		"fsid":          t.SessionID,
		"fsn":           t.Nonce,
	}
}

// AddressCandidate is one property returned by the postcode lookup.
type AddressCandidate struct {
	PropertyReference string
	Premises          string
	// Lines is the street address without the postcode.
	Lines             string
	Text              string
}

// Client performs one bin-checker session. It keeps a cookie jar, so a new
// Client is needed for every fetch.
type Client struct {
	Log    *logrus.Entry
	Config Config
	HTTP   *resty.Client

	baseURL *url.URL
}

func NewClient(log *logrus.Entry, config Config) (*Client, error) {
	config = config.withDefaults()

	baseURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing base url %q: %w", config.BaseURL, err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("error creating cookie jar %w", err)
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(strings.TrimSuffix(config.BaseURL, "/"))
	httpClient.SetTimeout(config.Timeout)
	httpClient.SetCookieJar(jar)
	httpClient.SetHeaders(map[string]string{
		"User-Agent":      config.UserAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		"Accept-Language": "en-GB,en;q=0.9",
	})
	if config.BrowserTransport {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}

	if config.MaxRequestsPerSecond > 0 {
		limiter := rate.NewLimiter(rate.Limit(config.MaxRequestsPerSecond), config.MaxRequestsPerSecond)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return limiter.Wait(req.Context())
		})
	}

	httpClient.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		trace.SpanFromContext(res.Request.Context()).AddEvent("response", trace.WithAttributes(
			attribute.String("method", res.Request.Method),
			attribute.Int("status", res.StatusCode()),
		))
		log.WithFields(logrus.Fields{
			"method": res.Request.Method,
			"url":    res.Request.URL,
			"status": res.StatusCode(),
			"bytes":  len(res.Body()),
		}).Debug("response received")
		return nil
	})

	return &Client{
		Log:     log,
		Config:  config,
		HTTP:    httpClient,
		baseURL: baseURL,
	}, nil
}

// OpenSession loads the bin-checker landing page and scrapes the hidden
// session fields every later request must carry.
func (c *Client) OpenSession(ctx context.Context) (SessionTokens, error) {
	ctx, span := tracer.Start(ctx, "OpenSession")
	defer span.End()

	res, err := c.HTTP.R().
		SetContext(ctx).
		Get(checkerPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch bin checker page")
		return SessionTokens{}, fmt.Errorf("error requesting bin checker page %w", err)
	}

	if !res.IsSuccess() {
		span.SetStatus(codes.Error, "bin checker page returned an error status")
		return SessionTokens{}, fmt.Errorf("%w: status code is not 2xx, got %d", bins.ErrSessionInit, res.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse bin checker page")
		return SessionTokens{}, fmt.Errorf("%w: %w", bins.ErrSessionInit, err)
	}

	tokens := SessionTokens{
		PageSessionID: hiddenValue(doc, pageSessionIDField),
		SessionID:     hiddenValue(doc, sessionIDField),
		Nonce:         hiddenValue(doc, nonceField),
	}

	for _, field := range []struct{ name, value string }{
		{pageSessionIDField, tokens.PageSessionID},
		{sessionIDField, tokens.SessionID},
		{nonceField, tokens.Nonce},
	} {
		if field.value == "" {
			span.SetStatus(codes.Error, "missing hidden session field")
			return SessionTokens{}, fmt.Errorf("%w: hidden field %s is missing", bins.ErrSessionInit, field.name)
		}
	}

	c.Log.WithField("page_session_id", tokens.PageSessionID).Debug("bin checker session opened")

	return tokens, nil
}

func hiddenValue(doc *goquery.Document, name string) string {
	input := doc.Find(fmt.Sprintf("input[name=%q]", name)).First()
	return strings.TrimSpace(input.AttrOr("value", ""))
}

type lookupRequest struct {
	JSONRPC string       `json:"jsonrpc"`
	ID      int          `json:"id"`
	Method  string       `json:"method"`
	Params  lookupParams `json:"params"`
}

type lookupParams struct {
	Provider string `json:"provider"`
	Postcode string `json:"postcode"`
}

type lookupResponse struct {
	Result *[]lookupAddress `json:"result"`
}

type lookupAddress struct {
	Line1    string            `json:"line1"`
	Line2    string            `json:"line2"`
	Postcode string            `json:"postcode"`
	UDPRN    propertyReference `json:"udprn"`
}

func (a lookupAddress) lines() string {
	return strings.Join(strings.Fields(a.Line1+" "+a.Line2), " ")
}

func (a lookupAddress) text() string {
	text := a.lines()
	if postcode := strings.TrimSpace(a.Postcode); postcode != "" {
		if text == "" {
			return postcode
		}
		text = text + ", " + postcode
	}
	return text
}

// propertyReference accepts the UDPRN as either a JSON string or number.
type propertyReference string

func (p *propertyReference) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = propertyReference(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*p = propertyReference(n.String())
	return nil
}

// LookupAddresses asks the postcode service for every property at postcode.
func (c *Client) LookupAddresses(ctx context.Context, postcode string, tokens SessionTokens) ([]AddressCandidate, error) {
	ctx, span := tracer.Start(ctx, "LookupAddresses")
	defer span.End()
	span.SetAttributes(attribute.String("postcode", postcode))

	payload, err := json.Marshal(lookupRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "postcodeSearch",
		Params: lookupParams{
			Provider: "EndPoint",
			Postcode: url.PathEscape(postcode),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("error marshalling lookup request %w", err)
	}

	res, err := c.HTTP.R().
		SetContext(ctx).
		SetQueryParams(tokens.queryParams()).
		SetQueryParam("jsonrpc", string(payload)).
		SetQueryParam("callback", lookupCallback).
		Get(lookupPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch addresses")
		return nil, fmt.Errorf("error requesting address lookup %w", err)
	}

	if !res.IsSuccess() {
		span.SetStatus(codes.Error, "address lookup returned an error status")
		return nil, fmt.Errorf("%w: status code is not 2xx, got %d", bins.ErrLookup, res.StatusCode())
	}

	body, err := unwrapJSONP(res.String(), lookupCallback)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unexpected address lookup payload")
		return nil, fmt.Errorf("%w: %w", bins.ErrLookup, err)
	}

	lookup := &lookupResponse{}
	err = json.Unmarshal(body, lookup)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode address lookup")
		return nil, fmt.Errorf("%w: error unmarshalling address lookup %w", bins.ErrLookup, err)
	}

	if lookup.Result == nil {
		span.SetStatus(codes.Error, "address lookup had no result")
		return nil, fmt.Errorf("%w: response has no result list", bins.ErrLookup)
	}

	candidates := make([]AddressCandidate, 0, len(*lookup.Result))
	for _, address := range *lookup.Result {
		if address.UDPRN == "" {
			c.Log.WithField("address", address.text()).Warn("skipping address without property reference")
			continue
		}
		candidates = append(candidates, AddressCandidate{
			PropertyReference: string(address.UDPRN),
			Premises:          strings.TrimSpace(address.Line1),
			Lines:             address.lines(),
			Text:              address.text(),
		})
	}

	span.SetAttributes(attribute.Int("candidates", len(candidates)))
	c.Log.WithField("candidates", len(candidates)).Debug("addresses found")

	return candidates, nil
}

func unwrapJSONP(body, callback string) ([]byte, error) {
	trimmed := strings.TrimSpace(body)
	trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))

	prefix := callback + "("
	if !strings.HasPrefix(trimmed, prefix) || !strings.HasSuffix(trimmed, ")") {
		return nil, fmt.Errorf("response is not wrapped in %s()", callback)
	}

	return []byte(trimmed[len(prefix) : len(trimmed)-1]), nil
}

// SubmitAddress posts the chosen property to the form service and returns the
// schedule page HTML.
func (c *Client) SubmitAddress(ctx context.Context, tokens SessionTokens, postcode string, address AddressCandidate) (string, error) {
	ctx, span := tracer.Start(ctx, "SubmitAddress")
	defer span.End()
	span.SetAttributes(attribute.String("property_reference", address.PropertyReference))

	res, err := c.HTTP.R().
		SetContext(ctx).
		SetQueryParams(tokens.queryParams()).
		SetFormData(map[string]string{
			pageSessionIDField:                                 tokens.PageSessionID,
			sessionIDField:                                     tokens.SessionID,
			nonceField:                                         tokens.Nonce,
			formPrefix + "VARIABLES":                           "e30=",
			formPrefix + "PAGENAME":                            "ADDRESSSEARCH",
			formPrefix + "PAGEINSTANCE":                        "0",
			formPrefix + "ADDRESSSEARCH_ASSISTOFF":             "false",
			formPrefix + "ADDRESSSEARCH_ASSISTON":              "true",
			formPrefix + "ADDRESSSEARCH_STAFFLAYOUT":           "false",
			formPrefix + "ADDRESSSEARCH_ADDRESSLOOKUPPOSTCODE": postcode,
			formPrefix + "ADDRESSSEARCH_ADDRESSLOOKUPADDRESS":  "",
			formPrefix + "ADDRESSSEARCH_FIELD125":              "false",
			formPrefix + "ADDRESSSEARCH_UPRN":                  address.PropertyReference,
			formPrefix + "ADDRESSSEARCH_ADDRESSTEXT":           address.Text,
			formPrefix + "FORMACTION_NEXT":                     formPrefix + "ADDRESSSEARCH_NEXTBUTTON",
		}).
		Post(submissionPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit address")
		return "", fmt.Errorf("error submitting address %w", err)
	}

	if !res.IsSuccess() {
		span.SetStatus(codes.Error, "address submission returned an error status")
		return "", fmt.Errorf("%w: status code is not 2xx, got %d", bins.ErrSubmission, res.StatusCode())
	}

	return res.String(), nil
}
