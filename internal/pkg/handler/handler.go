// Package handler serves bin calendars from an API Gateway proxy Lambda.
package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/sirupsen/logrus"

	"github.com/adiazny/bin-calendar/internal/pkg/bins"
	"github.com/adiazny/bin-calendar/internal/pkg/calendar"
)

const (
	postcodeParam    = "postcode"
	houseNumberParam = "housenumber"

	contentTypeHeader        = "Content-Type"
	contentDispositionHeader = "Content-Disposition"
)

// FetcherFactory creates the fetcher for the configured source.
type FetcherFactory interface {
	Create(source string, useCache bool) (bins.Fetcher, error)
}

// Notifier is told about every schedule served.
type Notifier interface {
	PublishNext(ctx context.Context, result bins.FetchResult, ref time.Time) error
}

type Config struct {
	Source             string
	DefaultPostcode    string
	DefaultHouseNumber string
}

type Handler struct {
	Log      *logrus.Entry
	Config   Config
	Fetchers FetcherFactory
	Calendar *calendar.Writer
	// Notifier is optional.
	Notifier Notifier
	Now      func() time.Time
}

// Handle never returns an error; every failure becomes a JSON error response.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	postcode := strings.TrimSpace(req.PathParameters[postcodeParam])
	if postcode == "" {
		postcode = strings.TrimSpace(h.Config.DefaultPostcode)
	}
	houseNumber := strings.TrimSpace(req.PathParameters[houseNumberParam])
	if houseNumber == "" {
		houseNumber = strings.TrimSpace(h.Config.DefaultHouseNumber)
	}

	switch {
	case postcode == "" && houseNumber == "":
		return h.errorResponse(http.StatusBadRequest, "Missing required parameters: postcode and housenumber"), nil
	case postcode == "":
		return h.errorResponse(http.StatusBadRequest, "Missing required path parameter: postcode"), nil
	case houseNumber == "":
		return h.errorResponse(http.StatusBadRequest, "Missing required path parameter: housenumber"), nil
	}

	log := h.Log.WithFields(logrus.Fields{
		"source":   h.Config.Source,
		"postcode": postcode,
		"house":    houseNumber,
	})

	fetcher, err := h.Fetchers.Create(h.Config.Source, false)
	if errors.Is(err, bins.ErrUnknownSource) {
		return h.errorResponse(http.StatusBadRequest, fmt.Sprintf("Invalid configuration: %v", err)), nil
	}
	if err != nil {
		log.WithError(err).Error("error creating fetcher")
		return h.errorResponse(http.StatusInternalServerError, "Internal server error creating fetcher."), nil
	}

	result, err := fetcher.Fetch(ctx, postcode, houseNumber)
	if errors.Is(err, bins.ErrNoAddressFound) {
		log.WithError(err).Warn("no address found")
		return h.errorResponse(http.StatusNotFound, "Could not find bin schedule for the specified address."), nil
	}
	if err != nil {
		log.WithError(err).Error("error fetching bin schedule")
		return h.errorResponse(http.StatusBadGateway, "Error fetching data from upstream source."), nil
	}

	if len(result.Collections) == 0 {
		return h.errorResponse(http.StatusNotFound, fmt.Sprintf("Found address '%s' but no upcoming collections.", result.AddressText)), nil
	}

	now := h.Now()

	var buf bytes.Buffer
	if err := h.Calendar.Write(&buf, result, now); err != nil {
		log.WithError(err).Error("error generating calendar")
		return h.errorResponse(http.StatusInternalServerError, "Internal server error generating calendar data."), nil
	}

	if h.Notifier != nil {
		if err := h.Notifier.PublishNext(ctx, result, now); err != nil {
			log.WithError(err).Warn("error publishing next collection")
		}
	}

	log.WithFields(logrus.Fields{
		"address":     result.AddressText,
		"collections": len(result.Collections),
		"bytes":       buf.Len(),
	}).Info("returning calendar")

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers: map[string]string{
			contentTypeHeader:        "text/calendar",
			contentDispositionHeader: fmt.Sprintf("attachment; filename=%q", calendar.DefaultFileName),
		},
		Body:            base64.StdEncoding.EncodeToString(buf.Bytes()),
		IsBase64Encoded: true,
	}, nil
}

func (h *Handler) errorResponse(status int, message string) events.APIGatewayProxyResponse {
	h.Log.WithField("status", status).Error(message)

	body, _ := json.Marshal(map[string]string{"error": message})

	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{contentTypeHeader: "application/json"},
		Body:       string(body),
	}
}
