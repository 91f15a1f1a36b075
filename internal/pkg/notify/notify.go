// Package notify publishes the next bin collection to an SNS topic.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/sirupsen/logrus"

	"github.com/adiazny/bin-calendar/internal/pkg/bins"
	"github.com/adiazny/bin-calendar/internal/pkg/calendar"
)

const dateLayout = "Monday, Jan 02 2006"

var ErrNoTopic = errors.New("sns topic arn is not configured")

// Publisher is satisfied by *sns.Client.
type Publisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Config struct {
	TopicARN string
}

type Client struct {
	Log    *logrus.Entry
	Config Config
	SNS    Publisher
}

// NextCollection is every bin due on the earliest collection day.
type NextCollection struct {
	Date time.Time
	Bins []bins.CollectionEvent
}

// Next finds the earliest upcoming collection day relative to ref. ok is false
// when no collection has a usable date.
func Next(result bins.FetchResult, ref time.Time) (next NextCollection, ok bool) {
	for _, event := range result.Collections {
		date, err := calendar.ResolveDate(event, ref)
		if err != nil {
			continue
		}

		switch {
		case !ok || date.Before(next.Date):
			next = NextCollection{Date: date, Bins: []bins.CollectionEvent{event}}
			ok = true
		case date.Equal(next.Date):
			next.Bins = append(next.Bins, event)
		}
	}

	return next, ok
}

// Message renders the notification text.
func Message(result bins.FetchResult, ref time.Time) string {
	next, ok := Next(result, ref)
	if !ok {
		return fmt.Sprintf("Address: %s\nNo upcoming bin collections", result.AddressText)
	}

	due := make([]string, 0, len(next.Bins))
	for _, event := range next.Bins {
		due = append(due, fmt.Sprintf("%s (%s bin)", event.BinType, event.BinColour))
	}

	return fmt.Sprintf("Date: %s\nAddress: %s\nBins: %s",
		next.Date.Format(dateLayout),
		result.AddressText,
		strings.Join(due, ", "),
	)
}

func (client *Client) PublishNext(ctx context.Context, result bins.FetchResult, ref time.Time) error {
	if client.Config.TopicARN == "" {
		return ErrNoTopic
	}

	topicMsg := Message(result, ref)

	input := &sns.PublishInput{
		Message:  &topicMsg,
		TopicArn: &client.Config.TopicARN,
	}

	_, err := client.SNS.Publish(ctx, input)
	if err != nil {
		client.Log.WithError(err).Error()
		return fmt.Errorf("error publishing to AWS SNS topic %s: %w", client.Config.TopicARN, err)
	}

	client.Log.WithField("topic", client.Config.TopicARN).Info("next collection published")

	return nil
}
