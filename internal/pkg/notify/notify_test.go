package notify_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/sirupsen/logrus"

	"github.com/adiazny/bin-calendar/internal/pkg/bins"
	"github.com/adiazny/bin-calendar/internal/pkg/notify"
)

var ref = time.Date(2026, time.October, 15, 9, 0, 0, 0, time.UTC)

func newLog() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

type mockPublisher struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput) (*sns.PublishOutput, error)
}

func (m *mockPublisher) Publish(ctx context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	if params == nil {
		return nil, errors.New("error publish input is nil")
	}
	return m.PublishFunc(ctx, params)
}

func TestMessage(t *testing.T) {
	tests := []struct {
		name   string
		result bins.FetchResult
		want   string
	}{
		{
			name: "earliest day with every bin due",
			result: bins.FetchResult{
				AddressText: "22 Oak Street, NE8 1HH",
				Collections: []bins.CollectionEvent{
					{Day: "30 Friday", Month: "October", BinType: "Garden Waste", BinColour: "garden"},
					{Day: "23 Friday", Month: "October", BinType: "Household Waste", BinColour: "green"},
					{Day: "2 Tuesday", Month: "January", BinType: "Household Waste", BinColour: "green"},
					{Day: "23 Friday", Month: "October", BinType: "Recycling - Paper and cardboard", BinColour: "light blue with red top"},
				},
			},
			want: "Date: Friday, Oct 23 2026\nAddress: 22 Oak Street, NE8 1HH\nBins: Household Waste (green bin), Recycling - Paper and cardboard (light blue with red top bin)",
		},
		{
			name:   "no collections",
			result: bins.FetchResult{AddressText: "1 Test Street", Collections: []bins.CollectionEvent{}},
			want:   "Address: 1 Test Street\nNo upcoming bin collections",
		},
		{
			name: "no usable dates",
			result: bins.FetchResult{
				AddressText: "1 Test Street",
				Collections: []bins.CollectionEvent{{Day: "soon", Month: "October", BinType: "Household Waste"}},
			},
			want: "Address: 1 Test Street\nNo upcoming bin collections",
		},
	}
	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			if got := notify.Message(tt.result, ref); got != tt.want {
				t.Errorf("Message() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClient_PublishNext(t *testing.T) {
	result := bins.FetchResult{
		AddressText: "22 Oak Street, NE8 1HH",
		Collections: []bins.CollectionEvent{
			{Day: "23 Friday", Month: "October", BinType: "Household Waste", BinColour: "green"},
		},
	}

	tests := []struct {
		name    string
		config  notify.Config
		publish func(ctx context.Context, params *sns.PublishInput) (*sns.PublishOutput, error)
		wantErr bool
	}{
		{
			name:   "success",
			config: notify.Config{TopicARN: "arn:aws:sns:eu-west-2:123456789012:bins"},
			publish: func(_ context.Context, params *sns.PublishInput) (*sns.PublishOutput, error) {
				if *params.TopicArn != "arn:aws:sns:eu-west-2:123456789012:bins" {
					return nil, errors.New("wrong topic")
				}
				if *params.Message != notify.Message(result, ref) {
					return nil, errors.New("wrong message")
				}
				return &sns.PublishOutput{}, nil
			},
		},
		{
			name:   "publish error",
			config: notify.Config{TopicARN: "arn:aws:sns:eu-west-2:123456789012:bins"},
			publish: func(context.Context, *sns.PublishInput) (*sns.PublishOutput, error) {
				return nil, errors.New("throttled")
			},
			wantErr: true,
		},
		{
			name:    "missing topic",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			client := &notify.Client{
				Log:    newLog(),
				Config: tt.config,
				SNS:    &mockPublisher{PublishFunc: tt.publish},
			}

			if err := client.PublishNext(context.Background(), result, ref); (err != nil) != tt.wantErr {
				t.Errorf("Client.PublishNext() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
