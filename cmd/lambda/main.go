package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	cfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/sirupsen/logrus"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/adiazny/bin-calendar/internal/pkg/calendar"
	"github.com/adiazny/bin-calendar/internal/pkg/config"
	"github.com/adiazny/bin-calendar/internal/pkg/fetcher"
	"github.com/adiazny/bin-calendar/internal/pkg/handler"
	"github.com/adiazny/bin-calendar/internal/pkg/logging"
	"github.com/adiazny/bin-calendar/internal/pkg/notify"
)

func setup() (config.Config, error) {
	_, err := maxprocs.Set()
	if err != nil {
		return config.Config{}, fmt.Errorf("error setting GOMAXPROCS %w", err)
	}

	// Lambda configuration comes from the environment only.
	envVars, err := config.Load("")
	if err != nil {
		return config.Config{}, err
	}

	return envVars, nil
}

func newHandler(ctx context.Context, log *logrus.Entry, envVars config.Config) (*handler.Handler, error) {
	h := &handler.Handler{
		Log: log,
		Config: handler.Config{
			Source:             envVars.Source,
			DefaultPostcode:    envVars.Postcode,
			DefaultHouseNumber: envVars.HouseNumber,
		},
		Fetchers: fetcher.NewFactory(fetcher.Options{
			Log:       log,
			Gateshead: envVars.Gateshead(),
		}),
		Calendar: calendar.NewWriter(log),
		Now:      time.Now,
	}

	if envVars.TopicARN == "" {
		return h, nil
	}

	awsConfig, err := cfg.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config %w", err)
	}

	h.Notifier = &notify.Client{
		Log:    log.WithField("component", "notify"),
		Config: notify.Config{TopicARN: envVars.TopicARN},
		SNS:    sns.NewFromConfig(awsConfig),
	}

	return h, nil
}

func main() {
	envVars, err := setup()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := logging.New(envVars.LogLevel, logging.FormatJSON, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log = log.WithField("component", "bins-lambda")

	log.Info("starting up")
	defer log.Info("shutting down")

	h, err := newHandler(context.Background(), log, envVars)
	if err != nil {
		log.WithError(err).Error()
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
