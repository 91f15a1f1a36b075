package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/spf13/cobra"

	"github.com/adiazny/bin-calendar/internal/pkg/calendar"
	"github.com/adiazny/bin-calendar/internal/pkg/config"
	"github.com/adiazny/bin-calendar/internal/pkg/fetcher"
	"github.com/adiazny/bin-calendar/internal/pkg/gcal"
	"github.com/adiazny/bin-calendar/internal/pkg/logging"
	"github.com/adiazny/bin-calendar/internal/pkg/notify"
)

var opts options

var rootCmd = &cobra.Command{
	Use:   "bins [--postcode <postcode>] [--house-number <house>]",
	Short: "bins fetches your Gateshead bin collection days and turns them into calendar events.",
	Long: `bins looks up the bin collection schedule for an address and prints it.

The postcode and house number default to MY_POSTCODE and MY_HOUSE_NUMBER. Without
a house number any address at the postcode is used.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(opts.configPath)
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		opts.postcodeSet = flags.Changed("postcode")
		opts.houseNumberSet = flags.Changed("house-number")
		opts.sourceSet = flags.Changed("source")

		return a.run(cmd.Context(), opts)
	},
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&opts.postcode, "postcode", "p", "", "Postcode to look up (default $MY_POSTCODE).")
	flags.StringVarP(&opts.houseNumber, "house-number", "n", "", "House number or name (default $MY_HOUSE_NUMBER).")
	flags.BoolVarP(&opts.useCache, "use-cache", "c", false, "Read and write the local schedule cache.")
	flags.BoolVarP(&opts.saveICS, "save-ics", "i", false, "Write the schedule to an ICS file.")
	flags.BoolVarP(&opts.uploadGoogle, "upload-google", "g", false, "Add the collections to Google Calendar.")
	flags.BoolVar(&opts.notify, "notify", false, "Publish the next collection to the SNS topic in $TOPIC_ARN.")
	flags.BoolVar(&opts.jsonOutput, "json", false, "Print the schedule as JSON instead of a table.")
	flags.StringVar(&opts.source, "source", fetcher.SourceGateshead, "Data source to fetch from.")

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultFile, "Optional json5 config file.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newApp wires the production dependencies.
func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return nil, err
	}
	log = log.WithField("component", "bins")

	return &app{
		Log:    log,
		Config: cfg,
		Fetchers: fetcher.NewFactory(fetcher.Options{
			Log:       log,
			Gateshead: cfg.Gateshead(),
			CacheDir:  cfg.CacheDir,
		}),
		Calendar: calendar.NewWriter(log),
		NewUploader: func(ctx context.Context) (uploader, error) {
			return gcal.NewExporter(ctx, log, cfg.Google())
		},
		NewNotifier: func(ctx context.Context) (publisher, error) {
			awsConfig, err := awsconfig.LoadDefaultConfig(ctx)
			if err != nil {
				return nil, fmt.Errorf("error loading AWS config %w", err)
			}
			return &notify.Client{
				Log:    log.WithField("component", "notify"),
				Config: notify.Config{TopicARN: cfg.TopicARN},
				SNS:    sns.NewFromConfig(awsConfig),
			}, nil
		},
		Out: os.Stdout,
		Now: time.Now,
	}, nil
}
