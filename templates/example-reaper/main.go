package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatch"
	"github.com/urfave/cli/v2"

	huddlecli "github.com/huddle-live/huddle-go-utils/huddle-cli"
	huddlecron "github.com/huddle-live/huddle-go-utils/huddle-cron"
	huddleddb "github.com/huddle-live/huddle-go-utils/huddle-ddb"
	huddlemeet "github.com/huddle-live/huddle-go-utils/huddle-meet"
	huddlereaper "github.com/huddle-live/huddle-go-utils/huddle-reaper"
	"github.com/huddle-live/huddle-go-utils/huddle-ws/meetingdao"
)

var opts struct {
	MediaRegion string
}

var service = huddlecli.NewService("example-reaper")

func main() {
	app := huddlecli.App(
		service,
		action,
		append(
			append(
				huddlecli.CommonFlags,
				huddlereaper.ReaperFlags...,
			),
			huddlecli.StringFlag("media-region", "conferencing media region", &opts.MediaRegion, "us-east-1"),
		)...,
	)
	err := app.Run(os.Args)
	if err != nil {
		log.Fatalln(err)
	}
}

func action(_ *cli.Context) error {
	handler := huddlecron.NewHandler(service, runSweep)

	return handler.Start()
}

func runSweep(ctx context.Context) error {
	sess := session.Must(session.NewSession(aws.NewConfig()))
	api, err := huddleddb.DynamoDBAPI(sess)
	if err != nil {
		return fmt.Errorf("unable to build dynamodb client: %w", err)
	}

	env := huddlecli.CommonOpts.Env
	logger := huddlecli.Logger(service)
	metrics := huddlecli.NewMetrics(service, cloudwatch.New(sess))

	sweeper := huddlereaper.New(meetingdao.Build(api, env), huddlemeet.Build(opts.MediaRegion), logger)

	summary, err := sweeper.Run(ctx, huddlereaper.ConfigFromFlags())
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	metrics.Gauge(ctx, huddlecli.RoomsReapedMetric, float64(summary.Ended))
	metrics.Gauge(ctx, huddlecli.SweepErrorsMetric, float64(summary.Errors))
	return nil
}
