package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/urfave/cli/v2"

	huddlecli "github.com/huddle-live/huddle-go-utils/huddle-cli"
	huddleddb "github.com/huddle-live/huddle-go-utils/huddle-ddb"
	huddlews "github.com/huddle-live/huddle-go-utils/huddle-ws"
	"github.com/huddle-live/huddle-go-utils/huddle-ws/connectiondao"
	"github.com/huddle-live/huddle-go-utils/huddle-ws/publish"
)

var service = huddlecli.NewService("example-dispatcher")

func main() {
	app := huddlecli.App(
		service,
		action,
		append(
			huddlecli.CommonFlags,
			huddleddb.DDBFlags...,
		)...,
	)
	err := app.Run(os.Args)
	if err != nil {
		log.Fatalln(err)
	}
}

func action(_ *cli.Context) error {
	sess := session.Must(session.NewSession(aws.NewConfig()))
	api, err := huddleddb.DynamoDBAPI(sess)
	if err != nil {
		return fmt.Errorf("unable to build dynamodb client: %w", err)
	}

	env := huddlecli.CommonOpts.Env
	logger := huddlecli.Logger(service)

	dispatcher := &huddlews.Dispatcher{
		Broadcaster: &huddlews.Broadcaster{
			Connections: connectiondao.Build(api, env),
			Logger:      logger,
		},
		Logger: logger,
	}

	if huddlecli.CommonOpts.Console {
		return dispatcher.ListenConsole(context.Background(), publish.StreamName(env))
	}

	lambda.Start(dispatcher.HandleKinesisEvent)
	return nil
}
