package main

import (
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
	"github.com/huddle-live/huddle-go-utils/huddle-ws/presencedao"
)

var service = huddlecli.NewService("example-ws")

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
	if huddlecli.CommonOpts.Console {
		return fmt.Errorf("the websocket handler only runs behind API Gateway; use lambda mode")
	}

	sess := session.Must(session.NewSession(aws.NewConfig()))
	api, err := huddleddb.DynamoDBAPI(sess)
	if err != nil {
		return fmt.Errorf("unable to build dynamodb client: %w", err)
	}

	env := huddlecli.CommonOpts.Env
	logger := huddlecli.Logger(service)
	connections := connectiondao.Build(api, env)

	broadcaster := &huddlews.Broadcaster{
		Connections: connections,
		Logger:      logger,
	}
	handler := &huddlews.Handler{
		Lifecycle: &huddlews.Lifecycle{
			Connections: connections,
			Presence:    presencedao.Build(api, env),
			Rooms:       broadcaster,
			Logger:      logger,
		},
		Broadcaster: broadcaster,
		Connections: connections,
		Logger:      logger,
	}

	lambda.Start(handler.HandleEvent)
	return nil
}
