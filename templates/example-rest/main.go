package main

import (
	"fmt"
	"log"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/urfave/cli/v2"

	huddlecli "github.com/huddle-live/huddle-go-utils/huddle-cli"
	huddleddb "github.com/huddle-live/huddle-go-utils/huddle-ddb"
	huddlemeet "github.com/huddle-live/huddle-go-utils/huddle-meet"
	huddlerest "github.com/huddle-live/huddle-go-utils/huddle-rest"
	huddlesecret "github.com/huddle-live/huddle-go-utils/huddle-secret"
	huddlews "github.com/huddle-live/huddle-go-utils/huddle-ws"
	"github.com/huddle-live/huddle-go-utils/huddle-ws/connectiondao"
	"github.com/huddle-live/huddle-go-utils/huddle-ws/meetingdao"
)

var opts struct {
	MediaRegion string
	SecretName  string
}

var service = huddlecli.NewService("example-rest")

func main() {
	app := huddlecli.App(
		service,
		action,
		append(
			huddlecli.CommonFlags,
			huddlecli.PortFlag(5001),
			huddlecli.StringFlag("media-region", "conferencing media region", &opts.MediaRegion, "us-east-1"),
			huddlecli.StringFlag("secret-name", "secrets manager entry holding the admin token", &opts.SecretName, "huddle-admin"),
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

	var secret struct {
		AdminToken string `json:"adminToken"`
	}
	if err := huddlesecret.LoadSecret(sess, opts.SecretName, &secret); err != nil {
		return err
	}

	env := huddlecli.CommonOpts.Env
	logger := huddlecli.Logger(service)
	connections := connectiondao.Build(api, env)

	admin := &huddlerest.RoomAdmin{
		Meetings: meetingdao.Build(api, env),
		Sessions: huddlemeet.Build(opts.MediaRegion),
		Rooms: &huddlews.Broadcaster{
			Connections: connections,
			Logger:      logger,
		},
		Connections: connections,
		Logger:      logger,
		AdminToken:  secret.AdminToken,
	}

	routes := huddlerest.Middlewares(service, admin.Routes())
	return huddlerest.Webserver(service, routes)
}
