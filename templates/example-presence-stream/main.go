package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/urfave/cli/v2"

	huddlecli "github.com/huddle-live/huddle-go-utils/huddle-cli"
	huddleddb "github.com/huddle-live/huddle-go-utils/huddle-ddb"
	huddlews "github.com/huddle-live/huddle-go-utils/huddle-ws"
	"github.com/huddle-live/huddle-go-utils/huddle-ws/connectiondao"
	"github.com/huddle-live/huddle-go-utils/huddle-ws/presencedao"
)

var service = huddlecli.NewService("example-presence-stream")

var deps struct {
	presence    *presencedao.DAO
	broadcaster *huddlews.Broadcaster
}

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

// onDelete fires when a connection row leaves the table, including TTL
// expiry of rows whose $disconnect never arrived. It reconciles presence and
// tells the room the user left.
func onDelete(ctx context.Context, oldValue map[string]*dynamodb.AttributeValue) error {
	var conn connectiondao.Connection
	if err := huddleddb.ParseItem(oldValue, &conn); err != nil {
		return err
	}

	if err := deps.presence.SetOffline(ctx, conn.UserID); err != nil {
		return err
	}
	if conn.RoomID != "" {
		deps.broadcaster.Broadcast(ctx, conn.RoomID, huddlews.UserLeft(conn.RoomID, conn.UserID), conn.ConnectionID)
	}
	return nil
}

func action(_ *cli.Context) error {
	sess := session.Must(session.NewSession(aws.NewConfig()))
	api, err := huddleddb.DynamoDBAPI(sess)
	if err != nil {
		return fmt.Errorf("unable to build dynamodb client: %w", err)
	}

	env := huddlecli.CommonOpts.Env
	deps.presence = presencedao.Build(api, env)
	deps.broadcaster = &huddlews.Broadcaster{
		Connections: connectiondao.Build(api, env),
		Logger:      huddlecli.Logger(service),
	}

	handler := huddleddb.NewHandler(service, nil, nil, onDelete)

	return handler.Start()
}
