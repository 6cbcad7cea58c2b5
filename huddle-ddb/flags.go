package huddleddb

import (
	"github.com/urfave/cli/v2"

	huddlecli "github.com/huddle-live/huddle-go-utils/huddle-cli"
)

var DDBOpts struct {
	DAXCluster string
	TableName  string
}

var DAXClusterFlag = huddlecli.StringFlag("dax-cluster", "The DAX cluster to connect to", &DDBOpts.DAXCluster)
var TableNameFlag = huddlecli.StringFlag("table-name", "The table name to read streams from", &DDBOpts.TableName)

var DDBFlags = []cli.Flag{
	DAXClusterFlag,
	TableNameFlag,
}
