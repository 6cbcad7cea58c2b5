package huddlereaper

import (
	"time"

	"github.com/urfave/cli/v2"

	huddlecli "github.com/huddle-live/huddle-go-utils/huddle-cli"
)

var ReaperOpts struct {
	EmptyThresholdSec int
	MaxAgeSec         int
	PauseMs           int
}

var EmptyThresholdFlag = huddlecli.IntFlag("empty-threshold-sec", "seconds a room must exist before zero participants ends it", &ReaperOpts.EmptyThresholdSec, 300)
var MaxAgeFlag = huddlecli.IntFlag("max-age-sec", "hard ceiling on room lifetime in seconds", &ReaperOpts.MaxAgeSec, 14400)
var PauseFlag = huddlecli.IntFlag("pause-ms", "delay between sessions during a sweep", &ReaperOpts.PauseMs, 250)

var ReaperFlags = []cli.Flag{
	EmptyThresholdFlag,
	MaxAgeFlag,
	PauseFlag,
}

// ConfigFromFlags builds a sweep Config from the parsed CLI flags. Dry-run
// follows the common --dry flag.
func ConfigFromFlags() Config {
	return Config{
		EmptyThreshold: time.Duration(ReaperOpts.EmptyThresholdSec) * time.Second,
		MaxAge:         time.Duration(ReaperOpts.MaxAgeSec) * time.Second,
		Pause:          time.Duration(ReaperOpts.PauseMs) * time.Millisecond,
		DryRun:         huddlecli.CommonOpts.Dry,
	}
}
