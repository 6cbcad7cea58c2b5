// Package huddlecron provides utilities for building scheduled Lambda
// functions, such as the liveness sweep.
package huddlecron

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog"

	huddlecli "github.com/huddle-live/huddle-go-utils/huddle-cli"
)

type RunCallback func(ctx context.Context) error

type Handler struct {
	service huddlecli.Service
	logger  zerolog.Logger

	runOnce RunCallback
}

func NewHandler(
	service huddlecli.Service,
	runOnce RunCallback,
) *Handler {
	return &Handler{
		service: service,
		logger:  huddlecli.Logger(service),
		runOnce: runOnce,
	}
}

func (h *Handler) RunOnce(ctx context.Context, _ json.RawMessage) error {
	h.logger.Info().Msg("running scheduled task")
	return h.runOnce(ctx)
}

func (h *Handler) Start() error {
	switch {
	case huddlecli.CommonOpts.Console:
		return h.runOnce(context.Background())

	default:
		lambda.Start(h.RunOnce)
	}
	return nil
}
