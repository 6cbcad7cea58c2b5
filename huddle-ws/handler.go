package huddlews

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi"
	"github.com/rs/zerolog"

	"github.com/huddle-live/huddle-go-utils/faults"
)

// Handler adapts API Gateway WebSocket events onto the presence lifecycle
// and the room broadcaster.
type Handler struct {
	Lifecycle   *Lifecycle
	Broadcaster *Broadcaster
	Connections ConnectionDirectory
	Logger      zerolog.Logger
}

// HandleEvent routes an API Gateway WebSocket event to the appropriate handler.
func (h *Handler) HandleEvent(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	logger := h.Logger.With().
		Str("connection_id", req.RequestContext.ConnectionID).
		Str("route", req.RequestContext.RouteKey).
		Logger()

	switch req.RequestContext.RouteKey {
	case "$connect":
		return h.handleConnect(ctx, logger, req)
	case "$disconnect":
		return h.handleDisconnect(ctx, logger, req)
	case "$default":
		return h.handleMessage(ctx, logger, req)
	default:
		logger.Warn().Msg("unknown route")
		return events.APIGatewayProxyResponse{StatusCode: 400}, nil
	}
}

func (h *Handler) handleConnect(ctx context.Context, logger zerolog.Logger, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	var (
		connID   = req.RequestContext.ConnectionID
		endpoint = callbackEndpoint(req)
		userID   = req.QueryStringParameters["userId"]
		roomID   = req.QueryStringParameters["roomId"]
	)

	err := h.Lifecycle.OnConnect(ctx, connID, endpoint, userID, roomID)
	if err != nil {
		logger.Warn().Err(err).Msg("connect failed")
	}
	return events.APIGatewayProxyResponse{StatusCode: faults.HTTPStatus(err)}, nil
}

func (h *Handler) handleDisconnect(ctx context.Context, logger zerolog.Logger, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	err := h.Lifecycle.OnDisconnect(ctx, req.RequestContext.ConnectionID)
	if err != nil {
		logger.Error().Err(err).Msg("disconnect failed")
	}
	return events.APIGatewayProxyResponse{StatusCode: faults.HTTPStatus(err)}, nil
}

func (h *Handler) handleMessage(ctx context.Context, logger zerolog.Logger, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	msg, err := ParseClientMessage(req.Body)
	if err != nil {
		logger.Warn().Err(err).Msg("invalid message")
		return events.APIGatewayProxyResponse{StatusCode: 400}, nil
	}

	connID := req.RequestContext.ConnectionID

	switch msg.Action {
	case ActionSendMessage:
		return h.handleSendMessage(ctx, logger, connID, msg)
	case ActionPing:
		if err := h.postToConnection(ctx, callbackEndpoint(req), connID, PongFrame()); err != nil {
			logger.Error().Err(err).Msg("failed to send pong")
		}
		return events.APIGatewayProxyResponse{StatusCode: 200}, nil
	default:
		logger.Warn().Str("action", msg.Action).Msg("unhandled message action")
		return events.APIGatewayProxyResponse{StatusCode: 200}, nil
	}
}

// handleSendMessage broadcasts a user-composed chat message to the sender's
// room. Chat sends are not idempotent, so the delivery path never retries
// them; unreachable peers are simply logged or evicted by the broadcaster.
func (h *Handler) handleSendMessage(ctx context.Context, logger zerolog.Logger, connID string, msg *ClientMessage) (events.APIGatewayProxyResponse, error) {
	conn, err := h.Connections.Get(ctx, connID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to resolve sender")
		return events.APIGatewayProxyResponse{StatusCode: 500}, nil
	}
	if conn == nil || conn.RoomID == "" {
		logger.Warn().Msg("sender has no room, dropping message")
		return events.APIGatewayProxyResponse{StatusCode: 400}, nil
	}

	h.Broadcaster.Broadcast(ctx, conn.RoomID, ChatMessage(conn.RoomID, conn.UserID, msg.Body), connID)
	return events.APIGatewayProxyResponse{StatusCode: 200}, nil
}

func (h *Handler) postToConnection(ctx context.Context, endpoint, connID string, data []byte) error {
	client := h.Broadcaster.managementClient(endpoint)
	_, err := client.PostToConnectionWithContext(ctx, &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: aws.String(connID),
		Data:         data,
	})
	return err
}

func callbackEndpoint(req events.APIGatewayWebsocketProxyRequest) string {
	return fmt.Sprintf("https://%s/%s", req.RequestContext.DomainName, req.RequestContext.Stage)
}
