package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/graphql-go/graphql"

	"github.com/Svandze/Spring-Graphql/upstream"
)

// SocketConnection is one graphql-ws client. Operations run one at a time in
// the order they arrive.
type SocketConnection struct {
	ctx            context.Context
	connection     *websocket.Conn
	schemaProvider SchemaProvider
	logger         *slog.Logger
	closed         bool
}

type socketBaseMessage struct {
	Id   string `json:"id,omitempty"`
	Type string `json:"type,omitempty"`
}

type socketConnectionRequest struct {
	socketBaseMessage
	Payload json.RawMessage `json:"payload,omitempty"`
}

type simpleResponse struct {
	socketBaseMessage
}

type payloadResponse struct {
	socketBaseMessage
	Payload interface{} `json:"payload,omitempty"`
}

// socketContext carries the upgrade request's values (trace span, request id)
// and credential into the connection. It is detached from the request's
// cancellation, which fires as soon as the upgrade handler returns.
func socketContext(r *http.Request) context.Context {
	return upstream.WithAuth(context.WithoutCancel(r.Context()), GetAuthValue(r))
}

func NewSocketConnection(connection *websocket.Conn, r *http.Request, schemaProvider SchemaProvider, logger *slog.Logger) *SocketConnection {
	return &SocketConnection{
		ctx:            socketContext(r),
		connection:     connection,
		schemaProvider: schemaProvider,
		logger:         logger.With("remote_addr", r.RemoteAddr, "request_id", RequestIDFrom(r.Context())),
	}
}

func (s *SocketConnection) send(response interface{}) error {
	responseJSON, err := json.Marshal(response)
	if err != nil {
		return err
	}

	return s.connection.WriteMessage(websocket.TextMessage, responseJSON)
}

func (s *SocketConnection) sendError(id, message string) {
	err := s.send(payloadResponse{
		socketBaseMessage: socketBaseMessage{Id: id, Type: "error"},
		Payload:           map[string]string{"message": message},
	})
	if err != nil {
		s.logger.Debug("writing socket error", "error", err)
	}
}

func (s *SocketConnection) handleConnectionInit(request *socketConnectionRequest) {
	if len(request.Payload) > 0 && string(request.Payload) != "null" {
		var connectionParams map[string]interface{}
		if err := json.Unmarshal(request.Payload, &connectionParams); err != nil {
			s.sendError(request.Id, "connection_init payload must be an object")
			return
		}

		if authToken, ok := connectionParams["Authentication"].(string); ok && authToken != "" {
			s.ctx = upstream.WithAuth(s.ctx, authToken)
		}
	}

	_ = s.send(payloadResponse{
		socketBaseMessage: socketBaseMessage{Id: request.Id, Type: "connection_ack"},
		Payload:           "ACK",
	})
}

func (s *SocketConnection) handleConnectionTerminate(request *socketConnectionRequest) {
	s.closed = true
}

func (s *SocketConnection) handleStart(request *socketConnectionRequest) {
	var payload upstream.Request
	if err := json.Unmarshal(request.Payload, &payload); err != nil {
		s.sendError(request.Id, "start payload is not a GraphQL request")
		return
	}

	result := graphql.Do(graphql.Params{
		Schema:         s.schemaProvider.GetSchema(),
		RequestString:  payload.Query,
		VariableValues: payload.Variables,
		OperationName:  payload.OperationName,
		Context:        s.ctx,
	})

	if err := s.send(payloadResponse{
		socketBaseMessage: socketBaseMessage{Id: request.Id, Type: "data"},
		Payload:           result,
	}); err != nil {
		s.logger.Debug("writing socket data", "error", err)
		return
	}

	_ = s.send(simpleResponse{
		socketBaseMessage: socketBaseMessage{Id: request.Id, Type: "complete"},
	})
}

// Operations complete before the next message is read, so there is nothing
// left to cancel.
func (s *SocketConnection) handleStop(request *socketConnectionRequest) {
}

func (s *SocketConnection) processMessage(request *socketConnectionRequest) {
	switch request.Type {
	case "connection_init":
		s.handleConnectionInit(request)
	case "connection_terminate":
		s.handleConnectionTerminate(request)
	case "start":
		s.handleStart(request)
	case "stop":
		s.handleStop(request)
	default:
		s.sendError(request.Id, "unknown message type: "+request.Type)
	}
}

func (s *SocketConnection) ProcessMessages() {
	s.logger.Debug("socket opened")
	defer s.logger.Debug("socket closed")
	defer s.connection.Close()

	for !s.closed {
		_, message, err := s.connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("socket read failed", "error", err)
			}
			return
		}

		request := &socketConnectionRequest{}
		if err := json.Unmarshal(message, request); err != nil {
			s.sendError("", "message is not valid JSON")
			continue
		}

		s.processMessage(request)
	}
}
