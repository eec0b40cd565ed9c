package main

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/Svandze/Spring-Graphql/metrics"
)

// SocketHandler serves the unified schema over the graphql-ws protocol.
type SocketHandler struct {
	upgrader       websocket.Upgrader
	schemaProvider SchemaProvider
	logger         *slog.Logger
	metrics        *metrics.Metrics
}

func NewSocketHandler(schemaProvider SchemaProvider, logger *slog.Logger, m *metrics.Metrics) *SocketHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &SocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		schemaProvider: schemaProvider,
		logger:         logger,
		metrics:        m,
	}
}

func (s *SocketHandler) createConnection(w http.ResponseWriter, r *http.Request) (*SocketConnection, error) {
	header := make(http.Header)
	if protocols := websocket.Subprotocols(r); len(protocols) > 0 {
		header.Set("Sec-WebSocket-Protocol", protocols[0])
	}

	connection, err := s.upgrader.Upgrade(w, r, header)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return nil, err
	}

	return NewSocketConnection(connection, r, s.schemaProvider, s.logger), nil
}

func (s *SocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	socketConnection, err := s.createConnection(w, r)
	if err != nil {
		return
	}

	if s.metrics != nil {
		s.metrics.SocketOpened()
	}

	go func() {
		if s.metrics != nil {
			defer s.metrics.SocketClosed()
		}
		socketConnection.ProcessMessages()
	}()
}
