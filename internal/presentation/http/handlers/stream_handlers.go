package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/AtRiskMedia/kendr-go/internal/application/services/editor"
	"github.com/AtRiskMedia/kendr-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/kendr-go/internal/infrastructure/observability/logging"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const wsWriteWait = 10 * time.Second

// StreamHandlers pushes editor session events to clients over SSE or websocket.
type StreamHandlers struct {
	manager     *editor.Manager
	broadcaster messaging.Broadcaster
	heartbeat   time.Duration
	upgrader    websocket.Upgrader
	logger      *logging.ChanneledLogger
}

// NewStreamHandlers creates stream handlers. allowedOrigins gates websocket
// upgrades the same way CORS gates the REST routes.
func NewStreamHandlers(manager *editor.Manager, broadcaster messaging.Broadcaster, heartbeat time.Duration, allowedOrigins []string, logger *logging.ChanneledLogger) *StreamHandlers {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	return &StreamHandlers{
		manager:     manager,
		broadcaster: broadcaster,
		heartbeat:   heartbeat,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origins[origin]
			},
		},
	}
}

// Events handles GET /api/v1/editor/sessions/:id/events as text/event-stream.
func (h *StreamHandlers) Events(c *gin.Context) {
	sess, err := h.manager.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	log := h.logger.WithSession(logging.ChannelSSE, sess.SiteID, sess.ID)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ch := h.broadcaster.AddClientWithSession(sess.SiteID, sess.ID)
	defer h.broadcaster.RemoveClientWithSession(ch, sess.SiteID, sess.ID)

	fmt.Fprintf(c.Writer, "event: connected\ndata: {\"sessionId\":%q,\"isSaving\":%t}\n\n", sess.ID, sess.IsSaving())
	c.Writer.Flush()
	log.Info("SSE connection established", "connections", h.broadcaster.GetSessionConnectionCount(sess.SiteID, sess.ID))

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	connectionStart := time.Now()
	clientCtx := c.Request.Context()
	for {
		select {
		case <-clientCtx.Done():
			log.Info("SSE client disconnected", "connectionDuration", time.Since(connectionStart))
			return

		case event, ok := <-ch:
			if !ok {
				log.Info("SSE stream closed by session", "connectionDuration", time.Since(connectionStart))
				return
			}
			if _, err := c.Writer.WriteString(event.SSE()); err != nil {
				log.Error("SSE write failed", "error", err.Error())
				return
			}
			c.Writer.Flush()

		case <-ticker.C:
			heartbeat := fmt.Sprintf("event: heartbeat\ndata: {\"timestamp\":%q}\n\n", time.Now().UTC().Format(time.RFC3339))
			if _, err := c.Writer.WriteString(heartbeat); err != nil {
				log.Error("SSE heartbeat failed", "error", err.Error())
				return
			}
			c.Writer.Flush()
		}
	}
}

// WebSocket handles GET /api/v1/editor/sessions/:id/ws. Each event is sent
// as one JSON text frame; incoming frames are ignored.
func (h *StreamHandlers) WebSocket(c *gin.Context) {
	sess, err := h.manager.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	log := h.logger.WithSession(logging.ChannelSSE, sess.SiteID, sess.ID)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("Websocket upgrade failed", "error", err.Error())
		return
	}
	defer conn.Close()

	ch := h.broadcaster.AddClientWithSession(sess.SiteID, sess.ID)
	defer h.broadcaster.RemoveClientWithSession(ch, sess.SiteID, sess.ID)

	// Reading is required to observe close frames from the client.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	log.Info("Websocket connection established")

	for {
		select {
		case <-gone:
			log.Info("Websocket client disconnected")
			return

		case event, ok := <-ch:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				log.Error("Websocket write failed", "error", err.Error())
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Warn("Websocket ping failed", "error", err.Error())
				return
			}
		}
	}
}
