package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/classwork-backend/internal/config"
	"github.com/stemsi/classwork-backend/internal/middleware"
	"github.com/stemsi/classwork-backend/internal/model"
	"github.com/stemsi/classwork-backend/internal/service"
	ws "github.com/stemsi/classwork-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler handles the student attempt control stream.
type WSHandler struct {
	rdb            *redis.Client
	attemptService *service.AttemptService
	eventService   *service.EventService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(rdb *redis.Client, attemptService *service.AttemptService, eventService *service.EventService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		rdb:            rdb,
		attemptService: attemptService,
		eventService:   eventService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// AttemptControlStream godoc
// WS /ws/v1/student/assignments/:assignment_id/stream
// Upgrades to WebSocket and pushes teacher interventions (pause, resume,
// extend, terminate) to the student in real time. The client may also send
// proctoring signals over the same connection.
func (h *WSHandler) AttemptControlStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	assignmentID, err := uuid.Parse(c.Param("assignment_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid assignment ID"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	studentID := claims.UserID
	reqCtx := c.Request.Context()

	// Streaming only makes sense while an attempt is open.
	if _, err := h.attemptService.State(reqCtx, assignmentID, studentID); err != nil {
		ws.WriteError(conn, "no open attempt for this assignment")
		return
	}

	wsLog := h.log.With().
		Int("student_id", studentID).
		Str("assignment_id", assignmentID.String()).
		Logger()

	wsLog.Info().Msg("Student connected to control stream")

	channelName := config.CacheKey.AttemptControlChannel(assignmentID.String(), studentID)
	pubsub := h.rdb.Subscribe(reqCtx, channelName)
	defer pubsub.Close()

	controlCh := pubsub.Channel()

	// A dedicated reader goroutine lets one select loop own all writes to
	// the connection; gorilla/websocket allows only a single writer.
	clientCh := make(chan []byte)
	go func() {
		defer close(clientCh)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					wsLog.Warn().Err(err).Msg("Unexpected close")
				} else {
					wsLog.Debug().Msg("Connection closed")
				}
				return
			}
			select {
			case clientCh <- raw:
			case <-reqCtx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-reqCtx.Done():
			wsLog.Info().Msg("Student disconnected from control stream")
			return

		case msg, ok := <-controlCh:
			if !ok {
				return
			}
			ws.WriteTyped(conn, ws.ControlResponse{
				Event: ws.EventControl,
				Data:  json.RawMessage(msg.Payload),
			})

		case raw, ok := <-clientCh:
			if !ok {
				return
			}
			h.handleClientMessage(c, conn, wsLog, assignmentID, studentID, raw)
		}
	}
}

func (h *WSHandler) handleClientMessage(c *gin.Context, conn *websocket.Conn, wsLog zerolog.Logger, assignmentID uuid.UUID, studentID int, raw []byte) {
	var envelope ws.RequestEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		ws.WriteError(conn, "malformed message")
		return
	}

	switch envelope.Action {
	case ws.ActionPing:
		ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})

	case ws.ActionReport:
		var report ws.ReportRequest
		if err := json.Unmarshal(raw, &report); err != nil {
			ws.WriteError(conn, "malformed report")
			return
		}
		req := model.ReportEventRequest{
			EventType: model.EventType(report.EventType),
			Attempt:   report.Attempt,
			Metadata:  report.Metadata,
		}
		if _, err := h.eventService.AppendStudentEvent(c.Request.Context(), assignmentID, studentID, req); err != nil {
			wsLog.Warn().Err(err).Str("event_type", report.EventType).Msg("Report rejected")
			ws.WriteError(conn, "report rejected")
			return
		}
		ws.WriteTyped(conn, ws.SuccessResponse{Event: ws.EventSuccess, Status: "recorded"})

	default:
		wsLog.Warn().Str("action", string(envelope.Action)).Msg("Unknown action")
		ws.WriteError(conn, "unknown action: "+string(envelope.Action))
	}
}
