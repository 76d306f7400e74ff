package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/classwork-backend/internal/config"
	"github.com/stemsi/classwork-backend/internal/middleware"
	"github.com/stemsi/classwork-backend/internal/response"
	"github.com/stemsi/classwork-backend/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

type MonitorHandler struct {
	rdb            *redis.Client
	monitorService *service.MonitorService
	log            zerolog.Logger
}

func NewMonitorHandler(
	rdb *redis.Client,
	monitorService *service.MonitorService,
	log zerolog.Logger,
) *MonitorHandler {
	return &MonitorHandler{
		rdb:            rdb,
		monitorService: monitorService,
		log:            log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorAssignmentSSE godoc
// GET /api/v1/teacher/assignments/:assignment_id/monitor
// Streams the live suspicion overview: an initial snapshot, raw pub/sub
// events as they arrive, and a periodic snapshot refresh.
func (h *MonitorHandler) MonitorAssignmentSSE(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assignmentID, err := uuid.Parse(c.Param("assignment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	reqCtx := c.Request.Context()

	// The first snapshot doubles as the existence and ownership gate; fail
	// before committing to the event-stream content type.
	snapshot, err := h.fetchSnapshot(reqCtx, assignmentID, claims.UserID)
	if err != nil {
		failDomain(c, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("Access-Control-Allow-Origin", "*")

	h.sendSnapshot(c, snapshot)

	channelName := config.CacheKey.AssignmentMonitorChannel(assignmentID.String())
	pubsub := h.rdb.Subscribe(reqCtx, channelName)
	defer pubsub.Close()

	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	h.log.Info().Str("assignment_id", assignmentID.String()).Msg("Teacher attached to live monitor SSE")

	// Pre-allocate a reusable ping payload (never changes)
	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("assignment_id", assignmentID.String()).Msg("Teacher disconnected from live monitor SSE")
			return

		case msg := <-ch:
			// Forward raw JSON directly, no deserialization needed
			c.Writer.Write([]byte("data: "))
			c.Writer.Write([]byte(msg.Payload))
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()

		case <-refreshTicker.C:
			refreshed, err := h.fetchSnapshot(reqCtx, assignmentID, claims.UserID)
			if err != nil {
				h.log.Warn().Err(err).Msg("Failed to refresh monitor snapshot")
				continue
			}
			h.sendSnapshot(c, refreshed)

		case <-keepAliveTicker.C:
			c.Writer.Write([]byte("data: "))
			c.Writer.Write(pingPayload)
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		}
	}
}

// fetchSnapshot queries the overview with a scoped timeout so a slow query
// never stalls the SSE loop.
func (h *MonitorHandler) fetchSnapshot(parentCtx context.Context, assignmentID uuid.UUID, teacherID int) ([]service.AttemptSuspicion, error) {
	ctx, cancel := context.WithTimeout(parentCtx, refreshTimeout)
	defer cancel()
	return h.monitorService.Snapshot(ctx, assignmentID, teacherID)
}

func (h *MonitorHandler) sendSnapshot(c *gin.Context, snapshot []service.AttemptSuspicion) {
	if snapshot == nil {
		snapshot = []service.AttemptSuspicion{}
	}
	c.SSEvent("message", map[string]interface{}{
		"type":     "snapshot",
		"attempts": snapshot,
	})
	c.Writer.Flush()
}
