package websocket

import "encoding/json"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing   Action = "ping"
	ActionReport Action = "report"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ReportRequest is sent by the client to log a proctoring signal without an
// extra HTTP round trip.
type ReportRequest struct {
	Action    Action          `json:"action"`
	EventType string          `json:"event_type"`
	Attempt   *int            `json:"attempt,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError   Event = "error"
	EventSuccess Event = "success"
	EventControl Event = "control"
	EventPong    Event = "pong"
)

// ControlResponse wraps a teacher intervention forwarded from Redis Pub/Sub.
// Data carries the published ControlMessage verbatim.
type ControlResponse struct {
	Event Event           `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type SuccessResponse struct {
	Event  Event  `json:"event"`
	Status string `json:"status"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
