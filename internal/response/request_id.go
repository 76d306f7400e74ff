package response

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextKeyRequestID is where the request id lives on the gin context;
// buildMetadata reads it back when writing the envelope.
const ContextKeyRequestID = "request_id"

// RequestIDMiddleware tags every request with an id, honoring an
// X-Request-ID supplied by the caller so proctoring clients can thread
// their own ids through the exam session.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Set(ContextKeyRequestID, reqID)
		c.Header("X-Request-ID", reqID)
		c.Next()
	}
}
