package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// RequestIDKey is the gin context key for the request ID.
	RequestIDKey = "request_id"

	// RequestIDHeader is the HTTP header used to propagate the request ID.
	RequestIDHeader = "X-Request-ID"
)

// RequestID tags every request with an ID. A client supplied X-Request-ID is
// reused only when it parses as a UUID; anything else is replaced and logged
// at debug level.
func RequestID(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)

		if parsed, err := uuid.Parse(id); err == nil {
			id = parsed.String()
		} else {
			if id != "" {
				log.WithField("client_request_id", id).Debug("ignoring malformed request ID")
			}

			id = uuid.New().String()
		}

		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}
