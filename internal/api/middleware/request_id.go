package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextTraceID holds the per-call correlation id. "request_id" is taken by
// blood request ids in service logs.
const ContextTraceID = "trace_id"

const (
	traceHeader   = "X-Request-ID"
	traceIDMaxLen = 64
)

// RequestID propagates X-Request-ID as the trace id, replacing ids that are
// empty, oversized or carry characters outside [A-Za-z0-9._-].
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		tid := c.GetHeader(traceHeader)
		if !validTraceID(tid) {
			tid = uuid.New().String()
		}

		c.Set(ContextTraceID, tid)
		c.Header(traceHeader, tid)

		c.Next()
	}
}

// TraceID returns the id set by RequestID, or "" outside that middleware.
func TraceID(c *gin.Context) string {
	return c.GetString(ContextTraceID)
}

func validTraceID(s string) bool {
	if s == "" || len(s) > traceIDMaxLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
		case ch == '-', ch == '_', ch == '.':
		default:
			return false
		}
	}
	return true
}
