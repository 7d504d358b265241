package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/danmuck/evrstamp/internal/regfile"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RequestLogger writes one line per request. Register routes add the slot
// they touched and the bus error, if the handler attached one.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := logger.Info()
		if status >= 500 {
			event = logger.Error()
		} else if status >= 400 {
			event = logger.Warn()
		}

		event = event.
			Str("method", c.Request.Method).
			Str("path", routePath(c)).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Int("bytes", c.Writer.Size())
		if slot, ok := registerTarget(c); ok {
			event = event.Str("slot", slot)
		}
		if last := c.Errors.Last(); last != nil {
			event = event.Err(last.Err)
		}
		event.Msg("http_request")
	}
}

// RequestMetricsMiddleware records the generic HTTP series for every route
// and a per-slot access count for routes that go through the register bus.
func RequestMetricsMiddleware(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		RecordHTTPRequest(name, c.Request.Method, routePath(c), status, time.Since(start))
		if slot, ok := registerTarget(c); ok {
			RecordRegisterAccess(name, slot, accessOp(c.Request.Method), status < http.StatusBadRequest)
		}
	}
}

func routePath(c *gin.Context) string {
	if path := c.FullPath(); path != "" {
		return path
	}
	return c.Request.URL.Path
}

// registerTarget maps a route to the slot label it accesses. Out of range
// or malformed slot params collapse to "invalid" to bound label values.
func registerTarget(c *gin.Context) (string, bool) {
	switch c.FullPath() {
	case "/registers/:slot":
		slot, err := strconv.Atoi(c.Param("slot"))
		if err != nil || slot < 0 || slot >= regfile.NumSlots {
			return "invalid", true
		}
		return strconv.Itoa(slot), true
	case "/registers", "/snapshot":
		return "all", true
	case "/freeze/lock", "/freeze/unlock":
		return strconv.Itoa(regfile.SlotControl), true
	default:
		return "", false
	}
}

func accessOp(method string) string {
	if method == http.MethodGet {
		return "read"
	}
	return "write"
}
