package router

import (
	"os"
	"time"

	"github.com/mark3labs/acphost/internal/logger"
)

// timingEnabled mirrors ACP_TIMING; checked once per Router so a
// toggle mid-process is consistent for the life of a connection.
func timingEnabled() bool {
	return os.Getenv("ACP_TIMING") == "1"
}

// RequestTiming describes one completed outbound request/response round
// trip, emitted only when instrumentation is enabled. It is exported so a
// host application — or the bundled telemetry bus — can subscribe without
// parsing log lines.
type RequestTiming struct {
	Method       string
	ElapsedMs    int64
	RequestBytes int
	ResponseBytes int
	Failed       bool
}

// emitTiming logs a structured line and, if a subscriber is attached, calls
// it. Both are strictly additive: nothing here can change correctness of
// the request/response correlation it observes.
func (r *Router) emitTiming(method string, start time.Time, reqBytes, respBytes int, failed bool) {
	if !r.timing {
		return
	}
	elapsed := time.Since(start).Milliseconds()
	logger.Debug("router: %s elapsed=%dms req=%dB resp=%dB failed=%v", method, elapsed, reqBytes, respBytes, failed)
	if r.onTiming != nil {
		r.onTiming(RequestTiming{
			Method:        method,
			ElapsedMs:     elapsed,
			RequestBytes:  reqBytes,
			ResponseBytes: respBytes,
			Failed:        failed,
		})
	}
}
