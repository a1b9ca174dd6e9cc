// Package health implements the cross-process health-signaling channel
// shared with an optional supervising process.
//
// The channel is a fixed-layout record mapped from a shared-memory
// segment the supervisor created before this process started. Access is
// deliberately lock-free: each field has a single writer (this agent
// writes liveness and failure counts, the supervisor writes the kill
// request), all stores are aligned scalar writes, and readers tolerate
// staleness. The record is eventually consistent and never corrupting;
// that is the whole contract.
//
// When the environment does not name a segment the channel is inert and
// every operation is a no-op, so the rest of the engine behaves
// identically with or without a supervisor.
package health

import (
	"log/slog"
	"os"
	"time"
)

// EnvSegmentName names the environment variable carrying the
// shared-memory segment name. Set by the supervisor, absent otherwise.
const EnvSegmentName = "KILLCODE_HEALTH_SHM"

// record mirrors the supervisor's C-layout struct. Field order and sizes
// are wire format; do not reorder.
type record struct {
	lastSuccess         int64
	consecutiveFailures int32
	isAlive             int32
	shouldKillBase      int32
	parentRequestsKill  int32
}

// recordSize is the mapped length of the record in bytes.
const recordSize = 24

// Channel is a typed view over the shared record. A Channel with no
// mapping is inert: every method is a safe no-op.
type Channel struct {
	mem    []byte
	rec    *record
	logger *slog.Logger
}

// Open attaches to the segment named in the environment. It opens an
// existing segment only; creation and destruction belong to the
// supervisor. Any failure degrades to an inert channel: a broken health
// channel must never stop enforcement.
func Open(logger *slog.Logger) *Channel {
	name, ok := os.LookupEnv(EnvSegmentName)
	if !ok || name == "" {
		return &Channel{logger: logger}
	}

	ch, err := openSegment(name, logger)
	if err != nil {
		logger.Warn("health channel unavailable, continuing without supervisor",
			slog.String("segment", name),
			slog.String("error", err.Error()))
		return &Channel{logger: logger}
	}

	logger.Info("health channel attached", slog.String("segment", name))
	return ch
}

// Heartbeat sets the liveness flag.
func (c *Channel) Heartbeat() {
	if c == nil || c.rec == nil {
		return
	}
	c.rec.isAlive = 1
}

// Update records the outcome of a verification attempt: success resets
// the failure counter and stamps the last-success time, failure
// increments the counter. Either way the liveness flag is set.
func (c *Channel) Update(success bool) {
	if c == nil || c.rec == nil {
		return
	}
	if success {
		c.rec.consecutiveFailures = 0
		c.rec.lastSuccess = time.Now().Unix()
	} else {
		c.rec.consecutiveFailures++
		c.logger.Warn("verification failure recorded",
			slog.Int("consecutive_failures", int(c.rec.consecutiveFailures)))
	}
	c.rec.isAlive = 1
}

// RequestKillBase asks the supervisor to terminate the protected
// workload.
func (c *Channel) RequestKillBase() {
	if c == nil || c.rec == nil {
		return
	}
	c.rec.shouldKillBase = 1
	c.logger.Info("signaled supervisor to kill base binary")
}

// KillRequested reports whether the supervisor has asked this agent to
// terminate itself. Polled once per loop iteration.
func (c *Channel) KillRequested() bool {
	if c == nil || c.rec == nil {
		return false
	}
	return c.rec.parentRequestsKill == 1
}

// Close releases the mapping. The underlying segment is owned and
// destroyed by the supervisor, never here.
func (c *Channel) Close() {
	if c == nil || c.mem == nil {
		return
	}
	closeSegment(c.mem)
	c.mem = nil
	c.rec = nil
}
