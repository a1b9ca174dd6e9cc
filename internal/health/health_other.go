//go:build !linux

package health

import (
	"errors"
	"log/slog"
)

// Shared-memory health signaling is only wired up on Linux. Elsewhere the
// channel stays inert, which the rest of the engine already tolerates.
func openSegment(name string, logger *slog.Logger) (*Channel, error) {
	return nil, errors.New("shared-memory health channel not supported on this platform")
}

func closeSegment(mem []byte) {}
