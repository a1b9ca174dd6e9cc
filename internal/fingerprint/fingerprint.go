// Package fingerprint derives a stable machine identity used to bind a
// license to the hardware it was verified on.
//
// The fingerprint is the SHA-256 hex digest of "{hostname}-{mac}" where
// mac is the hardware address of the first usable non-loopback network
// interface. Both inputs fail soft to fixed placeholders so the function
// always returns a digest. Nothing is cached: every call re-reads the OS,
// which keeps the value honest when the network configuration changes.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net"
	"os"
)

const (
	// unknownHostname stands in when the hostname cannot be read.
	unknownHostname = "unknown"
	// zeroMAC stands in when no interface exposes a hardware address.
	zeroMAC = "00:00:00:00:00:00"
)

// Machine returns the 64-character hex fingerprint of this machine.
// Deterministic for a given machine and network configuration.
func Machine() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		slog.Warn("hostname unavailable, using placeholder",
			slog.String("fallback", unknownHostname))
		hostname = unknownHostname
	}

	mac := primaryMAC()

	sum := sha256.Sum256([]byte(hostname + "-" + mac))
	return hex.EncodeToString(sum[:])
}

// primaryMAC returns the hardware address of the first non-loopback
// interface that is up, falling back to any non-loopback interface with
// an address, and finally to the all-zero placeholder.
func primaryMAC() string {
	interfaces, err := net.Interfaces()
	if err != nil {
		slog.Warn("network interfaces unavailable, using placeholder",
			slog.String("error", err.Error()))
		return zeroMAC
	}
	return selectMAC(interfaces)
}

// selectMAC picks the fingerprint interface. Loopbacks never qualify,
// even in the fallback pass: their addresses are synthetic and would tie
// the fingerprint to nothing.
func selectMAC(interfaces []net.Interface) string {
	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		if mac := iface.HardwareAddr.String(); mac != "" && mac != zeroMAC {
			return mac
		}
	}

	// Fallback: any non-loopback interface with a hardware address, even
	// if down.
	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if mac := iface.HardwareAddr.String(); mac != "" && mac != zeroMAC {
			return mac
		}
	}

	return zeroMAC
}
