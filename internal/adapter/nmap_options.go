package adapter

import (
	"time"

	"github.com/sirupsen/logrus"
)

// NmapOption is a functional option for configuring NmapLookup
type NmapOption func(*NmapLookup)

// WithNmapTimeout bounds a single lookup scan
func WithNmapTimeout(d time.Duration) NmapOption {
	return func(n *NmapLookup) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// WithNmapBinary uses an nmap binary outside PATH
func WithNmapBinary(path string) NmapOption {
	return func(n *NmapLookup) {
		n.binaryPath = path
	}
}

// WithNmapPrivileged tells nmap it may use raw sockets (--privileged).
// Needed for MAC addresses when running with capabilities instead of root.
func WithNmapPrivileged(enabled bool) NmapOption {
	return func(n *NmapLookup) {
		n.privileged = enabled
	}
}

// WithNmapLogger sets the logger
func WithNmapLogger(l logrus.FieldLogger) NmapOption {
	return func(n *NmapLookup) {
		if l != nil {
			n.log = l
		}
	}
}
