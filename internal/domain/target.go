package domain

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidTarget is returned when an address string cannot be parsed
var ErrInvalidTarget = errors.New("invalid probe target")

// trailing ":<digits>" marks a host:port address
var hostPortRe = regexp.MustCompile(`^(.+):(\d+)$`)

// ProbeTarget is a parsed probe address
type ProbeTarget struct {
	Host string  `json:"host"`
	Port *uint16 `json:"port,omitempty"`
}

// HasPort reports whether the target should be probed with a TCP connect
func (t ProbeTarget) HasPort() bool {
	return t.Port != nil
}

// String renders the target back to its address form
func (t ProbeTarget) String() string {
	if t.Port == nil {
		return t.Host
	}
	return net.JoinHostPort(t.Host, strconv.Itoa(int(*t.Port)))
}

// ParseTarget parses "host" or "host:port".
// Bare IPv6 literals ("fe80::1") never carry a port; use "[fe80::1]:80" for that.
func ParseTarget(address string) (ProbeTarget, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return ProbeTarget{}, fmt.Errorf("%w: empty address", ErrInvalidTarget)
	}

	if net.ParseIP(address) != nil {
		return ProbeTarget{Host: address}, nil
	}

	if strings.HasPrefix(address, "[") {
		host, port, err := net.SplitHostPort(address)
		if err != nil {
			if strings.HasSuffix(address, "]") {
				return ProbeTarget{Host: strings.Trim(address, "[]")}, nil
			}
			return ProbeTarget{}, fmt.Errorf("%w: %s", ErrInvalidTarget, address)
		}
		return withPort(host, port, address)
	}

	m := hostPortRe.FindStringSubmatch(address)
	if m == nil {
		return ProbeTarget{Host: address}, nil
	}
	return withPort(m[1], m[2], address)
}

func withPort(host, port, address string) (ProbeTarget, error) {
	n, err := strconv.ParseUint(port, 10, 16)
	if err != nil || n == 0 {
		return ProbeTarget{}, fmt.Errorf("%w: bad port in %s", ErrInvalidTarget, address)
	}
	p := uint16(n)
	return ProbeTarget{Host: host, Port: &p}, nil
}

// Port is a helper for building targets with a port
func Port(p uint16) *uint16 {
	return &p
}
