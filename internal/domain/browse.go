package domain

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"strings"
)

// MaxSweepAddresses bounds a single sweep
const MaxSweepAddresses = 1024

// ErrInvalidRange is returned for ranges that cannot be resolved
var ErrInvalidRange = errors.New("invalid browse range")

// BrowseRange selects the addresses a sweep visits: either the subnet
// derived from IP/Netmask or an explicit RangeStart/RangeLength window.
type BrowseRange struct {
	IP          string `json:"ip"`
	Netmask     string `json:"netmask"`
	RangeStart  string `json:"rangeStart,omitempty"`
	RangeLength *uint  `json:"rangeLength,omitempty"`
}

// AddressRange is a resolved contiguous run of IPv4 addresses
type AddressRange struct {
	Start uint32
	Count uint64
}

// At returns the i-th address in dotted-quad form
func (r AddressRange) At(i uint64) string {
	return Uint32ToIP(r.Start + uint32(i)).String()
}

// First returns the first address or "" for an empty range
func (r AddressRange) First() string {
	if r.Count == 0 {
		return ""
	}
	return r.At(0)
}

// Resolve computes the address window
func (b BrowseRange) Resolve() (AddressRange, error) {
	if b.RangeStart != "" || b.RangeLength != nil {
		return b.resolveExplicit()
	}
	return b.resolveSubnet()
}

func (b BrowseRange) resolveExplicit() (AddressRange, error) {
	if b.RangeStart == "" || b.RangeLength == nil || *b.RangeLength == 0 {
		return AddressRange{}, fmt.Errorf("%w: rangeStart and rangeLength must both be set", ErrInvalidRange)
	}
	start, ok := IPToUint32(b.RangeStart)
	if !ok {
		return AddressRange{}, fmt.Errorf("%w: bad rangeStart %q", ErrInvalidRange, b.RangeStart)
	}
	count := uint64(*b.RangeLength)
	if uint64(start)+count-1 > 0xFFFFFFFF {
		return AddressRange{}, fmt.Errorf("%w: range runs past 255.255.255.255", ErrInvalidRange)
	}
	return AddressRange{Start: start, Count: count}, nil
}

func (b BrowseRange) resolveSubnet() (AddressRange, error) {
	ip, ok := IPToUint32(b.IP)
	if !ok {
		return AddressRange{}, fmt.Errorf("%w: bad ip %q", ErrInvalidRange, b.IP)
	}
	mask, err := parseMask(b.Netmask)
	if err != nil {
		return AddressRange{}, err
	}

	network := ip & mask
	broadcast := network | ^mask
	ones := onesCount(mask)

	switch {
	case ones == 32:
		return AddressRange{Start: ip, Count: 1}, nil
	case ones == 31:
		return AddressRange{Start: network, Count: 2}, nil
	}
	// skip network and broadcast addresses
	return AddressRange{Start: network + 1, Count: uint64(broadcast-network) - 1}, nil
}

// parseMask accepts dotted ("255.255.255.0") or prefix ("24", "/24") notation
func parseMask(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "/")
	if s == "" {
		return 0, fmt.Errorf("%w: netmask required", ErrInvalidRange)
	}
	if !strings.Contains(s, ".") {
		var bits int
		if _, err := fmt.Sscanf(s, "%d", &bits); err != nil || bits < 0 || bits > 32 {
			return 0, fmt.Errorf("%w: bad prefix %q", ErrInvalidRange, s)
		}
		return binary.BigEndian.Uint32(net.CIDRMask(bits, 32)), nil
	}
	m, ok := IPToUint32(s)
	if !ok {
		return 0, fmt.Errorf("%w: bad netmask %q", ErrInvalidRange, s)
	}
	if _, bits := net.IPMask(Uint32ToIP(m)).Size(); bits == 0 {
		return 0, fmt.Errorf("%w: non-contiguous netmask %q", ErrInvalidRange, s)
	}
	return m, nil
}

func onesCount(mask uint32) int {
	ones, _ := net.IPMask(Uint32ToIP(mask)).Size()
	return ones
}

// IPToUint32 converts a dotted-quad IPv4 address
func IPToUint32(s string) (uint32, bool) {
	ip := net.ParseIP(strings.TrimSpace(s)).To4()
	if ip == nil {
		return 0, false
	}
	return binary.BigEndian.Uint32(ip), true
}

// Uint32ToIP converts back to net.IP
func Uint32ToIP(u uint32) net.IP {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, u)
	return net.IP(b)
}
