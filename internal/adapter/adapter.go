package adapter

import (
	"context"

	"pingwatch/internal/domain"
)

// MACResolver finds the hardware address of a host. "" means unknown.
type MACResolver interface {
	MACForIP(ctx context.Context, ip string) string
}

// VendorResolver names the manufacturer behind a hardware address.
// "" means unknown.
type VendorResolver interface {
	VendorForMAC(ctx context.Context, mac string) string
}

// InterfaceLister reports the network interfaces of the local host
type InterfaceLister interface {
	HostInterfaces(ctx context.Context) ([]domain.HostInterface, error)
}
