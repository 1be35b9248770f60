package adapter

import (
	"context"
	"fmt"
	"net"
	"strings"

	psnet "github.com/shirou/gopsutil/v3/net"

	"pingwatch/internal/domain"
)

// Inventory lists local interfaces via gopsutil
type Inventory struct{}

// NewInventory returns the local host inventory
func NewInventory() *Inventory {
	return &Inventory{}
}

// HostInterfaces returns one entry per interface address
func (Inventory) HostInterfaces(ctx context.Context) ([]domain.HostInterface, error) {
	stats, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	return toHostInterfaces(stats), nil
}

func toHostInterfaces(stats psnet.InterfaceStatList) []domain.HostInterface {
	var out []domain.HostInterface
	for _, s := range stats {
		internal := hasFlag(s.Flags, "loopback")
		for _, a := range s.Addrs {
			ip, ipnet, err := net.ParseCIDR(a.Addr)
			if err != nil {
				continue
			}
			hi := domain.HostInterface{Name: s.Name, IP: ip.String(), Internal: internal || ip.IsLoopback()}
			if v4 := ip.To4(); v4 != nil {
				hi.Family = "IPv4"
				hi.Netmask = net.IP(ipnet.Mask).String()
			} else {
				hi.Family = "IPv6"
				ones, _ := ipnet.Mask.Size()
				hi.Netmask = fmt.Sprintf("/%d", ones)
			}
			out = append(out, hi)
		}
	}
	return out
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if strings.EqualFold(f, want) {
			return true
		}
	}
	return false
}

// FindInterface returns the IPv4 entry whose name or address equals key
func FindInterface(ifaces []domain.HostInterface, key string) (domain.HostInterface, bool) {
	for _, i := range ifaces {
		if i.IsIPv4() && (i.Name == key || i.IP == key) {
			return i, true
		}
	}
	return domain.HostInterface{}, false
}

// DefaultInterface returns the first external IPv4 interface
func DefaultInterface(ifaces []domain.HostInterface) (domain.HostInterface, bool) {
	for _, i := range ifaces {
		if i.IsIPv4() && !i.Internal {
			return i, true
		}
	}
	return domain.HostInterface{}, false
}
