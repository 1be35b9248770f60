package adapter

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	nmap "github.com/Ullaakut/nmap/v3"
	"github.com/sirupsen/logrus"
)

// NmapLookup resolves MAC and vendor of a single host with an nmap ping
// scan (-sn). nmap only reports hardware addresses for hosts on a directly
// attached segment and usually needs raw socket privileges to do so.
type NmapLookup struct {
	binaryPath string
	timeout    time.Duration
	privileged bool
	log        logrus.FieldLogger

	mu      sync.Mutex
	vendors map[string]string
}

// NewNmapLookup checks once that nmap can run and returns nil when it cannot
func NewNmapLookup(ctx context.Context, opts ...NmapOption) *NmapLookup {
	n := &NmapLookup{
		timeout: 10 * time.Second,
		log:     logrus.StandardLogger(),
		vendors: make(map[string]string),
	}
	for _, opt := range opts {
		opt(n)
	}

	if !n.isNmapAvailable(ctx) {
		n.log.Info("nmap not available, skipping nmap enrichment")
		return nil
	}
	return n
}

// isNmapAvailable runs a list scan, which sends no packets
func (n *NmapLookup) isNmapAvailable(ctx context.Context) bool {
	scanner, err := nmap.NewScanner(ctx, n.baseOptions("localhost", nmap.WithListScan())...)
	if err != nil {
		return false
	}
	_, _, err = scanner.Run()
	return err == nil
}

func (n *NmapLookup) baseOptions(target string, extra ...nmap.Option) []nmap.Option {
	opts := []nmap.Option{nmap.WithTargets(target)}
	if n.binaryPath != "" {
		opts = append(opts, nmap.WithBinaryPath(n.binaryPath))
	}
	if n.privileged {
		opts = append(opts, nmap.WithPrivileged())
	}
	return append(opts, extra...)
}

// Lookup scans ip and returns what nmap reported
func (n *NmapLookup) Lookup(ctx context.Context, ip string) (mac, vendor string, err error) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	scanner, err := nmap.NewScanner(ctx, n.baseOptions(ip, nmap.WithPingScan())...)
	if err != nil {
		return "", "", fmt.Errorf("failed to create scanner: %w", err)
	}

	result, warnings, err := scanner.Run()
	if err != nil {
		return "", "", fmt.Errorf("scan failed: %w", err)
	}
	if warnings != nil && len(*warnings) > 0 {
		n.log.WithFields(logrus.Fields{"ip": ip, "warnings": *warnings}).Debug("nmap warnings")
	}

	mac, vendor = hardwareFromResult(result, ip)
	if mac != "" && vendor != "" {
		n.mu.Lock()
		n.vendors[mac] = vendor
		n.mu.Unlock()
	}
	return mac, vendor, nil
}

// MACForIP implements MACResolver
func (n *NmapLookup) MACForIP(ctx context.Context, ip string) string {
	mac, _, err := n.Lookup(ctx, ip)
	if err != nil {
		n.log.WithError(err).WithField("ip", ip).Debug("nmap lookup failed")
		return ""
	}
	return mac
}

// VendorForMAC implements VendorResolver from vendors seen in earlier scans
func (n *NmapLookup) VendorForMAC(_ context.Context, mac string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vendors[strings.ToUpper(mac)]
}

// hardwareFromResult picks the MAC address entry of the host that is up
// and matches ip
func hardwareFromResult(result *nmap.Run, ip string) (mac, vendor string) {
	if result == nil {
		return "", ""
	}
	for _, host := range result.Hosts {
		if host.Status.State != "up" {
			continue
		}

		var hostIP string
		for _, addr := range host.Addresses {
			if addr.AddrType == "ipv4" || addr.AddrType == "ipv6" {
				hostIP = addr.Addr
				break
			}
		}
		if hostIP != ip {
			continue
		}

		for _, addr := range host.Addresses {
			if addr.AddrType == "mac" {
				return strings.ToUpper(addr.Addr), addr.Vendor
			}
		}
	}
	return "", ""
}
