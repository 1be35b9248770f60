package adapter

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"
)

// DefaultARPPath is the Linux neighbour table
const DefaultARPPath = "/proc/net/arp"

// ARPTable resolves MAC addresses from the kernel ARP cache
type ARPTable struct {
	path string
}

// NewARPTable reads the table at path, or DefaultARPPath when empty.
// It returns nil when the table cannot be read on this host.
func NewARPTable(path string) *ARPTable {
	if path == "" {
		path = DefaultARPPath
	}
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	f.Close()
	return &ARPTable{path: path}
}

// MACForIP looks ip up in the current table
func (a *ARPTable) MACForIP(_ context.Context, ip string) string {
	f, err := os.Open(a.path)
	if err != nil {
		return ""
	}
	defer f.Close()
	return parseARP(f, ip)
}

// parseARP scans /proc/net/arp formatted input:
//
//	IP address       HW type     Flags       HW address            Mask     Device
//	192.168.1.1      0x1         0x2         a4:91:b1:00:11:22     *        eth0
func parseARP(r io.Reader, ip string) string {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || fields[0] != ip {
			continue
		}
		mac := fields[3]
		// incomplete entries
		if mac == "00:00:00:00:00:00" {
			continue
		}
		return strings.ToUpper(mac)
	}
	return ""
}
