package adapter

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pingwatch/internal/domain"
)

const arpFixture = `IP address       HW type     Flags       HW address            Mask     Device
192.168.1.1      0x1         0x2         a4:91:b1:00:11:22     *        eth0
192.168.1.7      0x1         0x0         00:00:00:00:00:00     *        eth0
192.168.1.12     0x1         0x2         3c:22:fb:aa:bb:cc     *        wlan0
`

func TestParseARP(t *testing.T) {
	tests := []struct {
		ip   string
		want string
	}{
		{"192.168.1.1", "A4:91:B1:00:11:22"},
		{"192.168.1.12", "3C:22:FB:AA:BB:CC"},
		{"192.168.1.7", ""},
		{"192.168.1.99", ""},
	}
	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			assert.Equal(t, tt.want, parseARP(strings.NewReader(arpFixture), tt.ip))
		})
	}
}

func TestARPTableFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arp")
	require.NoError(t, os.WriteFile(path, []byte(arpFixture), 0o644))

	table := NewARPTable(path)
	require.NotNil(t, table)
	assert.Equal(t, "A4:91:B1:00:11:22", table.MACForIP(context.Background(), "192.168.1.1"))

	assert.Nil(t, NewARPTable(filepath.Join(t.TempDir(), "missing")))
}

const prefixFixture = `# nmap-mac-prefixes
000000 Xerox
3C22FB Apple
A491B1 Technicolor Delivery Technologies Belgium NV
0050C2012 Tandberg Data
bogus line
`

func TestMACPrefixes(t *testing.T) {
	m, err := parseMACPrefixes(strings.NewReader(prefixFixture))
	require.NoError(t, err)
	assert.Equal(t, 4, m.Len())

	ctx := context.Background()
	assert.Equal(t, "Apple", m.VendorForMAC(ctx, "3C:22:FB:AA:BB:CC"))
	assert.Equal(t, "Apple", m.VendorForMAC(ctx, "3c-22-fb-aa-bb-cc"))
	assert.Equal(t, "Technicolor Delivery Technologies Belgium NV", m.VendorForMAC(ctx, "A4:91:B1:00:11:22"))
	assert.Equal(t, "Tandberg Data", m.VendorForMAC(ctx, "00:50:C2:01:2F:00"))
	assert.Empty(t, m.VendorForMAC(ctx, "FE:FF:FF:00:00:00"))
}

func TestLoadMACPrefixes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nmap-mac-prefixes")
	require.NoError(t, os.WriteFile(path, []byte(prefixFixture), 0o644))

	m, err := LoadMACPrefixes(path)
	require.NoError(t, err)
	assert.Equal(t, 4, m.Len())

	_, err = LoadMACPrefixes(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

type staticMAC map[string]string

func (s staticMAC) MACForIP(_ context.Context, ip string) string { return s[ip] }

type staticVendor map[string]string

func (s staticVendor) VendorForMAC(_ context.Context, mac string) string { return s[mac] }

func TestEnricher(t *testing.T) {
	ctx := context.Background()
	e := NewEnricher(
		[]MACResolver{staticMAC{"10.0.0.1": "AA:AA:AA:00:00:01"}, staticMAC{"10.0.0.2": "BB:BB:BB:00:00:02"}},
		[]VendorResolver{staticVendor{}, staticVendor{"BB:BB:BB:00:00:02": "Acme"}},
		nil,
	)
	require.NotNil(t, e)

	mac, vendor := e.Enrich(ctx, "10.0.0.1")
	assert.Equal(t, "AA:AA:AA:00:00:01", mac)
	assert.Empty(t, vendor)

	mac, vendor = e.Enrich(ctx, "10.0.0.2")
	assert.Equal(t, "BB:BB:BB:00:00:02", mac)
	assert.Equal(t, "Acme", vendor)

	mac, vendor = e.Enrich(ctx, "10.0.0.3")
	assert.Empty(t, mac)
	assert.Empty(t, vendor)

	assert.Nil(t, NewEnricher(nil, []VendorResolver{staticVendor{}}, nil))
}

func TestToHostInterfaces(t *testing.T) {
	stats := psnet.InterfaceStatList{
		{
			Name:  "lo",
			Flags: []string{"up", "loopback"},
			Addrs: psnet.InterfaceAddrList{{Addr: "127.0.0.1/8"}, {Addr: "::1/128"}},
		},
		{
			Name:  "eth0",
			Flags: []string{"up", "broadcast", "multicast"},
			Addrs: psnet.InterfaceAddrList{{Addr: "192.168.1.17/24"}, {Addr: "fe80::1/64"}, {Addr: "garbage"}},
		},
	}

	got := toHostInterfaces(stats)
	require.Len(t, got, 4)
	assert.Equal(t, domain.HostInterface{Name: "lo", IP: "127.0.0.1", Netmask: "255.0.0.0", Family: "IPv4", Internal: true}, got[0])
	assert.Equal(t, "IPv6", got[1].Family)
	assert.Equal(t, domain.HostInterface{Name: "eth0", IP: "192.168.1.17", Netmask: "255.255.255.0", Family: "IPv4"}, got[2])
	assert.Equal(t, "/64", got[3].Netmask)

	iface, ok := DefaultInterface(got)
	require.True(t, ok)
	assert.Equal(t, "eth0", iface.Name)

	iface, ok = FindInterface(got, "192.168.1.17")
	require.True(t, ok)
	assert.Equal(t, "eth0", iface.Name)

	_, ok = FindInterface(got, "wlan0")
	assert.False(t, ok)
}
