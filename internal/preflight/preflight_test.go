package preflight

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func fakeChecker(found map[string]string, rawOK bool) *Checker {
	c := New()
	c.lookPath = func(file string) (string, error) {
		if p, ok := found[file]; ok {
			return p, nil
		}
		return "", errors.New("executable file not found in $PATH")
	}
	c.run = func(_ context.Context, name string, args ...string) ([]byte, error) {
		return []byte("Nmap version 7.94 ( https://nmap.org )\nPlatform: x86_64\n"), nil
	}
	c.listenRaw = func() (io.Closer, error) {
		if rawOK {
			return nopCloser{}, nil
		}
		return nil, errors.New("listen ip4:icmp: operation not permitted")
	}
	c.listenUnpriv = func() (io.Closer, error) { return nopCloser{}, nil }
	return c
}

func TestRunAllChecksPass(t *testing.T) {
	arp := filepath.Join(t.TempDir(), "arp")
	require.NoError(t, os.WriteFile(arp, []byte("IP address HW type\n"), 0644))

	c := fakeChecker(map[string]string{"ping": "/usr/bin/ping", "nmap": "/usr/bin/nmap"}, true)
	r := c.Run(context.Background(), Options{PingBinary: "ping", Nmap: true, ARPPath: arp})

	require.Len(t, r.Findings, 5)
	for _, f := range r.Findings {
		assert.True(t, f.OK, f.Name)
	}
	assert.Equal(t, "/usr/bin/ping", r.Findings[0].Detail)
	assert.True(t, r.OK(CheckNmap))
	assert.Equal(t, "Nmap version 7.94 ( https://nmap.org )", r.Findings[3].Detail)
}

func TestRunReportsMissingTools(t *testing.T) {
	c := fakeChecker(nil, false)
	r := c.Run(context.Background(), Options{PingBinary: "ping", Nmap: true, ARPPath: "/nonexistent/arp"})

	assert.False(t, r.OK(CheckPing))
	assert.False(t, r.OK(CheckRawICMP))
	assert.True(t, r.OK(CheckUnprivilegedICMP))
	assert.False(t, r.OK(CheckNmap))
	assert.False(t, r.OK(CheckARPTable))
	assert.False(t, r.OK("unknown"))

	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	r.Log(log)

	var warned []string
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warned = append(warned, e.Data["check"].(string))
		}
	}
	// only required checks escalate
	assert.ElementsMatch(t, []string{CheckPing, CheckNmap}, warned)
}

func TestRunSkipsOptionalChecks(t *testing.T) {
	c := fakeChecker(map[string]string{"/sbin/ping": "/sbin/ping"}, true)
	r := c.Run(context.Background(), Options{PingBinary: "/sbin/ping"})

	require.Len(t, r.Findings, 3)
	assert.True(t, r.OK(CheckPing))
}

func TestNoPingBinary(t *testing.T) {
	c := fakeChecker(nil, true)
	r := c.Run(context.Background(), Options{})
	assert.False(t, r.OK(CheckPing))
	assert.Equal(t, "no ping command for this platform", r.Findings[0].Detail)
}
