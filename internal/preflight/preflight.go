// Package preflight checks what the host lets the monitor do before it
// starts probing: whether ping can be found, whether ICMP sockets can be
// opened, and which MAC sources are readable.
package preflight

import (
	"context"
	"io"
	"net"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/icmp"
)

// Check names
const (
	CheckPing             = "ping"
	CheckRawICMP          = "raw_icmp"
	CheckUnprivilegedICMP = "unprivileged_icmp"
	CheckNmap             = "nmap"
	CheckARPTable         = "arp_table"
)

// Finding is the outcome of one check
type Finding struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
	// Required findings degrade monitoring when they fail
	Required bool `json:"required"`
}

// Report collects the findings of a run
type Report struct {
	Findings []Finding `json:"findings"`
	At       time.Time `json:"at"`
}

// OK reports whether the named check passed
func (r Report) OK(name string) bool {
	for _, f := range r.Findings {
		if f.Name == name {
			return f.OK
		}
	}
	return false
}

// Log writes each finding; failed required checks are warnings
func (r Report) Log(log logrus.FieldLogger) {
	for _, f := range r.Findings {
		entry := log.WithFields(logrus.Fields{"check": f.Name, "ok": f.OK, "detail": f.Detail})
		switch {
		case !f.OK && f.Required:
			entry.Warn("preflight check failed")
		default:
			entry.Debug("preflight check")
		}
	}
}

// Options select what to check
type Options struct {
	// PingBinary is the command probes will run
	PingBinary string
	// Nmap adds the nmap check
	Nmap    bool
	NmapBin string
	// ARPPath is the neighbour table to read, "" skips the check
	ARPPath string
}

// Checker runs the checks. The zero value is not usable; use New.
type Checker struct {
	lookPath       func(file string) (string, error)
	run            func(ctx context.Context, name string, args ...string) ([]byte, error)
	listenRaw      func() (io.Closer, error)
	listenUnpriv   func() (io.Closer, error)
	readFile       func(path string) ([]byte, error)
	versionTimeout time.Duration
}

// New returns a checker that talks to the real host
func New() *Checker {
	return &Checker{
		lookPath: exec.LookPath,
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
		listenRaw: func() (io.Closer, error) {
			return net.ListenPacket("ip4:icmp", "0.0.0.0")
		},
		listenUnpriv: func() (io.Closer, error) {
			return icmp.ListenPacket("udp4", "0.0.0.0")
		},
		readFile:       os.ReadFile,
		versionTimeout: 2 * time.Second,
	}
}

// Run performs every check selected by opts
func (c *Checker) Run(ctx context.Context, opts Options) Report {
	r := Report{At: time.Now()}
	r.Findings = append(r.Findings, c.checkPing(opts.PingBinary))
	r.Findings = append(r.Findings, c.checkSocket(CheckRawICMP, c.listenRaw))
	r.Findings = append(r.Findings, c.checkSocket(CheckUnprivilegedICMP, c.listenUnpriv))
	if opts.Nmap {
		r.Findings = append(r.Findings, c.checkNmap(ctx, opts.NmapBin))
	}
	if opts.ARPPath != "" {
		r.Findings = append(r.Findings, c.checkARP(opts.ARPPath))
	}
	return r
}

func (c *Checker) checkPing(bin string) Finding {
	f := Finding{Name: CheckPing, Required: true}
	if bin == "" {
		f.Detail = "no ping command for this platform"
		return f
	}
	path, err := c.lookPath(bin)
	if err != nil {
		f.Detail = bin + " not found, only host:port targets can be probed"
		return f
	}
	f.OK, f.Detail = true, path
	return f
}

func (c *Checker) checkSocket(name string, listen func() (io.Closer, error)) Finding {
	f := Finding{Name: name}
	conn, err := listen()
	if err != nil {
		f.Detail = err.Error()
		return f
	}
	conn.Close()
	f.OK, f.Detail = true, "socket opened"
	return f
}

func (c *Checker) checkNmap(ctx context.Context, bin string) Finding {
	f := Finding{Name: CheckNmap, Required: true}
	if bin == "" {
		bin = "nmap"
	}
	path, err := c.lookPath(bin)
	if err != nil {
		f.Detail = bin + " not found"
		return f
	}

	ctx, cancel := context.WithTimeout(ctx, c.versionTimeout)
	defer cancel()
	out, err := c.run(ctx, path, "--version")
	if err != nil {
		f.Detail = "nmap --version failed: " + err.Error()
		return f
	}
	f.OK = true
	f.Detail = strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0])
	return f
}

func (c *Checker) checkARP(path string) Finding {
	f := Finding{Name: CheckARPTable}
	if _, err := c.readFile(path); err != nil {
		f.Detail = err.Error()
		return f
	}
	f.OK, f.Detail = true, path
	return f
}
