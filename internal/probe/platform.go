package probe

import (
	"fmt"
	"regexp"
	"strconv"
)

// platform builds the ping command line and reads its output for one OS family
type platform interface {
	name() string
	binary() string
	args(host string, cfg Config) []string
	parse(output []byte, exitCode int) (alive bool, ms *float64)
}

func platformFor(goos string) (platform, error) {
	switch goos {
	case "linux", "android":
		return linuxPing{}, nil
	case "darwin", "freebsd", "openbsd", "netbsd", "dragonfly":
		return bsdPing{}, nil
	case "windows":
		return windowsPing{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, goos)
}

var (
	// "time=11.6 ms", "time<1 ms"
	unixTimeRe = regexp.MustCompile(`time[=<]\s*([0-9]+(?:\.[0-9]+)?)\s*ms`)
	// "time=14ms", "time<1ms", and localized forms such as "Zeit=14ms"
	windowsTimeRe = regexp.MustCompile(`[=<]\s*([0-9]+(?:\.[0-9]+)?)\s*ms`)
)

func seconds(cfg Config) string {
	s := int(cfg.Timeout.Seconds())
	if s < 1 {
		s = 1
	}
	return strconv.Itoa(s)
}

func firstMatch(re *regexp.Regexp, output []byte) *float64 {
	m := re.FindSubmatch(output)
	if len(m) < 2 {
		return nil
	}
	v, err := strconv.ParseFloat(string(m[1]), 64)
	if err != nil {
		return nil
	}
	return &v
}

// linuxPing uses iputils semantics: -w is the overall deadline
type linuxPing struct{}

func (linuxPing) name() string   { return "linux" }
func (linuxPing) binary() string { return "ping" }

func (linuxPing) args(host string, cfg Config) []string {
	args := []string{"-n", "-w", seconds(cfg), "-c", strconv.Itoa(cfg.MinReply)}
	args = append(args, cfg.ExtraArgs...)
	return append(args, host)
}

// exit status decides liveness; latency is informational
func (linuxPing) parse(output []byte, exitCode int) (bool, *float64) {
	if exitCode != 0 {
		return false, nil
	}
	return true, firstMatch(unixTimeRe, output)
}

// bsdPing covers macOS and the BSDs: -t is the overall timeout
type bsdPing struct{}

func (bsdPing) name() string   { return "bsd" }
func (bsdPing) binary() string { return "/sbin/ping" }

func (bsdPing) args(host string, cfg Config) []string {
	args := []string{"-n", "-t", seconds(cfg), "-c", strconv.Itoa(cfg.MinReply)}
	args = append(args, cfg.ExtraArgs...)
	return append(args, host)
}

func (bsdPing) parse(output []byte, exitCode int) (bool, *float64) {
	if exitCode != 0 {
		return false, nil
	}
	return true, firstMatch(unixTimeRe, output)
}

// windowsPing takes the reply timeout in milliseconds. Its exit status is
// unreliable ("Destination host unreachable" exits 0), so a parsed latency
// is what makes a host alive.
type windowsPing struct{}

func (windowsPing) name() string   { return "windows" }
func (windowsPing) binary() string { return "ping" }

func (windowsPing) args(host string, cfg Config) []string {
	ms := cfg.Timeout.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	args := []string{"-n", strconv.Itoa(cfg.MinReply), "-w", strconv.FormatInt(ms, 10)}
	args = append(args, cfg.ExtraArgs...)
	return append(args, host)
}

func (windowsPing) parse(output []byte, _ int) (bool, *float64) {
	ms := firstMatch(windowsTimeRe, output)
	return ms != nil, ms
}
