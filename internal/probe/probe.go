// Package probe runs single reachability checks.
//
// Addresses of the form host:port are checked with a timed TCP connect.
// Everything else is handed to the platform's ping program, whose output
// is parsed for a round-trip time. The platform variant is chosen once when
// the Engine is built.
//
// "Target unreachable" is a normal result (Alive=false). Errors are reserved
// for the cases where the check itself could not run: ErrUnsupportedPlatform
// and ErrExec.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"pingwatch/internal/domain"
)

var (
	// ErrUnsupportedPlatform is returned when no ping variant exists for the OS
	ErrUnsupportedPlatform = errors.New("unsupported platform for ping")
	// ErrExec is returned when the probing subsystem could not be started
	ErrExec = errors.New("probe execution failed")
)

// Prober checks one address
type Prober interface {
	Probe(ctx context.Context, address string, cfg Config) (domain.ProbeResult, error)
}

// Config controls a single probe
type Config struct {
	// Timeout bounds the probe; ping receives it in whole seconds
	Timeout time.Duration
	// MinReply is the number of echo replies ping waits for
	MinReply int
	// ExtraArgs are appended to the ping command line before the host
	ExtraArgs []string
}

// DefaultConfig returns the defaults used by sweeps and one-off pings
func DefaultConfig() Config {
	return Config{
		Timeout:  2 * time.Second,
		MinReply: 1,
	}
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 2 * time.Second
	}
	if c.MinReply <= 0 {
		c.MinReply = 1
	}
	return c
}

// Engine implements Prober
type Engine struct {
	platform    platform
	platformErr error
	pingPath    string
	run         Runner
	dialer      net.Dialer
	log         logrus.FieldLogger
}

// Option configures an Engine
type Option func(*Engine)

// WithRunner replaces the process runner
func WithRunner(r Runner) Option {
	return func(e *Engine) {
		e.run = r
	}
}

// WithLogger sets the logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithPingPath overrides the ping binary
func WithPingPath(path string) Option {
	return func(e *Engine) {
		e.pingPath = path
	}
}

// WithGOOS selects the ping variant for a given OS instead of the running one
func WithGOOS(goos string) Option {
	return func(e *Engine) {
		e.platform, e.platformErr = platformFor(goos)
	}
}

// New builds an Engine for the running OS
func New(opts ...Option) *Engine {
	e := &Engine{
		run: ExecRunner,
		log: logrus.StandardLogger(),
	}
	e.platform, e.platformErr = platformFor(runtime.GOOS)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Probe checks address with the strategy implied by its form
func (e *Engine) Probe(ctx context.Context, address string, cfg Config) (domain.ProbeResult, error) {
	cfg = cfg.withDefaults()
	target, err := domain.ParseTarget(address)
	if err != nil {
		return domain.ProbeResult{}, err
	}
	if target.HasPort() {
		return e.probeTCP(ctx, address, target, cfg)
	}
	return e.probePing(ctx, address, target, cfg)
}

// Platform names the selected ping variant, or "" when unsupported
func (e *Engine) Platform() string {
	if e.platform == nil {
		return ""
	}
	return e.platform.name()
}

// Binary is the ping command the engine runs, or "" when unsupported
func (e *Engine) Binary() string {
	if e.pingPath != "" {
		return e.pingPath
	}
	if e.platform == nil {
		return ""
	}
	return e.platform.binary()
}

func (e *Engine) probePing(ctx context.Context, address string, target domain.ProbeTarget, cfg Config) (domain.ProbeResult, error) {
	if e.platformErr != nil {
		return domain.ProbeResult{}, e.platformErr
	}

	bin := e.Binary()
	args := e.platform.args(target.Host, cfg)
	e.log.WithFields(logrus.Fields{"host": address, "cmd": bin, "args": args}).Debug("ping")

	// ping enforces its own deadline; the context only guards a hung process
	runCtx, cancel := context.WithTimeout(ctx, cfg.Timeout+2*time.Second)
	defer cancel()

	out, code, err := e.run(runCtx, bin, args...)
	if err != nil {
		return domain.ProbeResult{}, fmt.Errorf("%w: %s %v: %v", ErrExec, bin, args, err)
	}

	alive, ms := e.platform.parse(out, code)
	if !alive {
		return domain.Dead(address), nil
	}
	return domain.Alive(address, ms), nil
}
