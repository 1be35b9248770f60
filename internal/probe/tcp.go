package probe

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"pingwatch/internal/domain"
)

// probeTCP times a TCP connect. The dial returns exactly once, so the first of
// connect, refusal or timeout decides the result.
func (e *Engine) probeTCP(ctx context.Context, address string, target domain.ProbeTarget, cfg Config) (domain.ProbeResult, error) {
	addr := target.String()
	e.log.WithFields(logrus.Fields{"host": address, "addr": addr, "timeout": cfg.Timeout}).Debug("tcp connect")

	dialCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	start := time.Now()
	conn, err := e.dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		if isResourceError(err) {
			return domain.ProbeResult{}, fmt.Errorf("%w: dial %s: %v", ErrExec, addr, err)
		}
		e.log.WithFields(logrus.Fields{"host": address, "error": err}).Debug("tcp connect failed")
		return domain.Dead(address), nil
	}
	elapsed := float64(time.Since(start).Microseconds()) / 1000
	conn.Close()

	return domain.Alive(address, &elapsed), nil
}

// out of descriptors or buffers means we could not check, not that the host is down
func isResourceError(err error) bool {
	return errors.Is(err, syscall.EMFILE) || errors.Is(err, syscall.ENFILE) || errors.Is(err, syscall.ENOBUFS)
}
