package domain

import "sync/atomic"

// PingTask is one monitored endpoint.
// It is built by the mapper on every configuration sync and lives until the next one.
type PingTask struct {
	// Host is the address as configured, possibly "host:port"
	Host string
	// ExtendedInfo publishes latency and rate in addition to alive
	ExtendedInfo bool

	// State ids the results are published to
	AliveID string
	TimeID  string
	RateID  string

	online atomic.Bool
}

// NewPingTask creates a task that starts out online, so the first
// alive-cycle pass probes it.
func NewPingTask(host string, extended bool, aliveID, timeID, rateID string) *PingTask {
	t := &PingTask{
		Host:         host,
		ExtendedInfo: extended,
		AliveID:      aliveID,
		TimeID:       timeID,
		RateID:       rateID,
	}
	t.online.Store(true)
	return t
}

// Online returns the last known status
func (t *PingTask) Online() bool {
	return t.online.Load()
}

// SetOnline records a new status and reports whether it changed
func (t *PingTask) SetOnline(v bool) bool {
	return t.online.Swap(v) != v
}

// PingTaskInfo is a read-only view of a task
type PingTaskInfo struct {
	Host         string `json:"host"`
	ExtendedInfo bool   `json:"extended_info"`
	Online       bool   `json:"online"`
	AliveID      string `json:"alive_id"`
}

// Info snapshots the task
func (t *PingTask) Info() PingTaskInfo {
	return PingTaskInfo{
		Host:         t.Host,
		ExtendedInfo: t.ExtendedInfo,
		Online:       t.Online(),
		AliveID:      t.AliveID,
	}
}
