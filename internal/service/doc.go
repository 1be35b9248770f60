// Package service wires the monitoring components into one running instance.
//
// A Monitor owns the scheduler and the browse sweeper for a namespace. It
// reconciles the object layout whenever the configuration changes and
// implements the operator commands (ping, browse, ignore, stage, save).
//
// State changes and notifications are published on an EventBus, which the
// SSE hub relays to connected clients.
package service
