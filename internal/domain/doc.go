// Package domain defines the core types of pingwatch.
//
// # Probing
//
// ProbeTarget is a parsed address: a hostname, an IPv4 or IPv6 literal, or a
// host:port pair that is checked with a TCP connect instead of ping.
// ProbeResult is the outcome of one probe. PingTask is a configured endpoint
// together with the state ids its results are written to.
//
// # Browsing
//
// BrowseRange selects the addresses of a sweep, either the subnet of an
// interface or an explicit start and length. DetectedSet is the sorted list
// of responsive hosts a sweep found, with the operator's ignore flags kept
// across sweeps.
//
// # Objects
//
// Object is the persisted definition of a device channel or state. The
// mapper package derives the expected objects from the configuration and
// reconciles the stored ones against them.
package domain
