package domain

import (
	"bytes"
	"encoding/json"
	"net"
	"sort"
)

// DetectedHost is a responsive address found by a sweep.
// Ignore is operator-owned and survives sweep resets.
type DetectedHost struct {
	IP     string `json:"ip"`
	MAC    string `json:"mac,omitempty"`
	Vendor string `json:"vendor,omitempty"`
	Ignore bool   `json:"ignore,omitempty"`
}

// DetectedSet is the sweep's result list, kept sorted by address.
// It is not safe for concurrent use; the owner serializes access.
type DetectedSet struct {
	hosts []DetectedHost
}

// NewDetectedSet builds a set from a previously persisted list
func NewDetectedSet(hosts []DetectedHost) *DetectedSet {
	s := &DetectedSet{hosts: append([]DetectedHost(nil), hosts...)}
	s.sort()
	return s
}

// ParseDetected decodes a persisted list. Corrupt input yields an error and
// callers fall back to an empty set.
func ParseDetected(raw string) ([]DetectedHost, error) {
	if raw == "" {
		return nil, nil
	}
	var hosts []DetectedHost
	if err := json.Unmarshal([]byte(raw), &hosts); err != nil {
		return nil, err
	}
	return hosts, nil
}

// Len returns the number of entries
func (s *DetectedSet) Len() int {
	return len(s.hosts)
}

// ResetKeepIgnored drops every entry not flagged ignore
func (s *DetectedSet) ResetKeepIgnored() {
	kept := s.hosts[:0]
	for _, h := range s.hosts {
		if h.Ignore {
			kept = append(kept, h)
		}
	}
	s.hosts = kept
}

// Upsert inserts h or refreshes an existing entry's MAC and vendor.
// Empty MAC/vendor never overwrite known values. Returns true if the set changed.
func (s *DetectedSet) Upsert(h DetectedHost) bool {
	if i := s.index(h.IP); i >= 0 {
		cur := &s.hosts[i]
		changed := false
		if h.MAC != "" && h.MAC != cur.MAC {
			cur.MAC = h.MAC
			changed = true
		}
		if h.Vendor != "" && h.Vendor != cur.Vendor {
			cur.Vendor = h.Vendor
			changed = true
		}
		return changed
	}
	h.Ignore = false
	s.hosts = append(s.hosts, h)
	s.sort()
	return true
}

// SetIgnore flips the ignore flag on an existing entry only.
// Returns false when ip is unknown or the flag already had that value.
func (s *DetectedSet) SetIgnore(ip string, ignore bool) bool {
	i := s.index(ip)
	if i < 0 || s.hosts[i].Ignore == ignore {
		return false
	}
	s.hosts[i].Ignore = ignore
	return true
}

// IsIgnored reports whether ip is present and flagged ignore
func (s *DetectedSet) IsIgnored(ip string) bool {
	i := s.index(ip)
	return i >= 0 && s.hosts[i].Ignore
}

// Get returns the entry for ip
func (s *DetectedSet) Get(ip string) (DetectedHost, bool) {
	if i := s.index(ip); i >= 0 {
		return s.hosts[i], true
	}
	return DetectedHost{}, false
}

// Snapshot copies the entries in display order
func (s *DetectedSet) Snapshot() []DetectedHost {
	out := make([]DetectedHost, len(s.hosts))
	copy(out, s.hosts)
	return out
}

// JSON encodes the snapshot for persistence
func (s *DetectedSet) JSON() string {
	data, err := json.Marshal(s.Snapshot())
	if err != nil {
		return "[]"
	}
	return string(data)
}

func (s *DetectedSet) index(ip string) int {
	for i := range s.hosts {
		if s.hosts[i].IP == ip {
			return i
		}
	}
	return -1
}

func (s *DetectedSet) sort() {
	sort.SliceStable(s.hosts, func(i, j int) bool {
		return LessIP(s.hosts[i].IP, s.hosts[j].IP)
	})
}

// LessIP orders addresses numerically, falling back to string order
func LessIP(a, b string) bool {
	ia, ib := net.ParseIP(a), net.ParseIP(b)
	if ia == nil || ib == nil {
		return a < b
	}
	return bytes.Compare(ia.To16(), ib.To16()) < 0
}
