package adapter

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// MACPrefixPaths are the usual install locations of nmap's vendor table
var MACPrefixPaths = []string{
	"/usr/share/nmap/nmap-mac-prefixes",
	"/usr/local/share/nmap/nmap-mac-prefixes",
	"/opt/homebrew/share/nmap/nmap-mac-prefixes",
}

// MACPrefixes maps OUI prefixes to vendor names
type MACPrefixes struct {
	vendors map[string]string
	// prefix lengths present in the table, longest first
	lengths []int
}

// LoadMACPrefixes reads an nmap-mac-prefixes file. With an empty path the
// standard locations are tried.
func LoadMACPrefixes(path string) (*MACPrefixes, error) {
	paths := MACPrefixPaths
	if path != "" {
		paths = []string{path}
	}

	var lastErr error
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			lastErr = err
			continue
		}
		defer f.Close()
		return parseMACPrefixes(f)
	}
	return nil, fmt.Errorf("no mac prefix table found: %w", lastErr)
}

// parseMACPrefixes reads lines of the form
//
//	000000 Xerox
//	0050C2012 Tandberg Data
//
// Comment lines start with '#'.
func parseMACPrefixes(r io.Reader) (*MACPrefixes, error) {
	m := &MACPrefixes{vendors: make(map[string]string)}
	seen := map[int]bool{}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		prefix, vendor, ok := strings.Cut(line, " ")
		if !ok || !isHex(prefix) {
			continue
		}
		prefix = strings.ToUpper(prefix)
		m.vendors[prefix] = strings.TrimSpace(vendor)
		if !seen[len(prefix)] {
			seen[len(prefix)] = true
			m.lengths = append(m.lengths, len(prefix))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read mac prefixes: %w", err)
	}

	// longest (most specific) assignment wins
	sort.Sort(sort.Reverse(sort.IntSlice(m.lengths)))
	return m, nil
}

// Len returns the number of prefixes loaded
func (m *MACPrefixes) Len() int {
	return len(m.vendors)
}

// VendorForMAC implements VendorResolver
func (m *MACPrefixes) VendorForMAC(_ context.Context, mac string) string {
	hex := strings.ToUpper(strings.NewReplacer(":", "", "-", "", ".", "").Replace(mac))
	for _, n := range m.lengths {
		if len(hex) < n {
			continue
		}
		if v, ok := m.vendors[hex[:n]]; ok {
			return v
		}
	}
	return ""
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
