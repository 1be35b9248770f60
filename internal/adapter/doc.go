// Package adapter connects pingwatch to facts about the local network that
// live outside the process.
//
// # Enrichment
//
// ARPTable reads the kernel neighbour table for MAC addresses. NmapLookup runs
// an nmap ping scan against a single address, which yields the MAC and the
// vendor nmap derives from it. MACPrefixes resolves vendors from nmap's
// nmap-mac-prefixes file without running a scan. Enricher chains whichever of
// these are available; each one is probed once when it is built and left out
// if it cannot work on this host.
//
// # Inventory
//
// Inventory lists host interfaces through gopsutil so a sweep can pick its
// subnet from an interface name.
package adapter
