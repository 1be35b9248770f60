package adapter

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Enricher resolves MAC and vendor for responsive hosts using every
// resolver that was available at startup. Resolvers are tried in order and
// the first non-empty answer wins.
type Enricher struct {
	macs    []MACResolver
	vendors []VendorResolver
	log     logrus.FieldLogger
}

// NewEnricher builds an enricher. It returns nil when no MAC resolver is
// given since vendor lookup depends on a MAC.
func NewEnricher(macs []MACResolver, vendors []VendorResolver, log logrus.FieldLogger) *Enricher {
	if len(macs) == 0 {
		return nil
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Enricher{macs: macs, vendors: vendors, log: log}
}

// Enrich returns the MAC of ip and, when a MAC was found, its vendor.
// Failures leave the fields empty.
func (e *Enricher) Enrich(ctx context.Context, ip string) (mac, vendor string) {
	for _, r := range e.macs {
		if mac = r.MACForIP(ctx, ip); mac != "" {
			break
		}
	}
	if mac == "" {
		return "", ""
	}
	for _, r := range e.vendors {
		if vendor = r.VendorForMAC(ctx, mac); vendor != "" {
			break
		}
	}
	e.log.WithFields(logrus.Fields{"ip": ip, "mac": mac, "vendor": vendor}).Debug("enriched host")
	return mac, vendor
}
