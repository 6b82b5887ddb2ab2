package geoip

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"

	"vpnprofile/internal/logger"
)

// Locator answers ISP and country questions for endpoint addresses.
type Locator struct {
	asn     *geoip2.Reader
	country *geoip2.Reader
}

type Result struct {
	ISP     string
	Country string
}

// Open loads the MMDB files. Either path may be empty; a country database
// that fails to open is logged and skipped, an ASN database is required
// when a path is given.
func Open(asnPath, countryPath string) (*Locator, error) {
	l := &Locator{}
	if asnPath != "" {
		r, err := geoip2.Open(asnPath)
		if err != nil {
			return nil, fmt.Errorf("open ASN db %s: %w", asnPath, err)
		}
		l.asn = r
	}
	if countryPath != "" {
		r, err := geoip2.Open(countryPath)
		if err != nil {
			logger.For("geoip").Warnf("Failed to open Country DB at %s: %v", countryPath, err)
		} else {
			l.country = r
		}
	}
	return l, nil
}

// Lookup never fails for a valid ip; unknown fields stay empty.
func (l *Locator) Lookup(ipStr string) (Result, error) {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return Result{}, fmt.Errorf("invalid ip: %s", ipStr)
	}

	var res Result
	if l.asn != nil {
		if asn, err := l.asn.ASN(ip); err == nil {
			res.ISP = asn.AutonomousSystemOrganization
		}
	}
	if l.country != nil {
		if c, err := l.country.Country(ip); err == nil {
			res.Country = c.Country.IsoCode
		}
	}
	return res, nil
}

// Country adapts Lookup to the catalog's locate callback.
func (l *Locator) Country(ip string) (string, bool) {
	res, err := l.Lookup(ip)
	if err != nil || res.Country == "" {
		return "", false
	}
	return res.Country, true
}

func (l *Locator) Close() {
	if l.asn != nil {
		l.asn.Close()
	}
	if l.country != nil {
		l.country.Close()
	}
}
