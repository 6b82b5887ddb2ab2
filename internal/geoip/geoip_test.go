package geoip

import (
	"path/filepath"
	"testing"
)

func TestOpenWithoutDatabases(t *testing.T) {
	l, err := Open("", "")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer l.Close()

	res, err := l.Lookup("192.0.2.1")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if res.ISP != "" || res.Country != "" {
		t.Errorf("Expected empty result, got %+v", res)
	}
	if _, ok := l.Country("192.0.2.1"); ok {
		t.Error("Expected no country without a database")
	}
}

func TestLookupRejectsInvalidIP(t *testing.T) {
	l, _ := Open("", "")
	if _, err := l.Lookup("not-an-ip"); err == nil {
		t.Error("Expected error for invalid ip")
	}
}

func TestOpenMissingDatabases(t *testing.T) {
	dir := t.TempDir()
	if _, err := Open(filepath.Join(dir, "asn.mmdb"), ""); err == nil {
		t.Error("Expected error for missing ASN db")
	}

	l, err := Open("", filepath.Join(dir, "country.mmdb"))
	if err != nil {
		t.Fatalf("Missing country db must not fail: %v", err)
	}
	l.Close()
}
