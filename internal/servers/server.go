package servers

import (
	"vpnprofile/internal/protocol"
)

// ConnectingDomain is one physical entry point of a server.
type ConnectingDomain struct {
	ID              string `yaml:"id"`
	EntryDomain     string `yaml:"entry_domain"`
	EntryIP         string `yaml:"entry_ip"`
	ExitIP          string `yaml:"exit_ip,omitempty"`
	Label           string `yaml:"label,omitempty"`
	Online          bool   `yaml:"online"`
	PublicKeyX25519 string `yaml:"public_key_x25519,omitempty"`

	// EntryIPPerProtocol restricts the domain to the listed protocols
	// (keyed by protocol.Selection.Key) when non-empty.
	EntryIPPerProtocol map[string]string `yaml:"entry_ip_per_protocol,omitempty"`
}

// SupportsProtocol reports whether the domain can serve a concrete protocol.
// Smart selections are resolved by the caller against the policy list.
func (d ConnectingDomain) SupportsProtocol(sel protocol.Selection) bool {
	switch sel.VPN {
	case protocol.VPNWireGuard:
		if d.PublicKeyX25519 == "" {
			return false
		}
	case protocol.VPNOpenVPN:
	default:
		return false
	}
	if len(d.EntryIPPerProtocol) == 0 {
		return true
	}
	_, ok := d.EntryIPPerProtocol[sel.Key()]
	return ok
}

// EntryIPFor returns the address to dial for sel.
func (d ConnectingDomain) EntryIPFor(sel protocol.Selection) string {
	if ip := d.EntryIPPerProtocol[sel.Key()]; ip != "" {
		return ip
	}
	return d.EntryIP
}

// Server is a logical server and the domains it is reachable through.
type Server struct {
	ID           string             `yaml:"id"`
	Name         string             `yaml:"name"`
	EntryCountry string             `yaml:"entry_country,omitempty"`
	ExitCountry  string             `yaml:"exit_country"`
	City         string             `yaml:"city,omitempty"`
	SecureCore   bool               `yaml:"secure_core,omitempty"`
	Score        float64            `yaml:"score"`
	Load         int                `yaml:"load,omitempty"`
	Tier         int                `yaml:"tier,omitempty"`
	Domains      []ConnectingDomain `yaml:"domains"`
}

// Online reports whether at least one domain is online.
func (s Server) Online() bool {
	for _, d := range s.Domains {
		if d.Online {
			return true
		}
	}
	return false
}
