package protocol

import (
	"fmt"
	"strings"
)

type VPN string

const (
	VPNSmart     VPN = "Smart"
	VPNWireGuard VPN = "WireGuard"
	VPNOpenVPN   VPN = "OpenVPN"
)

type Transmission string

const (
	UDP Transmission = "UDP"
	TCP Transmission = "TCP"
	TLS Transmission = "TLS"
)

// Selection is a requested protocol. A VPNSmart selection leaves the choice
// to the Smart-Protocol policy and carries no transmission.
type Selection struct {
	VPN          VPN
	Transmission Transmission
}

var Smart = Selection{VPN: VPNSmart}

func WireGuard(t Transmission) Selection {
	return Selection{VPN: VPNWireGuard, Transmission: t}
}

func OpenVPN(t Transmission) Selection {
	return Selection{VPN: VPNOpenVPN, Transmission: t}
}

func (s Selection) IsSmart() bool {
	return s.VPN == VPNSmart
}

// Key is the name used for the protocol in server data, e.g. "WireGuardUDP".
func (s Selection) Key() string {
	if s.IsSmart() {
		return string(VPNSmart)
	}
	return string(s.VPN) + string(s.Transmission)
}

func (s Selection) String() string {
	if s.IsSmart() {
		return "smart"
	}
	return strings.ToLower(string(s.VPN) + "-" + string(s.Transmission))
}

// Port is the conventional entry port for the protocol.
func (s Selection) Port() int {
	switch s {
	case WireGuard(UDP):
		return 51820
	case WireGuard(TCP), WireGuard(TLS), OpenVPN(TCP):
		return 443
	case OpenVPN(UDP):
		return 1194
	}
	return 443
}

// Concrete lists every real protocol, in the default smart fallback order.
var Concrete = []Selection{
	WireGuard(UDP),
	WireGuard(TCP),
	OpenVPN(UDP),
	OpenVPN(TCP),
	WireGuard(TLS),
}

// Parse accepts "smart" or "<vpn>-<transmission>", case-insensitively.
func Parse(value string) (Selection, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" || v == "smart" {
		return Smart, nil
	}
	for _, s := range Concrete {
		if v == s.String() || v == strings.ToLower(s.Key()) {
			return s, nil
		}
	}
	return Selection{}, fmt.Errorf("unknown protocol %q", value)
}
