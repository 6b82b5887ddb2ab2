package protocol

import (
	"context"

	"vpnprofile/internal/config"
)

// SmartProtocols is the ordered fallback list used when no specific
// protocol is requested.
type SmartProtocols []Selection

// Contains reports whether s is part of the list.
func (sp SmartProtocols) Contains(s Selection) bool {
	for _, p := range sp {
		if p == s {
			return true
		}
	}
	return false
}

// PolicySource provides the current Smart-Protocol list. Implementations may
// block on remote configuration and must honour ctx.
type PolicySource interface {
	SmartProtocols(ctx context.Context) (SmartProtocols, error)
}

// FromFlags keeps the protocols enabled in cfg, in Concrete order.
func FromFlags(cfg config.SmartProtocolsConfig) SmartProtocols {
	enabled := map[Selection]bool{
		WireGuard(UDP): cfg.WireGuardUDP,
		WireGuard(TCP): cfg.WireGuardTCP,
		WireGuard(TLS): cfg.WireGuardTLS,
		OpenVPN(UDP):   cfg.OpenVPNUDP,
		OpenVPN(TCP):   cfg.OpenVPNTCP,
	}
	var list SmartProtocols
	for _, s := range Concrete {
		if enabled[s] {
			list = append(list, s)
		}
	}
	return list
}

// ConfigPolicy serves the policy from the local feature-flag configuration.
type ConfigPolicy struct {
	flags config.SmartProtocolsConfig
}

func NewConfigPolicy(flags config.SmartProtocolsConfig) *ConfigPolicy {
	return &ConfigPolicy{flags: flags}
}

func (p *ConfigPolicy) SmartProtocols(ctx context.Context) (SmartProtocols, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return FromFlags(p.flags), nil
}
