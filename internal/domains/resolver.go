// Package domains picks the connecting domain a tunnel should use on a
// resolved server.
package domains

import (
	"context"
	"fmt"
	"math/rand"

	"vpnprofile/internal/logger"
	"vpnprofile/internal/protocol"
	"vpnprofile/internal/servers"
)

// Resolver is read-only: every call works on the server value it is given
// and can be cancelled at any point.
type Resolver struct {
	policy protocol.PolicySource
	intn   func(int) int
}

func NewResolver(policy protocol.PolicySource) *Resolver {
	return &Resolver{policy: policy, intn: rand.Intn}
}

// SupportsProtocol checks d against sel. A nil or smart selection matches
// when d supports any protocol of smart; an empty smart list matches all.
func SupportsProtocol(d servers.ConnectingDomain, sel *protocol.Selection, smart protocol.SmartProtocols) bool {
	if sel != nil && !sel.IsSmart() {
		return d.SupportsProtocol(*sel)
	}
	if len(smart) == 0 {
		return true
	}
	for _, s := range smart {
		if d.SupportsProtocol(s) {
			return true
		}
	}
	return false
}

// Online returns the domains of server that are online and support sel.
func Online(server servers.Server, sel *protocol.Selection, smart protocol.SmartProtocols) []servers.ConnectingDomain {
	var out []servers.ConnectingDomain
	for _, d := range server.Domains {
		if d.Online && SupportsProtocol(d, sel, smart) {
			out = append(out, d)
		}
	}
	return out
}

// Supporting returns the domains of server that support sel, online or not.
func Supporting(server servers.Server, sel *protocol.Selection, smart protocol.SmartProtocols) []servers.ConnectingDomain {
	var out []servers.ConnectingDomain
	for _, d := range server.Domains {
		if SupportsProtocol(d, sel, smart) {
			out = append(out, d)
		}
	}
	return out
}

// Resolve picks a random online domain supporting sel. If there is none it
// picks a random supporting domain regardless of status. ok is false when
// the server has no usable domain; err is only set when the policy could
// not be obtained (including cancellation).
func (r *Resolver) Resolve(ctx context.Context, server servers.Server, sel *protocol.Selection) (servers.ConnectingDomain, bool, error) {
	smart, err := r.policy.SmartProtocols(ctx)
	if err != nil {
		return servers.ConnectingDomain{}, false, fmt.Errorf("smart protocols: %w", err)
	}

	if d, ok := r.pick(Online(server, sel, smart)); ok {
		return d, true, nil
	}
	if d, ok := r.pick(Supporting(server, sel, smart)); ok {
		logger.For("domains").Debugf("No online domain on %s, using %s", server.Name, d.EntryDomain)
		return d, true, nil
	}
	return servers.ConnectingDomain{}, false, nil
}

// Result is the outcome of an asynchronous Resolve.
type Result struct {
	Domain servers.ConnectingDomain
	Found  bool
	Err    error
}

// ResolveAsync runs Resolve in its own goroutine. The channel receives
// exactly one Result and is then closed.
func (r *Resolver) ResolveAsync(ctx context.Context, server servers.Server, sel *protocol.Selection) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		d, ok, err := r.Resolve(ctx, server, sel)
		out <- Result{Domain: d, Found: ok, Err: err}
	}()
	return out
}

func (r *Resolver) pick(list []servers.ConnectingDomain) (servers.ConnectingDomain, bool) {
	if len(list) == 0 {
		return servers.ConnectingDomain{}, false
	}
	return list[r.intn(len(list))], true
}
